package encryption

import (
	"path/filepath"
	"testing"

	"pbk-go/internal/config"
)

func TestNewEncryptorFromConfig(t *testing.T) {
	dir := t.TempDir()
	keys := config.EncryptionConfig{
		Enabled:        true,
		PublicKeyPath:  filepath.Join(dir, "pbk.pub"),
		PrivateKeyPath: filepath.Join(dir, "pbk.key"),
	}

	tests := []struct {
		name    string
		mutate  func(c *config.EncryptionConfig)
		wantNil bool
		wantErr bool
		want    string
	}{
		{name: "disabled", mutate: func(c *config.EncryptionConfig) { c.Enabled = false }, wantNil: true},
		{name: "default type is age", mutate: func(c *config.EncryptionConfig) {}, want: "age"},
		{name: "explicit age", mutate: func(c *config.EncryptionConfig) { c.Type = "age" }, want: "age"},
		{name: "test", mutate: func(c *config.EncryptionConfig) { c.Type = "test" }, want: "test"},
		{name: "age without key paths", mutate: func(c *config.EncryptionConfig) { c.PublicKeyPath = "" }, wantNil: true, wantErr: true},
		{name: "unknown", mutate: func(c *config.EncryptionConfig) { c.Type = "rot13" }, wantNil: true, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := keys
			tt.mutate(&cfg)

			got, err := NewEncryptorFromConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEncryptorFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (got == nil) != tt.wantNil {
				t.Fatalf("NewEncryptorFromConfig() nil = %v, wantNil %v", got == nil, tt.wantNil)
			}

			switch tt.want {
			case "age":
				if _, ok := got.(*AgeEncryptor); !ok {
					t.Errorf("got %T, want *AgeEncryptor", got)
				}
			case "test":
				if _, ok := got.(*TestEncryptor); !ok {
					t.Errorf("got %T, want *TestEncryptor", got)
				}
			}
		})
	}
}
