package encryption

import (
	"fmt"

	"pbk-go/internal/config"
	"pbk-go/internal/pbk"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil without error when archive encryption is disabled.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (pbk.Encryptor, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
