package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
)

// DefaultVersionNote labels backups made without an explicit note.
const DefaultVersionNote = "Перед созданием приложения"

// DefaultKeepSnapshots is how many database snapshots `db cleanup` keeps by default.
const DefaultKeepSnapshots = 10

// Config represents the main configuration for pbk.
type Config struct {
	ProjectName string `toml:"project_name"`

	// SourceDir is the project root; relative paths below are resolved against it.
	SourceDir      string `toml:"source_dir"`
	BackupDir      string `toml:"backup_dir"`
	SnapshotDir    string `toml:"snapshot_dir"`
	DatabasePath   string `toml:"database_path,omitempty"`
	VersionNote    string `toml:"version_note"`
	CheckIntegrity bool   `toml:"check_integrity"`
	KeepSnapshots  int    `toml:"keep_snapshots"`

	// Schedule is a cron expression used by `pbk schedule`.
	Schedule string `toml:"schedule,omitempty"`

	BaseDir string `toml:"base_dir"`
	LogDir  string `toml:"log_dir"`

	// Exclude lists extra ignore patterns on top of the built-in ones.
	Exclude []string `toml:"exclude,omitempty"`

	// Manifest overrides the built-in file list when non-empty.
	Manifest []ManifestEntry `toml:"manifest,omitempty"`

	Vaults     []VaultConfig    `toml:"vaults,omitempty"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
}

// ManifestEntry is a configured source file. An empty Category is inferred
// from the file extension.
type ManifestEntry struct {
	Path     string `toml:"path"`
	Category string `toml:"category,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for archive encryption.
type EncryptionConfig struct {
	Enabled        bool     `toml:"enabled"`
	Type           string   `toml:"type,omitempty"` // "age" (default) or "test"
	PublicKeyPath  string   `toml:"public_key_path"`
	PrivateKeyPath string   `toml:"private_key_path"`
	Recipients     []string `toml:"recipients,omitempty"`
}

// VaultConfig represents configuration for a vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// NewConfig creates a Config for the project at sourceDir with pbk's own
// state kept under baseDir.
func NewConfig(baseDir, sourceDir string) *Config {
	return &Config{
		ProjectName:    filepath.Base(sourceDir),
		SourceDir:      sourceDir,
		BackupDir:      "backup",
		SnapshotDir:    filepath.Join("backup", "database"),
		VersionNote:    DefaultVersionNote,
		CheckIntegrity: true,
		KeepSnapshots:  DefaultKeepSnapshots,
		BaseDir:        baseDir,
		LogDir:         filepath.Join(baseDir, "log"),
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(baseDir, "keys", "pbk.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "pbk.key"),
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
	}
}

// ResolvePath interprets p relative to SourceDir unless it is absolute or empty.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.SourceDir, p)
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source_dir is required")
	}
	if c.BackupDir == "" {
		return fmt.Errorf("backup_dir is required")
	}
	if c.SnapshotDir == "" {
		return fmt.Errorf("snapshot_dir is required")
	}
	if c.KeepSnapshots < 0 {
		return fmt.Errorf("keep_snapshots must not be negative, got %d", c.KeepSnapshots)
	}
	for i, e := range c.Manifest {
		if strings.TrimSpace(e.Path) == "" {
			return fmt.Errorf("manifest entry %d: path is required", i+1)
		}
	}
	names := make(map[string]bool)
	for _, v := range c.Vaults {
		if v.Name == "" {
			return fmt.Errorf("vault of type %q has no name", v.Type)
		}
		if names[v.Name] {
			return fmt.Errorf("duplicate vault name: %s", v.Name)
		}
		names[v.Name] = true
	}
	return nil
}

// Vault returns the named vault config, or the first one when name is empty.
func (c *Config) Vault(name string) (VaultConfig, error) {
	if len(c.Vaults) == 0 {
		return VaultConfig{}, fmt.Errorf("no vaults configured")
	}
	if name == "" {
		return c.Vaults[0], nil
	}
	for _, v := range c.Vaults {
		if v.Name == name {
			return v, nil
		}
	}
	return VaultConfig{}, fmt.Errorf("vault not found: %s", name)
}

// ApplyEnv overrides settings from PBK_* variables looked up with lookup
// (normally os.LookupEnv). Values are converted with cast; a value that does
// not convert is an error.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"PBK_PROJECT_NAME", &cfg.ProjectName},
		{"PBK_SOURCE_DIR", &cfg.SourceDir},
		{"PBK_BACKUP_DIR", &cfg.BackupDir},
		{"PBK_SNAPSHOT_DIR", &cfg.SnapshotDir},
		{"PBK_DATABASE_PATH", &cfg.DatabasePath},
		{"PBK_VERSION_NOTE", &cfg.VersionNote},
		{"PBK_SCHEDULE", &cfg.Schedule},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = cast.ToString(v)
		}
	}

	if v, ok := lookup("PBK_KEEP_SNAPSHOTS"); ok {
		n, err := cast.ToIntE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PBK_KEEP_SNAPSHOTS: %w", err)
		}
		cfg.KeepSnapshots = n
	}
	if v, ok := lookup("PBK_CHECK_INTEGRITY"); ok {
		b, err := cast.ToBoolE(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PBK_CHECK_INTEGRITY: %w", err)
		}
		cfg.CheckIntegrity = b
	}
	if v, ok := lookup("PBK_EXCLUDE"); ok {
		cfg.Exclude = append(cfg.Exclude, cast.ToStringSlice(strings.ReplaceAll(v, ",", " "))...)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
