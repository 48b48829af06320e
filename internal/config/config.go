package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration for mediarc.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Thumbnails ThumbnailConfig  `toml:"thumbnails"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// CatalogConfig locates the catalog database and the managed upload
// directory.
type CatalogConfig struct {
	DBPath    string `toml:"db_path"`
	UploadDir string `toml:"upload_dir"`
}

// ThumbnailConfig holds thumbnail generation settings.
type ThumbnailConfig struct {
	Dir  string `toml:"dir"`
	Size int    `toml:"size"`
}

// VaultConfig configures the snapshot vault backend.
// The Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "filesystem" or "memory"

	// Filesystem-specific (only used when Type == "filesystem")
	Root string `toml:"root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshot
// encryption. When Enabled is false, snapshots are stored in plaintext.
type EncryptionConfig struct {
	Enabled       bool   `toml:"enabled"`
	RecipientPath string `toml:"recipient_path"`
	IdentityPath  string `toml:"identity_path"`
}

// NewConfig creates a Config rooted at baseDir with default sub-paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Catalog: CatalogConfig{
			DBPath:    filepath.Join(baseDir, "metadata.sqlite3"),
			UploadDir: filepath.Join(baseDir, "uploads"),
		},
		Thumbnails: ThumbnailConfig{
			Dir:  filepath.Join(baseDir, "thumbnails"),
			Size: 240,
		},
		Vault: VaultConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "vault"),
		},
		Encryption: EncryptionConfig{
			RecipientPath: filepath.Join(baseDir, "keys", "mediarc.pub"),
			IdentityPath:  filepath.Join(baseDir, "keys", "mediarc.key"),
		},
	}
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

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// Init initializes a new config file at the specified path with the provided
// Config. Refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
