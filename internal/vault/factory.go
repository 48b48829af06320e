package vault

import (
	"fmt"

	"mediarc/internal/archive"
	"mediarc/internal/config"
)

// NewVaultFromConfig creates a Vault implementation based on the configured
// backend type.
func NewVaultFromConfig(cfg config.VaultConfig) (archive.Vault, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryVault(), nil
	case "filesystem", "":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem vault requires root to be set")
		}
		return NewFileSystemVault(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown vault type: %s", cfg.Type)
	}
}
