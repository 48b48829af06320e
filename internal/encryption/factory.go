package encryption

import (
	"mediarc/internal/archive"
	"mediarc/internal/config"
)

// NewEncryptorFromConfig creates the snapshot encryptor, or nil when
// encryption is disabled.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) archive.Encryptor {
	if !cfg.Enabled {
		return nil
	}
	return NewAgeEncryptor(cfg.RecipientPath, cfg.IdentityPath)
}
