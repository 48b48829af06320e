package archive

import "io"

// Vault stores catalog database snapshots outside the archive itself.
// Steady-state reconciliation never touches it; only the backup and restore
// flows do.
type Vault interface {
	// PutSnapshot stores a snapshot under the given name.
	PutSnapshot(name string, r io.Reader, size int64) error

	// GetSnapshot retrieves a snapshot by name and writes it to w.
	GetSnapshot(name string, w io.Writer) error

	// ListSnapshots returns stored snapshot names in lexical order.
	ListSnapshots() ([]string, error)
}

// Encryptor optionally encrypts catalog snapshots before they reach the
// vault.
type Encryptor interface {
	// Setup generates and stores the key material.
	Setup() error

	// IsConfigured reports whether key material is in place.
	IsConfigured() bool

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
