package encryption

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"mediarc/internal/archive"
)

// AgeEncryptor implements archive.Encryptor using filippo.io/age with X25519
// keys. The recipient (public key) is stored in plaintext; the identity
// (private key) lives in a mode-0600 file — the archive stays on the same
// machine, so passphrase wrapping is left to the filesystem.
type AgeEncryptor struct {
	recipientPath string
	identityPath  string
}

var _ archive.Encryptor = (*AgeEncryptor)(nil)

// NewAgeEncryptor creates an AgeEncryptor reading keys from the given paths.
func NewAgeEncryptor(recipientPath, identityPath string) *AgeEncryptor {
	return &AgeEncryptor{
		recipientPath: recipientPath,
		identityPath:  identityPath,
	}
}

// Setup generates a new X25519 key pair and writes both halves to disk.
func (e *AgeEncryptor) Setup() error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return fmt.Errorf("generating key pair: %w", err)
	}

	for _, p := range []string{e.recipientPath, e.identityPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
			return fmt.Errorf("creating key directory: %w", err)
		}
	}

	if err := os.WriteFile(e.recipientPath, []byte(identity.Recipient().String()+"\n"), 0644); err != nil {
		return fmt.Errorf("writing recipient: %w", err)
	}
	if err := os.WriteFile(e.identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	return nil
}

// IsConfigured returns true if both key files exist.
func (e *AgeEncryptor) IsConfigured() bool {
	if _, err := os.Stat(e.recipientPath); err != nil {
		return false
	}
	if _, err := os.Stat(e.identityPath); err != nil {
		return false
	}
	return true
}

// Encrypt reads plaintext from r and writes age-encrypted ciphertext to w
// using the stored recipient.
func (e *AgeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	data, err := os.ReadFile(e.recipientPath)
	if err != nil {
		return fmt.Errorf("reading recipient: %w", err)
	}

	recipients, err := age.ParseRecipients(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing recipient: %w", err)
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients found in %s", e.recipientPath)
	}

	encWriter, err := age.Encrypt(w, recipients...)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.Copy(encWriter, r); err != nil {
		return fmt.Errorf("encrypting data: %w", err)
	}
	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Decrypt reads age-encrypted ciphertext from r and writes plaintext to w
// using the stored identity.
func (e *AgeEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	data, err := os.ReadFile(e.identityPath)
	if err != nil {
		return fmt.Errorf("reading identity: %w", err)
	}

	identities, err := age.ParseIdentities(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing identity: %w", err)
	}
	if len(identities) == 0 {
		return fmt.Errorf("no identities found in %s", e.identityPath)
	}

	decReader, err := age.Decrypt(r, identities...)
	if err != nil {
		return fmt.Errorf("creating decrypted reader: %w", err)
	}
	if _, err := io.Copy(w, decReader); err != nil {
		return fmt.Errorf("decrypting data: %w", err)
	}
	return nil
}
