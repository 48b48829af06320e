package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// hashFile computes the SHA-256 content hash of the file at path as a
// lowercase hex string.
func hashFile(fsm FilesystemManager, path string) (string, error) {
	f, err := fsm.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
