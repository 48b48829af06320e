// Package exiftool shells out to exiftool for metadata extraction.
package exiftool

import (
	"encoding/json"
	"fmt"
	"os/exec"

	"mediarc/internal/archive"
)

// Extractor implements archive.MetadataExtractor by invoking
// `exiftool -n -json <path>`. The -n flag keeps numeric values (file size,
// durations) unformatted so they round-trip through the catalog unchanged.
type Extractor struct {
	// Binary overrides the exiftool executable name. Empty means "exiftool"
	// from PATH.
	Binary string
}

// NewExtractor creates an exiftool-backed extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract runs exiftool on the file and returns its metadata map.
// Any failure — missing file, unsupported input, tool error — is returned as
// an error; callers treat it as "no metadata".
func (e *Extractor) Extract(path string) (archive.ExifData, error) {
	binary := e.Binary
	if binary == "" {
		binary = "exiftool"
	}

	out, err := exec.Command(binary, "-n", "-json", path).Output()
	if err != nil {
		return nil, fmt.Errorf("exiftool %s: %w", path, err)
	}

	// exiftool -json emits an array with one object per input file.
	var results []map[string]any
	if err := json.Unmarshal(out, &results); err != nil {
		return nil, fmt.Errorf("parsing exiftool output for %s: %w", path, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}

	return archive.ExifData(results[0]), nil
}

var _ archive.MetadataExtractor = (*Extractor)(nil)
