package archive

// MetadataExtractor extracts raw metadata from a file on disk.
// An error means "no usable metadata" — the catalog treats it as a recognized
// input state (the file is unreadable or gone), not a fatal condition.
type MetadataExtractor interface {
	Extract(path string) (ExifData, error)
}
