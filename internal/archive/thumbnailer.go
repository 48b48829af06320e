package archive

// Thumbnailer derives and stores a thumbnail for a file, dispatching on its
// MIME category. It returns the stored thumbnail filename. A ("", nil) return
// means the category has no thumbnail representation (the record's thumbnail
// stays absent); a non-nil error means the tool failed, which the catalog
// records as "no thumbnail" and moves on.
type Thumbnailer interface {
	Thumbnail(path, fname, mimeType string) (string, error)

	// Remove deletes a previously generated thumbnail by its stored filename.
	Remove(name string) error
}
