package archive

import (
	"fmt"
	"time"

	"mediarc/internal/storage"
)

// Exif metadata keys the catalog relies on. The extractor produces many more;
// these are the ones with reconciliation semantics.
const (
	exifFileSize         = "FileSize"
	exifFileModifyDate   = "FileModifyDate"
	exifMIMEType         = "MIMEType"
	exifDateTimeOriginal = "DateTimeOriginal"
	exifCreateDate       = "CreateDate"
	exifTrackCreateDate  = "TrackCreateDate"
	exifSubSecCreateDate = "SubSecCreateDate"
)

// ExifData is the raw metadata map extracted from a file, persisted as
// serialized text. Values are JSON-shaped: strings and float64 numbers.
type ExifData map[string]any

// String returns the value for key as a string, or "" when missing or not
// string-typed.
func (e ExifData) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Number returns the numeric value for key. JSON decoding yields float64 for
// every number, so stored and freshly extracted values compare directly.
func (e ExifData) Number(key string) (float64, bool) {
	n, ok := e[key].(float64)
	return n, ok
}

// valueEquals reports whether both maps carry an identical value for key.
// Two absent values are considered equal.
func (e ExifData) valueEquals(other ExifData, key string) bool {
	a, aok := e[key]
	b, bok := other[key]
	if aok != bok {
		return false
	}
	return a == b
}

// FileRecord is the persisted row for one tracked filename's last-known
// state. Records are never physically removed: Deleted marks the file as
// missing on disk while preserving history and hash identity.
type FileRecord struct {
	Fname         string
	HashSHA256    string
	TimeDBAdded   time.Time
	TimeDBUpdated time.Time
	Deleted       bool
	Desc          string
	Exif          ExifData
	MimeType      string
	FileTS        time.Time
	Thumbnail     string // thumbnail filename, "" when none could be generated
	Tags          []string
}

// FileTime returns the canonical file-time string, the form search predicates
// and display layers operate on.
func (r *FileRecord) FileTime() string {
	return r.FileTS.Format(storage.TimeLayout)
}

// Tagged reports whether the record carries at least one tag.
func (r *FileRecord) Tagged() bool { return len(r.Tags) > 0 }

// fileRecordFromRow converts one decoded full-record row into a FileRecord.
// The value order is the schema's column order.
func fileRecordFromRow(vals []any) (*FileRecord, error) {
	if len(vals) != 11 {
		return nil, fmt.Errorf("expected 11 columns, got %d", len(vals))
	}

	r := &FileRecord{}
	var err error
	if r.Fname, err = asStr(vals[0], "fname"); err != nil {
		return nil, err
	}
	if r.HashSHA256, err = asStr(vals[1], "hash_sha256"); err != nil {
		return nil, err
	}
	if r.TimeDBAdded, err = asTime(vals[2], "time_db_added"); err != nil {
		return nil, err
	}
	if r.TimeDBUpdated, err = asTime(vals[3], "time_db_updated"); err != nil {
		return nil, err
	}
	deleted, ok := vals[4].(bool)
	if !ok {
		return nil, fmt.Errorf("column deleted: expected bool, got %T", vals[4])
	}
	r.Deleted = deleted
	if r.Desc, err = asStr(vals[5], "desc"); err != nil {
		return nil, err
	}
	if exif, ok := vals[6].(map[string]any); ok {
		r.Exif = ExifData(exif)
	} else if vals[6] != nil {
		return nil, fmt.Errorf("column exif: expected map, got %T", vals[6])
	}
	if r.MimeType, err = asStr(vals[7], "mime_type"); err != nil {
		return nil, err
	}
	if r.FileTS, err = asTime(vals[8], "file_ts"); err != nil {
		return nil, err
	}
	if r.Thumbnail, err = asStr(vals[9], "thumbnail"); err != nil {
		return nil, err
	}

	switch tags := vals[10].(type) {
	case nil:
		r.Tags = nil
	case []any:
		r.Tags = make([]string, 0, len(tags))
		for _, t := range tags {
			s, ok := t.(string)
			if !ok {
				return nil, fmt.Errorf("column tags: expected string entries, got %T", t)
			}
			r.Tags = append(r.Tags, s)
		}
	default:
		return nil, fmt.Errorf("column tags: expected list, got %T", vals[10])
	}

	return r, nil
}

func asStr(v any, col string) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("column %s: expected string, got %T", col, v)
	}
	return s, nil
}

func asTime(v any, col string) (time.Time, error) {
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("column %s: expected time, got %T", col, v)
	}
	return t, nil
}
