package archive

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"mediarc/internal/storage"
)

// TableName is the backing table for file records.
const TableName = "metadata"

// MetadataFields declares the file record schema. Field order is column
// order; fname is the unique key across all records, deleted ones included.
func MetadataFields() []storage.Field {
	return []storage.Field{
		{Name: "fname", Type: storage.Text, Qualifier: "unique"},
		{Name: "hash_sha256", Type: storage.Text},
		{Name: "time_db_added", Type: storage.Timestamp},
		{Name: "time_db_updated", Type: storage.Timestamp},
		{Name: "deleted", Type: storage.Boolean},
		{Name: "desc", Type: storage.Text},
		{Name: "exif", Type: storage.JSON},
		{Name: "mime_type", Type: storage.Text},
		{Name: "file_ts", Type: storage.Timestamp},
		{Name: "thumbnail", Type: storage.Text},
		{Name: "tags", Type: storage.JSON},
	}
}

// DeletedFilter selects which records a query returns.
type DeletedFilter int

const (
	// DeletedAny returns every record, deleted or not.
	DeletedAny DeletedFilter = iota
	// DeletedExcluded returns only live records.
	DeletedExcluded
	// DeletedOnly returns only soft-deleted records.
	DeletedOnly
)

// Store is the catalog: the single source of truth reconciling on-disk files
// against persisted records. It owns one database handle; concurrent writers
// across handles are not coordinated here and must be serialized externally.
type Store struct {
	db    *sql.DB
	base  *storage.Table
	table *storage.Table // base, or tx-bound while a batch scope is open

	tx         *sql.Tx
	batchDepth int

	extractor   MetadataExtractor
	thumbnailer Thumbnailer
	fsm         FilesystemManager
	logger      Logger
	clock       Clock
}

// NewStore declares the metadata table (idempotent) and returns a catalog
// store over it.
func NewStore(db *sql.DB, extractor MetadataExtractor, thumbnailer Thumbnailer, fsm FilesystemManager, logger Logger, clock Clock) (*Store, error) {
	table, err := storage.NewTable(db, TableName, MetadataFields())
	if err != nil {
		return nil, err
	}
	if err := table.Create(context.Background()); err != nil {
		return nil, err
	}

	return &Store{
		db:          db,
		base:        table,
		table:       table,
		extractor:   extractor,
		thumbnailer: thumbnailer,
		fsm:         fsm,
		logger:      logger,
		clock:       clock,
	}, nil
}

// Batch runs fn inside a deferred-commit scope. Mutations issued within the
// scope become visible to other connections only when the outermost scope
// exits; nested calls just deepen the scope. An error from the outermost fn
// rolls everything back.
func (s *Store) Batch(ctx context.Context, fn func() error) error {
	if s.batchDepth == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("starting batch: %w", err)
		}
		s.tx = tx
		s.table = s.base.WithTx(tx)
	}
	s.batchDepth++

	err := fn()

	s.batchDepth--
	if s.batchDepth > 0 {
		return err
	}

	tx := s.tx
	s.tx = nil
	s.table = s.base

	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("batch rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	return nil
}

// Process reconciles one file's on-disk state against the catalog.
//
// Extraction failure is treated as "the file is gone": a known record is
// soft-deleted, an unknown filename is ignored. A known record whose size,
// modify date and content hash all match the stored state is a no-op.
// Otherwise the record is added or refreshed in place; a refresh also
// resurrects a soft-deleted record while keeping its tags.
func (s *Store) Process(ctx context.Context, path string) error {
	fname := filepath.Base(path)

	exif, err := s.extractor.Extract(path)
	if err != nil {
		s.logger.Warn("metadata extraction failed", "path", path, "error", err)
		exif = nil
	}

	existing, err := s.GetByFilename(ctx, fname)
	if err != nil {
		return err
	}

	if exif == nil {
		if existing == nil {
			return nil // untracked file with no metadata
		}
		return s.softDelete(ctx, existing)
	}

	// Metadata extracted: hash unconditionally. Size and mtime alone are not
	// trusted for equality.
	hash, err := hashFile(s.fsm, path)
	if err != nil {
		return err
	}

	if existing == nil {
		return s.add(ctx, path, fname, exif, hash)
	}
	if s.sameContent(existing, exif, hash) {
		return nil
	}
	return s.update(ctx, path, fname, exif, hash, existing)
}

// sameContent reports whether the stored state still describes the file:
// stored size and modify date equal the fresh extraction and the stored hash
// equals the fresh hash.
func (s *Store) sameContent(existing *FileRecord, exif ExifData, hash string) bool {
	if existing.Exif == nil {
		return false
	}
	return existing.Exif.valueEquals(exif, exifFileSize) &&
		existing.Exif.valueEquals(exif, exifFileModifyDate) &&
		existing.HashSHA256 == hash
}

func (s *Store) add(ctx context.Context, path, fname string, exif ExifData, hash string) error {
	fileTS, err := fileTimeFromExif(exif)
	if err != nil {
		return err
	}

	ts := s.clock.Now()
	err = s.table.Insert(ctx, map[string]any{
		"fname":           fname,
		"hash_sha256":     hash,
		"time_db_added":   ts,
		"time_db_updated": ts,
		"deleted":         false,
		"desc":            "",
		"exif":            exif,
		"mime_type":       exif.String(exifMIMEType),
		"file_ts":         fileTS,
		"thumbnail":       s.makeThumbnail(path, fname, exif),
		"tags":            []string{},
	})
	if err != nil {
		return err
	}

	s.logger.Info("file added", "fname", fname)
	return nil
}

func (s *Store) update(ctx context.Context, path, fname string, exif ExifData, hash string, existing *FileRecord) error {
	fileTS, err := fileTimeFromExif(exif)
	if err != nil {
		return err
	}

	// Tags are filename-scoped, not content-scoped: a content change leaves
	// them untouched.
	err = s.table.Update(ctx, map[string]any{
		"hash_sha256":     hash,
		"time_db_updated": s.clock.Now(),
		"deleted":         false,
		"exif":            exif,
		"mime_type":       exif.String(exifMIMEType),
		"file_ts":         fileTS,
		"thumbnail":       s.makeThumbnail(path, fname, exif),
	}, map[string]any{"fname": fname})
	if err != nil {
		return err
	}

	s.logger.Info("file updated", "fname", fname, "resurrected", existing.Deleted)
	return nil
}

func (s *Store) softDelete(ctx context.Context, existing *FileRecord) error {
	if existing.Deleted {
		return nil
	}

	err := s.table.Update(ctx, map[string]any{
		"deleted":         true,
		"time_db_updated": s.clock.Now(),
	}, map[string]any{"fname": existing.Fname})
	if err != nil {
		return err
	}

	s.logger.Info("file soft-deleted", "fname", existing.Fname)
	return nil
}

// SoftDelete marks the record for fname as deleted. Used by the duplicate
// resolver after removing a redundant copy from disk; the record itself is
// kept so hash identity survives.
func (s *Store) SoftDelete(ctx context.Context, fname string) error {
	existing, err := s.GetByFilename(ctx, fname)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Fname: fname}
	}
	return s.softDelete(ctx, existing)
}

// makeThumbnail derives a thumbnail for the file. Failures are recorded as
// "no thumbnail", never as a processing error.
func (s *Store) makeThumbnail(path, fname string, exif ExifData) string {
	thumb, err := s.thumbnailer.Thumbnail(path, fname, exif.String(exifMIMEType))
	if err != nil {
		s.logger.Warn("thumbnail generation failed", "fname", fname, "error", err)
		return ""
	}
	return thumb
}

// RefreshThumbnail regenerates the thumbnail for a tracked file, removing the
// replaced thumbnail file when the name changed.
func (s *Store) RefreshThumbnail(ctx context.Context, path string) error {
	fname := filepath.Base(path)

	existing, err := s.GetByFilename(ctx, fname)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Fname: fname}
	}

	thumb := s.makeThumbnail(path, fname, existing.Exif)
	if existing.Thumbnail != "" && existing.Thumbnail != thumb {
		if err := s.thumbnailer.Remove(existing.Thumbnail); err != nil {
			s.logger.Warn("removing old thumbnail failed", "fname", fname, "error", err)
		}
	}

	return s.table.Update(ctx,
		map[string]any{"thumbnail": thumb},
		map[string]any{"fname": fname})
}

// UpdateTags applies one tag mutation to every named file: new tag set =
// (existing − remove) ∪ add, stored sorted. Validation failures and unknown
// filenames leave the catalog untouched. Files sharing an identical existing
// tag set are grouped so the new set is computed once per group.
func (s *Store) UpdateTags(ctx context.Context, fnames, addTags, removeTags []string) error {
	if len(fnames) == 0 {
		return validationf("no files specified")
	}
	if len(addTags) == 0 && len(removeTags) == 0 {
		return validationf("no tag changes requested")
	}
	for _, tag := range append(append([]string{}, addTags...), removeTags...) {
		if len(tag) < 3 {
			return validationf("tag too short: %q", tag)
		}
	}

	groups, err := s.GroupByTagSet(ctx, fnames)
	if err != nil {
		return err
	}

	remove := toSet(removeTags)

	return s.Batch(ctx, func() error {
		for _, group := range groups {
			newTags := toSet(group.Tags)
			for t := range remove {
				delete(newTags, t)
			}
			for _, t := range addTags {
				newTags[t] = struct{}{}
			}
			sorted := setToSorted(newTags)

			for _, fname := range group.Fnames {
				err := s.table.Update(ctx,
					map[string]any{"tags": sorted},
					map[string]any{"fname": fname})
				if err != nil {
					return err
				}
			}
		}
		s.logger.Info("tags updated",
			"files", len(fnames), "added", len(addTags), "removed", len(removeTags))
		return nil
	})
}

// TagGroup is a set of filenames sharing an identical tag set.
type TagGroup struct {
	Tags   []string
	Fnames []string
}

// GroupByTagSet groups the named files (or every record when fnames is nil)
// by their current tag set. Groups are ordered by serialized tag key so the
// result is deterministic.
func (s *Store) GroupByTagSet(ctx context.Context, fnames []string) ([]TagGroup, error) {
	records, err := s.GetAll(ctx, DeletedAny, false)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*FileRecord, len(records))
	for _, r := range records {
		byName[r.Fname] = r
	}

	if fnames == nil {
		fnames = make([]string, 0, len(records))
		for _, r := range records {
			fnames = append(fnames, r.Fname)
		}
	} else {
		for _, fname := range fnames {
			if _, ok := byName[fname]; !ok {
				return nil, &NotFoundError{Fname: fname}
			}
		}
	}

	grouped := make(map[string]*TagGroup)
	var keys []string
	for _, fname := range fnames {
		r := byName[fname]
		key := strings.Join(r.Tags, "\x00")
		g, ok := grouped[key]
		if !ok {
			g = &TagGroup{Tags: r.Tags}
			grouped[key] = g
			keys = append(keys, key)
		}
		g.Fnames = append(g.Fnames, fname)
	}

	sort.Strings(keys)
	out := make([]TagGroup, 0, len(keys))
	for _, key := range keys {
		out = append(out, *grouped[key])
	}
	return out, nil
}

// GetAll returns catalog records filtered by deleted state, ordered by file
// time (most recent first unless ascending).
func (s *Store) GetAll(ctx context.Context, filter DeletedFilter, ascending bool) ([]*FileRecord, error) {
	where := map[string]any{}
	switch filter {
	case DeletedExcluded:
		where["deleted"] = false
	case DeletedOnly:
		where["deleted"] = true
	}

	rows, err := s.table.Select(ctx, nil, where,
		[]storage.Order{{Field: "file_ts", Desc: !ascending}})
	if err != nil {
		return nil, err
	}

	records := make([]*FileRecord, 0, len(rows))
	for _, row := range rows {
		r, err := fileRecordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// GetByFilename returns the record for fname, or nil when none exists.
// Soft-deleted records are returned too: there is at most one record per
// filename, ever.
func (s *Store) GetByFilename(ctx context.Context, fname string) (*FileRecord, error) {
	rows, err := s.table.Select(ctx, nil, map[string]any{"fname": fname}, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return fileRecordFromRow(rows[0])
}

// GetAllTags returns the sorted union of tags across all records.
func (s *Store) GetAllTags(ctx context.Context) ([]string, error) {
	records, err := s.GetAll(ctx, DeletedAny, false)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, r := range records {
		for _, t := range r.Tags {
			set[t] = struct{}{}
		}
	}
	return setToSorted(set), nil
}

// SetDescription sets the free-form description for a tracked file.
// Descriptions are user state and are never touched by reconciliation.
func (s *Store) SetDescription(ctx context.Context, fname, desc string) error {
	existing, err := s.GetByFilename(ctx, fname)
	if err != nil {
		return err
	}
	if existing == nil {
		return &NotFoundError{Fname: fname}
	}
	return s.table.Update(ctx,
		map[string]any{"desc": desc},
		map[string]any{"fname": fname})
}

// Count returns the number of records matching the deleted filter.
func (s *Store) Count(ctx context.Context, filter DeletedFilter) (int64, error) {
	where := map[string]any{}
	switch filter {
	case DeletedExcluded:
		where["deleted"] = false
	case DeletedOnly:
		where["deleted"] = true
	}
	return s.table.Count(ctx, where)
}

// BackupTo writes a consistent copy of the catalog database to destPath using
// VACUUM INTO. Must not be called inside a batch scope.
func (s *Store) BackupTo(ctx context.Context, destPath string) error {
	if s.batchDepth > 0 {
		return fmt.Errorf("cannot snapshot inside a batch")
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for it := range set {
		out = append(out, it)
	}
	sort.Strings(out)
	return out
}
