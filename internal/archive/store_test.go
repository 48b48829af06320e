package archive_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"mediarc/internal/archive"
	"mediarc/internal/testutil"
)

const uploadDir = "/uploads"

// addUpload registers a file with both the mock filesystem and the stub
// extractor, returning its path.
func addUpload(ts *testutil.TestStore, fname string, content []byte, exif archive.ExifData) string {
	path := uploadDir + "/" + fname
	ts.FS.AddFile(path, content)
	ts.Extractor.Set(path, exif)
	return path
}

func imageExif(size int, modDate string) archive.ExifData {
	return archive.ExifData{
		"FileSize":       float64(size),
		"FileModifyDate": modDate,
		"MIMEType":       "image/jpeg",
	}
}

func TestStoreProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("adds a new file", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		content := []byte("photo bytes")
		path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))

		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("process failed: %v", err)
		}

		r, err := ts.Store.GetByFilename(ctx, "a.jpg")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if r == nil {
			t.Fatal("expected record")
		}
		if r.HashSHA256 != testutil.SHA256Hex(content) {
			t.Errorf("hash = %s, want %s", r.HashSHA256, testutil.SHA256Hex(content))
		}
		if r.Deleted {
			t.Error("new record should not be deleted")
		}
		if r.MimeType != "image/jpeg" {
			t.Errorf("mime = %s, want image/jpeg", r.MimeType)
		}
		if r.FileTime() != "2023-05-01 10:00:00" {
			t.Errorf("file time = %s, want 2023-05-01 10:00:00", r.FileTime())
		}
		if r.Thumbnail != "a.jpg.png" {
			t.Errorf("thumbnail = %s, want a.jpg.png", r.Thumbnail)
		}
		if len(r.Tags) != 0 {
			t.Errorf("tags = %v, want empty", r.Tags)
		}
	})

	t.Run("unchanged file is a no-op", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		content := []byte("stable bytes")
		path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))

		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("first process failed: %v", err)
		}
		before, _ := ts.Store.GetByFilename(ctx, "a.jpg")

		ts.Clock.Advance(time.Hour)
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("second process failed: %v", err)
		}
		after, _ := ts.Store.GetByFilename(ctx, "a.jpg")

		if !after.TimeDBUpdated.Equal(before.TimeDBUpdated) {
			t.Errorf("no-op touched time_db_updated: %v -> %v",
				before.TimeDBUpdated, after.TimeDBUpdated)
		}
	})

	t.Run("changed content refreshes the record and keeps tags", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		content := []byte("version one")
		path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))

		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("process failed: %v", err)
		}
		if err := ts.Store.UpdateTags(ctx, []string{"a.jpg"}, []string{"holiday"}, nil); err != nil {
			t.Fatalf("tagging failed: %v", err)
		}
		added, _ := ts.Store.GetByFilename(ctx, "a.jpg")

		newContent := []byte("version two, longer")
		ts.Clock.Advance(time.Hour)
		addUpload(ts, "a.jpg", newContent, imageExif(len(newContent), "2023:06:01 09:00:00"))

		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("reprocess failed: %v", err)
		}

		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if r.HashSHA256 != testutil.SHA256Hex(newContent) {
			t.Errorf("hash not refreshed")
		}
		if !r.TimeDBAdded.Equal(added.TimeDBAdded) {
			t.Errorf("time_db_added changed on update")
		}
		if !r.TimeDBUpdated.After(added.TimeDBUpdated) {
			t.Errorf("time_db_updated not advanced")
		}
		if len(r.Tags) != 1 || r.Tags[0] != "holiday" {
			t.Errorf("tags = %v, want [holiday]", r.Tags)
		}
		if r.FileTime() != "2023-06-01 09:00:00" {
			t.Errorf("file time = %s, want 2023-06-01 09:00:00", r.FileTime())
		}
	})

	t.Run("extraction failure soft-deletes a known file", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		content := []byte("going away")
		path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))

		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("process failed: %v", err)
		}

		ts.Extractor.Unset(path)
		ts.Clock.Advance(time.Hour)
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("reprocess failed: %v", err)
		}

		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if !r.Deleted {
			t.Error("record should be soft-deleted")
		}

		// Repeating the soft-delete must not touch the record again.
		before := r.TimeDBUpdated
		ts.Clock.Advance(time.Hour)
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("third process failed: %v", err)
		}
		r, _ = ts.Store.GetByFilename(ctx, "a.jpg")
		if !r.TimeDBUpdated.Equal(before) {
			t.Error("repeated soft-delete touched time_db_updated")
		}
	})

	t.Run("extraction failure for an unknown file is ignored", func(t *testing.T) {
		ts := testutil.NewTestStore(t)

		if err := ts.Store.Process(ctx, uploadDir+"/ghost.jpg"); err != nil {
			t.Fatalf("process failed: %v", err)
		}

		n, err := ts.Store.Count(ctx, archive.DeletedAny)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 0 {
			t.Errorf("count = %d, want 0", n)
		}
	})

	t.Run("reappearing file resurrects its record", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		content := []byte("back again")
		path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))

		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("process failed: %v", err)
		}
		if err := ts.Store.UpdateTags(ctx, []string{"a.jpg"}, []string{"keeper"}, nil); err != nil {
			t.Fatalf("tagging failed: %v", err)
		}

		ts.Extractor.Unset(path)
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("soft-delete process failed: %v", err)
		}

		ts.Extractor.Set(path, imageExif(len(content), "2023:05:01 10:00:00"))
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("resurrect process failed: %v", err)
		}

		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if r.Deleted {
			t.Error("record should be live again")
		}
		if len(r.Tags) != 1 || r.Tags[0] != "keeper" {
			t.Errorf("tags = %v, want [keeper]", r.Tags)
		}
	})

	t.Run("unparseable timestamp writes nothing", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		content := []byte("no dates")
		path := uploadDir + "/a.jpg"
		ts.FS.AddFile(path, content)
		ts.Extractor.Set(path, archive.ExifData{
			"FileSize": float64(len(content)),
			"MIMEType": "image/jpeg",
		})

		err := ts.Store.Process(ctx, path)
		var utErr *archive.UnparseableTimestampError
		if !errors.As(err, &utErr) {
			t.Fatalf("expected UnparseableTimestampError, got %v", err)
		}

		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if r != nil {
			t.Error("record should not have been written")
		}
	})
}

func TestStoreBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("error rolls back every mutation", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		content := []byte("rollback me")
		path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))

		err := ts.Store.Batch(ctx, func() error {
			if err := ts.Store.Process(ctx, path); err != nil {
				return err
			}
			return fmt.Errorf("boom")
		})
		if err == nil {
			t.Fatal("expected error from batch")
		}

		r, err := ts.Store.GetByFilename(ctx, "a.jpg")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if r != nil {
			t.Error("mutation survived rollback")
		}
	})

	t.Run("nested scopes commit once at the outermost exit", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		contentA := []byte("first")
		contentB := []byte("second")
		pathA := addUpload(ts, "a.jpg", contentA, imageExif(len(contentA), "2023:05:01 10:00:00"))
		pathB := addUpload(ts, "b.jpg", contentB, imageExif(len(contentB), "2023:05:02 10:00:00"))

		err := ts.Store.Batch(ctx, func() error {
			if err := ts.Store.Process(ctx, pathA); err != nil {
				return err
			}
			return ts.Store.Batch(ctx, func() error {
				return ts.Store.Process(ctx, pathB)
			})
		})
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}

		n, err := ts.Store.Count(ctx, archive.DeletedAny)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 2 {
			t.Errorf("count = %d, want 2", n)
		}
	})
}

func TestStoreUpdateTags(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, ts *testutil.TestStore, fnames ...string) {
		t.Helper()
		for i, fname := range fnames {
			content := []byte("content " + fname)
			path := addUpload(ts, fname, content,
				imageExif(len(content), fmt.Sprintf("2023:05:%02d 10:00:00", i+1)))
			if err := ts.Store.Process(ctx, path); err != nil {
				t.Fatalf("seeding %s failed: %v", fname, err)
			}
		}
	}

	t.Run("adds and removes tags, stored sorted", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		seed(t, ts, "a.jpg")

		if err := ts.Store.UpdateTags(ctx, []string{"a.jpg"}, []string{"zebra", "apple"}, nil); err != nil {
			t.Fatalf("add failed: %v", err)
		}
		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if len(r.Tags) != 2 || r.Tags[0] != "apple" || r.Tags[1] != "zebra" {
			t.Errorf("tags = %v, want [apple zebra]", r.Tags)
		}

		if err := ts.Store.UpdateTags(ctx, []string{"a.jpg"}, nil, []string{"apple"}); err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		r, _ = ts.Store.GetByFilename(ctx, "a.jpg")
		if len(r.Tags) != 1 || r.Tags[0] != "zebra" {
			t.Errorf("tags = %v, want [zebra]", r.Tags)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		seed(t, ts, "a.jpg")

		for i := 0; i < 2; i++ {
			if err := ts.Store.UpdateTags(ctx, []string{"a.jpg"}, []string{"holiday"}, nil); err != nil {
				t.Fatalf("update %d failed: %v", i, err)
			}
		}

		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if len(r.Tags) != 1 {
			t.Errorf("tags = %v, want exactly one", r.Tags)
		}
	})

	t.Run("applies one mutation across different tag sets", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		seed(t, ts, "a.jpg", "b.jpg")

		if err := ts.Store.UpdateTags(ctx, []string{"a.jpg"}, []string{"old"}, nil); err != nil {
			t.Fatalf("pre-tagging failed: %v", err)
		}

		if err := ts.Store.UpdateTags(ctx, []string{"a.jpg", "b.jpg"}, []string{"new"}, []string{"old"}); err != nil {
			t.Fatalf("update failed: %v", err)
		}

		a, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		b, _ := ts.Store.GetByFilename(ctx, "b.jpg")
		if len(a.Tags) != 1 || a.Tags[0] != "new" {
			t.Errorf("a tags = %v, want [new]", a.Tags)
		}
		if len(b.Tags) != 1 || b.Tags[0] != "new" {
			t.Errorf("b tags = %v, want [new]", b.Tags)
		}
	})

	t.Run("validation failures mutate nothing", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		seed(t, ts, "a.jpg")

		cases := []struct {
			name   string
			fnames []string
			add    []string
			remove []string
		}{
			{"no files", nil, []string{"holiday"}, nil},
			{"no changes", []string{"a.jpg"}, nil, nil},
			{"short tag", []string{"a.jpg"}, []string{"ab"}, nil},
		}
		for _, c := range cases {
			t.Run(c.name, func(t *testing.T) {
				err := ts.Store.UpdateTags(ctx, c.fnames, c.add, c.remove)
				var vErr *archive.ValidationError
				if !errors.As(err, &vErr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			})
		}

		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if len(r.Tags) != 0 {
			t.Errorf("tags = %v, want none", r.Tags)
		}
	})

	t.Run("unknown filename fails the whole update", func(t *testing.T) {
		ts := testutil.NewTestStore(t)
		seed(t, ts, "a.jpg")

		err := ts.Store.UpdateTags(ctx, []string{"a.jpg", "ghost.jpg"}, []string{"holiday"}, nil)
		var nfErr *archive.NotFoundError
		if !errors.As(err, &nfErr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
		if nfErr.Fname != "ghost.jpg" {
			t.Errorf("fname = %s, want ghost.jpg", nfErr.Fname)
		}

		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if len(r.Tags) != 0 {
			t.Errorf("tags = %v, want none", r.Tags)
		}
	})
}

func TestStoreGroupByTagSet(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStore(t)

	for i, fname := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		content := []byte("content " + fname)
		path := addUpload(ts, fname, content,
			imageExif(len(content), fmt.Sprintf("2023:05:%02d 10:00:00", i+1)))
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}
	if err := ts.Store.UpdateTags(ctx, []string{"a.jpg", "b.jpg"}, []string{"shared"}, nil); err != nil {
		t.Fatalf("tagging failed: %v", err)
	}

	t.Run("groups files sharing a tag set", func(t *testing.T) {
		groups, err := ts.Store.GroupByTagSet(ctx, nil)
		if err != nil {
			t.Fatalf("grouping failed: %v", err)
		}
		if len(groups) != 2 {
			t.Fatalf("groups = %d, want 2", len(groups))
		}

		// Untagged group sorts first (empty key).
		if len(groups[0].Fnames) != 1 || groups[0].Fnames[0] != "c.jpg" {
			t.Errorf("untagged group = %v, want [c.jpg]", groups[0].Fnames)
		}
		if len(groups[1].Fnames) != 2 {
			t.Errorf("shared group = %v, want two members", groups[1].Fnames)
		}
	})

	t.Run("unknown filename is an error", func(t *testing.T) {
		_, err := ts.Store.GroupByTagSet(ctx, []string{"ghost.jpg"})
		var nfErr *archive.NotFoundError
		if !errors.As(err, &nfErr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})
}

func TestStoreQueries(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStore(t)

	dates := map[string]string{
		"a.jpg": "2023:05:01 10:00:00",
		"b.jpg": "2021:01:01 10:00:00",
		"c.jpg": "2022:03:01 10:00:00",
	}
	for fname, date := range dates {
		content := []byte("content " + fname)
		path := addUpload(ts, fname, content, imageExif(len(content), date))
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}
	ts.Extractor.Unset(uploadDir + "/b.jpg")
	if err := ts.Store.Process(ctx, uploadDir+"/b.jpg"); err != nil {
		t.Fatalf("soft-delete failed: %v", err)
	}

	t.Run("GetAll orders by file time, newest first", func(t *testing.T) {
		records, err := ts.Store.GetAll(ctx, archive.DeletedAny, false)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		want := []string{"a.jpg", "c.jpg", "b.jpg"}
		for i, r := range records {
			if r.Fname != want[i] {
				t.Errorf("record %d = %s, want %s", i, r.Fname, want[i])
			}
		}
	})

	t.Run("GetAll filters deleted state", func(t *testing.T) {
		live, err := ts.Store.GetAll(ctx, archive.DeletedExcluded, false)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(live) != 2 {
			t.Errorf("live = %d, want 2", len(live))
		}

		deleted, err := ts.Store.GetAll(ctx, archive.DeletedOnly, false)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if len(deleted) != 1 || deleted[0].Fname != "b.jpg" {
			t.Errorf("deleted = %v, want [b.jpg]", deleted)
		}
	})

	t.Run("GetByFilename returns nil for unknown names", func(t *testing.T) {
		r, err := ts.Store.GetByFilename(ctx, "ghost.jpg")
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if r != nil {
			t.Errorf("expected nil, got %v", r)
		}
	})

	t.Run("Count respects the filter", func(t *testing.T) {
		n, err := ts.Store.Count(ctx, archive.DeletedExcluded)
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 2 {
			t.Errorf("count = %d, want 2", n)
		}
	})
}

func TestStoreGetAllTags(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStore(t)

	for i, fname := range []string{"a.jpg", "b.jpg"} {
		content := []byte("content " + fname)
		path := addUpload(ts, fname, content,
			imageExif(len(content), fmt.Sprintf("2023:05:%02d 10:00:00", i+1)))
		if err := ts.Store.Process(ctx, path); err != nil {
			t.Fatalf("seeding failed: %v", err)
		}
	}
	if err := ts.Store.UpdateTags(ctx, []string{"a.jpg"}, []string{"zebra", "holiday"}, nil); err != nil {
		t.Fatalf("tagging failed: %v", err)
	}
	if err := ts.Store.UpdateTags(ctx, []string{"b.jpg"}, []string{"holiday"}, nil); err != nil {
		t.Fatalf("tagging failed: %v", err)
	}

	tags, err := ts.Store.GetAllTags(ctx)
	if err != nil {
		t.Fatalf("get tags failed: %v", err)
	}
	if len(tags) != 2 || tags[0] != "holiday" || tags[1] != "zebra" {
		t.Errorf("tags = %v, want [holiday zebra]", tags)
	}
}

func TestStoreSetDescription(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStore(t)

	content := []byte("described")
	path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))
	if err := ts.Store.Process(ctx, path); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	t.Run("sets and persists", func(t *testing.T) {
		if err := ts.Store.SetDescription(ctx, "a.jpg", "summer trip"); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if r.Desc != "summer trip" {
			t.Errorf("desc = %q, want %q", r.Desc, "summer trip")
		}
	})

	t.Run("unknown filename is an error", func(t *testing.T) {
		err := ts.Store.SetDescription(ctx, "ghost.jpg", "nope")
		var nfErr *archive.NotFoundError
		if !errors.As(err, &nfErr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})
}

func TestStoreRefreshThumbnail(t *testing.T) {
	ctx := context.Background()
	ts := testutil.NewTestStore(t)

	content := []byte("thumbed")
	path := addUpload(ts, "a.jpg", content, imageExif(len(content), "2023:05:01 10:00:00"))
	if err := ts.Store.Process(ctx, path); err != nil {
		t.Fatalf("seeding failed: %v", err)
	}

	t.Run("regenerates in place", func(t *testing.T) {
		if err := ts.Store.RefreshThumbnail(ctx, path); err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
		r, _ := ts.Store.GetByFilename(ctx, "a.jpg")
		if r.Thumbnail != "a.jpg.png" {
			t.Errorf("thumbnail = %s, want a.jpg.png", r.Thumbnail)
		}
	})

	t.Run("unknown filename is an error", func(t *testing.T) {
		err := ts.Store.RefreshThumbnail(ctx, uploadDir+"/ghost.jpg")
		var nfErr *archive.NotFoundError
		if !errors.As(err, &nfErr) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})
}
