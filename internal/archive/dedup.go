package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// ErrAborted terminates a duplicate-resolution run at the user's request.
// Everything already committed stays committed; no further groups are
// processed.
var ErrAborted = errors.New("duplicate resolution aborted")

// Prompter asks the operator to pick one of a fixed set of single-letter
// options. Destructive resolution always goes through it.
type Prompter interface {
	Ask(prompt string, options []string) (string, error)
}

// GroupDuplicates buckets records by their content-identity key (stored exif
// file size, content hash) and returns only the groups with more than one
// member. Input order is preserved within and across groups, so feeding
// records in display order (most recent first) keeps the first group member
// the newest.
func GroupDuplicates(records []*FileRecord) [][]*FileRecord {
	type key struct {
		size float64
		hash string
	}

	grouped := make(map[key][]*FileRecord)
	var order []key
	for _, r := range records {
		size, _ := r.Exif.Number(exifFileSize)
		k := key{size: size, hash: r.HashSHA256}
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], r)
	}

	var out [][]*FileRecord
	for _, k := range order {
		if g := grouped[k]; len(g) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Resolver drives the interactive duplicate-resolution workflow over the
// catalog. It runs outside any batch scope on purpose: an abort must leave
// every already-applied soft-delete in place.
type Resolver struct {
	store     *Store
	fsm       FilesystemManager
	thumbs    Thumbnailer
	prompter  Prompter
	logger    Logger
	uploadDir string
	out       io.Writer
}

// NewResolver creates a duplicate resolver over the given catalog.
// Reports for the operator are written to out.
func NewResolver(store *Store, fsm FilesystemManager, thumbs Thumbnailer, prompter Prompter, logger Logger, uploadDir string, out io.Writer) *Resolver {
	return &Resolver{
		store:     store,
		fsm:       fsm,
		thumbs:    thumbs,
		prompter:  prompter,
		logger:    logger,
		uploadDir: uploadDir,
		out:       out,
	}
}

// Run finds candidate groups among live records and resolves them one by
// one. Returns ErrAborted when the operator quits mid-run.
func (r *Resolver) Run(ctx context.Context) error {
	records, err := r.store.GetAll(ctx, DeletedExcluded, false)
	if err != nil {
		return err
	}

	groups := GroupDuplicates(records)
	if len(groups) == 0 {
		fmt.Fprintln(r.out, "No duplicate candidates found.")
		return nil
	}

	for _, group := range groups {
		if err := r.resolveGroup(ctx, group); err != nil {
			return err
		}
	}
	return nil
}

// resolveGroup verifies one candidate group byte-for-byte and asks the
// operator what to do. Confirmed duplicates may be deleted (all but the
// first, which is the newest and stays); a group that shares a key without
// being byte-identical only offers keep or abort — that is a hash collision
// or metadata anomaly, and nothing automatic is safe.
func (r *Resolver) resolveGroup(ctx context.Context, matches []*FileRecord) error {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "-----------------------")
	for _, m := range matches {
		fmt.Fprintln(r.out, m.Fname)
	}
	fmt.Fprintln(r.out)

	identical, err := r.allIdentical(matches)
	if err != nil {
		return err
	}

	if !identical {
		fmt.Fprintln(r.out, "Same size and hash but not byte-identical. No automatic resolution.")
		choice, err := r.prompter.Ask("(k)eep all  (q)uit? ", []string{"k", "q"})
		if err != nil {
			return err
		}
		if choice == "q" {
			return ErrAborted
		}
		return nil
	}

	choice, err := r.prompter.Ask("Duplicates detected. (d)elete all but first  (k)eep all  (q)uit? ", []string{"d", "k", "q"})
	if err != nil {
		return err
	}
	switch choice {
	case "q":
		return ErrAborted
	case "k":
		return nil
	}

	for _, m := range matches[1:] {
		r.removeFiles(m)
		if err := r.store.SoftDelete(ctx, m.Fname); err != nil {
			return fmt.Errorf("soft-deleting %s: %w", m.Fname, err)
		}
		fmt.Fprintf(r.out, "Deleted %s\n", m.Fname)
	}
	return nil
}

// removeFiles deletes the uploaded file and its thumbnail, best-effort: a
// failure is reported but never blocks the catalog soft-delete.
func (r *Resolver) removeFiles(m *FileRecord) {
	path := filepath.Join(r.uploadDir, m.Fname)
	if err := r.fsm.Remove(path); err != nil {
		r.logger.Warn("failed to remove uploaded file", "path", path, "error", err)
		fmt.Fprintf(r.out, "Failed to remove %s: %v\n", path, err)
	}
	if m.Thumbnail != "" {
		if err := r.thumbs.Remove(m.Thumbnail); err != nil {
			r.logger.Warn("failed to remove thumbnail", "name", m.Thumbnail, "error", err)
			fmt.Fprintf(r.out, "Failed to remove thumbnail %s: %v\n", m.Thumbnail, err)
		}
	}
}

// allIdentical byte-compares every group member against the first.
func (r *Resolver) allIdentical(matches []*FileRecord) (bool, error) {
	first := filepath.Join(r.uploadDir, matches[0].Fname)
	for _, m := range matches[1:] {
		same, err := r.sameBytes(first, filepath.Join(r.uploadDir, m.Fname))
		if err != nil {
			return false, err
		}
		if !same {
			return false, nil
		}
	}
	return true, nil
}

func (r *Resolver) sameBytes(pathA, pathB string) (bool, error) {
	a, err := r.fsm.Open(pathA)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", pathA, err)
	}
	defer a.Close()

	b, err := r.fsm.Open(pathB)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", pathB, err)
	}
	defer b.Close()

	bufA := make([]byte, 64*1024)
	bufB := make([]byte, 64*1024)
	for {
		nA, errA := io.ReadFull(a, bufA)
		nB, errB := io.ReadFull(b, bufB)
		if nA != nB || !bytes.Equal(bufA[:nA], bufB[:nB]) {
			return false, nil
		}

		endA := errA == io.EOF || errA == io.ErrUnexpectedEOF
		endB := errB == io.EOF || errB == io.ErrUnexpectedEOF
		if errA != nil && !endA {
			return false, fmt.Errorf("reading %s: %w", pathA, errA)
		}
		if errB != nil && !endB {
			return false, fmt.Errorf("reading %s: %w", pathB, errB)
		}
		if endA || endB {
			return endA == endB, nil
		}
	}
}
