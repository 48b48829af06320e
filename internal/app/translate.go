package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mediarc/internal/archive"
	"mediarc/internal/storage"
)

// Translate copies every record from the catalog at oldPath into a freshly
// created catalog at newPath, normalizing legacy rows on the way: thumbnail
// values that stored a full path are reduced to the bare filename. newPath
// must not already exist.
func Translate(ctx context.Context, oldPath, newPath string) (int, error) {
	if _, err := os.Stat(newPath); err == nil {
		return 0, fmt.Errorf("destination already exists: %s", newPath)
	}

	oldDB, err := storage.OpenConnection(oldPath)
	if err != nil {
		return 0, err
	}
	defer oldDB.Close()

	oldTable, err := storage.NewTable(oldDB, archive.TableName, archive.MetadataFields())
	if err != nil {
		return 0, err
	}

	rows, err := oldTable.Select(ctx, nil, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("reading source catalog: %w", err)
	}

	newDB, err := storage.OpenConnection(newPath)
	if err != nil {
		return 0, err
	}
	defer newDB.Close()

	newTable, err := storage.NewTable(newDB, archive.TableName, archive.MetadataFields())
	if err != nil {
		return 0, err
	}
	if err := newTable.Create(ctx); err != nil {
		return 0, err
	}

	cols := newTable.Columns()
	count := 0
	for _, row := range rows {
		values := make(map[string]any, len(cols))
		for i, c := range cols {
			values[c] = row[i]
		}

		if thumb, ok := values["thumbnail"].(string); ok && thumb != "" {
			values["thumbnail"] = filepath.Base(thumb)
		}

		if err := newTable.Insert(ctx, values); err != nil {
			return count, fmt.Errorf("writing record %d: %w", count, err)
		}
		count++
	}

	return count, nil
}
