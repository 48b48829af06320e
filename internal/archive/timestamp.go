package archive

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Exif timestamps look like "2019:09:21 15:17:06.167" with optional
// sub-second and timezone suffixes, which are ignored.
var exifTimestampRe = regexp.MustCompile(`^(\d{4}):(\d{2}):(\d+)\s+(\d+):(\d+):(\d+)`)

// parseExifTimestamp parses an exif-style timestamp string.
func parseExifTimestamp(inp string) (time.Time, error) {
	m := exifTimestampRe.FindStringSubmatch(inp)
	if m == nil {
		return time.Time{}, fmt.Errorf("not an exif timestamp: %q", inp)
	}

	parts := make([]int, 6)
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing %q: %w", inp, err)
		}
		parts[i] = n
	}

	return time.Date(parts[0], time.Month(parts[1]), parts[2],
		parts[3], parts[4], parts[5], 0, time.Local), nil
}

// fileTimeFromExif derives the canonical file time: the first parseable value
// in a fixed fallback chain, ending at the file modify date. When none of the
// candidates parse the record must not be written — every file is expected to
// have at least a modify date.
func fileTimeFromExif(exif ExifData) (time.Time, error) {
	keys := []string{
		exifDateTimeOriginal,
		exifCreateDate,
		exifTrackCreateDate,
		exifSubSecCreateDate,
		exifFileModifyDate,
	}

	var candidates []string
	for _, key := range keys {
		inp := exif.String(key)
		candidates = append(candidates, fmt.Sprintf("%s=%q", key, inp))
		if inp == "" {
			continue
		}
		ts, err := parseExifTimestamp(inp)
		if err != nil {
			continue
		}
		return ts, nil
	}

	return time.Time{}, &UnparseableTimestampError{Candidates: candidates}
}
