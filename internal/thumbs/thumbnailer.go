// Package thumbs generates thumbnails by shelling out to ImageMagick and
// ffmpeg.
package thumbs

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"mediarc/internal/archive"
)

// DefaultSize is the bounding box edge, in pixels, for generated thumbnails.
const DefaultSize = 240

// Thumbnailer implements archive.Thumbnailer. Images are resized into a
// size×size bounding box; videos get a frame grabbed at the one-second mark
// with the clip duration burned into the bottom edge. Other MIME categories
// have no thumbnail representation.
type Thumbnailer struct {
	dir    string
	size   int
	logger archive.Logger
}

// NewThumbnailer creates a thumbnailer writing into dir.
// size <= 0 selects DefaultSize.
func NewThumbnailer(dir string, size int, logger archive.Logger) (*Thumbnailer, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating thumbnail directory: %w", err)
	}
	return &Thumbnailer{dir: dir, size: size, logger: logger}, nil
}

// Thumbnail derives a thumbnail for the file and returns its stored
// filename. ("", nil) means the MIME category has no thumbnail; an error
// means the tool failed.
func (t *Thumbnailer) Thumbnail(path, fname, mimeType string) (string, error) {
	dest := t.storedName(fname)
	destPath := filepath.Join(t.dir, dest)

	switch {
	case strings.HasPrefix(mimeType, "image"):
		if err := t.resize(path, destPath, ""); err != nil {
			return "", err
		}
		return dest, nil

	case strings.HasPrefix(mimeType, "video"):
		frame, err := t.videoFrame(path)
		if err != nil {
			return "", err
		}
		defer os.Remove(frame)

		duration, err := t.videoDuration(path)
		if err != nil {
			t.logger.Warn("duration probe failed", "path", path, "error", err)
			duration = ""
		}
		if err := t.resize(frame, destPath, duration); err != nil {
			return "", err
		}
		return dest, nil
	}

	return "", nil
}

// Remove deletes a stored thumbnail by name.
func (t *Thumbnailer) Remove(name string) error {
	return os.Remove(filepath.Join(t.dir, name))
}

// storedName maps an upload filename to its thumbnail filename.
func (t *Thumbnailer) storedName(fname string) string {
	if strings.HasSuffix(fname, ".png") {
		return fname
	}
	return fname + ".png"
}

// resize runs `convert` with the bounding-box geometry; aspect ratio is
// preserved by the tool. A non-empty text is drawn twice near the bottom —
// a dark label offset under a white one — so the duration stays legible on
// any background.
func (t *Thumbnailer) resize(src, dest, text string) error {
	args := []string{src, "-resize", fmt.Sprintf("%dx%d", t.size, t.size)}
	if text != "" {
		args = append(args,
			"-font", "helvetica", "-fill", "gray", "-pointsize", "20",
			"-gravity", "South", "-draw", fmt.Sprintf("text 12,8 '%s'", text),
			"-font", "helvetica", "-fill", "white", "-pointsize", "20",
			"-gravity", "South", "-draw", fmt.Sprintf("text 10,10 '%s'", text),
		)
	}
	args = append(args, dest)

	if out, err := exec.Command("convert", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("convert %s: %w: %s", src, err, out)
	}
	return nil
}

// videoFrame extracts a single frame at the one-second mark into a temp
// file and returns its path. The caller removes the file.
func (t *Thumbnailer) videoFrame(path string) (string, error) {
	frame := filepath.Join(os.TempDir(), "mediarc-frame-"+uuid.New().String()+".png")
	cmd := exec.Command("ffmpeg",
		"-i", path, "-r", "1", "-v", "quiet", "-t", "00:00:01", "-f", "image2", frame)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg frame extraction for %s: %w: %s", path, err, out)
	}
	return frame, nil
}

// videoDuration probes the clip duration in seconds, trimmed to two decimal
// places.
func (t *Thumbnailer) videoDuration(path string) (string, error) {
	out, err := exec.Command("ffprobe",
		"-i", path, "-show_entries", "format=duration", "-v", "quiet", "-of", "csv=p=0").Output()
	if err != nil {
		return "", fmt.Errorf("ffprobe %s: %w", path, err)
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return "", fmt.Errorf("ffprobe returned no duration for %s", path)
	}
	return TrimDuration(text), nil
}

// TrimDuration keeps at most two decimal places of a duration string.
func TrimDuration(text string) string {
	whole, frac, ok := strings.Cut(text, ".")
	if !ok {
		return text
	}
	if len(frac) > 2 {
		frac = frac[:2]
	}
	return whole + "." + frac
}

var _ archive.Thumbnailer = (*Thumbnailer)(nil)
