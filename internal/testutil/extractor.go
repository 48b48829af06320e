package testutil

import (
	"fmt"

	"mediarc/internal/archive"
)

// StubExtractor returns scripted metadata per path. Paths with no entry fail
// extraction, which the catalog treats as "file gone".
type StubExtractor struct {
	data map[string]archive.ExifData
}

// NewStubExtractor creates an empty StubExtractor.
func NewStubExtractor() *StubExtractor {
	return &StubExtractor{data: make(map[string]archive.ExifData)}
}

// Set scripts the metadata returned for path.
func (e *StubExtractor) Set(path string, exif archive.ExifData) {
	e.data[path] = exif
}

// Unset removes the scripted metadata for path, making extraction fail.
func (e *StubExtractor) Unset(path string) {
	delete(e.data, path)
}

func (e *StubExtractor) Extract(path string) (archive.ExifData, error) {
	exif, ok := e.data[path]
	if !ok {
		return nil, fmt.Errorf("no metadata for %s", path)
	}
	return exif, nil
}

// StubThumbnailer records thumbnail requests and returns fname + ".png" for
// every file, mimicking the stored-name convention of the real thumbnailer.
type StubThumbnailer struct {
	Removed []string
}

// NewStubThumbnailer creates a StubThumbnailer.
func NewStubThumbnailer() *StubThumbnailer {
	return &StubThumbnailer{}
}

func (t *StubThumbnailer) Thumbnail(path, fname, mimeType string) (string, error) {
	return fname + ".png", nil
}

func (t *StubThumbnailer) Remove(name string) error {
	t.Removed = append(t.Removed, name)
	return nil
}

// ScriptedPrompter replays a fixed sequence of answers.
type ScriptedPrompter struct {
	Answers []string
	Asked   []string
	next    int
}

// NewScriptedPrompter creates a prompter that answers with the given sequence.
func NewScriptedPrompter(answers ...string) *ScriptedPrompter {
	return &ScriptedPrompter{Answers: answers}
}

func (p *ScriptedPrompter) Ask(prompt string, options []string) (string, error) {
	p.Asked = append(p.Asked, prompt)
	if p.next >= len(p.Answers) {
		return "", fmt.Errorf("unexpected prompt: %s", prompt)
	}
	answer := p.Answers[p.next]
	p.next++
	return answer, nil
}
