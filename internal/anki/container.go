package anki

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
)

// Collection database entry names, newest format first. The first one
// present wins; collection.anki21b is a zstd frame, the other two are raw
// SQLite files.
var CollectionCandidates = []string{
	"collection.anki21b",
	"collection.anki21",
	"collection.anki2",
}

// MediaManifestName is the archive entry mapping numeric member names to
// original filenames.
const MediaManifestName = "media"

// Container is a read view over an .apkg archive held in memory.
type Container struct {
	entries map[string]*zip.File
}

// OpenContainer parses data as a zip archive.
func OpenContainer(data []byte) (*Container, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}

	entries := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries[f.Name] = f
	}
	return &Container{entries: entries}, nil
}

// Has reports whether the archive holds an entry with the given name.
func (c *Container) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// FindEntry returns the first candidate name that exists in the archive.
func (c *Container) FindEntry(candidates ...string) (string, bool) {
	for _, name := range candidates {
		if c.Has(name) {
			return name, true
		}
	}
	return "", false
}

// ReadEntry returns the decompressed-by-zip contents of one entry.
func (c *Container) ReadEntry(name string) ([]byte, error) {
	f, ok := c.entries[name]
	if !ok {
		return nil, fmt.Errorf("no entry %q in package", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open entry %q: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %q: %w", name, err)
	}
	return data, nil
}
