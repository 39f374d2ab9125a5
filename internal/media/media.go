package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/mdcards/mdcards/pkg/logger"
)

// URLPrefix is how stored files are referenced from cards and the UI.
const URLPrefix = "/uploads/"

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Store is a flat blob store rooted at the uploads directory. Filenames
// are generated, so concurrent writers never collide.
type Store struct {
	root string
	log  *logger.Logger
}

func NewStore(root string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Store{root: root, log: log}, nil
}

// Root returns the uploads directory path, for static file serving.
func (s *Store) Root() string {
	return s.root
}

// AllowedExt reports whether ext names a supported image type.
func AllowedExt(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// Save writes data under a fresh unique name preserving ext and returns
// the /uploads/-relative path.
func (s *Store) Save(data []byte, ext string) (string, error) {
	ext = strings.ToLower(ext)
	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(s.root, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write media file: %w", err)
	}
	s.log.Trace("stored media file %s (%d bytes)", name, len(data))
	return URLPrefix + name, nil
}

// Read returns the bytes behind an /uploads/-relative path. The path is
// reduced to its base name so callers cannot escape the uploads root.
func (s *Store) Read(relPath string) ([]byte, error) {
	name := filepath.Base(strings.TrimPrefix(relPath, URLPrefix))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid media path %q", relPath)
	}
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read media file %q: %w", name, err)
	}
	return data, nil
}
