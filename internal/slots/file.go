package slots

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/banshee-data/trace.review/internal/fsutil"
	"github.com/banshee-data/trace.review/internal/security"
)

// File stores each slot as <dir>/<name>.json. Writes go to a temporary file
// first and are renamed into place so a crash never leaves a half-written slot.
type File struct {
	fs  fsutil.FileSystem
	dir string
}

// NewFile returns a file-backed slot store rooted at dir.
func NewFile(fsys fsutil.FileSystem, dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("slot directory cannot be empty")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create slot directory %s: %w", dir, err)
	}
	return &File{fs: fsys, dir: dir}, nil
}

// Path returns the file holding the named slot.
func (f *File) Path(name string) string {
	return filepath.Join(f.dir, security.SanitizeFilename(name)+".json")
}

// Read returns the slot file content; a missing file is not an error.
func (f *File) Read(_ context.Context, name string) ([]byte, bool, error) {
	data, err := f.fs.ReadFile(f.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read slot file: %w", err)
	}
	return data, true, nil
}

// Write atomically replaces the slot file.
func (f *File) Write(_ context.Context, name string, data []byte) error {
	path := f.Path(name)
	tmp := strings.TrimSuffix(path, ".json") + ".tmp"
	if err := f.fs.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write slot file: %w", err)
	}
	if err := f.fs.Rename(tmp, path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("failed to replace slot file: %w", err)
	}
	return nil
}
