// Package filestore keeps uploaded exam files on the local filesystem or in a
// Backblaze B2 bucket.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/calculus-oom/gradebook/internal/domain/shared"
)

// Local stores files under a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("filestore: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filestore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string {
	return l.root
}

// Save writes content under name and returns the stored path.
// Existing files are replaced atomically via rename.
func (l *Local) Save(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := l.resolve(name)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(l.root, ".upload-*")
	if err != nil {
		return "", shared.StorageFailure("file", "Save", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", shared.StorageFailure("file", "Save", err)
	}
	if err := tmp.Close(); err != nil {
		return "", shared.StorageFailure("file", "Save", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", shared.StorageFailure("file", "Save", err)
	}
	return path, nil
}

// Open reads a stored file.
func (l *Local) Open(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := l.contains(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, shared.NotFound("file", "Open", filepath.Base(path))
	}
	if err != nil {
		return nil, shared.StorageFailure("file", "Open", err)
	}
	return data, nil
}

// Remove deletes a stored file. Missing files are not an error.
func (l *Local) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return shared.StorageFailure("file", "Remove", err)
	}
	return nil
}

func (l *Local) resolve(name string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.root, clean), nil
}

// cleanName reduces name to a single non-hidden path element.
func cleanName(name string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + name))
	if clean == "/" || clean == "." || strings.HasPrefix(clean, ".") {
		return "", shared.NewValidationError("file", "Save", "invalid file name", "file")
	}
	return clean, nil
}

func (l *Local) contains(path string) error {
	rel, err := filepath.Rel(l.root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return shared.NewValidationError("file", "Open", "path outside of storage root", "path")
	}
	return nil
}
