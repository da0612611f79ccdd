package gis

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// TempFiles hands out uniquely named files under one directory and removes
// them on demand. It satisfies the history log's temp-file collaborator.
type TempFiles struct {
	dir string
}

// NewTempFiles creates a provider rooted at dir, or at a fresh directory
// under the system temp location when dir is empty.
func NewTempFiles(dir string) (*TempFiles, error) {
	if dir == "" {
		d, err := os.MkdirTemp("", "vnet")
		if err != nil {
			return nil, err
		}
		return &TempFiles{dir: d}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &TempFiles{dir: dir}, nil
}

// Dir returns the directory the provider creates files in.
func (t *TempFiles) Dir() string { return t.dir }

// Create makes a new uniquely named empty file and returns its path.
func (t *TempFiles) Create() (string, error) {
	path := filepath.Join(t.dir, "tmp_"+uuid.NewString())
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	return path, f.Close()
}

// Write makes a new uniquely named file holding the given content.
func (t *TempFiles) Write(content string) (string, error) {
	path := filepath.Join(t.dir, "tmp_"+uuid.NewString())
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Remove deletes a file created by the provider. A file that is already
// gone is not an error.
func (t *TempFiles) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
