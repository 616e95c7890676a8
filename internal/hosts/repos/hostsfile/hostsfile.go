// Package hostsfile reads and writes the OS hosts file as whole-file text.
package hostsfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	"github.com/haukened/auto-hosts/internal/hosts/domain"
)

// File is the hosts file at a fixed path.
type File struct {
	path string
}

// New returns a File for path. The path is checked on every Read, not here.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Read returns the full content of the file as text.
//
// A missing path wraps domain.ErrPathNotFound; content that is not valid UTF-8 wraps
// domain.ErrEncoding.
func (f *File) Read() (string, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", domain.ErrPathNotFound, f.path)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", domain.ErrPathNotFound, f.path)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", domain.ErrEncoding, f.path)
	}
	return string(data), nil
}

// Write replaces the whole file with content in a single write, keeping its permission bits.
func (f *File) Write(content string) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(f.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(f.path, []byte(content), mode); err != nil {
		return fmt.Errorf("write hosts file %s: %w", f.path, err)
	}
	return nil
}
