// Package storage keeps uploaded files and detection results on local disk,
// keyed by the client supplied filename.  Saving a name that already exists
// overwrites it.
package storage

import (
	"github.com/pkg/errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidFilename is returned for names that do not reduce to a plain
// file name
var ErrInvalidFilename = errors.New("invalid filename")

// Store holds the upload and result directories
type Store struct {
	uploadDir string
	resultDir string
}

// New returns a Store, creating both directories if needed
func New(uploadDir, resultDir string) (*Store, error) {

	for _, dir := range []string{uploadDir, resultDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "error creating directory %s", dir)
		}
	}

	return &Store{uploadDir: uploadDir, resultDir: resultDir}, nil
}

// CleanName reduces a client supplied filename to its base name, rejecting
// names that are empty or refer to a directory
func CleanName(name string) (string, error) {

	// browsers on windows may send the full client path
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(name)

	switch base {
	case "", ".", "..", "/":
		return "", errors.Wrapf(ErrInvalidFilename, "%q", name)
	}

	return base, nil
}

// UploadPath returns where an upload of the given name is stored
func (s *Store) UploadPath(name string) (string, error) {

	clean, err := CleanName(name)

	if err != nil {
		return "", err
	}

	return filepath.Join(s.uploadDir, clean), nil
}

// ResultPath returns where the result for the given name is stored
func (s *Store) ResultPath(name string) (string, error) {

	clean, err := CleanName(name)

	if err != nil {
		return "", err
	}

	return filepath.Join(s.resultDir, clean), nil
}

// SaveUpload copies r to the upload directory and returns the path written
func (s *Store) SaveUpload(name string, r io.Reader) (string, error) {

	path, err := s.UploadPath(name)

	if err != nil {
		return "", err
	}

	f, err := os.Create(path)

	if err != nil {
		return "", errors.Wrapf(err, "error creating %s", path)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrapf(err, "error writing %s", path)
	}

	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "error closing %s", path)
	}

	return path, nil
}

// SaveResult writes an encoded result image and returns the path written
func (s *Store) SaveResult(name string, data []byte) (string, error) {

	path, err := s.ResultPath(name)

	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "error writing %s", path)
	}

	return path, nil
}
