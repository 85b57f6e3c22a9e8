// Package storage lays out downloaded images on disk:
// <root>/<domain>/<productId>/<productId>_<suffix>.jpg.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"ImageHarvester/utils"
)

// maxCollisions bounds the _<suffix>_N search.
const maxCollisions = 10000

// Store writes image files below a root directory.
type Store struct {
	root  string
	saved atomic.Int64
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// DomainFolder creates and returns the folder for the site of sampleURL.
func (s *Store) DomainFolder(sampleURL string) (string, error) {
	dir := filepath.Join(s.root, utils.DomainFolderName(sampleURL))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create domain folder: %w", err)
	}
	return dir, nil
}

// ProductDir creates and returns domainFolder/<productID>.
func (s *Store) ProductDir(domainFolder, productID string) (string, error) {
	dir := filepath.Join(domainFolder, productID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create product folder: %w", err)
	}
	return dir, nil
}

// FileName is the preferred name of an image, before collision handling.
func FileName(productID, suffix string) string {
	return fmt.Sprintf("%s_%s.jpg", productID, suffix)
}

// SaveExclusive writes data to dir/<productID>_<suffix>.jpg, or to the first
// free <productID>_<suffix>_N.jpg. The name is reserved with O_EXCL, so two
// concurrent writers never share a file. It returns the path written.
func (s *Store) SaveExclusive(dir, productID, suffix string, data []byte) (string, error) {
	name := FileName(productID, suffix)
	for n := 1; n <= maxCollisions; n++ {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			name = FileName(productID, fmt.Sprintf("%s_%d", suffix, n))
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create image file: %w", err)
		}

		_, err = f.Write(data)
		closeErr := f.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
			return "", fmt.Errorf("failed to save image data: %w", err)
		}
		s.saved.Add(1)
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s after %d attempts", FileName(productID, suffix), maxCollisions)
}

// SavedCount returns the number of files written by this store.
func (s *Store) SavedCount() int {
	return int(s.saved.Load())
}
