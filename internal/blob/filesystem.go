package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gracehamilton0/secret-picture/internal/market"
)

// FileSystemStore is a filesystem-based implementation of the BlobStore
// interface. Content lives as files named by handle under the store root:
//
//	<root>/
//	  content/
//	    <handle>     (ciphertext packages, named by SHA-256)
type FileSystemStore struct {
	name       string
	root       string
	contentDir string
}

var _ market.BlobStore = (*FileSystemStore)(nil)

// NewFileSystemStore creates a new filesystem blob store rooted at the given path.
func NewFileSystemStore(name, root string) (*FileSystemStore, error) {
	contentDir := filepath.Join(root, "content")

	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	return &FileSystemStore{
		name:       name,
		root:       root,
		contentDir: contentDir,
	}, nil
}

// Put stores content identified by its handle.
// The operation is idempotent: storing the same handle multiple times is safe.
func (s *FileSystemStore) Put(handle string, r io.Reader, size int64) error {
	destPath := filepath.Join(s.contentDir, handle)

	// If content already exists, skip (idempotent)
	if _, err := os.Stat(destPath); err == nil {
		// Consume the reader to maintain expected behavior
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return s.writeFile(destPath, r, size)
}

// Fetch retrieves content by handle and writes it to w.
func (s *FileSystemStore) Fetch(handle string, w io.Writer) error {
	srcPath := filepath.Join(s.contentDir, handle)

	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: blob %s", market.ErrNotFound, handle)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return nil
}

// ValidateSetup verifies that the store directories are accessible.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", s.root)
	}

	info, err = os.Stat(s.contentDir)
	if err != nil {
		return fmt.Errorf("content directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content path is not a directory: %s", s.contentDir)
	}

	return nil
}

// writeFile writes data from r to the specified path using atomic write (temp file + rename).
func (s *FileSystemStore) writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Create temp file in the same directory to ensure atomic rename works
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on failure
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
