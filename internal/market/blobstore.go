package market

import "io"

// BlobStore is the external content-addressed store for ciphertext packages.
// Handles are SHA-256 hex digests of the stored bytes. The store never sees
// plaintext and offers no durability guarantee — callers must treat blob loss
// as a possible failure mode.
// All operations stream through io.Reader/io.Writer to support large content.
type BlobStore interface {
	// Put stores content under the given handle. Idempotent: storing the
	// same handle twice is safe. size is the number of bytes read from r.
	Put(handle string, r io.Reader, size int64) error

	// Fetch retrieves content by handle and writes it to w.
	// Fails with ErrNotFound if the handle is unknown.
	Fetch(handle string, w io.Writer) error

	// ValidateSetup verifies the store is accessible and properly configured.
	ValidateSetup() error
}
