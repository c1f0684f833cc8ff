package store

import (
	"context"
	"io"

	"github.com/ddiff-io/ddiff/oci"
)

// Driver persists the registry store layout on some backing storage.
//
// Blob presence at the canonical path is the durability commit point:
// WriteBlob implementations must verify the stream against the digest
// before any bytes become visible at the canonical path, and must never
// promote unverified content.
type Driver interface {
	// BlobExists reports whether the blob's canonical data path exists.
	BlobExists(ctx context.Context, digest oci.DigestInfo) (bool, error)

	// WriteBlob streams r into the blob's canonical data path, verifying
	// the sha256 hash along the way. On mismatch no canonical file is
	// created and oci.ErrDigestMismatch is returned.
	WriteBlob(ctx context.Context, digest oci.DigestInfo, r io.Reader) error

	// WriteFile writes a small file (links, metadata) at the given path
	// relative to the store root, creating parent directories as needed.
	WriteFile(ctx context.Context, path string, data []byte) error
}

// WriteLink writes a registry link file whose content is exactly the digest
// string it points to.
func WriteLink(ctx context.Context, d Driver, path string, digest oci.DigestInfo) error {
	return d.WriteFile(ctx, path, []byte(digest.String()))
}
