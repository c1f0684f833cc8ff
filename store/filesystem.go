package store

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/ddiff-io/ddiff/oci"
)

// Filesystem is a Driver writing to a local directory, suitable for
// mounting as /var/lib/registry.
type Filesystem struct {
	fs   afero.Fs
	root string
}

// NewFilesystem creates a filesystem driver rooted at dir on the OS
// filesystem.
func NewFilesystem(dir string) *Filesystem {
	return NewFilesystemWithFs(afero.NewOsFs(), dir)
}

// NewFilesystemWithFs creates a filesystem driver on an arbitrary afero
// filesystem, e.g. a memory-backed one in tests.
func NewFilesystemWithFs(fs afero.Fs, dir string) *Filesystem {
	return &Filesystem{fs: fs, root: dir}
}

func (f *Filesystem) abs(p string) string {
	return filepath.Join(f.root, filepath.FromSlash(p))
}

// BlobExists reports whether the blob's canonical data file exists.
func (f *Filesystem) BlobExists(ctx context.Context, digest oci.DigestInfo) (bool, error) {
	return afero.Exists(f.fs, f.abs(BlobDataPath(digest)))
}

// WriteBlob streams r into a temporary file next to the canonical path,
// hashing as it writes, and renames into place only after the hash matches
// the digest. A mismatch discards the temporary file.
func (f *Filesystem) WriteBlob(ctx context.Context, digest oci.DigestInfo, r io.Reader) error {
	dest := f.abs(BlobDataPath(digest))
	dir := filepath.Dir(dest)

	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, "data-*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	vr := oci.NewVerifyingReader(r)
	_, copyErr := io.Copy(tmp, vr)
	closeErr := tmp.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil {
		copyErr = vr.Verify(digest)
	}
	if copyErr != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("failed to write blob %s: %w", digest.String(), copyErr)
	}

	if err := f.fs.Rename(tmpName, dest); err != nil {
		f.fs.Remove(tmpName)
		return fmt.Errorf("failed to promote blob %s: %w", digest.String(), err)
	}
	return nil
}

// WriteFile writes a small file under the store root.
func (f *Filesystem) WriteFile(ctx context.Context, path string, data []byte) error {
	dest := f.abs(path)
	if err := f.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := afero.WriteFile(f.fs, dest, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
