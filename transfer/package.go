package transfer

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pgzip "github.com/klauspost/pgzip"

	"github.com/ddiff-io/ddiff/oci"
)

// StagingDirName is the archive's root directory, also used as the local
// staging directory during pack and load.
const StagingDirName = ".ddiff-image"

const (
	manifestFileName  = "manifest.json"
	mediaTypeFileName = "MANIFEST_MEDIA_TYPE"
	baseFileName      = "BASE"
	targetFileName    = "TARGET"
	mountFileName     = "MOUNT_BLOBS"
	uploadFileName    = "UPLOAD_BLOBS"
	blobDirName       = "blobs"

	digestListSeparator = "|"
)

// Package is the self-describing transfer archive content: everything
// needed to reconstruct the target image on a destination registry that
// holds the base image, without access to the original source registry.
type Package struct {
	ManifestBytes []byte
	MediaType     oci.MediaType
	Base          oci.Reference
	Target        oci.Reference
	Mountable     []oci.DigestInfo
	Exclusive     []oci.DigestInfo

	// BlobDir holds one file per exclusive digest, named by the digest
	// string.
	BlobDir string
}

// BlobPath returns the staged file path for an exclusive blob.
func (p *Package) BlobPath(d oci.DigestInfo) string {
	return filepath.Join(p.BlobDir, d.String())
}

// ArchiveName derives the archive file name from the target reference,
// substituting path-unsafe characters: slashes become "--", the tag colon
// becomes "-".
func ArchiveName(target oci.Reference) string {
	name := strings.ReplaceAll(target.String(), "/", "--")
	name = strings.ReplaceAll(name, ":", "-")
	return name + ".tar.gz"
}

// WriteArchive serializes the package into a gzip-compressed tarball at
// archivePath. Metadata entries come first, then blob files in the
// exclusive list's order.
func WriteArchive(pkg *Package, archivePath string) (err error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	gz := pgzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	meta := []struct {
		name string
		data []byte
	}{
		{manifestFileName, pkg.ManifestBytes},
		{mediaTypeFileName, []byte(pkg.MediaType)},
		{baseFileName, []byte(pkg.Base.String())},
		{targetFileName, []byte(pkg.Target.String())},
		{mountFileName, []byte(joinDigests(pkg.Mountable))},
		{uploadFileName, []byte(joinDigests(pkg.Exclusive))},
	}
	for _, m := range meta {
		if err := writeTarBytes(tw, StagingDirName+"/"+m.name, m.data); err != nil {
			return err
		}
	}

	for _, d := range pkg.Exclusive {
		if err := writeTarFile(tw, StagingDirName+"/"+blobDirName+"/"+d.String(), pkg.BlobPath(d)); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func writeTarBytes(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, name, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open staged blob %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat staged blob %s: %w", path, err)
	}

	hdr := &tar.Header{
		Name: name,
		Mode: 0o644,
		Size: info.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

// ExtractArchive unpacks the archive under destDir (creating
// destDir/.ddiff-image) and loads the package metadata from it.
func ExtractArchive(archivePath, destDir string) (*Package, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}

		name := filepath.Clean(hdr.Name)
		if filepath.IsAbs(name) || strings.HasPrefix(name, "..") {
			return nil, fmt.Errorf("archive entry %q escapes the extraction directory", hdr.Name)
		}

		dest := filepath.Join(destDir, name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", dest, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
			}
			out, err := os.Create(dest)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", dest, err)
			}
			_, err = io.Copy(out, tr)
			if closeErr := out.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return nil, fmt.Errorf("failed to extract %s: %w", dest, err)
			}
		}
	}

	return readPackageDir(filepath.Join(destDir, StagingDirName))
}

// readPackageDir loads package metadata from an extracted staging dir.
func readPackageDir(dir string) (*Package, error) {
	manifestBytes, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}

	baseStr, err := readMetaFile(dir, baseFileName)
	if err != nil {
		return nil, err
	}
	targetStr, err := readMetaFile(dir, targetFileName)
	if err != nil {
		return nil, err
	}
	mountStr, err := readMetaFile(dir, mountFileName)
	if err != nil {
		return nil, err
	}
	uploadStr, err := readMetaFile(dir, uploadFileName)
	if err != nil {
		return nil, err
	}

	mountable, err := parseDigests(mountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid mount blob list: %w", err)
	}
	exclusive, err := parseDigests(uploadStr)
	if err != nil {
		return nil, fmt.Errorf("invalid upload blob list: %w", err)
	}

	// Older packages may omit the media type file; default to Docker v2.
	mediaType := oci.MediaTypeDockerManifest
	if mt, err := readMetaFile(dir, mediaTypeFileName); err == nil && mt != "" {
		mediaType = oci.MediaType(mt)
	}

	return &Package{
		ManifestBytes: manifestBytes,
		MediaType:     mediaType,
		Base:          oci.ParseReference(baseStr),
		Target:        oci.ParseReference(targetStr),
		Mountable:     mountable,
		Exclusive:     exclusive,
		BlobDir:       filepath.Join(dir, blobDirName),
	}, nil
}

func readMetaFile(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to read package metadata %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func joinDigests(digests []oci.DigestInfo) string {
	parts := make([]string, 0, len(digests))
	for _, d := range digests {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, digestListSeparator)
}

func parseDigests(s string) ([]oci.DigestInfo, error) {
	if s == "" {
		return nil, nil
	}
	var digests []oci.DigestInfo
	for _, part := range strings.Split(s, digestListSeparator) {
		d, err := oci.ParseDigest(part)
		if err != nil {
			return nil, err
		}
		digests = append(digests, d)
	}
	return digests, nil
}
