package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ddiff-io/ddiff/engine"
	"github.com/ddiff-io/ddiff/logger"
	"github.com/ddiff-io/ddiff/oci"
	"github.com/ddiff-io/ddiff/registry"
)

// Packer builds a transfer archive for a target image relative to a base
// image. Both images are pushed from the local engine to the working
// registry first, so the manifests the diff is computed from are exactly
// what the registry would serve.
type Packer struct {
	Client  *registry.Client
	Engine  engine.Engine
	Host    string
	Flatten bool

	// WorkDir hosts the transient staging directory; OutputDir receives
	// the finished archive.
	WorkDir   string
	OutputDir string

	Log logger.Logger
}

// Pack diffs targetRef against baseRef and writes the archive. Returns the
// archive path.
func (p *Packer) Pack(ctx context.Context, baseRef, targetRef string) (string, error) {
	base := engine.PrepareReference(baseRef, p.Flatten)
	target := engine.PrepareReference(targetRef, p.Flatten)

	p.Log.Info(ctx, "pushing images to working registry", map[string]interface{}{
		"base":   base.String(),
		"target": target.String(),
	})
	if err := engine.PushImages(ctx, p.Engine, p.Host, p.Flatten, baseRef, targetRef); err != nil {
		return "", err
	}

	baseManifest, _, err := p.fetchManifest(ctx, base)
	if err != nil {
		return "", err
	}
	targetManifest, targetBytes, mediaType, err := p.fetchManifestRaw(ctx, target)
	if err != nil {
		return "", err
	}

	part, err := ComputeDiff(baseManifest, targetManifest)
	if err != nil {
		return "", err
	}
	p.Log.Info(ctx, "computed blob partition", map[string]interface{}{
		"mountable": len(part.Mountable),
		"exclusive": len(part.Exclusive),
	})

	stagingDir := filepath.Join(p.WorkDir, StagingDirName)
	if err := os.RemoveAll(stagingDir); err != nil {
		return "", fmt.Errorf("failed to reset staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	pkg := &Package{
		ManifestBytes: targetBytes,
		MediaType:     mediaType,
		Base:          base,
		Target:        target,
		Mountable:     part.Mountable,
		Exclusive:     part.Exclusive,
		BlobDir:       filepath.Join(stagingDir, blobDirName),
	}
	if err := os.MkdirAll(pkg.BlobDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	for _, d := range part.Exclusive {
		if err := p.stageBlob(ctx, target.Repository, d, pkg.BlobPath(d)); err != nil {
			return "", err
		}
	}

	archivePath := filepath.Join(p.OutputDir, ArchiveName(target))
	if err := WriteArchive(pkg, archivePath); err != nil {
		return "", err
	}
	p.Log.Info(ctx, "wrote transfer archive", map[string]interface{}{
		"path": archivePath,
	})
	return archivePath, nil
}

func (p *Packer) fetchManifest(ctx context.Context, ref oci.Reference) (*oci.Manifest, oci.MediaType, error) {
	m, _, mt, err := p.fetchManifestRaw(ctx, ref)
	return m, mt, err
}

// fetchManifestRaw fetches and parses a single-image manifest, keeping the
// raw bytes so the archived manifest is byte-identical to the registry's.
func (p *Packer) fetchManifestRaw(ctx context.Context, ref oci.Reference) (*oci.Manifest, []byte, oci.MediaType, error) {
	data, mediaType, err := p.Client.FetchManifest(ctx, ref.Repository, ref.Tag)
	if err != nil {
		return nil, nil, "", err
	}
	if err := oci.ValidateMediaType(mediaType); err != nil {
		return nil, nil, "", fmt.Errorf("manifest %s: %w", ref.String(), err)
	}
	m, err := oci.ParseManifest(data)
	if err != nil {
		return nil, nil, "", fmt.Errorf("manifest %s: %w", ref.String(), err)
	}
	return m, data, mediaType, nil
}

// stageBlob downloads one exclusive blob into the staging directory,
// verifying its content hash against the digest. A verification failure
// aborts the pack; a corrupt blob must never reach an archive.
func (p *Packer) stageBlob(ctx context.Context, repo string, digest oci.DigestInfo, dest string) error {
	p.Log.Debug(ctx, "staging blob", map[string]interface{}{
		"digest": digest.String(),
	})

	body, err := p.Client.DownloadBlob(ctx, repo, digest)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create staged blob file: %w", err)
	}

	vr := oci.NewVerifyingReader(body)
	_, err = io.Copy(f, vr)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = vr.Verify(digest)
	}
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to stage blob %s: %w", digest.String(), err)
	}
	return nil
}
