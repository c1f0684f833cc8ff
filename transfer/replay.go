package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ddiff-io/ddiff/engine"
	"github.com/ddiff-io/ddiff/logger"
	"github.com/ddiff-io/ddiff/oci"
	"github.com/ddiff-io/ddiff/registry"
)

// Replayer reconstructs a target image on the destination registry from a
// transfer archive plus the base image in the local engine store.
type Replayer struct {
	Client  *registry.Client
	Engine  engine.Engine
	Host    string
	Flatten bool
	WorkDir string
	Log     logger.Logger
}

// Load replays archivePath against the destination registry. When
// baseOverride is non-empty it names the local base image to push instead
// of the one recorded in the archive; the recorded base repository is still
// what shared blobs are mounted from, so the override must resolve to the
// same repository after normalization.
func (r *Replayer) Load(ctx context.Context, archivePath, baseOverride string) error {
	stagingDir := filepath.Join(r.WorkDir, StagingDirName)
	if err := os.RemoveAll(stagingDir); err != nil {
		return fmt.Errorf("failed to reset staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	pkg, err := ExtractArchive(archivePath, r.WorkDir)
	if err != nil {
		return err
	}

	baseRef := pkg.Base.String()
	if baseOverride != "" {
		baseRef = baseOverride
	}
	base := engine.PrepareReference(baseRef, r.Flatten)

	r.Log.Info(ctx, "replaying transfer archive", map[string]interface{}{
		"archive":   archivePath,
		"base":      base.String(),
		"target":    pkg.Target.String(),
		"mountable": len(pkg.Mountable),
		"exclusive": len(pkg.Exclusive),
	})

	if err := engine.PushImages(ctx, r.Engine, r.Host, r.Flatten, baseRef); err != nil {
		return err
	}

	for _, d := range pkg.Mountable {
		if err := r.Client.CrossMount(ctx, pkg.Target.Repository, base.Repository, d); err != nil {
			return err
		}
	}

	for _, d := range pkg.Exclusive {
		if err := r.uploadBlob(ctx, pkg, d); err != nil {
			return err
		}
	}

	if err := r.Client.PutManifest(ctx, pkg.Target.Repository, pkg.Target.Tag, pkg.MediaType, pkg.ManifestBytes); err != nil {
		return err
	}

	// A loopback registry means the caller wants the image in the local
	// engine store, not just on the registry.
	if isLoopback(r.Client.BaseURL()) {
		if err := engine.PullImages(ctx, r.Engine, r.Host, r.Flatten, pkg.Target.String()); err != nil {
			return err
		}
	}

	r.Log.Info(ctx, "replay complete", map[string]interface{}{
		"target": pkg.Target.String(),
	})
	return nil
}

func (r *Replayer) uploadBlob(ctx context.Context, pkg *Package, digest oci.DigestInfo) error {
	r.Log.Debug(ctx, "uploading blob", map[string]interface{}{
		"digest": digest.String(),
	})

	f, err := os.Open(pkg.BlobPath(digest))
	if err != nil {
		return fmt.Errorf("archive is missing blob %s: %w", digest.String(), err)
	}
	defer f.Close()

	sessionURL, err := r.Client.InitiateUpload(ctx, pkg.Target.Repository)
	if err != nil {
		return err
	}
	return r.Client.UploadBlob(ctx, sessionURL, digest, f)
}

func isLoopback(baseURL string) bool {
	return strings.Contains(baseURL, "localhost") || strings.Contains(baseURL, "127.0.0.1")
}
