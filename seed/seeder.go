// Package seed populates a registry store directly from an upstream
// registry: it pulls manifests and blobs for a set of images and writes
// them in the on-disk layout a registry server can serve as-is.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ddiff-io/ddiff/logger"
	"github.com/ddiff-io/ddiff/oci"
	"github.com/ddiff-io/ddiff/registry"
	"github.com/ddiff-io/ddiff/store"
)

// Multi-arch images resolve to this platform; there is no fallback.
const (
	platformOS   = "linux"
	platformArch = "amd64"
)

const indexPath = "meta/index.json"

// ClientFactory builds a registry client. The seeder calls it once per
// worker so each worker gets its own HTTP connection pool.
type ClientFactory func() *registry.Client

// Result describes one successfully seeded image.
type Result struct {
	Repository     string   `json:"repository"`
	Tag            string   `json:"tag"`
	ManifestDigest string   `json:"manifest_digest"`
	ConfigDigest   string   `json:"config_digest,omitempty"`
	LayerDigests   []string `json:"layer_digests"`
	MediaType      string   `json:"media_type"`
}

// ImageError records a per-image failure. One image failing never stops
// the others.
type ImageError struct {
	Repository string
	Tag        string
	Err        error
}

func (e ImageError) Error() string {
	return fmt.Sprintf("%s:%s: %v", e.Repository, e.Tag, e.Err)
}

// Seeder downloads images concurrently and persists them through a store
// driver.
type Seeder struct {
	NewClient ClientFactory
	Store     store.Driver
	Workers   int
	Log       logger.Logger
}

// Run seeds every reference, one worker per image, at most Workers images
// in flight. Blobs shared between images are downloaded once. After all
// images finish it writes an aggregate index under meta/. Returns the
// per-image results and failures; err is reserved for store-level faults
// outside any single image.
func (s *Seeder) Run(ctx context.Context, refs []oci.Reference) ([]Result, []ImageError, error) {
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu       sync.Mutex
		results  []Result
		failures []ImageError
	)
	inFlight := newDigestSet()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, ref := range refs {
		ref := ref
		g.Go(func() error {
			client := s.NewClient()
			res, err := s.processImage(gctx, client, inFlight, ref)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.Log.Error(gctx, "image seeding failed", map[string]interface{}{
					"repository": ref.Repository,
					"tag":        ref.Tag,
					"error":      err.Error(),
				})
				failures = append(failures, ImageError{Repository: ref.Repository, Tag: ref.Tag, Err: err})
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	g.Wait()

	if err := s.writeIndex(ctx, results); err != nil {
		return results, failures, err
	}
	return results, failures, nil
}

// processImage seeds a single image: resolve the tag to a single-platform
// manifest, store the manifest blob, store every referenced blob, then
// write the repository link files that make the image visible.
func (s *Seeder) processImage(ctx context.Context, client *registry.Client, inFlight *digestSet, ref oci.Reference) (Result, error) {
	data, mediaType, err := s.resolveManifest(ctx, client, ref)
	if err != nil {
		return Result{}, err
	}

	manifest, err := oci.ParseManifest(data)
	if err != nil {
		return Result{}, err
	}
	manifestDigest := oci.SHA256(data)

	s.Log.Info(ctx, "seeding image", map[string]interface{}{
		"repository": ref.Repository,
		"tag":        ref.Tag,
		"manifest":   manifestDigest.String(),
		"layers":     len(manifest.Layers),
	})

	exists, err := s.Store.BlobExists(ctx, manifestDigest)
	if err != nil {
		return Result{}, err
	}
	if !exists {
		if err := s.Store.WriteBlob(ctx, manifestDigest, bytes.NewReader(data)); err != nil {
			return Result{}, err
		}
	}

	blobs, err := manifest.BlobList()
	if err != nil {
		return Result{}, err
	}
	for _, d := range blobs {
		if err := s.seedBlob(ctx, client, inFlight, ref.Repository, d); err != nil {
			return Result{}, err
		}
		if err := store.WriteLink(ctx, s.Store, store.LayerLinkPath(ref.Repository, d), d); err != nil {
			return Result{}, err
		}
	}

	links := []string{
		store.ManifestRevisionLinkPath(ref.Repository, manifestDigest),
		store.TagIndexLinkPath(ref.Repository, ref.Tag, manifestDigest),
		store.TagCurrentLinkPath(ref.Repository, ref.Tag),
	}
	for _, path := range links {
		if err := store.WriteLink(ctx, s.Store, path, manifestDigest); err != nil {
			return Result{}, err
		}
	}

	res := Result{
		Repository:     ref.Repository,
		Tag:            ref.Tag,
		ManifestDigest: manifestDigest.String(),
		MediaType:      string(mediaType),
	}
	if manifest.Config.Digest != "" {
		res.ConfigDigest = manifest.Config.Digest
	}
	for _, layer := range manifest.Layers {
		res.LayerDigests = append(res.LayerDigests, layer.Digest)
	}
	return res, nil
}

// resolveManifest fetches the manifest for the tag, following a manifest
// list/index to its entry for the target platform.
func (s *Seeder) resolveManifest(ctx context.Context, client *registry.Client, ref oci.Reference) ([]byte, oci.MediaType, error) {
	data, mediaType, err := client.FetchManifest(ctx, ref.Repository, ref.Tag)
	if err != nil {
		return nil, "", err
	}
	if !mediaType.IsIndex() {
		return data, mediaType, nil
	}

	index, err := oci.ParseIndex(data)
	if err != nil {
		return nil, "", err
	}
	platformDigest, err := index.SelectPlatform(platformOS, platformArch)
	if err != nil {
		return nil, "", err
	}

	s.Log.Debug(ctx, "resolved manifest list to platform entry", map[string]interface{}{
		"repository": ref.Repository,
		"tag":        ref.Tag,
		"digest":     platformDigest.String(),
	})
	return client.FetchManifest(ctx, ref.Repository, platformDigest.String())
}

// seedBlob downloads one blob into the store unless it is already there
// or another worker is fetching it right now.
func (s *Seeder) seedBlob(ctx context.Context, client *registry.Client, inFlight *digestSet, repo string, digest oci.DigestInfo) error {
	exists, err := s.Store.BlobExists(ctx, digest)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if !inFlight.Claim(digest) {
		return nil
	}

	s.Log.Debug(ctx, "downloading blob", map[string]interface{}{
		"repository": repo,
		"digest":     digest.String(),
	})

	body, err := client.DownloadBlob(ctx, repo, digest)
	if err != nil {
		inFlight.Remove(digest)
		return err
	}
	defer body.Close()

	if err := s.Store.WriteBlob(ctx, digest, body); err != nil {
		inFlight.Remove(digest)
		return err
	}
	return nil
}

// indexDocument is the aggregate written to meta/index.json.
type indexDocument struct {
	GeneratedAt time.Time `json:"generated_at"`
	Images      []Result  `json:"images"`
}

func (s *Seeder) writeIndex(ctx context.Context, results []Result) error {
	doc := indexDocument{
		GeneratedAt: time.Now().UTC(),
		Images:      results,
	}
	if doc.Images == nil {
		doc.Images = []Result{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := s.Store.WriteFile(ctx, indexPath, data); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}
