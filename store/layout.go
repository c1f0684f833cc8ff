// Package store writes the on-disk layout a standard registry server
// expects: content-addressed blob data files plus per-repository link
// files. The path scheme is a binary-compatibility contract with
// registry:2 and must not be reinterpreted.
package store

import (
	"path"

	"github.com/ddiff-io/ddiff/oci"
)

const rootPrefix = "docker/registry/v2"

// BlobDataPath returns the path for a blob's data file.
// Layout: docker/registry/v2/blobs/<algorithm>/<first-2-hex>/<full-hex>/data
func BlobDataPath(d oci.DigestInfo) string {
	return path.Join(rootPrefix, "blobs", d.Algorithm, d.ShortHex(), d.Hex, "data")
}

// LayerLinkPath returns the path for a repository's layer link.
// Layout: docker/registry/v2/repositories/<repo>/_layers/<algorithm>/<hex>/link
func LayerLinkPath(repo string, d oci.DigestInfo) string {
	return path.Join(rootPrefix, "repositories", repo, "_layers", d.Algorithm, d.Hex, "link")
}

// ManifestRevisionLinkPath returns the path for a manifest revision link.
// Layout: docker/registry/v2/repositories/<repo>/_manifests/revisions/<algorithm>/<hex>/link
func ManifestRevisionLinkPath(repo string, d oci.DigestInfo) string {
	return path.Join(rootPrefix, "repositories", repo, "_manifests/revisions", d.Algorithm, d.Hex, "link")
}

// TagIndexLinkPath returns the path for a tag's index link.
// Layout: docker/registry/v2/repositories/<repo>/_manifests/tags/<tag>/index/<algorithm>/<hex>/link
func TagIndexLinkPath(repo, tag string, d oci.DigestInfo) string {
	return path.Join(rootPrefix, "repositories", repo, "_manifests/tags", tag, "index", d.Algorithm, d.Hex, "link")
}

// TagCurrentLinkPath returns the path for a tag's current link.
// Layout: docker/registry/v2/repositories/<repo>/_manifests/tags/<tag>/current/link
func TagCurrentLinkPath(repo, tag string) string {
	return path.Join(rootPrefix, "repositories", repo, "_manifests/tags", tag, "current/link")
}
