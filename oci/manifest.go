package oci

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MediaType identifies a manifest document format.
type MediaType string

// Manifest media types understood by this tool. The two single-image types
// are fully supported; the list/index types are recognized so that index
// responses can be detected and either rejected (diff pipeline) or
// platform-resolved (seeder).
const (
	MediaTypeDockerManifest     MediaType = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeDockerManifestList MediaType = "application/vnd.docker.distribution.manifest.list.v2+json"
	MediaTypeOCIManifest        MediaType = "application/vnd.oci.image.manifest.v1+json"
	MediaTypeOCIIndex           MediaType = "application/vnd.oci.image.index.v1+json"
)

// AcceptManifestTypes is the Accept header value for manifest requests. It
// lists the supported single-image types plus both list/index types so the
// registry can reply with whichever it has.
var AcceptManifestTypes = strings.Join([]string{
	string(MediaTypeDockerManifest),
	string(MediaTypeOCIManifest),
	string(MediaTypeDockerManifestList),
	string(MediaTypeOCIIndex),
}, ", ")

// Supported reports whether the media type is a single-image manifest this
// tool can process.
func (m MediaType) Supported() bool {
	return m == MediaTypeDockerManifest || m == MediaTypeOCIManifest
}

// IsIndex reports whether the media type denotes a manifest list or index.
func (m MediaType) IsIndex() bool {
	return m == MediaTypeDockerManifestList || m == MediaTypeOCIIndex
}

// Platform identifies the OS/architecture of an index entry.
type Platform struct {
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
}

// Descriptor references a blob or manifest by digest.
type Descriptor struct {
	MediaType MediaType `json:"mediaType"`
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	Platform  *Platform `json:"platform,omitempty"`
}

// Manifest is a single-image manifest: one config blob plus ordered layers.
type Manifest struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     MediaType    `json:"mediaType"`
	Config        Descriptor   `json:"config"`
	Layers        []Descriptor `json:"layers"`
}

// Index is a manifest list referencing per-platform manifests.
type Index struct {
	SchemaVersion int          `json:"schemaVersion"`
	MediaType     MediaType    `json:"mediaType"`
	Manifests     []Descriptor `json:"manifests"`
}

// ValidateMediaType rejects list/index media types and anything outside the
// single-image allow-list. An empty media type is tolerated: older Docker
// manifests omit the field.
func ValidateMediaType(m MediaType) error {
	if m.IsIndex() {
		return fmt.Errorf("%w: manifest list/index not supported, provide a single image manifest tag", ErrUnsupportedManifest)
	}
	if m != "" && !m.Supported() {
		return fmt.Errorf("%w: %q", ErrUnsupportedManifest, string(m))
	}
	return nil
}

// ParseManifest decodes and validates a single-image manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := ValidateMediaType(m.MediaType); err != nil {
		return nil, err
	}
	return &m, nil
}

// BlobList returns the ordered digests the manifest references: the config
// digest followed by every layer digest, in manifest order. A manifest with
// no config descriptor contributes layers only.
func (m *Manifest) BlobList() ([]DigestInfo, error) {
	var digests []DigestInfo
	if m.Config.Digest != "" {
		d, err := ParseDigest(m.Config.Digest)
		if err != nil {
			return nil, fmt.Errorf("config digest: %w", err)
		}
		digests = append(digests, d)
	}
	for i, layer := range m.Layers {
		if layer.Digest == "" {
			continue
		}
		d, err := ParseDigest(layer.Digest)
		if err != nil {
			return nil, fmt.Errorf("layer %d digest: %w", i, err)
		}
		digests = append(digests, d)
	}
	return digests, nil
}

// ParseIndex decodes a manifest list/index document.
func ParseIndex(data []byte) (*Index, error) {
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}
	return &ix, nil
}

// SelectPlatform returns the digest of the index entry matching the given
// platform exactly. There is no fallback platform.
func (ix *Index) SelectPlatform(os, arch string) (DigestInfo, error) {
	for _, m := range ix.Manifests {
		if m.Platform != nil && m.Platform.OS == os && m.Platform.Architecture == arch {
			return ParseDigest(m.Digest)
		}
	}
	return DigestInfo{}, fmt.Errorf("%w: %s/%s", ErrPlatformNotFound, os, arch)
}
