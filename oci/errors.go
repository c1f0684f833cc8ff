package oci

import "errors"

var (
	// ErrInvalidDigest is returned when a digest string is malformed.
	ErrInvalidDigest = errors.New("invalid digest")

	// ErrDigestMismatch is returned when computed digest doesn't match expected.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrUnsupportedManifest is returned for manifest media types outside the
	// single-image allow-list, including manifest lists and indexes.
	ErrUnsupportedManifest = errors.New("unsupported manifest media type")

	// ErrPlatformNotFound is returned when an index has no entry for the
	// requested platform.
	ErrPlatformNotFound = errors.New("platform not found in index")

	// ErrBlobNotFound is returned when a requested blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrManifestNotFound is returned when a requested manifest does not exist.
	ErrManifestNotFound = errors.New("manifest not found")
)
