package store

import (
	"testing"

	"github.com/ddiff-io/ddiff/oci"
)

var testDigest = oci.DigestInfo{
	Algorithm: "sha256",
	Hex:       "abcdef1234567890abcdef1234567890abcdef1234567890abcdef1234567890",
}

// The path scheme is a binary-compatibility contract with registry:2, so
// these assert exact strings.
func TestLayoutPaths(t *testing.T) {
	hex := testDigest.Hex

	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "blob data",
			got:  BlobDataPath(testDigest),
			want: "docker/registry/v2/blobs/sha256/ab/" + hex + "/data",
		},
		{
			name: "layer link",
			got:  LayerLinkPath("team/app", testDigest),
			want: "docker/registry/v2/repositories/team/app/_layers/sha256/" + hex + "/link",
		},
		{
			name: "manifest revision link",
			got:  ManifestRevisionLinkPath("team/app", testDigest),
			want: "docker/registry/v2/repositories/team/app/_manifests/revisions/sha256/" + hex + "/link",
		},
		{
			name: "tag index link",
			got:  TagIndexLinkPath("team/app", "v1", testDigest),
			want: "docker/registry/v2/repositories/team/app/_manifests/tags/v1/index/sha256/" + hex + "/link",
		},
		{
			name: "tag current link",
			got:  TagCurrentLinkPath("team/app", "v1"),
			want: "docker/registry/v2/repositories/team/app/_manifests/tags/v1/current/link",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("path = %q, want %q", tt.got, tt.want)
			}
		})
	}
}
