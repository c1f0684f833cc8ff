package oci

import (
	"errors"
	"strings"
	"testing"
)

const (
	testConfigDigest = "sha256:1111111111111111111111111111111111111111111111111111111111111111"
	testLayerDigestA = "sha256:2222222222222222222222222222222222222222222222222222222222222222"
	testLayerDigestB = "sha256:3333333333333333333333333333333333333333333333333333333333333333"
)

func TestValidateMediaType(t *testing.T) {
	tests := []struct {
		name      string
		mediaType MediaType
		wantError error
	}{
		{name: "docker manifest v2", mediaType: MediaTypeDockerManifest},
		{name: "oci manifest v1", mediaType: MediaTypeOCIManifest},
		{name: "empty media type tolerated", mediaType: ""},
		{name: "docker manifest list", mediaType: MediaTypeDockerManifestList, wantError: ErrUnsupportedManifest},
		{name: "oci index", mediaType: MediaTypeOCIIndex, wantError: ErrUnsupportedManifest},
		{name: "unknown type", mediaType: "application/vnd.example.unknown+json", wantError: ErrUnsupportedManifest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMediaType(tt.mediaType)
			if tt.wantError == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantError) {
				t.Fatalf("error = %v, want %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateMediaType_ListMessage(t *testing.T) {
	err := ValidateMediaType(MediaTypeOCIIndex)
	if err == nil || !strings.Contains(err.Error(), "manifest list/index not supported") {
		t.Fatalf("error = %v, want manifest list/index diagnostic", err)
	}
}

func TestParseManifest(t *testing.T) {
	data := []byte(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.docker.distribution.manifest.v2+json",
		"config": {"mediaType": "application/vnd.docker.container.image.v1+json", "digest": "` + testConfigDigest + `", "size": 10},
		"layers": [
			{"digest": "` + testLayerDigestA + `", "size": 20},
			{"digest": "` + testLayerDigestB + `", "size": 30}
		]
	}`)

	m, err := ParseManifest(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Config.Digest != testConfigDigest {
		t.Errorf("config digest = %q, want %q", m.Config.Digest, testConfigDigest)
	}
	if len(m.Layers) != 2 {
		t.Fatalf("layers = %d, want 2", len(m.Layers))
	}
}

func TestParseManifest_RejectsIndex(t *testing.T) {
	data := []byte(`{"schemaVersion": 2, "mediaType": "application/vnd.oci.image.index.v1+json", "manifests": []}`)
	_, err := ParseManifest(data)
	if !errors.Is(err, ErrUnsupportedManifest) {
		t.Fatalf("error = %v, want ErrUnsupportedManifest", err)
	}
}

func TestManifest_BlobList(t *testing.T) {
	m := &Manifest{
		MediaType: MediaTypeDockerManifest,
		Config:    Descriptor{Digest: testConfigDigest},
		Layers: []Descriptor{
			{Digest: testLayerDigestA},
			{Digest: testLayerDigestB},
		},
	}

	blobs, err := m.BlobList()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// config first, then layers in manifest order
	want := []string{testConfigDigest, testLayerDigestA, testLayerDigestB}
	if len(blobs) != len(want) {
		t.Fatalf("blob list length = %d, want %d", len(blobs), len(want))
	}
	for i, w := range want {
		if blobs[i].String() != w {
			t.Errorf("blobs[%d] = %q, want %q", i, blobs[i].String(), w)
		}
	}
}

func TestManifest_BlobList_NoConfig(t *testing.T) {
	m := &Manifest{Layers: []Descriptor{{Digest: testLayerDigestA}}}
	blobs, err := m.BlobList()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(blobs) != 1 || blobs[0].String() != testLayerDigestA {
		t.Errorf("blob list = %v, want just %s", blobs, testLayerDigestA)
	}
}

func TestManifest_BlobList_MalformedDigest(t *testing.T) {
	m := &Manifest{Config: Descriptor{Digest: "not-a-digest"}}
	_, err := m.BlobList()
	if !errors.Is(err, ErrInvalidDigest) {
		t.Fatalf("error = %v, want ErrInvalidDigest", err)
	}
}

func TestIndex_SelectPlatform(t *testing.T) {
	ix := &Index{
		MediaType: MediaTypeOCIIndex,
		Manifests: []Descriptor{
			{Digest: testLayerDigestA, Platform: &Platform{OS: "linux", Architecture: "arm64"}},
			{Digest: testLayerDigestB, Platform: &Platform{OS: "linux", Architecture: "amd64"}},
		},
	}

	t.Run("exact match", func(t *testing.T) {
		d, err := ix.SelectPlatform("linux", "amd64")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.String() != testLayerDigestB {
			t.Errorf("digest = %q, want %q", d.String(), testLayerDigestB)
		}
	})

	t.Run("no match", func(t *testing.T) {
		ixArm := &Index{Manifests: []Descriptor{
			{Digest: testLayerDigestA, Platform: &Platform{OS: "linux", Architecture: "arm64"}},
		}}
		_, err := ixArm.SelectPlatform("linux", "amd64")
		if !errors.Is(err, ErrPlatformNotFound) {
			t.Fatalf("error = %v, want ErrPlatformNotFound", err)
		}
	})

	t.Run("missing platform field skipped", func(t *testing.T) {
		ixNone := &Index{Manifests: []Descriptor{{Digest: testLayerDigestA}}}
		_, err := ixNone.SelectPlatform("linux", "amd64")
		if !errors.Is(err, ErrPlatformNotFound) {
			t.Fatalf("error = %v, want ErrPlatformNotFound", err)
		}
	})
}
