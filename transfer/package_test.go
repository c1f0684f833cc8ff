package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ddiff-io/ddiff/oci"
)

func TestArchiveName(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"myapp:latest", "myapp-latest.tar.gz"},
		{"team/app:v1", "team--app-v1.tar.gz"},
		{"a/b/c:2.0", "a--b--c-2.0.tar.gz"},
	}
	for _, tt := range tests {
		got := ArchiveName(oci.ParseReference(tt.ref))
		if got != tt.want {
			t.Errorf("ArchiveName(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	blobA := []byte("layer a content")
	blobB := []byte("layer b content")
	digestA := oci.SHA256(blobA)
	digestB := oci.SHA256(blobB)
	mountable := oci.SHA256([]byte("shared layer"))

	blobDir := filepath.Join(dir, "stage", "blobs")
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(blobDir, digestA.String()), blobA, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(blobDir, digestB.String()), blobB, 0o644); err != nil {
		t.Fatal(err)
	}

	manifestBytes := []byte(`{"schemaVersion":2}`)
	pkg := &Package{
		ManifestBytes: manifestBytes,
		MediaType:     oci.MediaTypeOCIManifest,
		Base:          oci.ParseReference("app:v1"),
		Target:        oci.ParseReference("app:v2"),
		Mountable:     []oci.DigestInfo{mountable},
		Exclusive:     []oci.DigestInfo{digestA, digestB},
		BlobDir:       blobDir,
	}

	archivePath := filepath.Join(dir, ArchiveName(pkg.Target))
	if err := WriteArchive(pkg, archivePath); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	extractDir := filepath.Join(dir, "extract")
	got, err := ExtractArchive(archivePath, extractDir)
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}

	if string(got.ManifestBytes) != string(manifestBytes) {
		t.Errorf("manifest = %q, want %q", got.ManifestBytes, manifestBytes)
	}
	if got.MediaType != oci.MediaTypeOCIManifest {
		t.Errorf("media type = %q, want %q", got.MediaType, oci.MediaTypeOCIManifest)
	}
	if got.Base.String() != "app:v1" || got.Target.String() != "app:v2" {
		t.Errorf("refs = %s / %s, want app:v1 / app:v2", got.Base.String(), got.Target.String())
	}
	assertDigests(t, "mountable", got.Mountable, mountable)
	assertDigests(t, "exclusive", got.Exclusive, digestA, digestB)

	for _, d := range got.Exclusive {
		data, err := os.ReadFile(got.BlobPath(d))
		if err != nil {
			t.Fatalf("missing extracted blob %s: %v", d.String(), err)
		}
		if !oci.SHA256(data).Equal(d) {
			t.Errorf("extracted blob %s does not match its digest", d.String())
		}
	}
}

func TestArchiveRoundTrip_EmptyLists(t *testing.T) {
	dir := t.TempDir()

	pkg := &Package{
		ManifestBytes: []byte(`{"schemaVersion":2}`),
		MediaType:     oci.MediaTypeDockerManifest,
		Base:          oci.ParseReference("app:v1"),
		Target:        oci.ParseReference("app:v1"),
		BlobDir:       dir,
	}

	archivePath := filepath.Join(dir, "empty.tar.gz")
	if err := WriteArchive(pkg, archivePath); err != nil {
		t.Fatalf("WriteArchive: %v", err)
	}

	got, err := ExtractArchive(archivePath, filepath.Join(dir, "extract"))
	if err != nil {
		t.Fatalf("ExtractArchive: %v", err)
	}
	if len(got.Mountable) != 0 || len(got.Exclusive) != 0 {
		t.Errorf("lists = %v / %v, want both empty", got.Mountable, got.Exclusive)
	}
}

func TestExtractArchive_DefaultMediaType(t *testing.T) {
	// Packages written before the media type file existed default to the
	// Docker v2 manifest type on read.
	dir := t.TempDir()
	stagingDir := filepath.Join(dir, StagingDirName)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		manifestFileName: `{"schemaVersion":2}`,
		baseFileName:     "app:v1",
		targetFileName:   "app:v2",
		mountFileName:    "",
		uploadFileName:   "",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(stagingDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := readPackageDir(stagingDir)
	if err != nil {
		t.Fatalf("readPackageDir: %v", err)
	}
	if got.MediaType != oci.MediaTypeDockerManifest {
		t.Errorf("media type = %q, want %q", got.MediaType, oci.MediaTypeDockerManifest)
	}
}
