package registrytest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddiff-io/ddiff/oci"
)

func TestV2Check(t *testing.T) {
	reg := New()
	req := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	rec := httptest.NewRecorder()

	reg.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "registry/2.0", rec.Header().Get("Docker-Distribution-API-Version"))
}

func TestBlobRoundTrip(t *testing.T) {
	reg := New()
	handler := reg.Handler()
	data := []byte("blob content")
	digest := oci.SHA256(data)

	// Initiate an upload session.
	req := httptest.NewRequest(http.MethodPost, "/v2/team/app/blobs/uploads/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	location := rec.Header().Get("Location")
	require.NotEmpty(t, location)

	// Complete it with a digest-addressed PUT.
	req = httptest.NewRequest(http.MethodPut, location+"?digest="+digest.String(), bytes.NewReader(data))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, digest.String(), rec.Header().Get("Docker-Content-Digest"))

	// Fetch it back.
	req = httptest.NewRequest(http.MethodGet, "/v2/team/app/blobs/"+digest.String(), nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, data, rec.Body.Bytes())
	assert.Equal(t, 1, reg.BlobDownloads(digest))
}

func TestUploadDigestMismatch(t *testing.T) {
	reg := New()
	handler := reg.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v2/team/app/blobs/uploads/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	location := rec.Header().Get("Location")

	wrong := oci.SHA256([]byte("something else"))
	req = httptest.NewRequest(http.MethodPut, location+"?digest="+wrong.String(), bytes.NewReader([]byte("blob content")))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, reg.HasBlob("team/app", wrong))

	var resp struct {
		Errors []struct {
			Code string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "DIGEST_INVALID", resp.Errors[0].Code)
}

func TestCrossMount(t *testing.T) {
	reg := New()
	handler := reg.Handler()
	digest := reg.SeedBlob("base/app", []byte("shared content"))

	// Mount from a repository that has the blob.
	req := httptest.NewRequest(http.MethodPost,
		"/v2/target/app/blobs/uploads/?mount="+digest.String()+"&from=base/app", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, reg.HasBlob("target/app", digest))

	// A missing source blob falls back to a fresh session.
	missing := oci.SHA256([]byte("never seeded"))
	req = httptest.NewRequest(http.MethodPost,
		"/v2/target/app/blobs/uploads/?mount="+missing.String()+"&from=base/app", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Docker-Upload-UUID"))
}

func TestManifestStoredUnderTagAndDigest(t *testing.T) {
	reg := New()
	handler := reg.Handler()
	manifest := []byte(`{"schemaVersion":2}`)

	req := httptest.NewRequest(http.MethodPut, "/v2/team/app/manifests/v1", bytes.NewReader(manifest))
	req.Header.Set("Content-Type", string(oci.MediaTypeDockerManifest))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	digest := oci.SHA256(manifest)
	for _, ref := range []string{"v1", digest.String()} {
		req = httptest.NewRequest(http.MethodGet, "/v2/team/app/manifests/"+ref, nil)
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "reference %s", ref)
		assert.Equal(t, manifest, rec.Body.Bytes())
		assert.Equal(t, string(oci.MediaTypeDockerManifest), rec.Header().Get("Content-Type"))
	}
}

func TestIntercept(t *testing.T) {
	reg := New()
	reg.Intercept = func(r *http.Request) int {
		return http.StatusServiceUnavailable
	}

	req := httptest.NewRequest(http.MethodGet, "/v2/", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
