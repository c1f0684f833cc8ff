// Package registrytest provides an in-memory registry V2 server for tests:
// manifest get/put, blob get, monolithic uploads and cross-repository
// mounts, with enough fault injection to exercise retry paths.
package registrytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/ddiff-io/ddiff/oci"
)

type manifestEntry struct {
	data      []byte
	mediaType oci.MediaType
}

// Registry is an in-memory registry test double.
type Registry struct {
	mu        sync.Mutex
	blobs     map[string]map[string][]byte      // repo -> digest -> bytes
	manifests map[string]map[string]manifestEntry // repo -> tag or digest -> entry
	blobGets  map[string]int                    // digest -> GET count across repos
	sessions  *sessionManager

	// Intercept, when set, runs before every request. A non-zero return
	// status short-circuits the request with that status.
	Intercept func(r *http.Request) int
}

// New creates an empty registry double.
func New() *Registry {
	return &Registry{
		blobs:     map[string]map[string][]byte{},
		manifests: map[string]map[string]manifestEntry{},
		blobGets:  map[string]int{},
		sessions:  newSessionManager(),
	}
}

// Handler returns the HTTP handler serving the registry V2 routes.
func (reg *Registry) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		setOCIHeaders(w)
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	// Upload routes before blob routes: they have longer paths.
	router.HandleFunc("/v2/{name:.+}/blobs/uploads/", reg.initiateUpload).Methods("POST")
	router.HandleFunc("/v2/{name:.+}/blobs/uploads/{uuid}", reg.completeUpload).Methods("PUT")
	router.HandleFunc("/v2/{name:.+}/blobs/{digest}", reg.getBlob).Methods("GET")
	router.HandleFunc("/v2/{name:.+}/manifests/{reference}", reg.getManifest).Methods("GET")
	router.HandleFunc("/v2/{name:.+}/manifests/{reference}", reg.putManifest).Methods("PUT")

	return reg.intercepted(router)
}

func (reg *Registry) intercepted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reg.Intercept != nil {
			if status := reg.Intercept(r); status != 0 {
				w.WriteHeader(status)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (reg *Registry) getManifest(w http.ResponseWriter, r *http.Request) {
	setOCIHeaders(w)
	vars := mux.Vars(r)

	reg.mu.Lock()
	entry, ok := reg.manifests[vars["name"]][vars["reference"]]
	reg.mu.Unlock()

	if !ok {
		respondOCIError(w, http.StatusNotFound, "MANIFEST_UNKNOWN", "manifest not found")
		return
	}

	w.Header().Set("Content-Type", string(entry.mediaType))
	w.Header().Set("Docker-Content-Digest", oci.SHA256(entry.data).String())
	w.WriteHeader(http.StatusOK)
	w.Write(entry.data)
}

func (reg *Registry) putManifest(w http.ResponseWriter, r *http.Request) {
	setOCIHeaders(w)
	vars := mux.Vars(r)

	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondOCIError(w, http.StatusBadRequest, "MANIFEST_INVALID", "failed to read manifest")
		return
	}
	mediaType := oci.MediaType(r.Header.Get("Content-Type"))
	digest := oci.SHA256(data)

	reg.mu.Lock()
	reg.storeManifestLocked(vars["name"], vars["reference"], mediaType, data)
	reg.mu.Unlock()

	w.Header().Set("Docker-Content-Digest", digest.String())
	w.WriteHeader(http.StatusCreated)
}

// storeManifestLocked stores a manifest under both the given reference and
// its own digest, as a real registry does.
func (reg *Registry) storeManifestLocked(repo, reference string, mediaType oci.MediaType, data []byte) {
	if reg.manifests[repo] == nil {
		reg.manifests[repo] = map[string]manifestEntry{}
	}
	entry := manifestEntry{data: data, mediaType: mediaType}
	reg.manifests[repo][reference] = entry
	reg.manifests[repo][oci.SHA256(data).String()] = entry
}

func (reg *Registry) getBlob(w http.ResponseWriter, r *http.Request) {
	setOCIHeaders(w)
	vars := mux.Vars(r)
	digest := vars["digest"]

	reg.mu.Lock()
	data, ok := reg.blobs[vars["name"]][digest]
	if ok {
		reg.blobGets[digest]++
	}
	reg.mu.Unlock()

	if !ok {
		respondOCIError(w, http.StatusNotFound, "BLOB_UNKNOWN", "blob not found")
		return
	}

	w.Header().Set("Docker-Content-Digest", digest)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (reg *Registry) initiateUpload(w http.ResponseWriter, r *http.Request) {
	setOCIHeaders(w)
	vars := mux.Vars(r)
	name := vars["name"]

	// Cross-repository mount: copy the blob when the source repository has
	// it (201), otherwise fall back to opening a fresh session (202).
	mount := r.URL.Query().Get("mount")
	from := r.URL.Query().Get("from")
	if mount != "" && from != "" {
		reg.mu.Lock()
		data, ok := reg.blobs[from][mount]
		if ok {
			reg.putBlobLocked(name, mount, data)
		}
		reg.mu.Unlock()

		if ok {
			w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/%s", name, mount))
			w.Header().Set("Docker-Content-Digest", mount)
			w.WriteHeader(http.StatusCreated)
			return
		}
	}

	uuid, err := reg.sessions.Create(name)
	if err != nil {
		respondOCIError(w, http.StatusInternalServerError, "BLOB_UPLOAD_INVALID", "failed to create session")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/uploads/%s", name, uuid))
	w.Header().Set("Docker-Upload-UUID", uuid)
	w.WriteHeader(http.StatusAccepted)
}

func (reg *Registry) completeUpload(w http.ResponseWriter, r *http.Request) {
	setOCIHeaders(w)
	vars := mux.Vars(r)
	name := vars["name"]
	uuid := vars["uuid"]

	if _, ok := reg.sessions.Get(uuid); !ok {
		respondOCIError(w, http.StatusNotFound, "BLOB_UPLOAD_UNKNOWN", "upload not found")
		return
	}

	digestStr := r.URL.Query().Get("digest")
	expected, err := oci.ParseDigest(digestStr)
	if err != nil {
		respondOCIError(w, http.StatusBadRequest, "DIGEST_INVALID", "invalid digest format")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		respondOCIError(w, http.StatusBadRequest, "BLOB_UPLOAD_INVALID", "failed to read upload")
		return
	}
	if !oci.SHA256(data).Equal(expected) {
		respondOCIError(w, http.StatusBadRequest, "DIGEST_INVALID", "digest mismatch")
		return
	}

	reg.mu.Lock()
	reg.putBlobLocked(name, expected.String(), data)
	reg.mu.Unlock()
	reg.sessions.Delete(uuid)

	w.Header().Set("Location", fmt.Sprintf("/v2/%s/blobs/%s", name, expected.String()))
	w.Header().Set("Docker-Content-Digest", expected.String())
	w.WriteHeader(http.StatusCreated)
}

func (reg *Registry) putBlobLocked(repo, digest string, data []byte) {
	if reg.blobs[repo] == nil {
		reg.blobs[repo] = map[string][]byte{}
	}
	reg.blobs[repo][digest] = data
}

// SeedBlob stores blob bytes under their computed digest and returns it.
func (reg *Registry) SeedBlob(repo string, data []byte) oci.DigestInfo {
	digest := oci.SHA256(data)
	reg.mu.Lock()
	reg.putBlobLocked(repo, digest.String(), data)
	reg.mu.Unlock()
	return digest
}

// SeedBlobRaw stores blob bytes under an arbitrary digest string, for
// corruption scenarios where content and address disagree.
func (reg *Registry) SeedBlobRaw(repo, digest string, data []byte) {
	reg.mu.Lock()
	reg.putBlobLocked(repo, digest, data)
	reg.mu.Unlock()
}

// SeedManifest stores a manifest under the given reference (and its digest).
func (reg *Registry) SeedManifest(repo, reference string, mediaType oci.MediaType, data []byte) oci.DigestInfo {
	reg.mu.Lock()
	reg.storeManifestLocked(repo, reference, mediaType, data)
	reg.mu.Unlock()
	return oci.SHA256(data)
}

// HasBlob reports whether the repository holds the blob.
func (reg *Registry) HasBlob(repo string, digest oci.DigestInfo) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.blobs[repo][digest.String()]
	return ok
}

// Manifest returns the stored manifest for repo/reference.
func (reg *Registry) Manifest(repo, reference string) ([]byte, oci.MediaType, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	entry, ok := reg.manifests[repo][reference]
	return entry.data, entry.mediaType, ok
}

// BlobDownloads returns how many times the blob was fetched, across repos.
func (reg *Registry) BlobDownloads(digest oci.DigestInfo) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.blobGets[digest.String()]
}

// ociError mirrors the registry error envelope.
type ociError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ociErrorResponse struct {
	Errors []ociError `json:"errors"`
}

func respondOCIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ociErrorResponse{
		Errors: []ociError{{Code: code, Message: message}},
	})
}

func setOCIHeaders(w http.ResponseWriter) {
	w.Header().Set("Docker-Distribution-API-Version", "registry/2.0")
}
