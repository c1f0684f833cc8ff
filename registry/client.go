// Package registry implements a minimal client for the registry V2 HTTP
// API: manifest fetch with content negotiation, blob streaming, monolithic
// uploads, cross-repository mounts and manifest puts.
package registry

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ddiff-io/ddiff/logger"
	"github.com/ddiff-io/ddiff/oci"
)

// Client talks to a single registry. It holds no per-call state; every
// operation is independent and safe to retry.
type Client struct {
	baseURL string
	http    *http.Client
	policy  Policy
	tokens  TokenSource
	log     logger.Logger

	mu         sync.Mutex
	tokenCache map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPolicy replaces the retry policy.
func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithTokenSource attaches a bearer token source. Token fetch failures
// degrade to anonymous requests.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger attaches a logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the registry at baseURL, e.g.
// "http://localhost:5000" or "https://registry-1.docker.io".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: 10 * time.Minute},
		policy:     DefaultPolicy(),
		log:        logger.NewTestLogger(),
		tokenCache: map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured registry base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) v2URL(repo string, parts ...string) string {
	return c.baseURL + "/v2/" + repo + "/" + strings.Join(parts, "/")
}

// setAuth attaches a bearer token for the repository if a token source is
// configured. Failures are logged and the request proceeds anonymously.
func (c *Client) setAuth(ctx context.Context, req *http.Request, repo string) {
	if c.tokens == nil {
		return
	}

	c.mu.Lock()
	token, ok := c.tokenCache[repo]
	c.mu.Unlock()

	if !ok {
		var err error
		token, err = c.tokens.Token(ctx, repo)
		if err != nil {
			c.log.Warn(ctx, "token fetch failed, continuing anonymously", map[string]interface{}{
				"repository": repo,
				"error":      err.Error(),
			})
			return
		}
		c.mu.Lock()
		c.tokenCache[repo] = token
		c.mu.Unlock()
	}

	req.Header.Set("Authorization", "Bearer "+token)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	return &Error{
		Method:     resp.Request.Method,
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}
}

func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, body)
	body.Close()
}

// FetchManifest GETs the manifest for repo/ref. The Accept header lists
// every supported single-image media type plus both list/index types, so
// the registry replies with whichever it has. Returns the raw bytes and
// the resolved content type.
func (c *Client) FetchManifest(ctx context.Context, repo, ref string) ([]byte, oci.MediaType, error) {
	manifestURL := c.v2URL(repo, "manifests", ref)

	var data []byte
	var mediaType oci.MediaType

	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", oci.AcceptManifestTypes)
		c.setAuth(ctx, req, repo)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := checkStatus(resp); err != nil {
			if resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%w: %w", oci.ErrManifestNotFound, err)
			}
			return err
		}

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		mediaType = contentMediaType(resp.Header.Get("Content-Type"))
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch manifest %s:%s: %w", repo, ref, err)
	}
	return data, mediaType, nil
}

// contentMediaType strips parameters ("; charset=...") from a Content-Type.
func contentMediaType(contentType string) oci.MediaType {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return oci.MediaType(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return oci.MediaType(mt)
}

// DownloadBlob opens a stream for the blob. The digest must be fully
// formed; malformed digests are rejected locally before any request is
// issued. The caller owns closing the returned reader and verifying the
// content hash where required.
func (c *Client) DownloadBlob(ctx context.Context, repo string, digest oci.DigestInfo) (io.ReadCloser, error) {
	if digest.Algorithm == "" || digest.Hex == "" {
		return nil, fmt.Errorf("%w: %q", oci.ErrInvalidDigest, digest.String())
	}

	blobURL := c.v2URL(repo, "blobs", digest.String())

	var body io.ReadCloser
	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, blobURL, nil)
		if err != nil {
			return err
		}
		c.setAuth(ctx, req, repo)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			drainAndClose(resp.Body)
			if resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%w: %w", oci.ErrBlobNotFound, err)
			}
			return err
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s from %s: %w", digest.String(), repo, err)
	}
	return body, nil
}

// InitiateUpload POSTs to the blob upload endpoint and returns the session
// location assigned by the registry, resolved to an absolute URL.
func (c *Client) InitiateUpload(ctx context.Context, repo string) (string, error) {
	uploadURL := c.v2URL(repo, "blobs", "uploads", "")

	var location string
	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, nil)
		if err != nil {
			return err
		}
		c.setAuth(ctx, req, repo)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer drainAndClose(resp.Body)

		if err := checkStatus(resp); err != nil {
			return err
		}

		loc := resp.Header.Get("Location")
		if loc == "" {
			return fmt.Errorf("registry returned no upload location for %s", repo)
		}
		location, err = c.resolveLocation(loc)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to start upload for %s: %w", repo, err)
	}
	return location, nil
}

// resolveLocation makes a Location header absolute against the base URL.
func (c *Client) resolveLocation(location string) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(loc).String(), nil
}

// UploadBlob completes an upload session with a single digest-addressed
// PUT of the blob bytes. The reader must be seekable so retried attempts
// can replay it from the start.
func (c *Client) UploadBlob(ctx context.Context, sessionURL string, digest oci.DigestInfo, blob io.ReadSeeker) error {
	u, err := url.Parse(sessionURL)
	if err != nil {
		return fmt.Errorf("invalid upload session URL %q: %w", sessionURL, err)
	}
	q := u.Query()
	q.Set("digest", digest.String())
	u.RawQuery = q.Encode()
	putURL := u.String()

	err = c.policy.Do(ctx, func() error {
		if _, err := blob.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("failed to rewind blob: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, putURL, blob)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer drainAndClose(resp.Body)
		return checkStatus(resp)
	})
	if err != nil {
		return fmt.Errorf("upload failed for %s: %w", digest.String(), err)
	}
	return nil
}

// CrossMount asks the registry to mount a blob stored under baseRepo into
// targetRepo without re-uploading its bytes. A 201 means the mount
// succeeded. A 202 means the registry could not find the blob in baseRepo
// and opened a fresh upload session instead; this is surfaced as
// ErrMountUnavailable for the caller to handle explicitly.
func (c *Client) CrossMount(ctx context.Context, targetRepo, baseRepo string, digest oci.DigestInfo) error {
	mountURL := c.v2URL(targetRepo, "blobs", "uploads", "") +
		"?" + url.Values{"mount": {digest.String()}, "from": {baseRepo}}.Encode()

	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, mountURL, nil)
		if err != nil {
			return err
		}
		c.setAuth(ctx, req, targetRepo)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer drainAndClose(resp.Body)

		if resp.StatusCode == http.StatusAccepted {
			return fmt.Errorf("%w: %s not found in %s", ErrMountUnavailable, digest.String(), baseRepo)
		}
		return checkStatus(resp)
	})
	if err != nil {
		return fmt.Errorf("failed to mount %s from %s to %s: %w", digest.String(), baseRepo, targetRepo, err)
	}
	return nil
}

// PutManifest PUTs manifest bytes under repo:tag with the media type as
// Content-Type.
func (c *Client) PutManifest(ctx context.Context, repo, tag string, mediaType oci.MediaType, data []byte) error {
	manifestURL := c.v2URL(repo, "manifests", tag)

	err := c.policy.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, manifestURL, bytes.NewReader(data))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", string(mediaType))
		c.setAuth(ctx, req, repo)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer drainAndClose(resp.Body)
		return checkStatus(resp)
	})
	if err != nil {
		return fmt.Errorf("manifest upload failed for %s:%s: %w", repo, tag, err)
	}
	return nil
}
