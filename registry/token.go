package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// TokenSource provides a bearer token scoped to pulls from one repository.
type TokenSource interface {
	Token(ctx context.Context, repository string) (string, error)
}

// HubTokenSource fetches anonymous pull tokens from a Docker Hub style
// token endpoint, e.g. https://auth.docker.io/token with service
// registry.docker.io.
type HubTokenSource struct {
	AuthURL string
	Service string
	Client  *http.Client
}

// NewHubTokenSource creates a token source against the given auth endpoint.
func NewHubTokenSource(authURL, service string) *HubTokenSource {
	return &HubTokenSource{
		AuthURL: authURL,
		Service: service,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Token requests a pull-scoped token for the repository.
func (ts *HubTokenSource) Token(ctx context.Context, repository string) (string, error) {
	q := url.Values{}
	q.Set("service", ts.Service)
	q.Set("scope", fmt.Sprintf("repository:%s:pull", repository))
	tokenURL := ts.AuthURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}

	resp, err := ts.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Method: http.MethodGet, URL: tokenURL, StatusCode: resp.StatusCode}
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	return body.Token, nil
}
