// Package gh provides a GraphQL client for the parts of the GitHub API prwatch needs:
// pull request search and per-PR activity timelines.
// It implements a deep module interface - simple methods hiding complex GraphQL queries.
package gh

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/h0rv/prwatch/internal/domain"
	"github.com/machinebox/graphql"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// ErrNoToken is returned by New when the token is empty.
var ErrNoToken = errors.New("github token is empty")

// Client is a GitHub GraphQL API client.
type Client struct {
	gql   *graphql.Client
	token string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	endpoint   string
	httpClient *http.Client
}

// WithEndpoint overrides the GraphQL endpoint (GitHub Enterprise, tests).
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		if endpoint != "" {
			o.endpoint = endpoint
		}
	}
}

// WithHTTPClient sets the underlying HTTP client. Its transport is wrapped so
// that non-2xx responses surface as *domain.RemoteQueryError.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// New creates a new GitHub GraphQL client authenticated with token.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	o := options{
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	// Copy so the caller's client is left untouched
	hc := *o.httpClient
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = &statusTransport{base: base}

	return &Client{
		gql:   graphql.NewClient(o.endpoint, graphql.WithHTTPClient(&hc)),
		token: token,
	}, nil
}

// makeRequest executes a GraphQL request with authentication.
// This is a helper method to avoid repeating the authorization header setup.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.gql.Run(ctx, req, resp)
}

// statusTransport turns non-success HTTP statuses into typed errors.
// graphql.Client happily decodes a 401 JSON body as an empty result, so the
// status has to be checked before the body reaches it.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return nil, &domain.RemoteQueryError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}
