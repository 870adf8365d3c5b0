// Package httpapi provides a convert.Provider backed by the recommendation
// service's JSON API (POST /convert).
//
// The service has shipped three response shapes over time; all of them are
// accepted and normalised into an ordered candidate slice:
//
//   - {"candidates": [{...}, ...]}
//   - [{...}, ...]
//   - {...} (a single candidate)
//
// Typical usage:
//
//	p, err := httpapi.New("http://localhost:5001/api",
//	    httpapi.WithTimeout(5*time.Second),
//	    httpapi.WithUserID(deviceID),
//	)
//	cands, err := p.Convert(ctx, "Alice")
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/irum/pkg/provider/convert"
	"github.com/MrWong99/irum/pkg/provider/internal/httpx"
	"github.com/MrWong99/irum/pkg/types"
)

// Compile-time interface assertion.
var _ convert.Provider = (*Provider)(nil)

const convertEndpoint = "/convert"

// Option is a functional option for configuring a Provider.
type Option func(*options)

type options struct {
	timeout time.Duration
	userID  string
	client  *http.Client
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserID sets the installation id sent in the X-User-Id header.
func WithUserID(id string) Option {
	return func(o *options) { o.userID = id }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// Provider implements convert.Provider over HTTP.
type Provider struct {
	c *httpx.Client
}

// New creates a Provider for the service rooted at baseURL (for example
// "http://localhost:5001/api"). baseURL must be non-empty.
func New(baseURL string, opts ...Option) (*Provider, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c, err := httpx.New(baseURL, o.client)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	c.SetTimeout(o.timeout)
	c.SetUserID(o.userID)
	return &Provider{c: c}, nil
}

type convertRequest struct {
	Name string `json:"name"`
}

// Convert implements convert.Provider.
func (p *Provider) Convert(ctx context.Context, name string) ([]types.Candidate, error) {
	resp, err := p.c.Do(ctx, http.MethodPost, convertEndpoint, convertRequest{Name: strings.TrimSpace(name)})
	if err != nil {
		return nil, fmt.Errorf("%w: POST %s: %w", convert.ErrService, convertEndpoint, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: POST %s returned status %d", convert.ErrService, convertEndpoint, resp.StatusCode)
	}
	cands, err := normalize(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %w", convert.ErrService, convertEndpoint, err)
	}
	return cands, nil
}

// envelope is the {"candidates": [...]} response shape.
type envelope struct {
	Candidates json.RawMessage `json:"candidates"`
}

// normalize turns any of the accepted payload shapes into a candidate slice.
// Candidates without a localized name are dropped. The result is never nil.
func normalize(body []byte) ([]types.Candidate, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var list []types.Candidate
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, err
		}
		if raw := bytes.TrimSpace(env.Candidates); len(raw) > 0 && raw[0] == '[' {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, err
			}
			break
		}
		var single types.Candidate
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, err
		}
		list = []types.Candidate{single}
	case 'n':
		if string(body) != "null" {
			return nil, fmt.Errorf("unexpected payload")
		}
	default:
		return nil, fmt.Errorf("unexpected payload starting with %q", body[0])
	}

	out := make([]types.Candidate, 0, len(list))
	for _, c := range list {
		if c.LocalizedName == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
