// Package httpapi provides a history.Provider backed by the service's JSON
// API:
//
//   - POST   /history/save  {englishName, localizedName} → optional {id, savedAt}
//   - DELETE /history/{id}
//   - GET    /history
//
// The save response is consumed only for its id. Any other shape (no body,
// non-JSON, no id field) yields an empty remote id rather than an error.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MrWong99/irum/pkg/provider/history"
	"github.com/MrWong99/irum/pkg/provider/internal/httpx"
)

// Compile-time interface assertion.
var _ history.Provider = (*Provider)(nil)

const (
	saveEndpoint    = "/history/save"
	historyEndpoint = "/history"

	defaultTimeout = 5 * time.Second
)

// Option is a functional option for configuring a Provider.
type Option func(*options)

type options struct {
	timeout time.Duration
	userID  string
	client  *http.Client
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 5 s.
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

// Provider implements history.Provider over HTTP.
type Provider struct {
	c *httpx.Client
}

// New creates a Provider for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := httpx.New(baseURL, o.client)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	c.SetTimeout(o.timeout)
	c.SetUserID(o.userID)
	return &Provider{c: c}, nil
}

// saveRequest carries the localized name under both its current and its
// legacy field name.
type saveRequest struct {
	EnglishName   string `json:"englishName"`
	LocalizedName string `json:"localizedName"`
	KoreanName    string `json:"koreanName"`
}

// RecordSave implements history.Provider.
func (p *Provider) RecordSave(ctx context.Context, englishName, localizedName string) (string, error) {
	resp, err := p.c.Do(ctx, http.MethodPost, saveEndpoint, saveRequest{
		EnglishName:   englishName,
		LocalizedName: localizedName,
		KoreanName:    localizedName,
	})
	if err != nil {
		return "", fmt.Errorf("history: POST %s: %w", saveEndpoint, err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("history: POST %s returned status %d", saveEndpoint, resp.StatusCode)
	}
	return remoteID(resp.Body), nil
}

// RecordDelete implements history.Provider.
func (p *Provider) RecordDelete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	path := historyEndpoint + "/" + url.PathEscape(id)
	resp, err := p.c.Do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("history: DELETE %s: %w", path, err)
	}
	if !resp.OK() {
		return fmt.Errorf("history: DELETE %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

// recordWire is one element of the GET /history payload.
type recordWire struct {
	ID            json.RawMessage `json:"id"`
	EnglishName   string          `json:"englishName"`
	LocalizedName string          `json:"localizedName"`
	KoreanName    string          `json:"koreanName"`
	SavedAt       string          `json:"savedAt"`
}

// List implements history.Provider.
func (p *Provider) List(ctx context.Context) ([]history.Record, error) {
	resp, err := p.c.Do(ctx, http.MethodGet, historyEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("history: GET %s: %w", historyEndpoint, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("history: GET %s returned status %d", historyEndpoint, resp.StatusCode)
	}

	var raw []recordWire
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("history: decode %s response: %w", historyEndpoint, err)
	}
	out := make([]history.Record, 0, len(raw))
	for _, r := range raw {
		rec := history.Record{
			ID:            idString(r.ID),
			EnglishName:   r.EnglishName,
			LocalizedName: r.LocalizedName,
		}
		if rec.LocalizedName == "" {
			rec.LocalizedName = r.KoreanName
		}
		rec.SavedAt = parseTime(r.SavedAt)
		out = append(out, rec)
	}
	return out, nil
}

// remoteID extracts the "id" field from a save response body. Both string
// and numeric ids are accepted; anything else yields "".
func remoteID(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return ""
	}
	var resp struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return idString(resp.ID)
}

// idString renders a raw JSON id (string or number) as text.
func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return ""
		}
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}

// parseTime accepts RFC 3339 timestamps with or without a zone offset, the
// latter being what the service emits for naive database timestamps.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
