// Package httpx holds the JSON-over-HTTP plumbing shared by the irum service
// clients: base URL handling, identity and correlation headers, W3C trace
// context propagation and a client span per request.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// HeaderUserID scopes remote history records to one installation.
	HeaderUserID = "X-User-Id"

	// HeaderRequestID carries a per-request correlation id.
	HeaderRequestID = "X-Request-Id"

	// DefaultTimeout is the per-request timeout when none is configured.
	DefaultTimeout = 10 * time.Second

	// maxBody caps how much of a response body is read into memory.
	maxBody = 1 << 20

	tracerName = "github.com/MrWong99/irum/pkg/provider"
)

// Client issues JSON requests against a single service base URL.
// It is safe for concurrent use.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
	prop    propagation.TextMapPropagator
}

// New returns a Client for baseURL. baseURL must be non-empty; a trailing
// slash is stripped. A nil hc gets a client with [DefaultTimeout].
func New(baseURL string, hc *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("httpx: baseURL must not be empty")
	}
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		prop:    propagation.TraceContext{},
	}, nil
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// SetUserID sets the value sent in [HeaderUserID]. Empty omits the header.
func (c *Client) SetUserID(id string) { c.userID = id }

// SetTimeout overrides the per-request timeout of the underlying client.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.http.Timeout = d
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Do sends a request with an optional JSON body and reads the response.
// A transport failure is returned as an error; HTTP error statuses are not,
// callers inspect [Response.OK].
func (c *Client) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "HTTP "+method+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(method),
			semconv.URLPath(path),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, NewRequestID())
	if c.userID != "" {
		req.Header.Set(HeaderUserID, c.userID)
	}
	c.prop.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, resp.Status)
	}
	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

// NewRequestID returns a fresh, lexically sortable correlation id.
func NewRequestID() string {
	return ulid.Make().String()
}
