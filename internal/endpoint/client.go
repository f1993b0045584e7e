package endpoint

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/meshwatch/meshwatch/internal/config"
	"github.com/meshwatch/meshwatch/pkg/types"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Client issues GET requests against the configured upstream services.
// It never retries; retry policy belongs to the caller.
//
// Client is safe for concurrent use.
type Client struct {
	services map[types.ServiceKey]*service
	order    []types.ServiceKey
}

type service struct {
	desc   types.ServiceDescriptor
	client *http.Client
}

// New builds a Client with one HTTP client per service, honouring each
// service's auth and TLS settings. timeout is the per-request ceiling.
func New(services []config.Service, timeout time.Duration) *Client {
	c := &Client{services: make(map[types.ServiceKey]*service, len(services))}
	for _, svc := range services {
		desc := svc.Descriptor()
		c.services[desc.Key] = &service{desc: desc, client: buildHTTPClient(svc, timeout)}
		c.order = append(c.order, desc.Key)
	}
	return c
}

// Descriptors returns the configured descriptors in config order.
func (c *Client) Descriptors() []types.ServiceDescriptor {
	out := make([]types.ServiceDescriptor, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.services[k].desc)
	}
	return out
}

// Descriptor returns the descriptor for key.
func (c *Client) Descriptor(key types.ServiceKey) (types.ServiceDescriptor, bool) {
	s, ok := c.services[key]
	if !ok {
		return types.ServiceDescriptor{}, false
	}
	return s.desc, true
}

// URL joins the service's base URL and path.
func URL(baseURL, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(baseURL, "/") + path
}

// GetRaw fetches path from the service identified by key and returns the
// response body once it has been checked to be valid JSON.
func (c *Client) GetRaw(ctx context.Context, key types.ServiceKey, path string) ([]byte, error) {
	body, err := c.get(ctx, key, path)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, c.fail(&Error{Service: key, Path: path, Kind: KindDecode, Err: errors.New("invalid JSON body")})
	}
	return body, nil
}

// GetJSON fetches path from the service identified by key and decodes the
// JSON response into v.
func (c *Client) GetJSON(ctx context.Context, key types.ServiceKey, path string, v any) error {
	body, err := c.get(ctx, key, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return c.fail(&Error{Service: key, Path: path, Kind: KindDecode, Err: err})
	}
	return nil
}

func (c *Client) get(ctx context.Context, key types.ServiceKey, path string) ([]byte, error) {
	svc, ok := c.services[key]
	if !ok {
		return nil, c.fail(&Error{Service: key, Path: path, Kind: KindTransport, Err: ErrUnknownService})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, URL(svc.desc.BaseURL, path), nil)
	if err != nil {
		return nil, c.fail(&Error{Service: key, Path: path, Kind: KindTransport, Err: fmt.Errorf("build request: %w", err)})
	}
	req.Header.Set("Accept", "application/json")

	resp, err := svc.client.Do(req)
	if err != nil {
		return nil, c.fail(&Error{Service: key, Path: path, Kind: KindTransport, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, c.fail(&Error{Service: key, Path: path, Kind: KindHTTP, StatusCode: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		// The connection dropped mid-body: no complete response arrived.
		return nil, c.fail(&Error{Service: key, Path: path, Kind: KindTransport, Err: fmt.Errorf("read body: %w", err)})
	}
	return body, nil
}

// fail logs e and returns it.
func (c *Client) fail(e *Error) error {
	slog.Warn("endpoint: request failed",
		"service", e.Service,
		"path", e.Path,
		"kind", e.Kind.String(),
		"status", e.StatusCode,
		"err", e.Err,
	)
	return e
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the service's auth and TLS settings.
func buildHTTPClient(svc config.Service, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: svc.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{
		Transport: &authRoundTripper{base: transport, auth: svc.Auth},
		Timeout:   timeout,
	}
}
