// Package httpadapter proxies every flipper.Adapter operation to a remote
// flipper HTTP service as JSON, grounded on the teacher's
// policy-engine/service.Evaluator (a plain net/http client POSTing a JSON
// body to a configurable base URL and decoding a JSON response) — here
// given a real *http.Client, context propagation, and one endpoint per
// adapter method instead of the teacher's single hardcoded OPA route.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/larouxn/flipper/pkg/flipper"
)

// Adapter is a flipper.Adapter backed by a remote flipper HTTP service.
type Adapter struct {
	baseURL string
	client  *http.Client
	header  http.Header
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithClient overrides the default *http.Client.
func WithClient(client *http.Client) Option {
	return func(a *Adapter) { a.client = client }
}

// WithHeader sets a header (e.g. Authorization) sent with every request.
func WithHeader(key, value string) Option {
	return func(a *Adapter) { a.header.Set(key, value) }
}

// New constructs an Adapter against baseURL, e.g. "https://flipper.internal".
func New(baseURL string, opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: baseURL,
		client:  http.DefaultClient,
		header:  make(http.Header),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ flipper.Adapter = (*Adapter)(nil)

// Ping verifies the remote endpoint is reachable (§ SPEC_FULL Supplemental
// Feature 2), grounded on the teacher's policy-engine "/health" handler.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.do(ctx, http.MethodGet, "/health", nil, nil)
}

type featuresResponse struct {
	Features []string `json:"features"`
}

// Features implements flipper.Adapter.
func (a *Adapter) Features(ctx context.Context) (map[string]struct{}, error) {
	var resp featuresResponse
	if err := a.do(ctx, http.MethodGet, "/features", nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(resp.Features))
	for _, name := range resp.Features {
		out[name] = struct{}{}
	}
	return out, nil
}

// Add implements flipper.Adapter.
func (a *Adapter) Add(ctx context.Context, featureName string) error {
	return a.do(ctx, http.MethodPost, "/features/"+url.PathEscape(featureName), nil, nil)
}

// Remove implements flipper.Adapter.
func (a *Adapter) Remove(ctx context.Context, featureName string) error {
	return a.do(ctx, http.MethodDelete, "/features/"+url.PathEscape(featureName), nil, nil)
}

// Clear implements flipper.Adapter.
func (a *Adapter) Clear(ctx context.Context, featureName string) error {
	return a.do(ctx, http.MethodDelete, "/features/"+url.PathEscape(featureName)+"/gates", nil, nil)
}

// Get implements flipper.Adapter.
func (a *Adapter) Get(ctx context.Context, featureName string) (flipper.GateValues, error) {
	var values flipper.GateValues
	if err := a.do(ctx, http.MethodGet, "/features/"+url.PathEscape(featureName), nil, &values); err != nil {
		return flipper.GateValues{}, err
	}
	return values, nil
}

// GetMulti implements flipper.Adapter.
func (a *Adapter) GetMulti(ctx context.Context, featureNames []string) (map[string]flipper.GateValues, error) {
	out := make(map[string]flipper.GateValues, len(featureNames))
	for _, name := range featureNames {
		values, err := a.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = values
	}
	return out, nil
}

// GetAll implements flipper.Adapter.
func (a *Adapter) GetAll(ctx context.Context) (map[string]flipper.GateValues, error) {
	var all map[string]flipper.GateValues
	if err := a.do(ctx, http.MethodGet, "/features?expand=gate_values", nil, &all); err != nil {
		return nil, err
	}
	return all, nil
}

type gateRequest struct {
	Gate  flipper.GateName `json:"gate"`
	Value any              `json:"value"`
}

// Enable implements flipper.Adapter.
func (a *Adapter) Enable(ctx context.Context, featureName string, gate flipper.GateName, value any) error {
	path := "/features/" + url.PathEscape(featureName) + "/enable"
	return a.do(ctx, http.MethodPost, path, gateRequest{Gate: gate, Value: value}, nil)
}

// Disable implements flipper.Adapter.
func (a *Adapter) Disable(ctx context.Context, featureName string, gate flipper.GateName, value any) error {
	path := "/features/" + url.PathEscape(featureName) + "/disable"
	return a.do(ctx, http.MethodPost, path, gateRequest{Gate: gate, Value: value}, nil)
}

func (a *Adapter) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("httpadapter: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("httpadapter: build request: %w", err)
	}
	req.Header = a.header.Clone()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("httpadapter: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("httpadapter: %s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httpadapter: decode response: %w", err)
	}
	return nil
}
