// Package catalog reads products from the headless commerce backend: the
// GraphQL catalog for browsing and the REST API for lookups and orders.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var ErrNotConfigured = errors.New("catalog: endpoint not configured")

// UpstreamError is any non-2xx or error-bearing answer from the backend.
type UpstreamError struct {
	Source     string
	StatusCode int
	Body       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Source, e.StatusCode)
}

type GraphQL struct {
	endpoint string
	hc       *http.Client
}

func NewGraphQL(endpoint string, hc *http.Client) *GraphQL {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &GraphQL{endpoint: endpoint, hc: hc}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Do runs query and decodes the data member into out.
func (g *GraphQL) Do(ctx context.Context, query string, vars map[string]any, out any) error {
	if g.endpoint == "" {
		return ErrNotConfigured
	}
	b, err := json.Marshal(gqlRequest{Query: query, Variables: vars})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.hc.Do(req)
	if err != nil {
		return fmt.Errorf("graphql: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("graphql: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Source: "graphql", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var gr gqlResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return &UpstreamError{Source: "graphql", StatusCode: resp.StatusCode, Body: string(body), Message: err.Error()}
	}
	if len(gr.Errors) > 0 {
		return &UpstreamError{Source: "graphql", StatusCode: resp.StatusCode, Body: string(body), Message: gr.Errors[0].Message}
	}
	if out == nil || len(gr.Data) == 0 {
		return nil
	}
	return json.Unmarshal(gr.Data, out)
}
