// internal/sink/http.go
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valpere/listingharvest/pkg/types"
)

// HTTPSink speaks to the records API:
//
//	GET  {path}?offset=&limit=  -> JSON array of records
//	POST {path}                 -> 201/200 created, 409 duplicate
type HTTPSink struct {
	client   *http.Client
	endpoint *url.URL
}

// storedRecord is the subset of a listed record the pipeline reads.
type storedRecord struct {
	Address string `json:"address"`
}

// NewHTTPSink creates a sink for baseURL joined with recordsPath.
func NewHTTPSink(baseURL, recordsPath string, timeout time.Duration) (*HTTPSink, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid sink base URL %q", baseURL)
	}
	if recordsPath == "" {
		recordsPath = "/records"
	}
	endpoint := base.JoinPath(recordsPath)
	if strings.HasSuffix(recordsPath, "/") && !strings.HasSuffix(endpoint.Path, "/") {
		endpoint.Path += "/"
	}

	return &HTTPSink{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}, nil
}

// Endpoint returns the records URL.
func (s *HTTPSink) Endpoint() string {
	return s.endpoint.String()
}

// ListKeys fetches one page of records and returns their addresses.
func (s *HTTPSink) ListKeys(ctx context.Context, offset, limit int) ([]string, error) {
	u := *s.endpoint
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list records: HTTP %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}

	var records []storedRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("list records: decode: %w", err)
	}

	keys := make([]string, 0, len(records))
	for _, r := range records {
		keys = append(keys, r.Address)
	}
	return keys, nil
}

// Submit posts a record and classifies the response.
func (s *HTTPSink) Submit(ctx context.Context, record types.CleanRecord) (types.DeliveryOutcome, error) {
	body, err := json.Marshal(record)
	if err != nil {
		return types.OutcomeError, fmt.Errorf("encode record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return types.OutcomeError, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return types.OutcomeError, fmt.Errorf("submit record: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return types.OutcomeCreated, nil
	case http.StatusConflict:
		_, _ = io.Copy(io.Discard, resp.Body)
		return types.OutcomeDuplicate, nil
	default:
		return types.OutcomeError, fmt.Errorf("submit record: HTTP %d: %s", resp.StatusCode, readSnippet(resp.Body))
	}
}

// Close releases idle connections.
func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
