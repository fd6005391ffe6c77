package feed

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

	"github.com/norbert12x/parasol/pkg/parasol"
)

// HTTPSource pages through the registry feed over HTTP. Acknowledged items
// are removed on the feed side, so repeated fetches move forward.
type HTTPSource struct {
	BaseURL string

	HTTPClient *http.Client
}

type ackRequest struct {
	IDs []string `json:"ids"`
}

type ackResponse struct {
	Deleted int `json:"deleted"`
}

// FetchPage returns up to limit pending items, optionally for one region.
func (s *HTTPSource) FetchPage(ctx context.Context, region string, limit int) ([]parasol.Record, error) {
	if s.BaseURL == "" {
		return nil, fmt.Errorf("feed: base URL required")
	}

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if region != "" {
		params.Set("wojewodztwo", region)
	}
	sep := "?"
	if strings.Contains(s.BaseURL, "?") {
		sep = "&"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+sep+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("feed: decode page: %w", err)
	}
	return Records(items), nil
}

// Acknowledge reports processed ids and returns how many the feed deleted.
func (s *HTTPSource) Acknowledge(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	body, err := json.Marshal(ackRequest{IDs: ids})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(s.BaseURL, "/")+"/ack", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed: acknowledge: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return 0, err
	}

	var payload ackResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("feed: decode ack: %w", err)
	}
	return payload.Deleted, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("feed: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

func (s *HTTPSource) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
