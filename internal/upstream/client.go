// Package upstream talks to the remote paginated fitness API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"example.com/workoutcache/internal/domain"
)

const maxErrorBody = 512

// Config carries the connection settings for the remote service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client fetches pages and single items from the remote service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// FetchPage requests one page of a collection. The list is read from the key named after the resource.
// A response without page_count is treated as the only page.
func (c *Client) FetchPage(ctx context.Context, resource string, page int) (domain.Page, error) {
	endpoint := fmt.Sprintf("%s/%s?page=%s", c.baseURL, url.PathEscape(resource), strconv.Itoa(page))

	var body map[string]json.RawMessage
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return domain.Page{}, err
	}

	out := domain.Page{Number: page, PageCount: 1}
	if raw, ok := body["page_count"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out.PageCount); err != nil {
			return domain.Page{}, fmt.Errorf("decode page_count: %w", err)
		}
	}
	if raw, ok := body[resource]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &out.Records); err != nil {
			return domain.Page{}, fmt.Errorf("decode %s: %w", resource, err)
		}
	}
	return out, nil
}

// FetchOne requests a single item. A {"<singular>": {...}} envelope is unwrapped.
func (c *Client) FetchOne(ctx context.Context, resource, id string) (domain.Record, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(resource), url.PathEscape(id))

	var raw json.RawMessage
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return domain.Record{}, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if inner, ok := envelope[strings.TrimSuffix(resource, "s")]; ok && len(inner) > 0 && inner[0] == '{' {
			raw = inner
		}
	}

	var record domain.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.Record{}, fmt.Errorf("decode %s %s: %w", resource, id, err)
	}
	return record, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", domain.ErrUpstreamUnavailable, err)
	}
	return nil
}

// StatusError represents a non-successful upstream response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream responded %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("upstream responded %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
}

// Unwrap classifies the failure: 404 means the record does not exist, anything else is an outage.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return domain.ErrRecordNotFound
	}
	return domain.ErrUpstreamUnavailable
}

