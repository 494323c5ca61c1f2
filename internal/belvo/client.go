package belvo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Observer is notified after every outbound request. status is 0 on transport errors.
type Observer func(method, path string, status int, elapsed time.Duration)

// Client is a Basic-auth JSON client for the Belvo REST API.
type Client struct {
	baseURL        string
	secretID       string
	secretPassword string
	httpClient     *http.Client
	observe        Observer
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observe = o
	}
}

func NewClient(baseURL, secretID, secretPassword string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("belvo base url is empty")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid belvo base url: %w", err)
	}

	c := &Client{
		baseURL:        strings.TrimRight(trimmed, "/") + "/",
		secretID:       secretID,
		secretPassword: secretPassword,
		httpClient:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// APIError is a non-2xx answer from Belvo.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}

	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// Do sends one request. path is relative to the base URL, e.g. "accounts/".
// A non-nil body is JSON encoded; a non-nil v receives the decoded response.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any, v any) error {
	endpoint := c.baseURL + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.secretID, c.secretPassword)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(method, path, 0, start)
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	c.record(method, path, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (c *Client) record(method, path string, status int, start time.Time) {
	if c.observe != nil {
		c.observe(method, path, status, time.Since(start))
	}
}

// extractError understands Belvo's error list ([{"code","message"}]) and
// {"detail": ...} objects, and falls back to the raw body.
func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil || len(data) == 0 {
		return ""
	}

	type item struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}

	var list []item
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		msgs := make([]string, 0, len(list))
		for _, it := range list {
			if m := firstNonEmpty(it.Message, it.Detail, it.Code); m != "" {
				msgs = append(msgs, m)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	var obj item
	if err := json.Unmarshal(data, &obj); err == nil {
		if m := firstNonEmpty(obj.Detail, obj.Message, obj.Code); m != "" {
			return m
		}
	}

	return strings.TrimSpace(string(data))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}

	return ""
}
