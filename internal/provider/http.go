package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/set-night/mindchat/internal/config"
)

// APIError is a non-2xx answer from a backend.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.Status, e.Message)
}

type options struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*options)

// WithBaseURL points the adapter at another endpoint, e.g. a proxy or a test server.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func newOptions(baseURL string, opts []Option) options {
	o := options{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: config.HTTPClientTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// doJSON sends body to url and decodes a 2xx answer into out.
func doJSON(ctx context.Context, hc *http.Client, provider, method, url string, headers map[string]string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(provider, resp.StatusCode, resp.Header.Get("Content-Type"), data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s response: %w", provider, err)
	}
	return nil
}

const maxErrorBody = 300

func newAPIError(provider string, status int, contentType string, body []byte) *APIError {
	e := &APIError{Provider: provider, Status: status}

	trimmed := bytes.TrimSpace(body)
	switch {
	case strings.Contains(contentType, "html") || bytes.HasPrefix(trimmed, []byte("<")):
		e.Message = htmlTitle(trimmed)
	case len(trimmed) > 0:
		e.Message = jsonErrorMessage(trimmed)
	}

	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// jsonErrorMessage understands the error envelopes the supported backends use:
// {"error":{"message":...}}, {"error":"..."} and [{"error":{...}}].
func jsonErrorMessage(body []byte) string {
	type envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		var list []envelope
		if err := json.Unmarshal(body, &list); err != nil || len(list) == 0 {
			return truncate(string(body), maxErrorBody)
		}
		env = list[0]
	}

	if len(env.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(env.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var s string
		if err := json.Unmarshal(env.Error, &s); err == nil && s != "" {
			return s
		}
	}
	if env.Message != "" {
		return env.Message
	}
	return truncate(string(body), maxErrorBody)
}

// htmlTitle reduces a gateway error page to its <title>.
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return truncate(strings.Join(strings.Fields(doc.Find("body").Text()), " "), maxErrorBody)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
