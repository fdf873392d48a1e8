// Package httpquery provides a fetch-style HTTP transport for query APIs.
package httpquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	query "github.com/pumped-fn/pumped-query"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeaders assigns default headers added to every request.
func WithHeaders(h query.Header) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithPrepareHeaders registers a function that sees the merged headers of
// every request last.
func WithPrepareHeaders(fn func(query.Header) query.Header) Option {
	return func(c *Client) {
		c.prepareHeaders = fn
	}
}

// WithTimeout sets the request timeout. A client passed to WithHTTPClient
// is copied, not modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		h := *c.httpClient
		h.Timeout = d
		c.httpClient = &h
	}
}

// Client sends query requests relative to a base URL.
type Client struct {
	baseURL        *url.URL
	httpClient     *http.Client
	headers        query.Header
	prepareHeaders func(query.Header) query.Header
}

// New creates a Client for the provided base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("httpquery: base URL is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("httpquery: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		headers: make(query.Header),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseQuery returns c.Query as a query.BaseQuery.
func (c *Client) BaseQuery() query.BaseQuery {
	return c.Query
}

// Query performs req. JSON responses are returned as json.RawMessage, other
// bodies as string, and empty bodies as nil. Status codes of 400 and above
// produce an *HTTPError; transport failures a *FetchError.
func (c *Client) Query(ctx context.Context, req query.Request) query.Result {
	if ctx == nil {
		ctx = context.Background()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	fullURL, err := c.buildURL(req.URL, req.Params)
	if err != nil {
		return query.Result{Error: &FetchError{Method: method, URL: req.URL, Err: err}}
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return query.Result{Error: &FetchError{Method: method, URL: fullURL, Err: err}}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return query.Result{Error: &FetchError{Method: method, URL: fullURL, Err: err}}
	}

	headers := c.headers.Clone()
	if contentType != "" {
		headers["Content-Type"] = contentType
	}
	for k, v := range req.Headers {
		headers[k] = v
	}
	if c.prepareHeaders != nil {
		headers = c.prepareHeaders(headers)
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return query.Result{Error: &FetchError{Method: method, URL: fullURL, Err: err}}
	}
	defer closeBody(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return query.Result{Error: &FetchError{Method: method, URL: fullURL, Err: fmt.Errorf("read body: %w", err)}}
	}

	payload := decodeBody(resp.Header.Get("Content-Type"), data)
	if resp.StatusCode >= 400 {
		return query.Result{Error: &HTTPError{
			Status: resp.StatusCode,
			Data:   payload,
			Header: resp.Header.Clone(),
		}}
	}
	return query.Result{Data: payload}
}

func (c *Client) buildURL(path string, params map[string]string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	if !ref.IsAbs() {
		base := *c.baseURL
		base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
		base.RawQuery = ref.RawQuery
		ref = &base
	}
	if len(params) > 0 {
		q := ref.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		ref.RawQuery = q.Encode()
	}
	return ref.String(), nil
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	case string:
		return strings.NewReader(b), "text/plain; charset=utf-8", nil
	case io.Reader:
		return b, "", nil
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return nil, "", fmt.Errorf("encode body: %w", err)
	}
	return bytes.NewReader(bytes.TrimRight(buf.Bytes(), "\n")), "application/json", nil
}

func decodeBody(contentType string, body []byte) any {
	if len(body) == 0 {
		return nil
	}
	if isJSON(contentType) && json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	contentType = strings.TrimSpace(contentType)
	return contentType == "application/json" || strings.HasSuffix(contentType, "+json")
}

func closeBody(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}
