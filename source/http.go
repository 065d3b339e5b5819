package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

// maxDrain bounds how much of an error body is read before closing it.
const maxDrain = 4096

// HTTP fetches a URL and yields the response body.
type HTTP struct {
	client *http.Client
	method string
	url    string
	header http.Header
	limit  int64
}

type HTTPOption func(*HTTP)

func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

func WithHeader(key, value string) HTTPOption {
	return func(h *HTTP) {
		h.header.Add(key, value)
	}
}

// WithBodyLimit caps the number of body bytes read on success. Zero means no limit.
func WithBodyLimit(n int64) HTTPOption {
	return func(h *HTTP) {
		if n >= 0 {
			h.limit = n
		}
	}
}

func NewHTTP(url string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		client: http.DefaultClient,
		method: http.MethodGet,
		url:    url,
		header: make(http.Header),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *HTTP) URL() string { return h.url }

// Fetch issues one request. Non-2xx responses are drained, closed and returned
// as *StatusError; transport failures are wrapped in *StatusError too.
func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, h.method, h.url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range h.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &StatusError{Err: err, Method: h.method, URL: h.url}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)
		return nil, &StatusError{
			Code:   resp.StatusCode,
			Method: h.method,
			URL:    h.url,
			Header: resp.Header,
		}
	}

	var body io.Reader = resp.Body
	if h.limit > 0 {
		body = io.LimitReader(resp.Body, h.limit)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &StatusError{Code: resp.StatusCode, Err: err, Method: h.method, URL: h.url}
	}
	return data, nil
}

// StatusError describes a failed HTTP attempt.
type StatusError struct {
	Code   int
	Method string
	URL    string
	Header http.Header
	Err    error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return e.Method + " " + e.URL + ": " + e.Err.Error()
	}
	return e.Method + " " + e.URL + ": http status " + strconv.Itoa(e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }

// RetryAfter parses the Retry-After header as seconds or an HTTP date.
func (e *StatusError) RetryAfter() (time.Duration, bool) {
	if e.Header == nil {
		return 0, false
	}
	s := e.Header.Get("Retry-After")
	if s == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(s); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(s); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// IsStatus reports whether err carries an HTTP status equal to code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
