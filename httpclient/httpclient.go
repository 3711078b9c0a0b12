// Package httpclient is the outbound HTTP capability shared by the client and the cookie
// handlers: a Doer abstraction, a retrying Doer for idempotent requests, and the form /
// bearer request shapes the Orbit endpoints expect.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
)

const (
	contentTypeForm = "application/x-www-form-urlencoded"

	defaultTimeout = 30 * time.Second

	// maxBodySize caps how much of a provider response is read.
	maxBodySize = 1 << 20
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Default returns an *http.Client with a request timeout.
func Default() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// RetryDoer retries GET and HEAD requests that fail at the transport level, with
// exponential backoff. Other methods and any response that was received are passed
// through untouched, so a POST is sent at most once.
type RetryDoer struct {
	next       Doer
	maxTries   uint
	newBackOff func() backoff.BackOff
}

// NewRetryDoer wraps next. maxTries includes the first attempt; values below 1 are
// treated as 1.
func NewRetryDoer(next Doer, maxTries uint) *RetryDoer {
	if maxTries < 1 {
		maxTries = 1
	}
	return &RetryDoer{next: next, maxTries: maxTries, newBackOff: defaultBackOff}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// WithBackOff replaces the backoff policy, mainly so tests do not sleep.
func (d *RetryDoer) WithBackOff(newBackOff func() backoff.BackOff) *RetryDoer {
	d.newBackOff = newBackOff
	return d
}

func (d *RetryDoer) Do(req *http.Request) (*http.Response, error) {
	if !idempotent(req.Method) || d.maxTries == 1 {
		return d.next.Do(req)
	}

	ctx := req.Context()
	operation := func() (*http.Response, error) {
		resp, err := d.next.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(d.newBackOff()),
		backoff.WithMaxTries(d.maxTries),
	)
}

func idempotent(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == ""
}

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// PostForm sends a form-encoded POST and reads the response.
func PostForm(ctx context.Context, doer Doer, endpoint string, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", contentTypeForm)
	req.Header.Set("Accept", "application/json")
	return send(doer, req)
}

// GetBearer sends a GET with an "Authorization: Bearer" header and reads the response.
func GetBearer(ctx context.Context, doer Doer, endpoint, accessToken string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	return send(doer, req)
}

func send(doer Doer, req *http.Request) (*Response, error) {
	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", req.URL.Redacted(), err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// ErrNoMessage is returned by ErrorMessage when the body has no usable message.
var ErrNoMessage = errors.New("no error message in response")

// ErrorMessage extracts error_description, then error, from a JSON error body.
func ErrorMessage(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", ErrNoMessage
	}
	record := gjson.ParseBytes(body)
	if !record.IsObject() {
		return "", ErrNoMessage
	}
	for _, field := range []string{"error_description", "error"} {
		if v := record.Get(field); v.Type == gjson.String && v.Str != "" {
			return v.Str, nil
		}
	}
	return "", ErrNoMessage
}

// ErrorMessageOr returns ErrorMessage's result or fallback.
func ErrorMessageOr(body []byte, fallback string) string {
	if msg, err := ErrorMessage(body); err == nil {
		return msg
	}
	return fallback
}

// ErrorMessageOrText is ErrorMessageOr that also accepts a non-JSON body as the message.
func ErrorMessageOrText(body []byte, fallback string) string {
	if msg, err := ErrorMessage(body); err == nil {
		return msg
	}
	if gjson.ValidBytes(body) {
		// Valid JSON without a message field.
		return fallback
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fallback
}
