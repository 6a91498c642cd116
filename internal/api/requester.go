package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/shared"
	"golang.org/x/time/rate"
)

// DefaultCacheExpiry is how long GET responses are served from the cache.
const DefaultCacheExpiry = 4 * 7 * 24 * time.Hour

// HeaderSource supplies authorization headers for each request.
type HeaderSource interface {
	Headers(ctx context.Context) (http.Header, error)
}

// Reauthorizer is implemented by header sources that can force a fresh token after a 401.
type Reauthorizer interface {
	Reauthorize(ctx context.Context) (http.Header, error)
}

// Cache stores raw GET response bodies by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key, method, rawURL string, body []byte, ttl time.Duration) error
}

// Options are per-request parameters.
type Options struct {
	Params    url.Values // merged into the URL's query
	JSON      any        // request body, encoded as JSON
	SkipCache bool       // force a live GET and overwrite the cached response
}

// Requester sends requests to a JSON API with retries, backoff and an optional response cache.
type Requester struct {
	client      *http.Client
	headers     HeaderSource
	cache       Cache
	cacheExpiry time.Duration
	backoff     Backoff
	limiter     *rate.Limiter
	logger      *log.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// RequesterOpts configures a [Requester].
type RequesterOpts struct {
	Client      *http.Client
	Headers     HeaderSource
	Cache       Cache
	CacheExpiry time.Duration
	Backoff     Backoff
	RateLimit   float64 // requests per second, 0 disables limiting
	Logger      *log.Logger
}

// NewRequester creates a [Requester], filling unset options with defaults.
func NewRequester(opts RequesterOpts) *Requester {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.CacheExpiry <= 0 {
		opts.CacheExpiry = DefaultCacheExpiry
	}
	if opts.Backoff.Start <= 0 {
		opts.Backoff = DefaultBackoff()
	}

	r := &Requester{
		client:      opts.Client,
		headers:     opts.Headers,
		cache:       opts.Cache,
		cacheExpiry: opts.CacheExpiry,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
		sleep:       sleepContext,
	}
	if opts.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return r
}

// Get sends a GET request, served from the cache when possible.
func (r *Requester) Get(ctx context.Context, rawURL string, opts *Options) (map[string]any, error) {
	return r.Do(ctx, http.MethodGet, rawURL, opts)
}

// Post sends a POST request.
func (r *Requester) Post(ctx context.Context, rawURL string, opts *Options) (map[string]any, error) {
	return r.Do(ctx, http.MethodPost, rawURL, opts)
}

// Put sends a PUT request.
func (r *Requester) Put(ctx context.Context, rawURL string, opts *Options) (map[string]any, error) {
	return r.Do(ctx, http.MethodPut, rawURL, opts)
}

// Delete sends a DELETE request.
func (r *Requester) Delete(ctx context.Context, rawURL string, opts *Options) (map[string]any, error) {
	return r.Do(ctx, http.MethodDelete, rawURL, opts)
}

// Do sends a request and returns the decoded JSON object body.
//
// 400, 403 and 404 responses fail immediately with a [*StatusError]. Other failures are
// retried with exponential backoff up to the configured count, honouring Retry-After when
// it fits inside the backoff budget. A body that is not a JSON object decodes to an empty map.
func (r *Requester) Do(ctx context.Context, method, rawURL string, opts *Options) (map[string]any, error) {
	if opts == nil {
		opts = &Options{}
	}

	target, err := buildURL(rawURL, opts.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	cacheable := method == http.MethodGet && r.cache != nil
	key := CacheKey(method, target)

	if cacheable && !opts.SkipCache {
		if body, ok, err := r.cache.Get(ctx, key); err != nil {
			r.logger.Warn("cache lookup failed", "url", target, "error", err)
		} else if ok {
			r.logger.Debugf("%-7s: %s | Cached", method, target)
			return parseBody(body), nil
		}
	}

	var payload []byte
	if opts.JSON != nil {
		if payload, err = json.Marshal(opts.JSON); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	reauthorized := false
	for retries := 0; ; retries++ {
		status, header, body, err := r.send(ctx, method, target, payload)
		if err == nil && status < http.StatusBadRequest {
			if cacheable {
				if err := r.cache.Set(ctx, key, method, target, body, r.cacheExpiry); err != nil {
					r.logger.Warn("failed to cache response", "url", target, "error", err)
				}
			}
			return parseBody(body), nil
		}

		var lastErr error
		var wait time.Duration

		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("request failed", "method", method, "url", target, "error", err)
			lastErr = fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		} else {
			statusErr := &StatusError{Method: method, URL: target, StatusCode: status, Message: errorMessage(body)}
			r.logger.Warn("request returned an error", "method", method, "url", target, "status", status, "body", string(body))
			lastErr = statusErr

			switch status {
			case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound:
				return nil, statusErr
			case http.StatusUnauthorized:
				if re, ok := r.headers.(Reauthorizer); ok && !reauthorized {
					reauthorized = true
					if _, err := re.Reauthorize(ctx); err != nil {
						return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
					}
				}
			}

			if ra := header.Get("Retry-After"); ra != "" {
				wait = parseRetryAfter(ra)
				if wait > r.backoff.Timeout() {
					return nil, fmt.Errorf("%w of %v: server asked to wait %v", shared.ErrRetryTooLong, r.backoff.Timeout(), wait)
				}
				r.logger.Infof("rate limit exceeded, retry again at %s", time.Now().Add(wait).Format(time.DateTime))
			}
		}

		if retries >= r.backoff.Count {
			return nil, fmt.Errorf("%w: %v", shared.ErrMaxRetries, lastErr)
		}

		delay := r.backoff.Delay(retries)
		if wait > delay {
			delay = wait
		}
		r.logger.Infof("retrying in %v...", delay)
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (r *Requester) send(ctx context.Context, method, target string, payload []byte) (int, http.Header, []byte, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return 0, nil, nil, err
		}
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if r.headers != nil {
		h, err := r.headers.Headers(ctx)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
		}
		for k, vs := range h {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	r.logger.Debugf("%-7s: %s", method, target)

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, resp.Header, data, nil
}

// CacheKey identifies a request in the response cache.
func CacheKey(method, target string) string {
	return method + " " + target
}

func buildURL(rawURL string, params url.Values) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
	} else if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	return u.String(), nil
}

func parseBody(body []byte) map[string]any {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// errorMessage extracts error.message (or a string error) from an error body.
func errorMessage(body []byte) string {
	m := parseBody(body)
	switch e := m["error"].(type) {
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	case string:
		if desc, ok := m["error_description"].(string); ok && desc != "" {
			return e + ": " + desc
		}
		return e
	}
	return ""
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// StatusError is returned for responses with a status of 400 or above.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		switch e.StatusCode {
		case http.StatusForbidden:
			msg = "you are not authorised for this action"
		case http.StatusNotFound:
			msg = "resource not found"
		default:
			msg = http.StatusText(e.StatusCode)
		}
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, msg)
}

// Unwrap maps the status code onto the shared sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return shared.ErrBadRequest
	case http.StatusForbidden:
		return shared.ErrForbidden
	case http.StatusNotFound:
		return shared.ErrNotFound
	default:
		return shared.ErrAPIRequest
	}
}

// IsStatus reports whether err is a [*StatusError] with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
