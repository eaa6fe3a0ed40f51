package ubi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrorKind classifies a failed batch call.
type ErrorKind int

const (
	ErrTransport ErrorKind = iota
	ErrStatus
	ErrShapeMismatch
	ErrRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTransport:
		return "transport"
	case ErrStatus:
		return "status"
	case ErrShapeMismatch:
		return "shape-mismatch"
	case ErrRateLimited:
		return "rate-limited"
	}
	return "unknown"
}

// ApiError is the failure of one whole batch call. RetryAfter carries the
// upstream's "try again in N seconds" hint when Kind is ErrRateLimited.
type ApiError struct {
	Kind       ErrorKind
	Status     int
	Message    string
	RetryAfter time.Duration
}

func (e *ApiError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

const (
	maxAttempts       = 5
	defaultRetryDelay = 5000 * time.Millisecond
)

var retryAfterRe = regexp.MustCompile(`try again in (\d+) seconds`)

// RetryDelay is the wait before the next attempt for a given failure:
// the parsed rate-limit hint when present, 5000ms otherwise.
func RetryDelay(err *ApiError) time.Duration {
	if err != nil && err.Kind == ErrRateLimited && err.RetryAfter > 0 {
		return err.RetryAfter
	}
	return defaultRetryDelay
}

// classify builds an ApiError and upgrades it to ErrRateLimited when the
// upstream error body carries a retry-after hint.
func classify(kind ErrorKind, status int, msg string, body []byte) *ApiError {
	apiErr := &ApiError{Kind: kind, Status: status, Message: msg}
	var parsed struct {
		Errors []GQLError `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Errors) == 0 {
		return apiErr
	}
	rlMsg := parsed.Errors[0].Message
	if !strings.Contains(rlMsg, "Too many requests") {
		return apiErr
	}
	m := retryAfterRe.FindStringSubmatch(rlMsg)
	if m == nil {
		return apiErr
	}
	seconds, err := strconv.Atoi(m[1])
	if err != nil {
		return apiErr
	}
	apiErr.Kind = ErrRateLimited
	apiErr.RetryAfter = time.Duration(seconds)*1000*time.Millisecond + 500*time.Millisecond
	return apiErr
}

// ForwardableHeaders drops browser-internal headers (sec-* and dnt*) that
// must not be replayed from the captured snapshot.
func ForwardableHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		lower := strings.ToLower(name)
		if strings.HasPrefix(lower, "sec-") || strings.HasPrefix(lower, "dnt") {
			continue
		}
		out[name] = value
	}
	return out
}

// Client issues batched GraphQL calls against the marketplace endpoint.
type Client struct {
	http     *resty.Client
	endpoint string
}

func NewClient(endpoint string) *Client {
	client := resty.New()
	client.SetTimeout(30 * time.Second)

	return &Client{
		http:     client,
		endpoint: endpoint,
	}
}

// Call submits the request list as a single JSON-array body and returns one
// envelope per request, in input order. Validation treats the batch as a
// unit: a length mismatch or any slot without usable data fails the whole
// call, which is retried up to 5 attempts with a computed backoff.
func (c *Client) Call(ctx context.Context, reqs []Request, headers map[string]string) ([]Envelope, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	fwd := ForwardableHeaders(headers)

	var lastErr *ApiError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		envs, apiErr := c.do(ctx, reqs, fwd)
		if apiErr == nil {
			return envs, nil
		}
		lastErr = apiErr
		if attempt == maxAttempts {
			break
		}
		delay := RetryDelay(apiErr)
		log.Printf("[UBI] attempt %d/%d failed: %v, retrying in %s", attempt, maxAttempts, apiErr, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, reqs []Request, headers map[string]string) ([]Envelope, *ApiError) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(reqs).
		Post(c.endpoint)
	if err != nil {
		return nil, &ApiError{Kind: ErrTransport, Message: err.Error()}
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		msg := fmt.Sprintf("server responded with %d: %s", resp.StatusCode(), truncate(body, 200))
		return nil, classify(ErrStatus, resp.StatusCode(), msg, body)
	}

	var envs []Envelope
	if err := json.Unmarshal(body, &envs); err != nil {
		return nil, &ApiError{Kind: ErrShapeMismatch, Status: resp.StatusCode(), Message: "response is not a batch array"}
	}
	if len(envs) != len(reqs) {
		return nil, &ApiError{
			Kind:    ErrShapeMismatch,
			Status:  resp.StatusCode(),
			Message: fmt.Sprintf("expected %d results, got %d", len(reqs), len(envs)),
		}
	}
	for i, env := range envs {
		if env.Data != nil && !(env.Data.Game == nil && len(env.Errors) > 0) {
			continue
		}
		msg := fmt.Sprintf("invalid data in response at index %d", i)
		if len(env.Errors) > 0 {
			msg = env.Errors[0].Message
		}
		slot, _ := json.Marshal(env)
		return nil, classify(ErrStatus, resp.StatusCode(), msg, slot)
	}
	return envs, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
