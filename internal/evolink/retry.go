package evolink

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/atelierhq/evolink-http/internal/logger"
	"github.com/google/uuid"
)

const (
	defaultAttemptTimeout = 20 * time.Second
	defaultRetries        = 1
	defaultBackoffStep    = 250 * time.Millisecond
)

// retryingDoer issues vendor HTTP requests with a per-attempt timeout and a
// bounded number of retries on transport-level failures. HTTP error responses
// (4xx/5xx) are returned as-is so the caller can interpret the vendor body;
// only network failures and timeouts are retried.
type retryingDoer struct {
	client         *http.Client
	attemptTimeout time.Duration
	retries        int
	backoffStep    time.Duration
}

func newRetryingDoer(client *http.Client, timeout time.Duration, retries int) *retryingDoer {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = defaultAttemptTimeout
	}
	if retries < 0 {
		retries = defaultRetries
	}
	return &retryingDoer{
		client:         client,
		attemptTimeout: timeout,
		retries:        retries,
		backoffStep:    defaultBackoffStep,
	}
}

// Do sends the request, replaying the body on retry. One idempotency key is
// minted per logical call and reused across attempts so the vendor can
// deduplicate retried submissions.
func (d *retryingDoer) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	idempotencyKey := uuid.New().String()
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * d.backoffStep
			logger.Warnf("retrying %s %s in %s, attempt %d, err: %s", method, url, backoff, attempt+1, lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, &NetworkError{Attempts: attempt, Err: ctx.Err()}
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, d.attemptTimeout)
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, url, reader)
		if err != nil {
			cancel()
			return nil, err
		}
		for key, values := range header {
			for _, value := range values {
				req.Header.Add(key, value)
			}
		}
		req.Header.Set("Idempotency-Key", idempotencyKey)
		resp, err := d.client.Do(req)
		if err == nil {
			// drain the body before the attempt context is cancelled
			payload, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			cancel()
			if readErr != nil {
				lastErr = readErr
				if isRetryable(readErr) {
					continue
				}
				return nil, &NetworkError{Attempts: attempt + 1, Err: readErr}
			}
			resp.Body = io.NopCloser(bytes.NewReader(payload))
			return resp, nil
		}
		cancel()
		lastErr = err
		if !isRetryable(err) {
			return nil, &NetworkError{Attempts: attempt + 1, Err: err}
		}
	}
	return nil, &NetworkError{Attempts: d.retries + 1, Err: lastErr}
}

// isRetryable classifies transport failures worth a second attempt: timeouts,
// DNS failures, refused or reset connections, and truncated reads.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	// url.Error wraps without typed causes in some transports
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
}
