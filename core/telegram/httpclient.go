package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/m3rciful/coursebot/core/logger"
	"github.com/m3rciful/coursebot/core/telegram/netutil"
)

// HTTPClientOptions tunes the client used for Bot API calls. Zero values
// select defaults.
type HTTPClientOptions struct {
	Timeout      time.Duration
	Retries      int
	RetryBackoff time.Duration
	// Base replaces the tuned transport, mostly for tests.
	Base http.RoundTripper
}

func (o HTTPClientOptions) withDefaults(pollTimeout time.Duration) HTTPClientOptions {
	if o.Timeout <= 0 {
		// Long polling holds a request open for pollTimeout.
		o.Timeout = pollTimeout + 20*time.Second
	}
	if o.Retries < 0 {
		o.Retries = 0
	} else if o.Retries == 0 {
		o.Retries = 3
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.Base == nil {
		o.Base = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       30 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
		}
	}
	return o
}

// BuildHTTPClient returns an HTTP client that retries transient network
// failures of Telegram API requests.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: &retryTransport{
			base:       opts.Base,
			maxRetries: opts.Retries,
			backoff:    opts.RetryBackoff,
		},
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	attempts := t.maxRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		curr := req
		if attempt > 1 {
			// A consumed body cannot be replayed without GetBody.
			if req.Body != nil && req.GetBody == nil {
				return nil, lastErr
			}
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				curr.Body = body
			}
		}

		resp, err := t.base.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		logger.Debug(req.Context(), "tg.http", "request.retry",
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
			slog.String("endpoint", endpointOf(req)),
		)
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// endpointOf returns the Bot API method of req; the path before it carries
// the token.
func endpointOf(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	return path.Base(req.URL.Path)
}
