package collector

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultRetryWaitTime    = 1 * time.Second
	defaultRetryMaxWaitTime = 10 * time.Second
)

// ClientOptions configures the HTTP client shared by the providers.
type ClientOptions struct {
	BaseURL           string
	APIKey            string
	Proxy             string
	Timeout           time.Duration
	RetryCount        int
	RequestsPerSecond float64 // <= 0 disables throttling
}

// newHTTPClient creates a resty client with retry on transient failures.
func newHTTPClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0").
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(defaultRetryWaitTime).
		SetRetryMaxWaitTime(defaultRetryMaxWaitTime).
		AddRetryConditions(retryCondition).
		AddRetryHooks(retryHook)

	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	return client
}

// newLimiter returns a limiter allowing rps requests per second, or an
// unlimited one when rps is not positive.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	switch code := r.StatusCode(); {
	case code >= 500:
		return true
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	}
	return false
}

func retryHook(r *resty.Response, err error) {
	if err != nil {
		log.Debug().Str("url", r.Request.URL).Int("attempt", r.Request.Attempt).Err(err).
			Msg("retrying request due to error")
		return
	}
	log.Debug().Str("url", r.Request.URL).Int("attempt", r.Request.Attempt).Int("status_code", r.StatusCode()).
		Msg("retrying request due to status code")
}
