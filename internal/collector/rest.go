package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"RSIPipeline/internal/model"

	"golang.org/x/time/rate"
	"resty.dev/v3"
)

// RESTProvider implements PriceProvider against a generic bars REST API:
// GET {base}/api/v1/bars/daily?symbol=...&limit=... returning a JSON array.
type RESTProvider struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewRESTProvider creates a provider for opts.BaseURL, sending opts.APIKey as a bearer token.
func NewRESTProvider(opts ClientOptions) *RESTProvider {
	client := newHTTPClient(opts).SetHeader("Accept", "application/json")
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}
	return &RESTProvider{
		client:  client,
		limiter: newLimiter(opts.RequestsPerSecond),
	}
}

func (p *RESTProvider) Name() string { return "rest" }

// restBar is the expected JSON shape from the bars API.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    *int64  `json:"volume"`
}

func (p *RESTProvider) FetchDailyBars(ctx context.Context, symbol string, lookback Lookback) ([]model.PriceBar, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rest rate limit wait: %w", err)
	}

	var raw []restBar
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"limit":  strconv.Itoa(lookback.TradingDays()),
		}).
		SetResult(&raw).
		Get("/api/v1/bars/daily")
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("fetch bars %s: status %d, body: %s", symbol, resp.StatusCode(), resp.String())
	}

	bars := make([]model.PriceBar, len(raw))
	for i, rb := range raw {
		bars[i] = model.PriceBar{
			Symbol: symbol,
			Time:   time.Unix(rb.Timestamp, 0).UTC(),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}
