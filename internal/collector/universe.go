package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/time/rate"
	"resty.dev/v3"
)

// SymbolUniverse lists the symbols a run should analyze.
type SymbolUniverse interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

// StaticUniverse is a fixed, configured symbol list.
type StaticUniverse []string

func (s StaticUniverse) ListSymbols(_ context.Context) ([]string, error) {
	if len(s) == 0 {
		return nil, errors.New("no symbols configured")
	}
	out := make([]string, len(s))
	copy(out, s)
	return out, nil
}

const (
	// DefaultNasdaqBaseURL hosts the NASDAQ Trader symbol directory.
	DefaultNasdaqBaseURL = "https://www.nasdaqtrader.com"

	nasdaqListedPath = "/dynamic/SymDir/nasdaqlisted.txt"
	otherListedPath  = "/dynamic/SymDir/otherlisted.txt"
)

// NasdaqUniverse lists US-listed equities from the NASDAQ Trader symbol
// directory (NASDAQ plus NYSE/AMEX/ARCA listings). Test issues are skipped.
type NasdaqUniverse struct {
	client      *resty.Client
	limiter     *rate.Limiter
	IncludeETFs bool
	Limit       int // 0 means no limit
}

// NewNasdaqUniverse creates a universe reading from opts.BaseURL.
func NewNasdaqUniverse(opts ClientOptions, includeETFs bool, limit int) *NasdaqUniverse {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultNasdaqBaseURL
	}
	return &NasdaqUniverse{
		client:      newHTTPClient(opts),
		limiter:     newLimiter(opts.RequestsPerSecond),
		IncludeETFs: includeETFs,
		Limit:       limit,
	}
}

func (u *NasdaqUniverse) ListSymbols(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, path := range []string{nasdaqListedPath, otherListedPath} {
		if err := u.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("symbol directory rate limit wait: %w", err)
		}
		resp, err := u.client.R().SetContext(ctx).Get(path)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", path, err)
		}
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("fetch %s: status %d", path, resp.StatusCode())
		}
		syms, err := parseSymbolDirectory(strings.NewReader(resp.String()), u.IncludeETFs)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, s := range syms {
			seen[s] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	if u.Limit > 0 && len(out) > u.Limit {
		out = out[:u.Limit]
	}
	return out, nil
}

// parseSymbolDirectory reads one pipe-delimited directory file. Both layouts
// are accepted: "Symbol|..." (nasdaqlisted) and "ACT Symbol|..." (otherlisted).
func parseSymbolDirectory(r io.Reader, includeETFs bool) ([]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '|'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	symCol, testCol, etfCol := -1, -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Symbol", "ACT Symbol":
			symCol = i
		case "Test Issue":
			testCol = i
		case "ETF":
			etfCol = i
		}
	}
	if symCol < 0 {
		return nil, errors.New("symbol column not found")
	}

	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if symCol >= len(rec) || strings.HasPrefix(rec[0], "File Creation Time") {
			continue
		}
		sym := strings.TrimSpace(rec[symCol])
		// "$" marks preferred series, which chart APIs do not price.
		if sym == "" || strings.Contains(sym, "$") {
			continue
		}
		if field(rec, testCol) == "Y" {
			continue
		}
		if !includeETFs && field(rec, etfCol) == "Y" {
			continue
		}
		out = append(out, sym)
	}
	return out, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
