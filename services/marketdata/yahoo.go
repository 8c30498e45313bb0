package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"stock_screener/metrics"
)

// quoteSummaryModules are the Yahoo modules that together carry the nine
// snapshot fields.
const quoteSummaryModules = "summaryDetail,financialData,defaultKeyStatistics"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// YahooConfig configures the Yahoo Finance client
type YahooConfig struct {
	BaseURL string
	// CookieURL is hit once to obtain the session cookie that the crumb
	// endpoint requires. Empty disables the crumb handshake.
	CookieURL      string
	RequestsPerSec float64
	Timeout        time.Duration
}

// DefaultYahooConfig returns settings for the public Yahoo endpoints
func DefaultYahooConfig() YahooConfig {
	return YahooConfig{
		BaseURL:        "https://query2.finance.yahoo.com",
		CookieURL:      "https://fc.yahoo.com",
		RequestsPerSec: 2,
		Timeout:        15 * time.Second,
	}
}

// YahooClient fetches quoteSummary snapshots from Yahoo Finance
type YahooClient struct {
	config  YahooConfig
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Registry

	mu    sync.Mutex
	crumb string
}

// NewYahooClient creates a new Yahoo Finance client
func NewYahooClient(config YahooConfig, m *metrics.Registry) *YahooClient {
	jar, _ := cookiejar.New(nil)

	limit := rate.Inf
	if config.RequestsPerSec > 0 {
		limit = rate.Limit(config.RequestsPerSec)
	}

	return &YahooClient{
		config: config,
		http: &http.Client{
			Timeout: config.Timeout,
			Jar:     jar,
		},
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
	}
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail struct {
				PreviousClose        *rawValue `json:"previousClose"`
				FiftyDayAverage      *rawValue `json:"fiftyDayAverage"`
				TwoHundredDayAverage *rawValue `json:"twoHundredDayAverage"`
				AverageVolume        *rawValue `json:"averageVolume"`
				MarketCap            *rawValue `json:"marketCap"`
				ForwardPE            *rawValue `json:"forwardPE"`
				DividendYield        *rawValue `json:"dividendYield"`
			} `json:"summaryDetail"`
			FinancialData struct {
				CurrentPrice *rawValue `json:"currentPrice"`
			} `json:"financialData"`
			DefaultKeyStatistics struct {
				ForwardEps *rawValue `json:"forwardEps"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

func (v *rawValue) value() *float64 {
	if v == nil {
		return nil
	}
	return v.Raw
}

// Snapshot fetches the current metrics for symbol
func (c *YahooClient) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	snap, err := c.fetch(ctx, symbol)
	if err != nil {
		c.metrics.ProviderRequest("error")
		return nil, err
	}
	c.metrics.ProviderRequest("ok")
	return snap, nil
}

func (c *YahooClient) fetch(ctx context.Context, symbol string) (*Snapshot, error) {
	crumb, err := c.getCrumb(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("modules", quoteSummaryModules)
	if crumb != "" {
		params.Set("crumb", crumb)
	}
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s",
		strings.TrimRight(c.config.BaseURL, "/"), url.PathEscape(symbol), params.Encode())

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: request for %s: %v", ErrProvider, symbol, err)
	}
	if status == http.StatusUnauthorized {
		// stale crumb, force a new handshake on the next call
		c.mu.Lock()
		c.crumb = ""
		c.mu.Unlock()
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d for %s", ErrProvider, status, symbol)
		}
		return nil, fmt.Errorf("%w: failed to parse response for %s: %v", ErrProvider, symbol, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("%w: %s - %s", ErrProvider, resp.QuoteSummary.Error.Code, resp.QuoteSummary.Error.Description)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d for %s", ErrProvider, status, symbol)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: no result for %s", ErrProvider, symbol)
	}

	result := resp.QuoteSummary.Result[0]
	snap := &Snapshot{
		Symbol:               symbol,
		TwoHundredDayAverage: result.SummaryDetail.TwoHundredDayAverage.value(),
		FiftyDayAverage:      result.SummaryDetail.FiftyDayAverage.value(),
		CurrentPrice:         result.FinancialData.CurrentPrice.value(),
		PreviousClose:        result.SummaryDetail.PreviousClose.value(),
		AverageVolume:        result.SummaryDetail.AverageVolume.value(),
		MarketCap:            result.SummaryDetail.MarketCap.value(),
		ForwardPE:            result.SummaryDetail.ForwardPE.value(),
		ForwardEps:           result.DefaultKeyStatistics.ForwardEps.value(),
		DividendYield:        result.SummaryDetail.DividendYield.value(),
		FetchedAt:            time.Now().UTC(),
	}

	log.Debug().Str("symbol", symbol).Msg("Fetched Yahoo snapshot")
	return snap, nil
}

// getCrumb returns the cached crumb, performing the cookie handshake when
// none is cached yet.
func (c *YahooClient) getCrumb(ctx context.Context) (string, error) {
	if c.config.CookieURL == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.crumb != "" {
		return c.crumb, nil
	}

	// the cookie endpoint answers 404 but still sets the session cookie
	if _, _, err := c.get(ctx, c.config.CookieURL); err != nil {
		return "", fmt.Errorf("%w: cookie handshake: %v", ErrProvider, err)
	}

	body, status, err := c.get(ctx, strings.TrimRight(c.config.BaseURL, "/")+"/v1/test/getcrumb")
	if err != nil {
		return "", fmt.Errorf("%w: crumb request: %v", ErrProvider, err)
	}
	crumb := strings.TrimSpace(string(body))
	if status != http.StatusOK || crumb == "" {
		return "", fmt.Errorf("%w: crumb request returned status %d", ErrProvider, status)
	}

	c.crumb = crumb
	return crumb, nil
}

func (c *YahooClient) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
