package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/newthinker/tradesim/internal/core"
	"github.com/shopspring/decimal"
)

const yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches stock symbols like AAPL, MSFT, 600519.SH, 0700.HK, BTC-USD
var validSymbol = regexp.MustCompile(`^[A-Za-z0-9^=-]{1,12}(\.[A-Za-z]{1,4})?$`)

// YahooProvider fetches bars from the Yahoo Finance chart API. Prices arrive
// as floats and are converted to decimals at the boundary.
type YahooProvider struct {
	BaseURL  string
	Interval string // "1d" by default
	client   *http.Client
	now      func() time.Time
}

// NewYahooProvider creates a provider against baseURL, or the public
// endpoint when baseURL is empty.
func NewYahooProvider(baseURL, interval string) *YahooProvider {
	if baseURL == "" {
		baseURL = yahooBaseURL
	}
	return &YahooProvider{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Interval: toYahooInterval(interval),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// Bars fetches bars for symbol in [start, end]. A zero end means now.
func (y *YahooProvider) Bars(ctx context.Context, symbol string, start, end time.Time) ([]core.Bar, error) {
	if !validSymbol.MatchString(symbol) {
		return nil, core.Errorf(core.ErrValidation, "invalid symbol %q", symbol)
	}
	if end.IsZero() {
		end = y.now()
	}

	q := url.Values{}
	q.Set("interval", y.Interval)
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(end.Unix()))
	u := fmt.Sprintf("%s/%s?%s", y.BaseURL, url.PathEscape(toYahooSymbol(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.Errorf(core.ErrNoData, "no data for symbol %s", symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if result.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo error: %s", result.Chart.Error.Description)
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no data for symbol %s", symbol)
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]

	bars := make([]core.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		open, high, low, cls := at(quotes.Open, i), at(quotes.High, i), at(quotes.Low, i), at(quotes.Close, i)
		if open == nil || high == nil || low == nil || cls == nil {
			continue // Skip missing data
		}
		b := core.Bar{
			Symbol: symbol,
			Time:   time.Unix(ts, 0).UTC(),
			Open:   decimal.NewFromFloat(*open),
			High:   decimal.NewFromFloat(*high),
			Low:    decimal.NewFromFloat(*low),
			Close:  decimal.NewFromFloat(*cls),
		}
		if v := at(quotes.Volume, i); v != nil {
			b.Volume = decimal.NewFromFloat(*v)
		}
		if inRange(b.Time, start, end) {
			bars = append(bars, b)
		}
	}
	return bars, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}

// toYahooSymbol converts internal symbol format to Yahoo format
func toYahooSymbol(symbol string) string {
	// Shanghai stocks: 600519.SH -> 600519.SS
	if strings.HasSuffix(symbol, ".SH") {
		return strings.TrimSuffix(symbol, ".SH") + ".SS"
	}
	return symbol
}

func toYahooInterval(interval string) string {
	switch interval {
	case "1m", "5m", "15m", "1h", "1d", "1wk":
		return interval
	default:
		return "1d"
	}
}

// Yahoo API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quoteIndicator `json:"quote"`
	} `json:"indicators"`
}

type quoteIndicator struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}
