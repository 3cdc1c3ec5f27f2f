package prices

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"WhyAgent/internal/domain/models"
	xhttp "WhyAgent/pkg/http"
	"WhyAgent/pkg/util"
)

// YahooProvider downloads bars from the Yahoo Finance v8 chart API.
type YahooProvider struct {
	name     string
	baseURL  string
	client   *xhttp.Client
	period   string
	interval string
}

// YahooOption configures YahooProvider.
type YahooOption func(*YahooProvider)

// WithFixedRange pins period and interval regardless of what the caller asks for.
func WithFixedRange(name, period, interval string) YahooOption {
	return func(p *YahooProvider) {
		p.name = name
		p.period = period
		p.interval = interval
	}
}

// NewYahooProvider creates a chart API client rooted at baseURL.
func NewYahooProvider(baseURL string, timeout time.Duration, userAgent string, opts ...YahooOption) *YahooProvider {
	p := &YahooProvider{
		name:    "yahoo",
		baseURL: strings.TrimRight(baseURL, "/"),
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithHeader("User-Agent", userAgent),
			xhttp.WithHeader("Accept", "application/json"),
		),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *YahooProvider) Name() string {
	return p.name
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol          string `json:"symbol"`
				Gmtoffset       int64  `json:"gmtoffset"`
				DataGranularity string `json:"dataGranularity"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Open   []*float64 `json:"open"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns the ticker's bars, or an empty history when Yahoo knows nothing about it.
func (p *YahooProvider) Fetch(ctx context.Context, ticker, period, interval string) (*models.PriceHistory, error) {
	if p.period != "" {
		period = p.period
	}
	if p.interval != "" {
		interval = p.interval
	}

	var resp chartResponse
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", p.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{
			"range":          {period},
			"interval":       {interval},
			"includePrePost": {"false"},
			"events":         {"div,split"},
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return &models.PriceHistory{Ticker: ticker, Source: "yahoo", Interval: interval}, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}

	return parseChart(ticker, interval, &resp)
}

func parseChart(ticker, interval string, resp *chartResponse) (*models.PriceHistory, error) {
	history := &models.PriceHistory{Ticker: ticker, Source: "yahoo", Interval: interval}

	if resp.Chart.Error != nil {
		if resp.Chart.Error.Code == "Not Found" {
			return history, nil
		}
		return nil, fmt.Errorf("yahoo api error: %s - %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return history, nil
	}

	result := resp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return history, nil
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	daily := isDaily(interval)
	offset := time.Duration(result.Meta.Gmtoffset) * time.Second

	for i, ts := range result.Timestamp {
		closeVal, ok := at(quote.Close, i)
		if !ok {
			continue
		}
		bar := models.PriceBar{
			Date:   time.Unix(ts, 0).UTC(),
			Close:  closeVal,
			Open:   or(quote.Open, i, closeVal),
			High:   or(quote.High, i, closeVal),
			Low:    or(quote.Low, i, closeVal),
			Volume: or(quote.Volume, i, 0),
		}
		if daily {
			bar.Date = util.TruncateDay(bar.Date.Add(offset))
		}
		if v, ok := at(adj, i); ok {
			bar.AdjClose = &v
		}
		history.Bars = append(history.Bars, bar)
	}

	sort.SliceStable(history.Bars, func(i, j int) bool {
		return history.Bars[i].Date.Before(history.Bars[j].Date)
	})
	return history, nil
}

func isDaily(interval string) bool {
	switch interval {
	case "1d", "5d", "1wk", "1mo", "3mo":
		return true
	}
	return false
}

func at(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

func or(values []*float64, i int, def float64) float64 {
	if v, ok := at(values, i); ok {
		return v
	}
	return def
}
