package prices

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"WhyAgent/internal/domain/models"
	xhttp "WhyAgent/pkg/http"
	"WhyAgent/pkg/util"
)

// StooqProvider downloads daily bars from stooq.com's CSV endpoint.
// Stooq has no intraday history, so period and interval are ignored.
type StooqProvider struct {
	baseURL string
	client  *xhttp.Client
}

// NewStooqProvider creates a client rooted at baseURL.
func NewStooqProvider(baseURL string, timeout time.Duration, userAgent string) *StooqProvider {
	return &StooqProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: xhttp.NewClient(
			xhttp.WithTimeout(timeout),
			xhttp.WithHeader("User-Agent", userAgent),
		),
	}
}

func (p *StooqProvider) Name() string {
	return "stooq"
}

// Fetch tries the bare symbol first, then the .US listing.
func (p *StooqProvider) Fetch(ctx context.Context, ticker, _, _ string) (*models.PriceHistory, error) {
	var lastErr error
	for _, symbol := range stooqSymbols(ticker) {
		bars, err := p.download(ctx, symbol)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) > 0 {
			return &models.PriceHistory{Ticker: ticker, Source: "stooq", Interval: "1d", Bars: bars}, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return &models.PriceHistory{Ticker: ticker, Source: "stooq", Interval: "1d"}, nil
}

func stooqSymbols(ticker string) []string {
	t := util.NormalizeTicker(ticker)
	if strings.Contains(t, ".") {
		return []string{t}
	}
	return []string{t, t + ".US"}
}

func (p *StooqProvider) download(ctx context.Context, symbol string) ([]models.PriceBar, error) {
	var body []byte
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    p.baseURL + "/q/d/l/",
		QueryParams: map[string][]string{
			"s": {strings.ToLower(symbol)},
			"i": {"d"},
		},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("stooq %s: %w", symbol, err)
	}
	return parseStooqCSV(body)
}

// parseStooqCSV reads Date,Open,High,Low,Close,Volume rows. Stooq answers unknown
// symbols with a plain "No data" body, which yields no bars.
func parseStooqCSV(body []byte) ([]models.PriceBar, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !bytes.Contains(trimmed, []byte(",")) {
		return nil, nil
	}

	r := csv.NewReader(bytes.NewReader(trimmed))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("stooq header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	di, okDate := idx["date"]
	ci, okClose := idx["close"]
	if !okDate || !okClose {
		return nil, nil
	}

	field := func(rec []string, name string, def float64) float64 {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return def
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return def
		}
		return v
	}

	var bars []models.PriceBar
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stooq row: %w", err)
		}
		if di >= len(rec) || ci >= len(rec) {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[di]))
		if err != nil {
			continue
		}
		closeVal, err := strconv.ParseFloat(strings.TrimSpace(rec[ci]), 64)
		if err != nil {
			continue
		}
		bars = append(bars, models.PriceBar{
			Date:   date,
			Open:   field(rec, "open", closeVal),
			High:   field(rec, "high", closeVal),
			Low:    field(rec, "low", closeVal),
			Close:  closeVal,
			Volume: field(rec, "volume", 0),
		})
	}
	return bars, nil
}
