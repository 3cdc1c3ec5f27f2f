package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/services/features"
)

func syntheticHistory(ticker string, n int) *models.PriceHistory {
	h := &models.PriceHistory{Ticker: ticker, Source: "test", Interval: "1d"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		adj := c - 0.5
		h.Bars = append(h.Bars, models.PriceBar{
			Date:     start.AddDate(0, 0, i),
			Open:     c - 1,
			High:     c + 1,
			Low:      c - 2,
			Close:    c,
			AdjClose: &adj,
			Volume:   1000 + float64(i*10),
		})
	}
	return h
}

func TestParquetStoreRoundTrip(t *testing.T) {
	store := NewParquetPriceStore(t.TempDir(), nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, syntheticHistory("aapl", 40)))
	assert.FileExists(t, store.Path("AAPL"))

	raw, err := store.Load(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 40, raw.Len())
	assert.ElementsMatch(t,
		[]string{"date", "open", "high", "low", "close", "adj close", "volume", "ticker"},
		raw.Names(),
	)

	tickerCol, ok := raw.Lookup("ticker")
	require.True(t, ok)
	assert.Equal(t, "AAPL", tickerCol.Values[0])

	table, err := features.BuildTraining(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, 34, table.Len())
}

func TestParquetStoreMissingTicker(t *testing.T) {
	store := NewParquetPriceStore(t.TempDir(), nil)
	_, err := store.Load(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrPricesNotFound)
}

func TestParquetStoreRejectsEmptyHistory(t *testing.T) {
	store := NewParquetPriceStore(t.TempDir(), nil)
	err := store.Save(context.Background(), &models.PriceHistory{Ticker: "X"})
	assert.ErrorIs(t, err, models.ErrNoProviderData)
}

// TestReadParquetTupleColumns reads a file laid out like a flattened
// multi-symbol download: tuple-named columns, a capitalized Date and
// a nullable volume.
func TestReadParquetTupleColumns(t *testing.T) {
	schema := parquet.NewSchema("prices", parquet.Group{
		"Date":                parquet.Timestamp(parquet.Millisecond),
		"('Close', 'MSFT')":   parquet.Leaf(parquet.DoubleType),
		"('Volume', 'MSFT')":  parquet.Optional(parquet.Leaf(parquet.DoubleType)),
		"__index_level_0__":   parquet.Int(64),
	})
	col := map[string]int{}
	for i, p := range schema.Columns() {
		col[p[0]] = i
	}

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]parquet.Row, 0, 8)
	for i := 0; i < 8; i++ {
		vol := parquet.DoubleValue(5000 + float64(i)).Level(0, 1, col["('Volume', 'MSFT')"])
		if i == 3 {
			vol = parquet.NullValue().Level(0, 0, col["('Volume', 'MSFT')"])
		}
		row := make(parquet.Row, len(col))
		row[col["Date"]] = parquet.Int64Value(start.AddDate(0, 0, i).UnixMilli()).Level(0, 0, col["Date"])
		row[col["('Close', 'MSFT')"]] = parquet.DoubleValue(400 + float64(i)).Level(0, 0, col["('Close', 'MSFT')"])
		row[col["('Volume', 'MSFT')"]] = vol
		row[col["__index_level_0__"]] = parquet.Int64Value(int64(i)).Level(0, 0, col["__index_level_0__"])
		rows = append(rows, row)
	}

	path := filepath.Join(t.TempDir(), "MSFT.parquet")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := parquet.NewWriter(f, schema)
	_, err = w.WriteRows(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	raw, err := ReadParquetTable(path)
	require.NoError(t, err)
	require.NotNil(t, raw.Index)
	assert.Len(t, raw.Index.Values, 8)
	assert.Equal(t, 8, raw.Len())

	dates, ok := raw.Lookup("Date")
	require.True(t, ok)
	assert.Equal(t, start, dates.Values[0])

	vols, ok := raw.Lookup("('Volume', 'MSFT')")
	require.True(t, ok)
	assert.Nil(t, vols.Values[3])
	assert.Equal(t, 5000.0, vols.Values[0])

	prices, err := features.StandardizePrices(features.FlattenColumns(raw))
	require.NoError(t, err)
	assert.Len(t, prices.Bars, 8)
	assert.Equal(t, 407.0, prices.Bars[7].Close)
}
