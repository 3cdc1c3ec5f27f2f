package features

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// weekdays returns n consecutive weekdays starting Monday 2024-01-01.
func weekdays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// risingTable builds n weekday rows with strictly increasing closes and constant volume.
func risingTable(n int) RawTable {
	days := weekdays(n)
	rows := make([][]any, n)
	for i, d := range days {
		rows[i] = []any{d.Format("2006-01-02"), 100.0 + float64(i), 1_000_000.0}
	}
	return NewRawTable([]string{"date", "close", "volume"}, rows)
}

func TestFlattenColumnsIdempotentOnFlatTable(t *testing.T) {
	in := NewRawTable([]string{"date", "open", "close", "volume"}, [][]any{{"2024-01-01", 1.0, 2.0, 3.0}})
	once := FlattenColumns(in)
	assert.Equal(t, in, once)
	assert.Equal(t, once, FlattenColumns(once))
}

func TestFlattenColumnsTwoLevelAndTupleStrings(t *testing.T) {
	in := RawTable{Columns: []Column{
		{Label: Label{"Close", "AAPL"}, Values: []any{1.0}},
		{Label: Label{"('adj close', 'aapl')"}, Values: []any{2.0}},
		{Label: Label{`("Volume", "AAPL")`}, Values: []any{3.0}},
		{Label: Label{"  Date "}, Values: []any{"2024-01-01"}},
	}}
	out := FlattenColumns(in)
	assert.Equal(t, []string{"close", "adj close", "volume", "date"}, out.Names())
	// input untouched
	assert.Equal(t, Label{"Close", "AAPL"}, in.Columns[0].Label)
}

func TestResolveDatePrefersDateOverDatetime(t *testing.T) {
	in := NewRawTable([]string{"datetime", "date", "close"}, [][]any{
		{"2020-05-05", "2024-01-02", 1.0},
	})
	out, err := ResolveDate(in, false)
	require.NoError(t, err)

	dt, ok := out.Lookup("datetime")
	require.True(t, ok)
	assert.Equal(t, "2020-05-05", dt.Values[0])

	date, ok := out.Lookup("date")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), date.Values[0])
}

func TestResolveDateFallbacks(t *testing.T) {
	want := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	t.Run("datetime", func(t *testing.T) {
		out, err := ResolveDate(NewRawTable([]string{"Datetime", "close"}, [][]any{{"2024-01-02", 1.0}}), false)
		require.NoError(t, err)
		col, ok := out.Lookup("date")
		require.True(t, ok)
		assert.Equal(t, want, col.Values[0])
	})

	t.Run("index column", func(t *testing.T) {
		out, err := ResolveDate(NewRawTable([]string{"close", "index"}, [][]any{{1.0, want}}), false)
		require.NoError(t, err)
		assert.Equal(t, []string{"close", "date"}, out.Names())
	})

	t.Run("named row index", func(t *testing.T) {
		in := NewRawTable([]string{"close"}, [][]any{{1.0}})
		in.Index = &Index{Name: "Date", Values: []any{"2024-01-02"}}
		out, err := ResolveDate(in, false)
		require.NoError(t, err)
		assert.Nil(t, out.Index)
		col, ok := out.Lookup("date")
		require.True(t, ok)
		assert.Equal(t, want, col.Values[0])
	})

	t.Run("unnamed date index", func(t *testing.T) {
		in := NewRawTable([]string{"close"}, [][]any{{1.0}, {2.0}})
		in.Index = &Index{Values: []any{want, want.AddDate(0, 0, 1)}}
		out, err := ResolveDate(in, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"close", "date"}, out.Names())
	})

	t.Run("running index falls through to first column", func(t *testing.T) {
		in := NewRawTable([]string{"when", "close"}, [][]any{{"2024-01-02", 1.0}, {"2024-01-03", 2.0}})
		in.Index = &Index{Values: []any{0, 1}}
		out, err := ResolveDate(in, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"date", "close"}, out.Names())
	})

	t.Run("no columns", func(t *testing.T) {
		_, err := ResolveDate(RawTable{}, false)
		var schemaErr *SchemaError
		assert.ErrorAs(t, err, &schemaErr)
	})
}

func TestResolveDateUnparseable(t *testing.T) {
	in := NewRawTable([]string{"date", "close"}, [][]any{{"2024-01-02", 1.0}, {"garbage", 2.0}})

	out, err := ResolveDate(in, false)
	require.NoError(t, err)
	col, _ := out.Lookup("date")
	assert.Nil(t, col.Values[1])

	_, err = ResolveDate(in, true)
	var dateErr *DateParseError
	require.ErrorAs(t, err, &dateErr)
	assert.Equal(t, 1, dateErr.Row)
	assert.Equal(t, "garbage", dateErr.Value)
}

func TestStandardizePricesAdjCloseFallback(t *testing.T) {
	in := NewRawTable([]string{"date", "Adj Close"}, [][]any{
		{"2024-01-01", 10.5},
		{"2024-01-02", 11.25},
	})
	resolved, err := ResolveDate(in, false)
	require.NoError(t, err)
	prices, err := StandardizePrices(resolved)
	require.NoError(t, err)
	assert.Equal(t, []float64{10.5, 11.25}, prices.Closes())
}

func TestStandardizePricesBackfill(t *testing.T) {
	in := NewRawTable([]string{"date", "close", "volume"}, [][]any{
		{"2024-01-01", 10.0, 500.0},
		{"2024-01-02", 11.0, 700.0},
	})
	resolved, err := ResolveDate(in, false)
	require.NoError(t, err)
	prices, err := StandardizePrices(resolved)
	require.NoError(t, err)
	for _, b := range prices.Bars {
		assert.Equal(t, b.Close, b.Open)
		assert.Equal(t, b.Close, b.High)
		assert.Equal(t, b.Close, b.Low)
	}
	assert.Equal(t, []float64{500, 700}, prices.Volumes())

	noVol, err := ResolveDate(NewRawTable([]string{"date", "close"}, [][]any{{"2024-01-01", 1.0}}), false)
	require.NoError(t, err)
	prices, err = StandardizePrices(noVol)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, prices.Volumes())
}

func TestStandardizePricesSortsStableAndDropsInvalid(t *testing.T) {
	in := NewRawTable([]string{"date", "close"}, [][]any{
		{"2024-01-03", 3.0},
		{"2024-01-01", 1.0},
		{nil, 9.0},
		{"2024-01-02", nil},
		{"2024-01-01", 1.5},
	})
	resolved, err := ResolveDate(in, false)
	require.NoError(t, err)
	prices, err := StandardizePrices(resolved)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0, 1.5, 3.0}, prices.Closes())
}

func TestBuildSchemaErrorListsColumns(t *testing.T) {
	in := NewRawTable([]string{"date", "open", "volume"}, [][]any{{"2024-01-01", 1.0, 2.0}})
	_, err := Build(in, Options{})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"date", "open", "volume"}, schemaErr.Columns)
	assert.Contains(t, err.Error(), `"open"`)
}

func TestBuildReturnArithmetic(t *testing.T) {
	days := weekdays(6)
	closes := []float64{100, 101, 99, 102, 105, 103}
	rows := make([][]any, len(closes))
	for i := range closes {
		rows[i] = []any{days[i], closes[i], 1000.0}
	}
	table, err := Build(NewRawTable([]string{"date", "close", "volume"}, rows), Options{Mode: ModeInference})
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())

	last, ok := table.Latest()
	require.True(t, ok)
	assert.InDelta(t, 103.0/105.0-1, last.Ret1, 1e-12)
	assert.InDelta(t, -0.0190, last.Ret1, 1e-4)
	assert.InDelta(t, 103.0/99.0-1, last.Ret3, 1e-12)
	assert.InDelta(t, 103.0/100.0-1, last.Ret5, 1e-12)
	assert.Equal(t, 0.0, last.VolChg3)
	assert.False(t, last.HasLabel)
}

func TestBuildRowFloor(t *testing.T) {
	// n bars yield n-5-1 rows at horizon 1.
	_, err := BuildTraining(risingTable(35), 1)
	var insufficient *InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 29, insufficient.Rows)
	assert.Equal(t, DefaultMinRows, insufficient.Min)

	table, err := BuildTraining(risingTable(36), 1)
	require.NoError(t, err)
	assert.Equal(t, 30, table.Len())
}

func TestBuildInferenceSkipsFloorAndKeepsLatestRow(t *testing.T) {
	raw := risingTable(10)
	table, err := BuildInference(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, table.Len())

	last, ok := table.Latest()
	require.True(t, ok)
	assert.Equal(t, weekdays(10)[9], last.Date)
	assert.False(t, last.HasLabel)
}

func TestBuildForty(t *testing.T) {
	table, err := BuildTraining(risingTable(40), 1)
	require.NoError(t, err)
	require.Equal(t, 34, table.Len())

	for i, r := range table.Rows {
		assert.Greater(t, r.Ret1, 0.0)
		assert.Greater(t, r.Ret3, 0.0)
		assert.Greater(t, r.Ret5, 0.0)
		assert.Equal(t, 0.0, r.VolChg3)
		assert.True(t, r.HasLabel)
		assert.Greater(t, r.Y, 0.0)
		// the first surviving row is bar 5, a Monday
		assert.Equal(t, i%5, r.DOW)
	}
	assert.Len(t, table.X()[0], len(FeatureNames))
}

func TestBuildHorizonDropsTrailingRows(t *testing.T) {
	table, err := BuildTraining(risingTable(45), 3)
	require.NoError(t, err)
	assert.Equal(t, 45-5-3, table.Len())

	last, _ := table.Latest()
	assert.InDelta(t, (100.0+44)/(100.0+41)-1, last.Y, 1e-12)
}

func TestBuildStrictDates(t *testing.T) {
	raw := risingTable(40)
	raw.Columns[0].Values[3] = "not-a-date"

	table, err := BuildTraining(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, 33, table.Len())

	_, err = Build(raw, Options{Horizon: 1, StrictDates: true})
	var dateErr *DateParseError
	assert.True(t, errors.As(err, &dateErr))
}

func TestBuildYahooStyleFile(t *testing.T) {
	days := weekdays(40)
	raw := RawTable{Columns: []Column{
		{Label: Label{"Date"}, Values: make([]any, 40)},
		{Label: Label{"('adj close', 'msft')"}, Values: make([]any, 40)},
		{Label: Label{"('volume', 'msft')"}, Values: make([]any, 40)},
		{Label: Label{"ticker"}, Values: make([]any, 40)},
	}}
	for i := range days {
		raw.Columns[0].Values[i] = days[i].UnixNano()
		raw.Columns[1].Values[i] = 300.0 + float64(i)
		raw.Columns[2].Values[i] = int64(1000 + i)
		raw.Columns[3].Values[i] = "MSFT"
	}
	table, err := BuildTraining(raw, 1)
	require.NoError(t, err)
	assert.Equal(t, 34, table.Len())
	assert.Equal(t, days[5], table.Rows[0].Date)
}

func TestSplitAt(t *testing.T) {
	table, err := BuildTraining(risingTable(46), 1)
	require.NoError(t, err)
	train, test := table.SplitAt(0.8)
	assert.Equal(t, 32, train.Len())
	assert.Equal(t, 8, test.Len())
	assert.True(t, train.Rows[train.Len()-1].Date.Before(test.Rows[0].Date))
}

func TestPctChangeZeroBase(t *testing.T) {
	v, ok := PctChange([]float64{0, 0}, 1, 1)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	_, ok = PctChange([]float64{0, 5}, 1, 1)
	assert.False(t, ok)
}
