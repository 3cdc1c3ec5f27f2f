package features

import (
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"WhyAgent/pkg/util"
)

var nan = math.NaN()

// FlattenColumns collapses every label to a single lower-case name. Two-level
// labels keep their first level; names shaped like "('close', 'aapl')" keep
// the first tuple element. Already flat lower-case tables pass unchanged.
func FlattenColumns(t RawTable) RawTable {
	out := t.clone()
	for i, c := range out.Columns {
		var name string
		if len(c.Label) > 0 {
			name = c.Label[0]
		}
		out.Columns[i].Label = Label{flattenName(name)}
	}
	return out
}

func flattenName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && strings.Contains(s, ",") {
		first, _, _ := strings.Cut(s[1:len(s)-1], ",")
		first = strings.NewReplacer("'", "", `"`, "").Replace(first)
		s = strings.TrimSpace(first)
	}
	return s
}

// ResolveDate finds the date column, names it "date" and parses its cells
// into time.Time. Candidates in order: a "date" column, a "datetime"
// column, an "index" column, a meaningful row index, then the first column.
// Unparseable cells become nil unless strict is set, in which case the first
// one is returned as a *DateParseError.
func ResolveDate(t RawTable, strict bool) (RawTable, error) {
	out := lowerNames(t)

	col := -1
	switch {
	case out.indexOf("date") >= 0:
		col = out.indexOf("date")
	case out.indexOf("datetime") >= 0:
		col = out.indexOf("datetime")
	case out.indexOf("index") >= 0:
		col = out.indexOf("index")
	case meaningfulIndex(out.Index):
		n := out.Len()
		values := make([]any, n)
		copy(values, out.Index.Values)
		out.Columns = append(out.Columns, Column{Label: Label{"date"}, Values: values})
		out.Index = nil
		col = len(out.Columns) - 1
	case len(out.Columns) > 0:
		col = 0
	default:
		return RawTable{}, &SchemaError{Reason: "no column to read dates from"}
	}

	out.Columns[col].Label = Label{"date"}
	values := out.Columns[col].Values
	for i, v := range values {
		d, ok := parseDate(v)
		if !ok {
			if strict {
				return RawTable{}, &DateParseError{Row: i, Value: v}
			}
			values[i] = nil
			continue
		}
		values[i] = d
	}
	if strict && len(values) < out.Len() {
		return RawTable{}, &DateParseError{Row: len(values), Value: nil}
	}
	return out, nil
}

// StandardizePrices maps a date-resolved table onto canonical bars. The close
// comes from "close", else "adj close"; missing open/high/low take the close
// and a missing volume is zero. Rows without a date or close are dropped and
// the result is stably sorted by date.
func StandardizePrices(t RawTable) (PriceTable, error) {
	t = lowerNames(t)

	closeCol, ok := t.Lookup("close")
	if !ok {
		closeCol, ok = t.Lookup("adj close")
	}
	if !ok {
		return PriceTable{}, &SchemaError{Columns: t.Names()}
	}
	dateCol, ok := t.Lookup("date")
	if !ok {
		return PriceTable{}, &SchemaError{Columns: t.Names(), Reason: "no date column"}
	}
	openCol, hasOpen := t.Lookup("open")
	highCol, hasHigh := t.Lookup("high")
	lowCol, hasLow := t.Lookup("low")
	volCol, hasVol := t.Lookup("volume")

	n := t.Len()
	bars := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		date, ok := parseDate(cell(dateCol, i))
		if !ok {
			continue
		}
		closePx, ok := toFloat(cell(closeCol, i))
		if !ok {
			continue
		}
		bar := Bar{Date: date, Open: closePx, High: closePx, Low: closePx, Close: closePx}
		if hasOpen {
			bar.Open = floatOr(cell(openCol, i), closePx)
		}
		if hasHigh {
			bar.High = floatOr(cell(highCol, i), closePx)
		}
		if hasLow {
			bar.Low = floatOr(cell(lowCol, i), closePx)
		}
		if hasVol {
			bar.Volume = floatOr(cell(volCol, i), nan)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return PriceTable{Bars: bars}, nil
}

func lowerNames(t RawTable) RawTable {
	out := t.clone()
	for i, c := range out.Columns {
		if len(c.Label) == 1 {
			out.Columns[i].Label = Label{strings.ToLower(strings.TrimSpace(c.Label[0]))}
		}
	}
	return out
}

// meaningfulIndex reports whether the index has a name or holds anything
// other than the running count 0..N-1.
func meaningfulIndex(idx *Index) bool {
	if idx == nil || len(idx.Values) == 0 {
		return false
	}
	if idx.Name != "" {
		return true
	}
	for i, v := range idx.Values {
		n, ok := toInt(v)
		if !ok || n != int64(i) {
			return true
		}
	}
	return false
}

func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil || d.IsZero() {
			return time.Time{}, false
		}
		return *d, true
	case string:
		return util.ParseTime(d)
	case float32, float64:
		f, _ := toFloat(d)
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f <= 0 {
			return time.Time{}, false
		}
		return util.FromEpoch(int64(f)), true
	}
	if n, ok := toInt(v); ok && n > 0 {
		return util.FromEpoch(n), true
	}
	return time.Time{}, false
}

func toInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case nil, bool:
		return 0, false
	case float64:
		return f, !math.IsNaN(f)
	case float32:
		return float64(f), !math.IsNaN(float64(f))
	case string:
		s := strings.TrimSpace(f)
		if s == "" {
			return 0, false
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(x) {
			return 0, false
		}
		return x, true
	}
	if n, ok := toInt(v); ok {
		return float64(n), true
	}
	return 0, false
}

func floatOr(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}
