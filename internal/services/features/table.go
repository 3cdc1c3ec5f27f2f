package features

import (
	"strings"
	"time"
)

// FeatureNames is the fixed model input order.
var FeatureNames = []string{"ret_1", "ret_3", "ret_5", "vol_chg_3", "dow"}

// Label identifies a column. It has one level, or two when the table came
// from a multi-symbol download (field name, ticker).
type Label []string

// String renders single-level labels as-is and multi-level labels in the
// tuple form they take after a serialization round-trip.
func (l Label) String() string {
	switch len(l) {
	case 0:
		return ""
	case 1:
		return l[0]
	default:
		parts := make([]string, len(l))
		for i, p := range l {
			parts[i] = "'" + p + "'"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	}
}

// Column is one column of a raw table. Values may hold nil, numbers,
// strings or time.Time.
type Column struct {
	Label  Label
	Values []any
}

// Index is a row index carried next to the columns.
type Index struct {
	Name   string
	Values []any
}

// RawTable is a price history of unknown shape. A nil Index means the
// default 0..N-1 running index.
type RawTable struct {
	Columns []Column
	Index   *Index
}

// NewRawTable builds a table from row-oriented data.
func NewRawTable(names []string, rows [][]any) RawTable {
	cols := make([]Column, len(names))
	for j, name := range names {
		cols[j] = Column{Label: Label{name}, Values: make([]any, len(rows))}
	}
	for i, row := range rows {
		for j := range cols {
			if j < len(row) {
				cols[j].Values[i] = row[j]
			}
		}
	}
	return RawTable{Columns: cols}
}

// Len returns the number of rows. Short columns are padded with nulls.
func (t RawTable) Len() int {
	n := 0
	if t.Index != nil {
		n = len(t.Index.Values)
	}
	for _, c := range t.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// Names returns the column labels as strings.
func (t RawTable) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label.String()
	}
	return out
}

// Lookup returns the first single-level column named name.
func (t RawTable) Lookup(name string) (Column, bool) {
	if i := t.indexOf(name); i >= 0 {
		return t.Columns[i], true
	}
	return Column{}, false
}

func (t RawTable) indexOf(name string) int {
	for i, c := range t.Columns {
		if len(c.Label) == 1 && c.Label[0] == name {
			return i
		}
	}
	return -1
}

func (t RawTable) clone() RawTable {
	out := RawTable{Columns: make([]Column, len(t.Columns))}
	for i, c := range t.Columns {
		out.Columns[i] = Column{
			Label:  append(Label(nil), c.Label...),
			Values: append([]any(nil), c.Values...),
		}
	}
	if t.Index != nil {
		out.Index = &Index{Name: t.Index.Name, Values: append([]any(nil), t.Index.Values...)}
	}
	return out
}

func cell(c Column, i int) any {
	if i < len(c.Values) {
		return c.Values[i]
	}
	return nil
}

// Bar is one row of a normalized price table.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceTable holds bars sorted ascending by date. Every bar has a valid
// date and close.
type PriceTable struct {
	Bars []Bar
}

// Closes returns the close series.
func (p PriceTable) Closes() []float64 {
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume series.
func (p PriceTable) Volumes() []float64 {
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.Volume
	}
	return out
}

// Row is one trading day of model features.
type Row struct {
	Date    time.Time
	Close   float64
	Ret1    float64
	Ret3    float64
	Ret5    float64
	VolChg3 float64
	DOW     int
	// Y is the forward return; valid only when HasLabel is set.
	Y        float64
	HasLabel bool
}

// Vector returns the row's features in FeatureNames order.
func (r Row) Vector() []float64 {
	return []float64{r.Ret1, r.Ret3, r.Ret5, r.VolChg3, float64(r.DOW)}
}

// Table is the output of Build.
type Table struct {
	Rows    []Row
	Horizon int
	Mode    Mode
}

func (t Table) Len() int { return len(t.Rows) }

// X returns the feature matrix.
func (t Table) X() [][]float64 {
	out := make([][]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Vector()
	}
	return out
}

// Y returns the labels. Rows without a label contribute NaN.
func (t Table) Y() []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		if r.HasLabel {
			out[i] = r.Y
		} else {
			out[i] = nan
		}
	}
	return out
}

// Latest returns the most recent row.
func (t Table) Latest() (Row, bool) {
	if len(t.Rows) == 0 {
		return Row{}, false
	}
	return t.Rows[len(t.Rows)-1], true
}

// SplitAt splits rows in time order; the first part gets int(len*frac) rows.
func (t Table) SplitAt(frac float64) (Table, Table) {
	cut := int(float64(len(t.Rows)) * frac)
	if cut < 0 {
		cut = 0
	}
	if cut > len(t.Rows) {
		cut = len(t.Rows)
	}
	head := Table{Rows: t.Rows[:cut:cut], Horizon: t.Horizon, Mode: t.Mode}
	tail := Table{Rows: t.Rows[cut:], Horizon: t.Horizon, Mode: t.Mode}
	return head, tail
}
