package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/services/features"
	applogger "WhyAgent/pkg/logger"
	"WhyAgent/pkg/util"
)

// indexColumnPrefix marks a serialized unnamed row index.
const indexColumnPrefix = "__index_level_"

// readBatch is the number of rows pulled per ReadRows call.
const readBatch = 512

// ParquetPriceStore keeps one parquet file per ticker under dir.
type ParquetPriceStore struct {
	dir   string
	l     *applogger.Logger
	locks sync.Map // ticker -> *sync.RWMutex
}

// NewParquetPriceStore creates a store rooted at dir (usually <base>/prices).
func NewParquetPriceStore(dir string, l *applogger.Logger) *ParquetPriceStore {
	if l == nil {
		l = applogger.NewNop()
	}
	return &ParquetPriceStore{dir: dir, l: l}
}

// Path is the file holding ticker's history.
func (s *ParquetPriceStore) Path(ticker string) string {
	return filepath.Join(s.dir, util.NormalizeTicker(ticker)+".parquet")
}

func (s *ParquetPriceStore) lock(ticker string) *sync.RWMutex {
	mu, _ := s.locks.LoadOrStore(strings.ToUpper(ticker), &sync.RWMutex{})
	return mu.(*sync.RWMutex)
}

type priceRecord struct {
	Date     time.Time `parquet:"date"`
	Open     float64   `parquet:"open"`
	High     float64   `parquet:"high"`
	Low      float64   `parquet:"low"`
	Close    float64   `parquet:"close"`
	AdjClose *float64  `parquet:"adj close,optional"`
	Volume   float64   `parquet:"volume"`
	Ticker   string    `parquet:"ticker"`
}

// Save replaces the ticker's file with history's bars. The write goes to a
// temp file first so readers never see a partial file.
func (s *ParquetPriceStore) Save(ctx context.Context, history *models.PriceHistory) error {
	if history.Empty() {
		return fmt.Errorf("save %s: %w", history.Ticker, models.ErrNoProviderData)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ticker := strings.ToUpper(history.Ticker)
	records := make([]priceRecord, len(history.Bars))
	for i, b := range history.Bars {
		records[i] = priceRecord{
			Date:     b.Date.UTC(),
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.AdjClose,
			Volume:   b.Volume,
			Ticker:   ticker,
		}
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create price dir: %w", err)
	}

	mu := s.lock(ticker)
	mu.Lock()
	defer mu.Unlock()

	path := s.Path(ticker)
	tmp := path + ".tmp"
	if err := parquet.WriteFile(tmp, records); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}

	s.l.Info("price file saved",
		applogger.String("ticker", ticker),
		applogger.String("source", history.Source),
		applogger.Int("rows", len(records)),
		applogger.String("path", path),
	)
	return nil
}

// Load reads the ticker's file into a raw table, keeping every column as stored.
func (s *ParquetPriceStore) Load(ctx context.Context, ticker string) (features.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return features.RawTable{}, err
	}

	mu := s.lock(ticker)
	mu.RLock()
	defer mu.RUnlock()

	path := s.Path(ticker)
	t, err := ReadParquetTable(path)
	if errors.Is(err, fs.ErrNotExist) {
		return features.RawTable{}, fmt.Errorf("%s: %w", path, models.ErrPricesNotFound)
	}
	return t, err
}

// ReadParquetTable decodes a flat parquet file of any column set.
func ReadParquetTable(path string) (features.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return features.RawTable{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return features.RawTable{}, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return features.RawTable{}, fmt.Errorf("open parquet %s: %w", path, err)
	}

	schema := pf.Schema()
	paths := schema.Columns()
	decoders := make([]func(parquet.Value) any, len(paths))
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = strings.Join(p, ".")
		leaf, ok := schema.Lookup(p...)
		if !ok {
			return features.RawTable{}, fmt.Errorf("parquet column %q not found", names[i])
		}
		decoders[i] = decoderFor(leaf.Node.Type())
	}

	values := make([][]any, len(paths))
	reader := parquet.NewReader(pf)
	defer reader.Close()

	buf := make([]parquet.Row, readBatch)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]any, len(paths))
			for _, v := range row {
				c := v.Column()
				if c >= 0 && c < len(cells) {
					cells[c] = decoders[c](v)
				}
			}
			for c := range cells {
				values[c] = append(values[c], cells[c])
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return features.RawTable{}, fmt.Errorf("read parquet %s: %w", path, err)
		}
		if n == 0 {
			break
		}
	}

	var t features.RawTable
	for i, name := range names {
		if strings.HasPrefix(name, indexColumnPrefix) && t.Index == nil {
			t.Index = &features.Index{Values: values[i]}
			continue
		}
		t.Columns = append(t.Columns, features.Column{Label: features.Label{name}, Values: values[i]})
	}
	return t, nil
}

// decoderFor maps a physical/logical parquet type to a Go cell decoder.
func decoderFor(typ parquet.Type) func(parquet.Value) any {
	lt := typ.LogicalType()
	kind := typ.Kind()

	if lt != nil && lt.Timestamp != nil {
		unit := lt.Timestamp.Unit
		return nullable(func(v parquet.Value) any {
			n := v.Int64()
			switch {
			case unit.Millis != nil:
				return time.UnixMilli(n).UTC()
			case unit.Micros != nil:
				return time.UnixMicro(n).UTC()
			default:
				return time.Unix(0, n).UTC()
			}
		})
	}
	if lt != nil && lt.Date != nil {
		return nullable(func(v parquet.Value) any {
			return time.Unix(int64(v.Int32())*86400, 0).UTC()
		})
	}

	switch kind {
	case parquet.Boolean:
		return nullable(func(v parquet.Value) any { return v.Boolean() })
	case parquet.Int32:
		return nullable(func(v parquet.Value) any { return int64(v.Int32()) })
	case parquet.Int64:
		return nullable(func(v parquet.Value) any { return v.Int64() })
	case parquet.Int96:
		return nullable(func(v parquet.Value) any { return int96Time(v) })
	case parquet.Float:
		return nullable(func(v parquet.Value) any { return float64(v.Float()) })
	case parquet.Double:
		return nullable(func(v parquet.Value) any { return v.Double() })
	default:
		return nullable(func(v parquet.Value) any { return string(v.ByteArray()) })
	}
}

func nullable(fn func(parquet.Value) any) func(parquet.Value) any {
	return func(v parquet.Value) any {
		if v.IsNull() {
			return nil
		}
		return fn(v)
	}
}

// int96Time decodes the legacy (nanos-of-day, julian day) timestamp encoding.
func int96Time(v parquet.Value) time.Time {
	i := v.Int96()
	nanos := int64(uint64(i[1])<<32 | uint64(i[0]))
	days := int64(i[2]) - julianUnixEpoch
	return time.Unix(days*86400, nanos).UTC()
}

const julianUnixEpoch = 2440588
