package features

const (
	// DefaultMinRows is the training floor on valid feature rows.
	DefaultMinRows = 30
	// DefaultHorizon is the label horizon in trading days.
	DefaultHorizon = 1
)

// Mode selects between the training and inference paths.
type Mode int

const (
	// ModeTraining requires a forward label on every row and enforces MinRows.
	ModeTraining Mode = iota
	// ModeInference keeps unlabeled trailing rows and has no row floor.
	ModeInference
)

func (m Mode) String() string {
	if m == ModeInference {
		return "inference"
	}
	return "training"
}

// Options control Build. Zero values take the package defaults.
type Options struct {
	Horizon     int
	Mode        Mode
	MinRows     int
	StrictDates bool
}

func (o Options) withDefaults() Options {
	if o.Horizon <= 0 {
		o.Horizon = DefaultHorizon
	}
	if o.MinRows <= 0 {
		o.MinRows = DefaultMinRows
	}
	return o
}

// Build runs the full pipeline: flatten columns, resolve the date, standardize
// prices and derive features.
func Build(raw RawTable, opts Options) (Table, error) {
	opts = opts.withDefaults()

	resolved, err := ResolveDate(FlattenColumns(raw), opts.StrictDates)
	if err != nil {
		return Table{}, err
	}
	prices, err := StandardizePrices(resolved)
	if err != nil {
		return Table{}, err
	}
	return Derive(prices, opts)
}

// BuildTraining is Build in training mode with the given horizon.
func BuildTraining(raw RawTable, horizon int) (Table, error) {
	return Build(raw, Options{Horizon: horizon, Mode: ModeTraining})
}

// BuildInference is Build in inference mode with the given horizon.
func BuildInference(raw RawTable, horizon int) (Table, error) {
	return Build(raw, Options{Horizon: horizon, Mode: ModeInference})
}

// Derive computes returns, volume change, day of week and the forward label
// over sorted bars, dropping rows where any of them is undefined.
func Derive(prices PriceTable, opts Options) (Table, error) {
	opts = opts.withDefaults()

	closes := prices.Closes()
	volumes := prices.Volumes()
	rows := make([]Row, 0, len(prices.Bars))

	for t, bar := range prices.Bars {
		ret1, ok1 := PctChange(closes, t, 1)
		ret3, ok3 := PctChange(closes, t, 3)
		ret5, ok5 := PctChange(closes, t, 5)
		vol3, okv := PctChange(volumes, t, 3)
		if !(ok1 && ok3 && ok5 && okv) {
			continue
		}
		y, hasY := ForwardChange(closes, t, opts.Horizon)
		if !hasY && opts.Mode == ModeTraining {
			continue
		}
		rows = append(rows, Row{
			Date:     bar.Date,
			Close:    bar.Close,
			Ret1:     ret1,
			Ret3:     ret3,
			Ret5:     ret5,
			VolChg3:  vol3,
			DOW:      DayOfWeek(bar.Date.Weekday()),
			Y:        y,
			HasLabel: hasY,
		})
	}

	if opts.Mode == ModeTraining && len(rows) < opts.MinRows {
		return Table{}, &InsufficientDataError{Rows: len(rows), Min: opts.MinRows}
	}
	return Table{Rows: rows, Horizon: opts.Horizon, Mode: opts.Mode}, nil
}
