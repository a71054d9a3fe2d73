package portability

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saadjs/bitelog/internal/errors"
	"github.com/saadjs/bitelog/internal/fsgateway"
	"github.com/saadjs/bitelog/internal/model"
)

// Row validation failures, in the order they are checked.
var (
	ErrInvalidFormat   = errors.New("invalid format")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidMealType = errors.New("invalid meal type")
	ErrInvalidNumeric  = errors.New("invalid number")
)

// DataError names the line and column of the first bad row in an import.
type DataError struct {
	// Line is the 1-based physical line; the header is line 1.
	Line   int
	Column string
	Kind   error
	Value  string
}

func (e *DataError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v: %s", e.Line, e.Kind, e.Value)
	}
	return fmt.Sprintf("line %d: %v in column %s: %q", e.Line, e.Kind, e.Column, e.Value)
}

func (e *DataError) Unwrap() error { return e.Kind }

// IsFormatError reports a structural problem: column count, date or meal
// type.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrInvalidFormat) || errors.Is(err, ErrInvalidDate) || errors.Is(err, ErrInvalidMealType)
}

func IsNumericError(err error) bool {
	return errors.Is(err, ErrInvalidNumeric)
}

type ImportMode string

const (
	// ImportModeRow commits each row on its own; rows before a bad row stay.
	ImportModeRow ImportMode = "row"
	// ImportModeAtomic validates the whole file and commits it at once.
	ImportModeAtomic ImportMode = "atomic"
)

func ParseImportMode(s string) (ImportMode, error) {
	switch m := ImportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ImportModeRow:
		return ImportModeRow, nil
	case ImportModeAtomic:
		return m, nil
	default:
		return "", errors.Errorf("unknown import mode %q (want row or atomic)", s)
	}
}

// LogSink stores imported entries.
type LogSink interface {
	InsertLogEntry(ctx context.Context, e model.LogEntry) error
	InsertLogEntries(ctx context.Context, entries []model.LogEntry) error
}

type ImportOptions struct {
	Mode ImportMode
	// BatchID tags every imported row; empty generates a new one.
	BatchID  string
	Progress ProgressFunc
}

type ImportResult struct {
	BatchID   string
	Imported  int
	Total     int
	Cancelled bool
}

// ImportCSV reads src and stores one standalone log entry per data row.
// The header decides the layout: the export header selects the
// eleven-column shape, anything else the legacy nine-column shape.
// Validation stops at the first bad row with a *DataError.
func ImportCSV(ctx context.Context, gw fsgateway.Gateway, src string, sink LogSink, opts ImportOptions) (ImportResult, error) {
	mode, err := ParseImportMode(string(opts.Mode))
	if err != nil {
		return ImportResult{}, err
	}
	res := ImportResult{BatchID: strings.TrimSpace(opts.BatchID)}
	if res.BatchID == "" {
		res.BatchID = uuid.NewString()
	}
	text, err := gw.ReadText(ctx, src)
	if isCancellation(err) {
		res.Cancelled = true
		return res, nil
	}
	if err != nil {
		return ImportResult{}, err
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return res, nil
	}
	layout := detectLayout(lines[0])
	rows := make([]numberedLine, 0, len(lines)-1)
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, numberedLine{num: i + 2, text: line})
	}
	res.Total = len(rows)

	if mode == ImportModeAtomic {
		err = importAtomic(ctx, rows, layout, sink, opts.Progress, &res)
	} else {
		err = importByRow(ctx, rows, layout, sink, opts.Progress, &res)
	}
	if err != nil {
		slog.Warn("import stopped", "path", src, "batch", res.BatchID, "imported", res.Imported, "error", err)
		return res, err
	}
	slog.Info("imported log entries", "path", src, "batch", res.BatchID, "mode", mode, "rows", res.Imported, "total", res.Total, "cancelled", res.Cancelled)
	return res, nil
}

type numberedLine struct {
	num  int
	text string
}

func importByRow(ctx context.Context, rows []numberedLine, layout rowLayout, sink LogSink, progress ProgressFunc, res *ImportResult) error {
	for i, row := range rows {
		if ctx.Err() != nil {
			res.Cancelled = true
			return nil
		}
		entry, err := layout.parse(row)
		if err != nil {
			return err
		}
		entry.ImportBatch = res.BatchID
		if err := sink.InsertLogEntry(ctx, entry); err != nil {
			if isCancellation(err) {
				res.Cancelled = true
				return nil
			}
			return errors.Wrapf(err, "store line %d", row.num)
		}
		res.Imported++
		if reportProgress(progress, i+1, len(rows)) {
			res.Cancelled = true
			return nil
		}
	}
	return nil
}

func importAtomic(ctx context.Context, rows []numberedLine, layout rowLayout, sink LogSink, progress ProgressFunc, res *ImportResult) error {
	entries := make([]model.LogEntry, 0, len(rows))
	for i, row := range rows {
		if ctx.Err() != nil {
			res.Cancelled = true
			return nil
		}
		entry, err := layout.parse(row)
		if err != nil {
			return err
		}
		entry.ImportBatch = res.BatchID
		entries = append(entries, entry)
		if reportProgress(progress, i+1, len(rows)) {
			res.Cancelled = true
			return nil
		}
	}
	if err := sink.InsertLogEntries(ctx, entries); err != nil {
		if isCancellation(err) {
			res.Cancelled = true
			return nil
		}
		return errors.Wrap(err, "store import batch")
	}
	res.Imported = len(entries)
	return nil
}

func reportProgress(progress ProgressFunc, current, total int) bool {
	if progress == nil {
		return false
	}
	return progress(Progress{Fraction: float64(current) / float64(total), Current: current, Total: total})
}

type rowLayout struct {
	columns []string
	// parseRow maps already counted fields to an entry.
	parseRow func(line int, fields []string, date time.Time, meal model.MealType) (model.LogEntry, error)
}

func detectLayout(header string) rowLayout {
	fields := parseLine(header)
	if len(fields) == len(ExportColumns) {
		match := true
		for i, f := range fields {
			if !strings.EqualFold(strings.TrimSpace(f), ExportColumns[i]) {
				match = false
				break
			}
		}
		if match {
			return rowLayout{columns: ExportColumns, parseRow: parseExportRow}
		}
	}
	return rowLayout{columns: LegacyColumns, parseRow: parseLegacyRow}
}

func (l rowLayout) parse(row numberedLine) (model.LogEntry, error) {
	fields := parseLine(row.text)
	if len(fields) != len(l.columns) {
		return model.LogEntry{}, &DataError{
			Line:  row.num,
			Kind:  ErrInvalidFormat,
			Value: fmt.Sprintf("got %d columns, want %d", len(fields), len(l.columns)),
		}
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(fields[0]), time.Local)
	if err != nil {
		return model.LogEntry{}, &DataError{Line: row.num, Column: l.columns[0], Kind: ErrInvalidDate, Value: fields[0]}
	}
	meal, err := model.ParseMealType(fields[1])
	if err != nil {
		return model.LogEntry{}, &DataError{Line: row.num, Column: l.columns[1], Kind: ErrInvalidMealType, Value: fields[1]}
	}
	return l.parseRow(row.num, fields, date, meal)
}

// date, meal_type, brand_name, product_name, portion, calories, carbs, fat, protein
func parseLegacyRow(line int, fields []string, date time.Time, meal model.MealType) (model.LogEntry, error) {
	nums, err := parseNumbers(line, fields, LegacyColumns, 5, 6, 7, 8)
	if err != nil {
		return model.LogEntry{}, err
	}
	return model.LogEntry{
		ConsumedAt: date,
		MealType:   meal,
		Servings:   1,
		Snapshot: model.NutritionSnapshot{
			Brand:       strings.TrimSpace(fields[2]),
			Product:     strings.TrimSpace(fields[3]),
			PortionSize: 1,
			PortionUnit: strings.TrimSpace(fields[4]),
			Calories:    nums[0],
			NetCarbsG:   nums[1],
			FatG:        nums[2],
			ProteinG:    nums[3],
		},
	}, nil
}

// date, meal_type, brand_name, product_name, calories, carbs, dietary_fiber,
// fat, protein, portion_amount, portion_unit
func parseExportRow(line int, fields []string, date time.Time, meal model.MealType) (model.LogEntry, error) {
	nums, err := parseNumbers(line, fields, ExportColumns, 4, 5, 6, 7, 8, 9)
	if err != nil {
		return model.LogEntry{}, err
	}
	calories, carbs, fiber, fat, protein, servings := nums[0], nums[1], nums[2], nums[3], nums[4], nums[5]
	if fiber > carbs {
		return model.LogEntry{}, &DataError{Line: line, Column: ExportColumns[6], Kind: ErrInvalidNumeric, Value: fields[6]}
	}
	if servings <= 0 {
		return model.LogEntry{}, &DataError{Line: line, Column: ExportColumns[9], Kind: ErrInvalidNumeric, Value: fields[9]}
	}
	return model.LogEntry{
		ConsumedAt: date,
		MealType:   meal,
		Servings:   servings,
		Snapshot: model.NutritionSnapshot{
			Brand:       strings.TrimSpace(fields[2]),
			Product:     strings.TrimSpace(fields[3]),
			PortionSize: 1,
			PortionUnit: strings.TrimSpace(fields[10]),
			Calories:    calories,
			NetCarbsG:   roundNano(carbs - fiber),
			FiberG:      fiber,
			FatG:        fat,
			ProteinG:    protein,
		},
	}, nil
}

// roundNano drops float noise from a subtraction of two exported values,
// so net carbs read back as they were written.
func roundNano(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// parseNumbers reads the numeric columns at idx after dropping stray
// quotes and commas. Values must be finite and non-negative.
func parseNumbers(line int, fields, columns []string, idx ...int) ([]float64, error) {
	out := make([]float64, len(idx))
	cleaner := strings.NewReplacer(`"`, "", ",", "")
	for i, col := range idx {
		raw := fields[col]
		v, err := strconv.ParseFloat(strings.TrimSpace(cleaner.Replace(raw)), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, &DataError{Line: line, Column: columns[col], Kind: ErrInvalidNumeric, Value: raw}
		}
		out[i] = v
	}
	return out, nil
}
