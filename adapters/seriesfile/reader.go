// Package seriesfile loads the tracked exchange-rate series from xlsx
// and csv files. Both formats reduce to the same string grid, so one
// reader handles both: the extension picks the decoder, everything after
// the header row is shared.
package seriesfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"ratecast/domain/core"
	"ratecast/domain/timeseries"
	"ratecast/ports"
)

// DefaultSheet is read when the config names no sheet.
const DefaultSheet = "Sheet1"

// Column names tried, in order, when the config does not pin them.
var (
	dateColumnCandidates  = []string{"date", "time", "timestamp", "day"}
	valueColumnCandidates = []string{"rate", "value", "close", "price", "level"}
)

// dateLayouts are tried in order against every date cell. Excelize and
// csv exports disagree on formatting, so the list is deliberately wide.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"2006/01/02",
	"02.01.2006",
	"Jan 2, 2006",
	"1/2/06 15:04",
}

// ReaderConfig pins the sheet and columns to read. Empty column names
// enable detection against the candidate lists.
type ReaderConfig struct {
	Sheet       string
	DateColumn  string
	ValueColumn string
}

// Reader implements ports.SeriesReader over xlsx and csv sources.
type Reader struct {
	sheet    string
	dateCol  string
	valueCol string
	log      zerolog.Logger
}

var _ ports.SeriesReader = (*Reader)(nil)

func NewReader(cfg ReaderConfig, log zerolog.Logger) *Reader {
	sheet := cfg.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Reader{
		sheet:    sheet,
		dateCol:  strings.TrimSpace(cfg.DateColumn),
		valueCol: strings.TrimSpace(cfg.ValueColumn),
		log:      log.With().Str("component", "seriesfile").Logger(),
	}
}

// Read loads source and returns a validated series. The file's row order
// is preserved: an out-of-order or duplicate date fails the read rather
// than being silently repaired.
func (r *Reader) Read(ctx context.Context, source string) (timeseries.Series, error) {
	if err := ctx.Err(); err != nil {
		return timeseries.Series{}, err
	}
	if source == "" {
		return timeseries.Series{}, core.NewConfigError("series.source", "no input file configured")
	}
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return timeseries.Series{}, fmt.Errorf("%w: %s", core.ErrSeriesNotFound, source)
		}
		return timeseries.Series{}, fmt.Errorf("series file %s: %w", source, err)
	}

	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(source)); ext {
	case ".csv":
		rows, err = r.readCSV(source)
	case ".xlsx", ".xlsm":
		rows, err = r.readExcel(source)
	default:
		return timeseries.Series{}, core.NewConfigError("series.source",
			fmt.Sprintf("unsupported file extension %q (want .csv or .xlsx)", ext))
	}
	if err != nil {
		return timeseries.Series{}, err
	}
	if len(rows) < 2 {
		return timeseries.Series{}, core.NewInsufficientDataError("series rows", 2, len(rows))
	}

	series, dropped, err := r.buildSeries(rows)
	if err != nil {
		return timeseries.Series{}, err
	}
	if dropped > 0 {
		r.log.Warn().
			Str("source", source).
			Int("dropped_rows", dropped).
			Msg("skipped rows with blank or unparseable cells")
	}
	r.log.Info().
		Str("source", source).
		Int("observations", series.Len()).
		Msg("series loaded")
	return series, nil
}

func (r *Reader) readExcel(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(r.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", r.sheet, err)
	}
	return rows, nil
}

func (r *Reader) readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // ragged exports are common, header decides
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return rows, nil
}

// buildSeries converts the string grid into a Series. Rows whose date or
// value cell is blank or unparseable are dropped and counted; ordering
// problems surface as errors from the series constructor.
func (r *Reader) buildSeries(rows [][]string) (timeseries.Series, int, error) {
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	dateIdx, err := r.resolveColumn(header, r.dateCol, dateColumnCandidates, "date")
	if err != nil {
		return timeseries.Series{}, 0, err
	}
	valueIdx, err := r.resolveColumn(header, r.valueCol, valueColumnCandidates, "value")
	if err != nil {
		return timeseries.Series{}, 0, err
	}

	points := make([]timeseries.Point, 0, len(rows)-1)
	dropped := 0
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if dateIdx >= len(row) || valueIdx >= len(row) {
			dropped++
			continue
		}
		rawDate := strings.TrimSpace(row[dateIdx])
		rawValue := strings.TrimSpace(row[valueIdx])
		if rawDate == "" || rawValue == "" {
			dropped++
			continue
		}

		when, ok := parseDate(rawDate)
		if !ok {
			dropped++
			r.log.Debug().Int("row", i+1).Str("cell", rawDate).Msg("unparseable date cell")
			continue
		}
		value, err := parseValue(rawValue)
		if err != nil {
			dropped++
			r.log.Debug().Int("row", i+1).Str("cell", rawValue).Msg("unparseable value cell")
			continue
		}

		points = append(points, timeseries.Point{Time: core.NewTimestamp(when), Value: value})
	}

	if len(points) == 0 {
		return timeseries.Series{}, dropped, fmt.Errorf(
			"no parseable observations in columns %q/%q", header[dateIdx], header[valueIdx])
	}
	series, err := timeseries.New(points)
	if err != nil {
		return timeseries.Series{}, dropped, fmt.Errorf("series index invalid: %w", err)
	}
	return series, dropped, nil
}

// resolveColumn finds the index of a configured column, or detects one
// from the candidate list when the config left it open.
func (r *Reader) resolveColumn(header []string, configured string, candidates []string, kind string) (int, error) {
	if configured != "" {
		for i, h := range header {
			if strings.EqualFold(h, configured) {
				return i, nil
			}
		}
		return 0, core.NewConfigError("series."+kind+"_column",
			fmt.Sprintf("column %q not present in header %v", configured, header))
	}
	for _, want := range candidates {
		for i, h := range header {
			if strings.EqualFold(h, want) {
				return i, nil
			}
		}
	}
	return 0, core.NewConfigError("series."+kind+"_column",
		fmt.Sprintf("no %s column detected in header %v (tried %v)", kind, header, candidates))
}

// parseDate tries the known layouts, then falls back to interpreting the
// cell as an Excel serial day number (exports sometimes strip the
// formatting and leave the raw serial behind).
func parseDate(cell string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cell); err == nil {
			return t, true
		}
	}
	if serial, err := strconv.ParseFloat(cell, 64); err == nil && serial > 20000 && serial < 80000 {
		epoch := time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
		days := int(serial)
		frac := serial - float64(days)
		return epoch.AddDate(0, 0, days).Add(time.Duration(frac * 24 * float64(time.Hour))), true
	}
	return time.Time{}, false
}

// parseValue accepts plain floats plus the thousands-separated form
// spreadsheets love to emit.
func parseValue(cell string) (float64, error) {
	cleaned := strings.ReplaceAll(cell, ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", cell)
	}
	return v, nil
}
