package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"amm-curve-lab/internal/domain"
	"amm-curve-lab/internal/projection"
)

// ErrMissingColumn is returned when a file lacks a required header.
var ErrMissingColumn = errors.New("missing column")

// LoadPrices reads (timestamp|height, price) rows from paths in order.
func LoadPrices(paths []string, seriesID string) ([]*domain.PricePoint, error) {
	var result []*domain.PricePoint
	err := readAll(paths, "price", func(ts int64, v float64) {
		result = append(result, &domain.PricePoint{SeriesID: seriesID, Timestamp: ts, Price: v})
	})
	return result, err
}

// LoadRates reads (timestamp|height, rate) rows from paths in order.
func LoadRates(paths []string, seriesID string) ([]*domain.RatePoint, error) {
	var result []*domain.RatePoint
	err := readAll(paths, "rate", func(ts int64, v float64) {
		result = append(result, &domain.RatePoint{SeriesID: seriesID, Timestamp: ts, Rate: v})
	})
	return result, err
}

func readAll(paths []string, column string, emit func(int64, float64)) error {
	for _, path := range paths {
		if err := readFile(path, column, emit); err != nil {
			return err
		}
	}
	return nil
}

// readFile reads one CSV file. Rows with an empty value are skipped. A file
// without a timestamp column may carry block heights instead.
func readFile(path, column string, emit func(int64, float64)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header %s: %w", path, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	valueCol, ok := cols[column]
	if !ok {
		return fmt.Errorf("%s: %w %q", path, ErrMissingColumn, column)
	}
	timeCol, fromHeight := cols["timestamp"], false
	if _, ok := cols["timestamp"]; !ok {
		if timeCol, ok = cols["height"]; !ok {
			return fmt.Errorf("%s: %w \"timestamp\"", path, ErrMissingColumn)
		}
		fromHeight = true
	}

	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if rec[valueCol] == "" {
			continue
		}
		ts, err := strconv.ParseInt(rec[timeCol], 10, 64)
		if err != nil {
			return fmt.Errorf("%s:%d: parse time: %w", path, line, err)
		}
		if fromHeight {
			ts = projection.HeightToTimestamp(ts)
		}
		v, err := strconv.ParseFloat(rec[valueCol], 64)
		if err != nil {
			return fmt.Errorf("%s:%d: parse %s: %w", path, line, column, err)
		}
		emit(ts, v)
	}
}
