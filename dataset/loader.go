package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	dateColumn = "Date"
	skuColumn  = "sku_id"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Load reads an engineered sales dataset from a CSV file.
func Load(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Read(file)
}

// Read parses a CSV dataset. The first row is the header; a leading
// unnamed index column is dropped. Columns whose non-empty values all
// parse as numbers become numeric, everything else categorical. Empty
// cells in numeric columns become NaN (zero-filled by the feature
// engineering step).
func Read(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, errors.New("empty header")
	}

	skip := -1
	if header[0] == "" || header[0] == "Unnamed: 0" {
		skip = 0
	}

	columns := make([][]string, len(header))
	n := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", n+1, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d: %d fields, header has %d", n+1, len(record), len(header))
		}
		for i, v := range record {
			columns[i] = append(columns[i], v)
		}
		n++
	}

	frame := NewFrame(n)
	for i, name := range header {
		if i == skip {
			continue
		}
		raw := columns[i]
		switch name {
		case dateColumn:
			dates, err := parseDates(raw)
			if err != nil {
				return nil, err
			}
			if err := frame.SetDates(dates); err != nil {
				return nil, err
			}
		case skuColumn:
			if err := frame.SetSKUs(raw); err != nil {
				return nil, err
			}
		default:
			if nums, ok := parseNumeric(raw); ok {
				if err := frame.SetNum(name, nums); err != nil {
					return nil, err
				}
			} else {
				if err := frame.SetCat(name, raw); err != nil {
					return nil, err
				}
			}
		}
	}

	if frame.Dates() == nil {
		return nil, errors.New("dataset has no Date column")
	}
	if frame.SKUs() == nil {
		return nil, errors.New("dataset has no sku_id column")
	}
	return frame, nil
}

// parseDates normalizes all values to midnight UTC so day arithmetic on
// split cutoffs is exact.
func parseDates(raw []string) ([]time.Time, error) {
	dates := make([]time.Time, len(raw))
	for i, v := range raw {
		parsed, err := parseDate(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		dates[i] = parsed
	}
	return dates, nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", v)
}

func parseNumeric(raw []string) ([]float64, bool) {
	nums := make([]float64, len(raw))
	for i, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			nums[i] = math.NaN()
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		nums[i] = parsed
	}
	return nums, true
}
