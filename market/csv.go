package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// CsvBarDTO is one row of a bar CSV file:
//
//	time,open,high,low,close,volume
//
// time is RFC3339, "2006-01-02 15:04:05" or "2006-01-02" (local times are KST).
type CsvBarDTO struct {
	Timestamp string  `csv:"time"`
	Open      float64 `csv:"open"`
	High      float64 `csv:"high"`
	Low       float64 `csv:"low"`
	Close     float64 `csv:"close"`
	Volume    int64   `csv:"volume"`
}

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"20060102",
}

// ParseTime parses a timestamp in any accepted CSV layout. Layouts without a
// zone are read as KST.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range csvTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, KST); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", s)
}

// ParseRangeEnd parses the inclusive end of a date range. A value without a
// time of day covers that whole KST day, so intraday bars of the last day are
// kept.
func ParseRangeEnd(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if d, err := time.ParseInLocation(layout, s, KST); err == nil {
			return d.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
	}
	return ParseTime(s)
}

func (c *CsvBarDTO) ToModel() (Bar, error) {
	t, err := ParseTime(c.Timestamp)
	if err != nil {
		return Bar{}, err
	}
	return Bar{
		Time:   t,
		Open:   c.Open,
		High:   c.High,
		Low:    c.Low,
		Close:  c.Close,
		Volume: c.Volume,
	}, nil
}

// ReadCSV decodes and validates a bar series.
func ReadCSV(r io.Reader, symbol string, tf Timeframe) (*Series, error) {
	var rows []*CsvBarDTO
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}

	bars := make([]Bar, 0, len(rows))
	for i, row := range rows {
		b, err := row.ToModel()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		bars = append(bars, b)
	}
	return NewSeries(symbol, tf, bars)
}

// LoadCSV reads a bar CSV file from disk.
func LoadCSV(path, symbol string, tf Timeframe) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadCSV(f, symbol, tf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// WriteCSV encodes a series in the same layout ReadCSV accepts.
func WriteCSV(w io.Writer, s *Series) error {
	rows := make([]*CsvBarDTO, len(s.Bars))
	layout := time.RFC3339
	if s.Timeframe == Daily {
		layout = "2006-01-02"
	}
	for i, b := range s.Bars {
		rows[i] = &CsvBarDTO{
			Timestamp: b.Time.In(KST).Format(layout),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	return gocsv.Marshal(&rows, w)
}
