package store

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azmorus/GPTScreener/internal/models"
)

var csvDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Candles []models.Candle
	Skipped int
}

// ParseCandlesCSV reads candles from CSV with columns date, open, high, low,
// close and an optional volume. A header row, detected by a non-date first
// cell, is skipped. Rows that fail to parse are counted, not fatal. A file
// holding only date and close columns is accepted, with open, high and low set
// to the close. Candles are returned oldest first whatever the row order.
func ParseCandlesCSV(r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	res := &ImportResult{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line+1, err)
		}
		line++

		if len(record) == 0 {
			continue
		}
		ts, ok := parseCSVDate(record[0])
		if !ok {
			if line > 1 {
				res.Skipped++
			}
			continue
		}

		c, ok := candleFromRecord(ts, record[1:])
		if !ok {
			res.Skipped++
			continue
		}
		res.Candles = append(res.Candles, c)
	}

	sort.SliceStable(res.Candles, func(i, j int) bool {
		return res.Candles[i].Timestamp.Before(res.Candles[j].Timestamp)
	})
	return res, nil
}

func candleFromRecord(ts time.Time, fields []string) (models.Candle, bool) {
	nums := make([]float64, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(strings.TrimSpace(f), ",", "")
		if f == "" {
			return models.Candle{}, false
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return models.Candle{}, false
		}
		nums = append(nums, v)
	}

	c := models.Candle{Timestamp: ts}
	switch {
	case len(nums) == 1:
		c.Open, c.High, c.Low, c.Close = nums[0], nums[0], nums[0], nums[0]
	case len(nums) >= 4:
		c.Open, c.High, c.Low, c.Close = nums[0], nums[1], nums[2], nums[3]
		if len(nums) >= 5 {
			c.Volume = int64(nums[4])
		}
	default:
		return models.Candle{}, false
	}
	return c, true
}

func parseCSVDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range csvDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
