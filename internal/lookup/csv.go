package lookup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"etf-chunk-lab/internal/domain"
)

// DateLayout is the calendar date format of CSV price files.
const DateLayout = "2006-01-02"

// ErrMalformedCSV is returned when a price row cannot be parsed.
var ErrMalformedCSV = errors.New("malformed price csv")

// LoadCSV reads price bars from rows of symbol,date,open,high,low,close[,volume].
// A leading header row starting with "symbol" is skipped.
func LoadCSV(r io.Reader) ([]*domain.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var bars []*domain.PriceBar
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read price csv: %w", err)
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "symbol") {
			continue
		}
		if len(record) < 6 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformedCSV, line, len(record))
		}

		bar, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

func parseRecord(record []string) (*domain.PriceBar, error) {
	symbol := strings.TrimSpace(record[0])
	if symbol == "" {
		return nil, errors.New("empty symbol")
	}

	date, err := time.Parse(DateLayout, strings.TrimSpace(record[1]))
	if err != nil {
		return nil, fmt.Errorf("parse date: %w", err)
	}

	values := make([]float64, 5)
	for i := 0; i < 5; i++ {
		idx := i + 2
		if idx >= len(record) || strings.TrimSpace(record[idx]) == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse column %d: %w", idx+1, err)
		}
		values[i] = v
	}

	return &domain.PriceBar{
		Symbol: symbol,
		Date:   date.UTC(),
		Open:   values[0],
		High:   values[1],
		Low:    values[2],
		Close:  values[3],
		Volume: values[4],
	}, nil
}
