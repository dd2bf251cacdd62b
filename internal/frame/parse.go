package frame

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadDelimited parses header-bearing delimited text into a Frame.
// Values are inferred as int64, float64, bool or string; empty cells become nil.
func ReadDelimited(r io.Reader, sep rune) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("frame: read header: empty input")
		}
		return nil, fmt.Errorf("frame: read header: %w", err)
	}

	var rows [][]any
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("frame: read line %d: %w", line, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrRowWidth, line, len(rec), len(header))
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			row[i] = inferValue(v)
		}
		rows = append(rows, row)
	}
	return New(header, rows...)
}

func inferValue(v string) any {
	if v == "" {
		return nil
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if strings.EqualFold(v, "true") {
		return true
	}
	if strings.EqualFold(v, "false") {
		return false
	}
	return v
}
