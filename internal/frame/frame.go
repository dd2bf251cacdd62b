// Package frame provides the tabular batch type carried through the upload pipeline.
package frame

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrRowWidth is returned when a row does not match the frame's column count.
var ErrRowWidth = errors.New("frame: row width does not match columns")

// Frame is an ordered set of rows over named columns.
// A nil cell is a missing value. Frames are treated as immutable once handed
// to a Metric; every transforming method returns a new Frame.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// New creates a Frame. Each row must have exactly len(columns) values.
func New(columns []string, rows ...[]any) (*Frame, error) {
	f := &Frame{
		columns: append([]string(nil), columns...),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range f.columns {
		if _, dup := f.index[c]; dup {
			return nil, fmt.Errorf("frame: duplicate column %q", c)
		}
		f.index[c] = i
	}
	for i, r := range rows {
		if len(r) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrRowWidth, i, len(r), len(columns))
		}
		f.rows = append(f.rows, append([]any(nil), r...))
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for tests and literals.
func MustNew(columns []string, rows ...[]any) *Frame {
	f, err := New(columns, rows...)
	if err != nil {
		panic(err)
	}
	return f
}

// Columns returns a copy of the column names.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.rows) }

// Has reports whether the frame carries the named column.
func (f *Frame) Has(column string) bool {
	_, ok := f.index[column]
	return ok
}

// Value returns the cell at row i for column, or nil if the column is absent.
func (f *Frame) Value(i int, column string) any {
	j, ok := f.index[column]
	if !ok {
		return nil
	}
	return f.rows[i][j]
}

// Row returns a copy of row i in the frame's column order.
func (f *Frame) Row(i int) []any {
	return append([]any(nil), f.rows[i]...)
}

// Concat returns a new Frame holding the rows of all frames in order.
// The result's columns are the union of the inputs' columns in first-seen
// order; cells for columns a source frame lacks are nil.
func Concat(frames ...*Frame) *Frame {
	out := &Frame{index: make(map[string]int)}
	for _, f := range frames {
		for _, c := range f.columns {
			if _, ok := out.index[c]; !ok {
				out.index[c] = len(out.columns)
				out.columns = append(out.columns, c)
			}
		}
	}
	for _, f := range frames {
		for _, r := range f.rows {
			row := make([]any, len(out.columns))
			for j, c := range f.columns {
				row[out.index[c]] = r[j]
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}

// WithConstant returns a copy of f with column set to value on every row.
// An existing column of the same name is overwritten.
func (f *Frame) WithConstant(column string, value any) *Frame {
	out := &Frame{
		columns: f.Columns(),
		index:   make(map[string]int, len(f.columns)+1),
	}
	for i, c := range out.columns {
		out.index[c] = i
	}
	j, ok := out.index[column]
	if !ok {
		j = len(out.columns)
		out.index[column] = j
		out.columns = append(out.columns, column)
	}
	for _, r := range f.rows {
		row := make([]any, len(out.columns))
		copy(row, r)
		row[j] = value
		out.rows = append(out.rows, row)
	}
	return out
}

// WriteDelimited writes the rows of f restricted to columns, without a header,
// using sep as the field separator. Missing columns and nil cells are written
// as empty strings. A field is quoted only when it contains sep, a double
// quote or a line break; embedded quotes are doubled.
func (f *Frame) WriteDelimited(w io.Writer, sep rune, columns []string) error {
	var b strings.Builder
	for _, r := range f.rows {
		b.Reset()
		for k, c := range columns {
			if k > 0 {
				b.WriteRune(sep)
			}
			if j, ok := f.index[c]; ok {
				writeField(&b, FormatValue(r[j]), sep)
			}
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return fmt.Errorf("frame: write row: %w", err)
		}
	}
	return nil
}

func writeField(b *strings.Builder, s string, sep rune) {
	if !strings.ContainsRune(s, sep) && !strings.ContainsAny(s, "\"\r\n") {
		b.WriteString(s)
		return
	}
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(s, `"`, `""`))
	b.WriteByte('"')
}

// TSV renders f restricted to columns as header-less tab-separated text.
func (f *Frame) TSV(columns []string) ([]byte, error) {
	var b strings.Builder
	if err := f.WriteDelimited(&b, '\t', columns); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// FormatValue renders a single cell.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
