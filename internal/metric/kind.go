package metric

import (
	"fmt"
	"sort"
)

// Kind discriminates metric schemas. The router coalesces batches by Kind.
type Kind string

// Built-in metric kinds.
const (
	KindMetric       Kind = "metric"
	KindAggregate    Kind = "aggregate"
	KindHistogram    Kind = "histogram"
	KindEvent        Kind = "event"
	KindDistribution Kind = "distribution"
)

// Dtype is the semantic scalar type of a column.
type Dtype string

// Column dtypes. The string values are written into local artifact headers.
const (
	Int64   Dtype = "int64"
	Float64 Dtype = "float64"
	String  Dtype = "str"
	Bool    Dtype = "bool"
)

// Schema is the ordered column layout of a metric kind.
type Schema struct {
	Columns []string
	Dtypes  map[string]Dtype
}

func schema(cols ...any) Schema {
	s := Schema{Dtypes: make(map[string]Dtype, len(cols)/2)}
	for i := 0; i < len(cols); i += 2 {
		name := cols[i].(string)
		s.Columns = append(s.Columns, name)
		s.Dtypes[name] = cols[i+1].(Dtype)
	}
	return s
}

var schemas = map[Kind]Schema{
	KindMetric: schema("ts", Int64, "value", Float64),
	KindEvent:  schema("ts", Int64, "value", String),
	KindHistogram: schema(
		"ts", Int64,
		"category", String,
		"cnt", Int64,
	),
	KindAggregate: schema(
		"ts", Int64,
		"q0", Float64, "q10", Float64, "q25", Float64, "q50", Float64,
		"q75", Float64, "q80", Float64, "q85", Float64, "q90", Float64,
		"q95", Float64, "q98", Float64, "q99", Float64, "q100", Float64,
		"avg", Float64,
		"stddev", Float64,
		"cnt", Int64,
	),
	KindDistribution: schema(
		"ts", Int64,
		"l", Int64,
		"r", Int64,
		"cnt", Int64,
	),
}

// Kinds returns the built-in kinds in lexical order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(schemas))
	for k := range schemas {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SchemaFor returns a copy of the schema for kind.
func SchemaFor(kind Kind) (Schema, error) {
	s, ok := schemas[kind]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	out := Schema{
		Columns: append([]string(nil), s.Columns...),
		Dtypes:  make(map[string]Dtype, len(s.Dtypes)),
	}
	for k, v := range s.Dtypes {
		out.Dtypes[k] = v
	}
	return out, nil
}
