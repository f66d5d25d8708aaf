package source

import "context"

// Field is one named column value, kept in source order so rendered text is
// stable across runs.
type Field struct {
	Name  string
	Value string
}

// Row is one raw record from a partitioned source before normalization.
// Relational and CSV rows carry ordered Fields; log rows carry a single Line.
type Row struct {
	Kind   string  // history, event_history, WAS_Event, DB_Event; empty for log lines
	Fields []Field // nil for log lines
	Line   string
}

// Connector answers "rows for date D" for one data source. A missing or
// unreachable partition yields an empty result, not an error.
type Connector interface {
	Name() string
	Collect(ctx context.Context, date string) ([]Row, error)
}
