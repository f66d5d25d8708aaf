package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// csvKinds maps CSV export file kinds to the type tag rendered into the
// normalized text.
var csvKinds = []struct {
	File string
	Tag  string
}{
	{"history", "history"},
	{"event_history", "event_history"},
	{"was_event", "WAS_Event"},
	{"db_event", "DB_Event"},
}

// CSVSource collects daily CSV exports ({kind}_{YYYYMMDD}.csv with a header
// row) from a local directory. It stands in for the relational source in
// deployments without Oracle access.
type CSVSource struct {
	dir string
}

func NewCSVSource(dir string) *CSVSource { return &CSVSource{dir: dir} }

func (s *CSVSource) Name() string { return "mockdb" }

func (s *CSVSource) Collect(ctx context.Context, date string) ([]Row, error) {
	var rows []Row
	for _, k := range csvKinds {
		rows = append(rows, ReadCSVPartition(s.dir, k.File, k.Tag, date)...)
	}
	return rows, nil
}

// ReadCSVPartition parses one daily CSV export into rows tagged with kindTag.
// A missing file or malformed content yields an empty result.
func ReadCSVPartition(dir, kind, kindTag, date string) []Row {
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", kind, date))
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate short rows; missing cells render empty
	records, err := r.ReadAll()
	if err != nil || len(records) < 2 {
		return nil
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		fields := make([]Field, len(header))
		for i, name := range header {
			var val string
			if i < len(rec) {
				val = rec[i]
			}
			fields[i] = Field{Name: name, Value: val}
		}
		rows = append(rows, Row{Kind: kindTag, Fields: fields})
	}
	return rows
}
