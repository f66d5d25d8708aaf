package etl

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opsmind/monchat/internal/source"
)

// fakeConnector serves canned rows per date.
type fakeConnector struct {
	name string
	rows map[string][]source.Row
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Collect(ctx context.Context, date string) ([]source.Row, error) {
	return f.rows[date], nil
}

// hashEmbedder echoes a deterministic vector per input and records calls.
type hashEmbedder struct {
	dim   int
	calls [][]string
	fail  bool
}

func (e *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	if e.fail {
		return nil, errors.New("provider down")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		vec := make([]float32, e.dim)
		for j := 0; j < e.dim; j++ {
			vec[j] = float32(sum[j%len(sum)])
		}
		out[i] = vec
	}
	return out, nil
}

// memorySink collects inserts; failOn aborts a specific source date.
type memorySink struct {
	docs    []struct{ Source, Content string }
	failOn  string
	ensured int
}

func (s *memorySink) EnsureSchema(ctx context.Context) error {
	s.ensured++
	return nil
}

func (s *memorySink) Insert(ctx context.Context, src, content string, embedding []float32) error {
	if s.failOn != "" && src == s.failOn {
		return errors.New("write refused")
	}
	s.docs = append(s.docs, struct{ Source, Content string }{src, content})
	return nil
}

func quietLogger() *log.Logger { return log.New(os.Stderr, "[ETL] ", log.LstdFlags) }

func fixedNow() time.Time {
	return time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
}

func newTestPipeline(sources []source.Connector, embedder *hashEmbedder, sink DocumentSink, days int) *Pipeline {
	return &Pipeline{
		Sources:  sources,
		Embedder: embedder,
		Sink:     sink,
		Days:     days,
		Logger:   quietLogger(),
		now:      fixedNow,
	}
}

func TestDateRange(t *testing.T) {
	dates := DateRange(fixedNow(), 3)
	want := []string{"20250110", "20250109", "20250108"}
	if len(dates) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(dates))
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Fatalf("date %d: got %s, want %s", i, dates[i], want[i])
		}
	}
}

func TestDateRangeCrossesMonthBoundary(t *testing.T) {
	dates := DateRange(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 2)
	if dates[0] != "20250301" || dates[1] != "20250228" {
		t.Fatalf("unexpected dates: %v", dates)
	}
}

func TestRunSkipsEmptyDates(t *testing.T) {
	conn := &fakeConnector{name: "fake", rows: map[string][]source.Row{
		"20250109": {{Line: "only this day has data"}},
	}}
	embedder := &hashEmbedder{dim: 4}
	sink := &memorySink{}

	reports, err := newTestPipeline([]source.Connector{conn}, embedder, sink, 3).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.ensured != 1 {
		t.Fatalf("expected one EnsureSchema call, got %d", sink.ensured)
	}
	// Exactly one embedding batch: empty dates issue no provider calls.
	if len(embedder.calls) != 1 {
		t.Fatalf("expected 1 embed call, got %d", len(embedder.calls))
	}
	if len(sink.docs) != 1 || sink.docs[0].Source != "20250109" {
		t.Fatalf("unexpected docs: %+v", sink.docs)
	}

	var skipped int
	for _, r := range reports {
		if r.Skipped {
			skipped++
		}
	}
	if skipped != 2 {
		t.Fatalf("expected 2 skipped dates, got %d", skipped)
	}
}

func TestRunMostRecentFirst(t *testing.T) {
	conn := &fakeConnector{name: "fake", rows: map[string][]source.Row{
		"20250110": {{Line: "today"}},
		"20250109": {{Line: "yesterday"}},
	}}
	embedder := &hashEmbedder{dim: 4}
	sink := &memorySink{}

	if _, err := newTestPipeline([]source.Connector{conn}, embedder, sink, 2).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.docs) != 2 || sink.docs[0].Source != "20250110" || sink.docs[1].Source != "20250109" {
		t.Fatalf("dates not processed most-recent-first: %+v", sink.docs)
	}
}

func TestRunIsolatesPerDateFailures(t *testing.T) {
	conn := &fakeConnector{name: "fake", rows: map[string][]source.Row{
		"20250110": {{Line: "will fail to write"}},
		"20250109": {{Line: "should still land"}},
	}}
	embedder := &hashEmbedder{dim: 4}
	sink := &memorySink{failOn: "20250110"}

	reports, err := newTestPipeline([]source.Connector{conn}, embedder, sink, 2).Run(context.Background())
	if err != nil {
		t.Fatalf("a failed date must not abort the run: %v", err)
	}
	if reports[0].Err == "" {
		t.Fatalf("expected error recorded for first date: %+v", reports[0])
	}
	if len(sink.docs) != 1 || sink.docs[0].Source != "20250109" {
		t.Fatalf("second date should still be written: %+v", sink.docs)
	}
}

func TestRunEmbedFailureSkipsDate(t *testing.T) {
	conn := &fakeConnector{name: "fake", rows: map[string][]source.Row{
		"20250110": {{Line: "data"}},
	}}
	embedder := &hashEmbedder{dim: 4, fail: true}
	sink := &memorySink{}

	reports, err := newTestPipeline([]source.Connector{conn}, embedder, sink, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reports[0].Err == "" || len(sink.docs) != 0 {
		t.Fatalf("embed failure should record error and write nothing: %+v %+v", reports[0], sink.docs)
	}
}

func TestRunNormalizesRows(t *testing.T) {
	conn := &fakeConnector{name: "fake", rows: map[string][]source.Row{
		"20250110": {
			{Kind: "history", Fields: []source.Field{{Name: "CPU_Usage", Value: "95"}}},
			{Line: "   "},
		},
	}}
	embedder := &hashEmbedder{dim: 4}
	sink := &memorySink{}

	if _, err := newTestPipeline([]source.Connector{conn}, embedder, sink, 1).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.docs) != 1 {
		t.Fatalf("blank line should be dropped, got %d docs", len(sink.docs))
	}
	if sink.docs[0].Content != "type=history CPU_Usage=95" {
		t.Fatalf("unexpected normalized content: %q", sink.docs[0].Content)
	}
}

func TestRunDryRunWithoutSink(t *testing.T) {
	dir := t.TempDir()
	conn := &fakeConnector{name: "fake", rows: map[string][]source.Row{
		"20250110": {{Line: "dry run line"}},
	}}
	embedder := &hashEmbedder{dim: 4}

	p := newTestPipeline([]source.Connector{conn}, embedder, nil, 1)
	p.DryRunDir = dir

	reports, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reports[0].Inserted != 1 {
		t.Fatalf("expected 1 dry-run record, got %+v", reports[0])
	}

	f, err := os.Open(filepath.Join(dir, "documents_20250110.jsonl"))
	if err != nil {
		t.Fatalf("dry run file missing: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("dry run file empty")
	}
	line := scanner.Text()
	if !strings.Contains(line, `"source":"20250110"`) || !strings.Contains(line, "dry run line") {
		t.Fatalf("unexpected dry run record: %s", line)
	}
}

func TestRunDryRunSurvivesEmbedFailure(t *testing.T) {
	dir := t.TempDir()
	conn := &fakeConnector{name: "fake", rows: map[string][]source.Row{
		"20250110": {{Line: "observable without provider"}},
	}}
	embedder := &hashEmbedder{dim: 4, fail: true}

	p := newTestPipeline([]source.Connector{conn}, embedder, nil, 1)
	p.DryRunDir = dir

	reports, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reports[0].Err != "" || reports[0].Inserted != 1 {
		t.Fatalf("dry run should absorb embed failure: %+v", reports[0])
	}
	data, err := os.ReadFile(filepath.Join(dir, "documents_20250110.jsonl"))
	if err != nil {
		t.Fatalf("dry run file missing: %v", err)
	}
	if !strings.Contains(string(data), `"embedding":null`) {
		t.Fatalf("expected absent embedding marker, got %s", data)
	}
}

func TestSummarize(t *testing.T) {
	reports := []DateReport{
		{Date: "20250110", Inserted: 3},
		{Date: "20250109", Skipped: true},
		{Date: "20250108", Err: "boom"},
	}
	got := summarize(reports)
	want := fmt.Sprintf("%d processed, %d skipped, %d failed, %d documents", 1, 1, 1, 3)
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
