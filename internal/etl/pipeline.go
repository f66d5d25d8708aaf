// Package etl drives the day-by-day ingestion window: collect rows from every
// enabled source, normalize, embed in one batch per date and append to the
// vector store.
package etl

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opsmind/monchat/config"
	"github.com/opsmind/monchat/internal/embedding"
	"github.com/opsmind/monchat/internal/normalize"
	"github.com/opsmind/monchat/internal/source"
)

var (
	datesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monchat_etl_dates_processed_total",
		Help: "Dates for which documents were embedded and written.",
	})
	datesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monchat_etl_dates_skipped_total",
		Help: "Dates skipped because no enabled source had data.",
	})
	datesFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monchat_etl_dates_failed_total",
		Help: "Dates aborted by an embedding or write failure.",
	})
	documentsInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "monchat_etl_documents_inserted_total",
		Help: "Documents appended to the vector store.",
	})
)

// DocumentSink is the write side of the vector store as the pipeline sees it.
type DocumentSink interface {
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, source, content string, embedding []float32) error
}

// DateReport summarises one date of a run.
type DateReport struct {
	Date     string `json:"date"`
	Rows     int    `json:"rows"`
	Inserted int    `json:"inserted"`
	Skipped  bool   `json:"skipped"`
	Err      string `json:"error,omitempty"`
}

// Pipeline is the ETL orchestrator. Sink is nil when the vector backend is
// disabled; the pipeline then dumps each date's batch to DryRunDir instead.
type Pipeline struct {
	Sources   []source.Connector
	Embedder  embedding.Provider
	Sink      DocumentSink
	Days      int
	DryRunDir string
	Logger    *log.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewPipeline(cfg *config.Config, sources []source.Connector, embedder embedding.Provider, sink DocumentSink, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.Writer(), "[ETL] ", log.LstdFlags)
	}
	return &Pipeline{
		Sources:   sources,
		Embedder:  embedder,
		Sink:      sink,
		Days:      cfg.ETL.Days,
		DryRunDir: cfg.ETL.DryRunDir,
		Logger:    logger,
		now:       time.Now,
	}
}

// BuildSources assembles the connector set from config. The CSV export source
// replaces the oracle collectors when both are enabled; log sources are
// additive.
func BuildSources(cfg *config.Config, logger *log.Logger) []source.Connector {
	var sources []source.Connector
	switch {
	case cfg.MockDB.Enabled:
		sources = append(sources, source.NewCSVSource(cfg.MockDB.Dir))
	case cfg.Oracle.Enabled:
		sources = append(sources, source.NewOracleSource(cfg.Oracle, logger))
	}
	if cfg.Logs.WASEnabled {
		sources = append(sources, source.NewLogSource("was_log", cfg.Logs.WASDir, "middleware"))
	}
	if cfg.Logs.DBEnabled {
		sources = append(sources, source.NewLogSource("db_log", cfg.Logs.DBDir, "db"))
	}
	return sources
}

// DateRange yields the trailing window of date strings, most recent first,
// starting from (and including) the reference day.
func DateRange(from time.Time, days int) []string {
	if days <= 0 {
		days = 1
	}
	dates := make([]string, 0, days)
	day := from
	for i := 0; i < days; i++ {
		dates = append(dates, day.Format("20060102"))
		day = day.AddDate(0, 0, -1)
	}
	return dates
}

// Run executes one full window pass. Per-date failures are absorbed and
// reported; only schema bootstrap failure aborts the run.
func (p *Pipeline) Run(ctx context.Context) ([]DateReport, error) {
	runID := uuid.NewString()
	p.Logger.Printf("run %s starting (window %d days)", runID, p.Days)

	if p.Sink != nil {
		if err := p.Sink.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("schema bootstrap: %w", err)
		}
	}

	var reports []DateReport
	for _, date := range DateRange(p.now(), p.Days) {
		reports = append(reports, p.runDate(ctx, date))
	}

	p.Logger.Printf("run %s finished: %s", runID, summarize(reports))
	return reports, nil
}

func (p *Pipeline) runDate(ctx context.Context, date string) DateReport {
	report := DateReport{Date: date}

	var texts []string
	for _, src := range p.Sources {
		rows, err := src.Collect(ctx, date)
		if err != nil {
			// Connectors treat absent partitions as empty; anything else is
			// still only this date's problem.
			p.Logger.Printf("warn: %s collect %s: %v", src.Name(), date, err)
			continue
		}
		texts = append(texts, normalize.Texts(rows)...)
	}
	report.Rows = len(texts)

	// Sparse historical windows make this the common case, not an error.
	if len(texts) == 0 {
		report.Skipped = true
		datesSkipped.Inc()
		return report
	}

	vectors, err := p.Embedder.Embed(ctx, texts)
	if err != nil {
		if p.Sink == nil {
			// Dry runs stay observable even without a reachable provider.
			vectors = make([][]float32, len(texts))
		} else {
			report.Err = fmt.Sprintf("embed: %v", err)
			datesFailed.Inc()
			p.Logger.Printf("warn: date %s: %s", date, report.Err)
			return report
		}
	} else if len(vectors) != len(texts) {
		report.Err = fmt.Sprintf("embed: got %d vectors for %d texts", len(vectors), len(texts))
		datesFailed.Inc()
		p.Logger.Printf("warn: date %s: %s", date, report.Err)
		return report
	}

	if p.Sink == nil {
		if err := p.writeDryRun(date, texts, vectors); err != nil {
			report.Err = fmt.Sprintf("dry run: %v", err)
			datesFailed.Inc()
			p.Logger.Printf("warn: date %s: %s", date, report.Err)
			return report
		}
		report.Inserted = len(texts)
		datesProcessed.Inc()
		return report
	}

	for i, text := range texts {
		if err := p.Sink.Insert(ctx, date, text, vectors[i]); err != nil {
			// A dimension mismatch (or any write error) aborts this date's
			// batch; later dates still run.
			report.Err = fmt.Sprintf("insert: %v", err)
			datesFailed.Inc()
			p.Logger.Printf("warn: date %s: %s", date, report.Err)
			return report
		}
		report.Inserted++
		documentsInserted.Inc()
	}
	datesProcessed.Inc()
	return report
}

// writeDryRun persists one date's batch as JSONL so disabled-backend runs
// leave an inspectable trace. Vectors may be nil when embedding was
// unavailable.
func (p *Pipeline) writeDryRun(date string, texts []string, vectors [][]float32) error {
	dir := p.DryRunDir
	if dir == "" {
		dir = "etl_out"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("documents_%s.jsonl", date)))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for i, text := range texts {
		rec := struct {
			Source    string    `json:"source"`
			Content   string    `json:"content"`
			Embedding []float32 `json:"embedding"`
		}{Source: date, Content: text, Embedding: vectors[i]}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func summarize(reports []DateReport) string {
	var processed, skipped, failed, docs int
	for _, r := range reports {
		switch {
		case r.Err != "":
			failed++
		case r.Skipped:
			skipped++
		default:
			processed++
		}
		docs += r.Inserted
	}
	return fmt.Sprintf("%d processed, %d skipped, %d failed, %d documents", processed, skipped, failed, docs)
}
