package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cifuentesedw/emergencias-etl/internal/domain"
	"github.com/cifuentesedw/emergencias-etl/internal/observability"
	"github.com/cifuentesedw/emergencias-etl/internal/schema"
)

// ErrEmptyEraExtract is fatal: a registered era delivered zero rows, which
// almost always means a corrupted or truncated source file.
var ErrEmptyEraExtract = errors.New("era extract contains no rows")

// Phase is the consolidator's position in its run lifecycle.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseDeduplicating
	PhaseUnifying
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseDeduplicating:
		return "deduplicating"
	case PhaseUnifying:
		return "unifying"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

// EraExtract is one era's raw rows, as delivered by the ingestion boundary.
type EraExtract struct {
	Era  domain.Era
	Rows [][]string
}

// Result is the pipeline's complete deliverable: the canonical table and
// its anomaly report. The two belong together — a table without its report
// is incomplete evidence of data quality.
type Result struct {
	Records    []domain.Record
	Dropped    []Dropped
	Report     *domain.Report
	StartedAt  time.Time
	FinishedAt time.Time
}

// Consolidator orchestrates the full run: a parallel load+resolve pass per
// era, a join, then global dedup and unify passes. The registry, directory,
// and normalizer are read-only shared state for the duration of a run.
type Consolidator struct {
	loader     *Loader
	unifier    *Unifier
	directory  *domain.Directory
	normalizer *domain.Normalizer
	logger     *slog.Logger
	metrics    *observability.Metrics
	workers    int
	phase      atomic.Int32
}

// New wires a Consolidator. workers caps the number of concurrent era
// tasks; values below 1 mean unbounded.
func New(registry *schema.Registry, directory *domain.Directory, normalizer *domain.Normalizer,
	logger *slog.Logger, metrics *observability.Metrics, workers int) *Consolidator {
	return &Consolidator{
		loader:     NewLoader(registry, normalizer),
		unifier:    NewUnifier(registry.UnifyRules()),
		directory:  directory,
		normalizer: normalizer,
		logger:     logger,
		metrics:    metrics,
		workers:    workers,
	}
}

// Phase returns the current lifecycle phase.
func (c *Consolidator) Phase() Phase {
	return Phase(c.phase.Load())
}

// Status returns the current phase as a string for the status endpoint.
func (c *Consolidator) Status() string {
	return c.Phase().String()
}

// CheckReadiness reports whether a run has started processing. Used by the
// HTTP readiness endpoint while long runs are scraped.
func (c *Consolidator) CheckReadiness(_ context.Context) error {
	if c.Phase() == PhaseIdle {
		return errors.New("consolidation run has not started")
	}
	return nil
}

// eraShard is one era task's private output, merged at the join point so
// the anomaly report never becomes a lock-contended collection.
type eraShard struct {
	records   []domain.Record
	anomalies []domain.Anomaly
}

// Run executes the full consolidation over all era extracts. Fatal errors
// (unknown era, empty extract) abort the run with no partial table; every
// recoverable deviation lands in the result's anomaly report instead.
func (c *Consolidator) Run(ctx context.Context, extracts []EraExtract) (Result, error) {
	started := domain.Now()
	c.metrics.PipelineRunning.Set(1)
	defer c.metrics.PipelineRunning.Set(0)

	sort.Slice(extracts, func(i, j int) bool { return extracts[i].Era < extracts[j].Era })

	if err := c.preflight(extracts); err != nil {
		return c.fail(err)
	}

	c.phase.Store(int32(PhaseLoading))
	shards := make([]eraShard, len(extracts))

	g, gctx := errgroup.WithContext(ctx)
	if c.workers > 0 {
		g.SetLimit(c.workers)
	}
	for i, extract := range extracts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shard, err := c.processEra(extract)
			if err != nil {
				return err
			}
			shards[i] = shard
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return c.fail(err)
	}

	// Join point: merge shards in chronological era order so the dedup
	// tie-break (first occurrence survives) stays deterministic.
	report := &domain.Report{}
	var records []domain.Record
	for _, shard := range shards {
		records = append(records, shard.records...)
		report.Append(shard.anomalies...)
	}

	c.phase.Store(int32(PhaseDeduplicating))
	kept, dropped, dedupAnomalies := Dedup(records, c.unifier.DerivedFields())
	report.Append(dedupAnomalies...)
	c.metrics.DuplicatesDropped.Add(float64(len(dropped)))
	c.logger.Info("deduplication complete", "kept", len(kept), "dropped", len(dropped))

	c.phase.Store(int32(PhaseUnifying))
	unified := make([]domain.Record, len(kept))
	for i, rec := range kept {
		out, anomalies := c.unifier.Unify(rec)
		unified[i] = out
		report.Append(anomalies...)
	}

	for kind, n := range report.CountByKind() {
		c.metrics.Anomalies.WithLabelValues(string(kind)).Add(float64(n))
	}
	c.metrics.RecordsConsolidated.Add(float64(len(unified)))
	c.metrics.Runs.WithLabelValues("succeeded").Inc()
	c.phase.Store(int32(PhaseDone))

	finished := domain.Now()
	c.logger.Info("consolidation complete",
		"eras", len(extracts),
		"records", len(unified),
		"anomalies", report.Len(),
		"duration", finished.Sub(started),
	)
	return Result{
		Records:    unified,
		Dropped:    dropped,
		Report:     report,
		StartedAt:  started,
		FinishedAt: finished,
	}, nil
}

// preflight validates the run's shape before any era task starts: every
// era must have a registered schema and a non-empty extract. Layouts are
// never guessed, and an empty extract where rows were expected likely
// means a corrupted source file.
func (c *Consolidator) preflight(extracts []EraExtract) error {
	for _, extract := range extracts {
		if _, err := c.loader.registry.SchemaFor(extract.Era); err != nil {
			return err
		}
		if len(extract.Rows) == 0 {
			return fmt.Errorf("%w: era %d", ErrEmptyEraExtract, extract.Era)
		}
	}
	return nil
}

// processEra runs one era's load and resolve passes into a private shard.
func (c *Consolidator) processEra(extract EraExtract) (eraShard, error) {
	start := time.Now()

	records, anomalies, err := c.loader.Load(extract.Era, extract.Rows)
	if err != nil {
		return eraShard{}, err
	}
	c.metrics.RecordsLoaded.Add(float64(len(records)))
	c.metrics.EraRecords.Observe(float64(len(records)))

	resolved := make([]domain.Record, len(records))
	outcomes := make(map[domain.ResolutionOutcome]int, 3)
	for i, rec := range records {
		out, resolution, resolveAnomalies := domain.ResolveCode(rec, c.directory, c.normalizer)
		resolved[i] = out
		outcomes[resolution.Outcome]++
		anomalies = append(anomalies, resolveAnomalies...)
	}

	c.metrics.EraLoadDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("era processed",
		"era", int(extract.Era),
		"records", len(resolved),
		"resolved", outcomes[domain.ResolvedUnique],
		"ambiguous", outcomes[domain.ResolvedAmbiguous],
		"unresolved", outcomes[domain.Unresolved],
		"anomalies", len(anomalies),
	)
	return eraShard{records: resolved, anomalies: anomalies}, nil
}

func (c *Consolidator) fail(err error) (Result, error) {
	c.phase.Store(int32(PhaseFailed))
	c.metrics.Runs.WithLabelValues("failed").Inc()
	c.logger.Error("consolidation failed", "error", err)
	return Result{}, err
}
