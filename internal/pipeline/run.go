package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cesa-global/disaster-reports-etl/internal/adapter/hdx"
	"github.com/cesa-global/disaster-reports-etl/internal/observability"
)

// Publisher pushes an assembled dataset to the catalog.
type Publisher interface {
	Upsert(ctx context.Context, ds hdx.Dataset, opts hdx.UpsertOptions) error
}

// DryRunPublisher logs datasets instead of publishing them.
type DryRunPublisher struct {
	Logger *slog.Logger
}

// Upsert logs the dataset and its resources without touching the catalog.
func (p *DryRunPublisher) Upsert(_ context.Context, ds hdx.Dataset, _ hdx.UpsertOptions) error {
	p.Logger.Info("dry run, skipping publish",
		"dataset", ds.Name, "resources", len(ds.Resources))
	return nil
}

// RunStatus is a snapshot of the most recent pipeline run.
type RunStatus struct {
	LastRunStart time.Time `json:"last_run_start"`
	LastRunEnd   time.Time `json:"last_run_end"`
	Succeeded    bool      `json:"succeeded"`
	Runs         uint64    `json:"runs"`
}

// Pipeline orchestrates the scrape-partition-assemble-publish run.
type Pipeline struct {
	scraper     *Scraper
	partitioner *Partitioner
	assembler   *Assembler
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	interval    time.Duration
	ready       atomic.Bool

	mu     sync.Mutex
	status RunStatus
}

// New creates a Pipeline with the given stages and observability. An interval
// of zero means single-run mode.
func New(s *Scraper, p *Partitioner, a *Assembler, pub Publisher, logger *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Pipeline {
	return &Pipeline{
		scraper:     s,
		partitioner: p,
		assembler:   a,
		publisher:   pub,
		logger:      logger,
		metrics:     metrics,
		interval:    interval,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one run,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Status returns a snapshot of the most recent run.
func (p *Pipeline) Status(_ context.Context) RunStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// RunOnce executes a single scrape-partition-assemble-publish cycle. Countries
// whose code cannot be resolved are skipped; any other failure aborts the run.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	batch := uuid.NewString()
	start := time.Now()
	p.logger.Info("run started", "batch", batch)

	err := p.run(ctx, batch)

	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	p.mu.Lock()
	p.status.LastRunStart = start
	p.status.LastRunEnd = time.Now()
	p.status.Succeeded = err == nil
	p.status.Runs++
	p.mu.Unlock()

	if err != nil {
		return err
	}
	p.metrics.LastRunSuccess.SetToCurrentTime()
	p.ready.Store(true)
	p.logger.Info("run finished", "batch", batch, "duration", time.Since(start))
	return nil
}

func (p *Pipeline) run(ctx context.Context, batch string) error {
	reports, err := p.scraper.Scrape(ctx)
	if err != nil {
		return fmt.Errorf("scrape reports: %w", err)
	}
	if len(reports) == 0 {
		p.logger.Warn("no reports in any category, nothing to publish", "batch", batch)
		return nil
	}

	countries := p.partitioner.DiscoverCountries(reports)
	p.logger.Info("discovered countries", "batch", batch, "count", len(countries))

	opts := hdx.UpsertOptions{
		RemoveAdditionalResources: true,
		MatchResourceOrder:        false,
		UpdatedByScript:           p.assembler.opts.Attribution,
		Batch:                     batch,
	}

	for _, iso2 := range countries {
		if err := ctx.Err(); err != nil {
			return err
		}

		filtered := p.partitioner.FilterCountry(reports, iso2)
		ds, err := p.assembler.BuildDataset(filtered, iso2)
		if err != nil {
			if errors.Is(err, ErrUnknownCountry) {
				p.metrics.CountriesSkipped.Inc()
				p.logger.Warn("skipping unresolvable country", "batch", batch, "code", iso2)
				continue
			}
			return fmt.Errorf("build dataset for %s: %w", iso2, err)
		}

		if err := p.publisher.Upsert(ctx, ds, opts); err != nil {
			return fmt.Errorf("publish dataset %s: %w", ds.Name, err)
		}
		p.metrics.DatasetsCreated.Inc()
	}
	return nil
}

// Run executes the pipeline on its interval until the context is cancelled.
// A failed run is logged and retried at the next tick rather than stopping
// the service.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for {
		if err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("pipeline stopping", "reason", ctx.Err())
				return nil
			}
			p.logger.Error("run failed", "error", err)
		}

		if !sleepWithContext(ctx, p.interval) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
