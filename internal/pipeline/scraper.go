package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/cesa-global/disaster-reports-etl/internal/domain"
	"github.com/cesa-global/disaster-reports-etl/internal/observability"
)

// ReportSource fetches one FeatureCollection of raw reports per disaster type.
type ReportSource interface {
	GetReports(ctx context.Context, disasterType string) (*geojson.FeatureCollection, error)
}

// Scraper queries the upstream API once per disaster type and normalizes the
// results.
type Scraper struct {
	source  ReportSource
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewScraper creates a Scraper over the given source.
func NewScraper(source ReportSource, logger *slog.Logger, metrics *observability.Metrics) *Scraper {
	return &Scraper{source: source, logger: logger, metrics: metrics}
}

// Scrape fetches every disaster type in the fixed enumeration order. Types
// that return zero features never appear in the result; downstream only
// creates resources for categories that have data. Transport failures
// propagate and abort the run.
func (s *Scraper) Scrape(ctx context.Context) (domain.ReportCollection, error) {
	s.logger.Info("scraping data")
	start := time.Now()
	defer func() { s.metrics.ScrapeDuration.Observe(time.Since(start).Seconds()) }()

	reports := make(domain.ReportCollection)
	for _, disasterType := range domain.DisasterTypes {
		fc, err := s.source.GetReports(ctx, disasterType)
		if err != nil {
			s.metrics.ScrapeRequests.WithLabelValues(disasterType, "error").Inc()
			return nil, err
		}

		if len(fc.Features) == 0 {
			s.metrics.ScrapeRequests.WithLabelValues(disasterType, "empty").Inc()
			s.logger.Info("no data", "disaster", disasterType)
			continue
		}

		if err := domain.NormalizeCollection(fc); err != nil {
			return nil, fmt.Errorf("scrape %s: %w", disasterType, err)
		}

		s.metrics.ScrapeRequests.WithLabelValues(disasterType, "data").Inc()
		s.metrics.ReportsScraped.WithLabelValues(disasterType).Add(float64(len(fc.Features)))
		s.logger.Info("found rows", "disaster", disasterType, "count", len(fc.Features))
		reports[disasterType] = fc
	}
	return reports, nil
}
