package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// scrape-partition-publish pipeline.
type Metrics struct {
	ReportsScraped  *prometheus.CounterVec // labels: disaster
	ScrapeRequests  *prometheus.CounterVec // labels: disaster, outcome={data,empty,error}
	ReportsNoRegion prometheus.Counter

	DatasetsCreated  prometheus.Counter
	CountriesSkipped prometheus.Counter
	ArtifactsWritten *prometheus.CounterVec // labels: format={geojson,shp}

	ScrapeDuration prometheus.Histogram
	RunDuration    prometheus.Histogram

	PipelineRunning prometheus.Gauge
	LastRunSuccess  prometheus.Gauge // unix timestamp of the last fully successful run
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ReportsScraped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cesa_etl",
			Name:      "reports_scraped_total",
			Help:      "Total report features scraped, by disaster type.",
		}, []string{"disaster"}),
		ScrapeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cesa_etl",
			Name:      "scrape_requests_total",
			Help:      "Upstream API requests by disaster type and outcome.",
		}, []string{"disaster", "outcome"}),
		ReportsNoRegion: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cesa_etl",
			Name:      "reports_without_region_total",
			Help:      "Reports excluded from country partitions for lacking a region code.",
		}),
		DatasetsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cesa_etl",
			Name:      "datasets_created_total",
			Help:      "Country datasets assembled and published.",
		}),
		CountriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cesa_etl",
			Name:      "countries_skipped_total",
			Help:      "Countries skipped because their code could not be resolved.",
		}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cesa_etl",
			Name:      "artifacts_written_total",
			Help:      "Geospatial artifact files written, by format.",
		}, []string{"format"}),
		ScrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cesa_etl",
			Name:      "scrape_duration_seconds",
			Help:      "Duration of a full six-category scrape.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cesa_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete scrape-partition-publish run.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cesa_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cesa_etl",
			Name:      "last_run_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful run.",
		}),
	}

	prometheus.MustRegister(
		m.ReportsScraped,
		m.ScrapeRequests,
		m.ReportsNoRegion,
		m.DatasetsCreated,
		m.CountriesSkipped,
		m.ArtifactsWritten,
		m.ScrapeDuration,
		m.RunDuration,
		m.PipelineRunning,
		m.LastRunSuccess,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ReportsScraped:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "cesa_etl", Name: "reports_scraped_total"}, []string{"disaster"}),
		ScrapeRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "cesa_etl", Name: "scrape_requests_total"}, []string{"disaster", "outcome"}),
		ReportsNoRegion:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cesa_etl", Name: "reports_without_region_total"}),
		DatasetsCreated:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cesa_etl", Name: "datasets_created_total"}),
		CountriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "cesa_etl", Name: "countries_skipped_total"}),
		ArtifactsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "cesa_etl", Name: "artifacts_written_total"}, []string{"format"}),
		ScrapeDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "cesa_etl", Name: "scrape_duration_seconds"}),
		RunDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "cesa_etl", Name: "run_duration_seconds"}),
		PipelineRunning:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "cesa_etl", Name: "pipeline_running"}),
		LastRunSuccess:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "cesa_etl", Name: "last_run_success_timestamp_seconds"}),
	}
}
