package pipeline

import (
	"log/slog"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/cesa-global/disaster-reports-etl/internal/domain"
	"github.com/cesa-global/disaster-reports-etl/internal/observability"
)

// Partitioner splits scraped reports by country. The upstream API has no
// country filter or country-list endpoint, so both happen client-side.
type Partitioner struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPartitioner creates a Partitioner.
func NewPartitioner(logger *slog.Logger, metrics *observability.Metrics) *Partitioner {
	return &Partitioner{logger: logger, metrics: metrics}
}

// DiscoverCountries scans every feature in every category and returns the
// deduplicated country codes in first-seen order. Features without a
// resolvable region code are logged and excluded from every partition.
func (p *Partitioner) DiscoverCountries(reports domain.ReportCollection) []string {
	seen := make(map[string]bool)
	var countries []string

	for _, disasterType := range domain.DisasterTypes {
		fc, ok := reports[disasterType]
		if !ok {
			continue
		}
		for _, f := range fc.Features {
			iso2, ok := domain.CountryISO2(f)
			if !ok {
				p.metrics.ReportsNoRegion.Inc()
				p.logger.Warn("no country info for report",
					"disaster", disasterType, "pkey", f.Properties["pkey"])
				continue
			}
			if !seen[iso2] {
				seen[iso2] = true
				countries = append(countries, iso2)
			}
		}
	}
	return countries
}

// FilterCountry returns a new collection holding, for every scraped disaster
// type, only the features whose region code starts with the country code.
// Features are deep-copied; the input is never mutated. Unlike the scrape
// result, disaster types whose filtered result is empty stay present with an
// empty feature list, so callers must check before packaging.
func (p *Partitioner) FilterCountry(reports domain.ReportCollection, iso2 string) domain.ReportCollection {
	filtered := make(domain.ReportCollection, len(reports))
	for disasterType, fc := range reports {
		out := geojson.NewFeatureCollection()
		for _, f := range fc.Features {
			code, ok := domain.RegionCode(f)
			if !ok || !strings.HasPrefix(code, iso2) {
				continue
			}
			out.Append(domain.CloneFeature(f))
		}
		filtered[disasterType] = out
	}
	return filtered
}
