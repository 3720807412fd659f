package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gosimple/slug"

	"github.com/cesa-global/disaster-reports-etl/internal/adapter/hdx"
	"github.com/cesa-global/disaster-reports-etl/internal/domain"
	"github.com/cesa-global/disaster-reports-etl/internal/gis"
	"github.com/cesa-global/disaster-reports-etl/internal/location"
	"github.com/cesa-global/disaster-reports-etl/internal/observability"
)

// ErrUnknownCountry means a discovered country code could not be resolved to
// an ISO3 code and name. The country is skipped, not fatal to the run.
var ErrUnknownCountry = errors.New("unknown country code")

// disasterTags maps disaster types to approved catalog vocabulary tags.
// Types without a vocabulary mapping contribute no tag.
var disasterTags = map[string]string{
	"flood":      "flooding-storm surge",
	"earthquake": "earthquake-tsunami",
}

// DatasetOptions carries the catalog metadata applied to every dataset.
type DatasetOptions struct {
	Maintainer      string
	Organization    string
	UpdateFrequency string
	Notes           string
	FixedTags       []string
	// Attribution is recorded on the catalog as the updating script.
	Attribution string
}

// Assembler turns one country's partitioned reports into a catalog dataset
// with GeoJSON and zipped shapefile resources per disaster type.
type Assembler struct {
	packager *gis.Packager
	opts     DatasetOptions
	tags     []string
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewAssembler creates an Assembler.
func NewAssembler(packager *gis.Packager, opts DatasetOptions, logger *slog.Logger, metrics *observability.Metrics) *Assembler {
	return &Assembler{
		packager: packager,
		opts:     opts,
		tags:     datasetTags(opts.FixedTags, logger),
		logger:   logger,
		metrics:  metrics,
	}
}

// datasetTags builds the tag list every dataset carries: the vocabulary
// mapping of each disaster type, then the fixed tags, deduplicated in order.
func datasetTags(fixed []string, logger *slog.Logger) []string {
	seen := make(map[string]bool)
	var tags []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}

	for _, disasterType := range domain.DisasterTypes {
		mapped, ok := disasterTags[disasterType]
		if !ok {
			logger.Debug("disaster type has no vocabulary tag", "disaster", disasterType)
			continue
		}
		add(mapped)
	}
	for _, t := range fixed {
		add(t)
	}
	return tags
}

// BuildDataset assembles the dataset for one country, writing artifact files
// through the packager. Returns ErrUnknownCountry when iso2 cannot be
// resolved. Resources follow the fixed disaster-type order, GeoJSON before
// shapefile within each type.
func (a *Assembler) BuildDataset(reports domain.ReportCollection, iso2 string) (hdx.Dataset, error) {
	country, ok := location.Resolve(iso2)
	if !ok {
		return hdx.Dataset{}, fmt.Errorf("resolve %q: %w", iso2, ErrUnknownCountry)
	}

	end := domain.Now()
	ds := hdx.Dataset{
		Name:            slug.Make("CESA Disaster Reports for " + country.ISO3),
		Title:           fmt.Sprintf("%s: CESA Disaster Reports", country.Name),
		Notes:           a.opts.Notes,
		Maintainer:      a.opts.Maintainer,
		Organization:    a.opts.Organization,
		UpdateFrequency: a.opts.UpdateFrequency,
		Subnational:     true,
		TimePeriodStart: end.Add(-domain.ReportWindow),
		TimePeriodEnd:   end,
		Tags:            a.tags,
		Locations:       []string{country.ISO3},
	}

	for _, disasterType := range domain.DisasterTypes {
		fc, ok := reports[disasterType]
		if !ok || len(fc.Features) == 0 {
			continue
		}
		artifacts, err := a.packager.Package(fc, disasterType, country)
		if err != nil {
			return hdx.Dataset{}, fmt.Errorf("package %s reports for %s: %w", disasterType, country.ISO3, err)
		}
		for _, art := range artifacts {
			a.metrics.ArtifactsWritten.WithLabelValues(art.Format).Inc()
			ds.Resources = append(ds.Resources, hdx.Resource{
				Name:        art.Name,
				Description: art.Description,
				Format:      art.Format,
				UploadPath:  art.Path,
			})
		}
	}

	a.logger.Info("assembled dataset",
		"country", country.ISO3, "name", ds.Name, "resources", len(ds.Resources))
	return ds, nil
}
