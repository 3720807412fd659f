// Package gis converts filtered report collections into the geospatial
// artifact files attached to catalog datasets: a GeoJSON file and a zipped
// Shapefile per (country, disaster type) pair.
package gis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/cesa-global/disaster-reports-etl/internal/location"
)

// Artifact formats as the catalog expects them.
const (
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shp"
)

// Artifact is one packaged output file with the metadata the catalog needs.
type Artifact struct {
	Name        string
	Description string
	Format      string
	Path        string
}

// Packager writes artifact files into a shared working directory. Filenames
// are deterministic per (disaster, country), so runs for different countries
// must not overlap in the same directory.
type Packager struct {
	workDir string
	logger  *slog.Logger
}

// NewPackager creates a packager rooted at workDir.
func NewPackager(workDir string, logger *slog.Logger) *Packager {
	return &Packager{workDir: workDir, logger: logger}
}

// Package converts a country-filtered, non-empty collection into its two
// artifacts: {disaster}_reports_{iso3}.geojson and
// {disaster}_reports_{iso3}.shp.zip. Callers must skip empty collections;
// a zero-row artifact is never produced.
func (p *Packager) Package(fc *geojson.FeatureCollection, disasterType string, country location.Country) ([]Artifact, error) {
	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("no %s features for %s", disasterType, country.ISO2)
	}

	basename := fmt.Sprintf("%s_reports_%s", disasterType, strings.ToLower(country.ISO3))
	description := fmt.Sprintf("All current %s reports for %s", disasterType, country.Name)

	geojsonArtifact, err := p.writeGeoJSON(fc, basename, description)
	if err != nil {
		return nil, err
	}

	shapefileArtifact, err := p.writeShapefileArchive(fc, basename, description)
	if err != nil {
		return nil, err
	}

	return []Artifact{geojsonArtifact, shapefileArtifact}, nil
}

// writeGeoJSON writes the whole collection as a single GeoJSON file in the
// working directory.
func (p *Packager) writeGeoJSON(fc *geojson.FeatureCollection, basename, description string) (Artifact, error) {
	filename := basename + ".geojson"
	path := filepath.Join(p.workDir, filename)

	data, err := json.Marshal(fc)
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal %s: %w", filename, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write %s: %w", filename, err)
	}

	p.logger.Debug("wrote geojson artifact", "path", path, "features", len(fc.Features))
	return Artifact{
		Name:        filename,
		Description: description,
		Format:      FormatGeoJSON,
		Path:        path,
	}, nil
}

// attributeColumns returns the union of flattened property keys across all
// features, sorted so the tabular layout is reproducible between runs.
func attributeColumns(fc *geojson.FeatureCollection) []string {
	seen := make(map[string]struct{})
	for _, f := range fc.Features {
		for key := range f.Properties {
			seen[key] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	return columns
}
