package gis

import (
	"archive/zip"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesa-global/disaster-reports-etl/internal/location"
)

var indonesia = location.Country{ISO2: "ID", ISO3: "IDN", Name: "Indonesia"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reportCollection(n int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < n; i++ {
		f := geojson.NewFeature(orb.Point{106.82 + float64(i), -6.17})
		f.Properties = map[string]any{
			"pkey":                      "35718" + string(rune('0'+i)),
			"disaster_type":             "flood",
			"tags-instance_region_code": "ID-JK",
			"tags-district_id":          nil,
			"report_data-flood_depth":   float64(50 + i),
		}
		fc.Append(f)
	}
	return fc
}

func TestPackage(t *testing.T) {
	workDir := t.TempDir()
	p := NewPackager(workDir, discardLogger())

	artifacts, err := p.Package(reportCollection(2), "flood", indonesia)
	require.NoError(t, err)
	require.Len(t, artifacts, 2)

	geo, shape := artifacts[0], artifacts[1]

	assert.Equal(t, "flood_reports_idn.geojson", geo.Name)
	assert.Equal(t, FormatGeoJSON, geo.Format)
	assert.Equal(t, "All current flood reports for Indonesia", geo.Description)
	assert.Equal(t, filepath.Join(workDir, "flood_reports_idn.geojson"), geo.Path)

	assert.Equal(t, "flood_reports_idn.shp.zip", shape.Name)
	assert.Equal(t, FormatShapefile, shape.Format)
	assert.Equal(t, "All current flood reports for Indonesia", shape.Description)
	assert.Equal(t, filepath.Join(workDir, "flood_reports_idn.shp.zip"), shape.Path)
}

func TestPackage_GeoJSONRoundTrip(t *testing.T) {
	p := NewPackager(t.TempDir(), discardLogger())

	artifacts, err := p.Package(reportCollection(3), "earthquake", indonesia)
	require.NoError(t, err)

	data, err := os.ReadFile(artifacts[0].Path)
	require.NoError(t, err)

	var decoded geojson.FeatureCollection
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Features, 3)
	assert.Equal(t, "ID-JK", decoded.Features[0].Properties["tags-instance_region_code"])
}

func TestPackage_ArchiveIsFlat(t *testing.T) {
	p := NewPackager(t.TempDir(), discardLogger())

	artifacts, err := p.Package(reportCollection(1), "wind", indonesia)
	require.NoError(t, err)

	zr, err := zip.OpenReader(artifacts[1].Path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		assert.NotContains(t, f.Name, "/", "archive entries must be flat")
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "wind_reports_idn.shp")
	assert.Contains(t, names, "wind_reports_idn.shx")
	assert.Contains(t, names, "wind_reports_idn.dbf")
	assert.Contains(t, names, "wind_reports_idn.prj")
	assert.Contains(t, names, "wind_reports_idn.cpg")
}

func TestWriteShapefile_ComponentNames(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "flood_reports_idn")

	require.NoError(t, writeShapefile(reportCollection(2), base))

	// Every component must share the base name with a dotted extension; in
	// particular the attribute table must not end up as {base}dbf.
	for _, ext := range []string{".shp", ".shx", ".dbf", ".prj", ".cpg"} {
		assert.FileExists(t, base+ext)
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), "flood_reports_idn."),
			"unexpected component %q", e.Name())
	}
}

func TestPackage_EmptyCollectionRejected(t *testing.T) {
	p := NewPackager(t.TempDir(), discardLogger())

	_, err := p.Package(geojson.NewFeatureCollection(), "flood", indonesia)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no flood features")
}

func TestDBFFieldNames(t *testing.T) {
	t.Run("short names pass through", func(t *testing.T) {
		assert.Equal(t, []string{"pkey", "source"}, dbfFieldNames([]string{"pkey", "source"}))
	})

	t.Run("separator replaced and truncated", func(t *testing.T) {
		names := dbfFieldNames([]string{"tags-instance_region_code"})
		require.Len(t, names, 1)
		assert.Equal(t, "tags_insta", names[0])
		assert.LessOrEqual(t, len(names[0]), 10)
	})

	t.Run("collisions disambiguated", func(t *testing.T) {
		names := dbfFieldNames([]string{"tags-instance_region_code", "tags-instance_city_code"})
		assert.Equal(t, "tags_insta", names[0])
		assert.Equal(t, "tags_inst2", names[1])
	})
}

func TestAttributeString(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected string
	}{
		{"null", nil, ""},
		{"string", "grasp", "grasp"},
		{"bool", false, "false"},
		{"float", 1.5, "1.5"},
		{"integral float", float64(357181), "357181"},
		{"int", 3, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, attributeString(tt.in))
		})
	}
}

func TestAttributeColumns_SortedUnion(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	a := geojson.NewFeature(orb.Point{0, 0})
	a.Properties = map[string]any{"b": 1, "a": 2}
	b := geojson.NewFeature(orb.Point{1, 1})
	b.Properties = map[string]any{"c": 3, "a": 4}
	fc.Append(a)
	fc.Append(b)

	cols := attributeColumns(fc)
	assert.Equal(t, []string{"a", "b", "c"}, cols)
	assert.True(t, sortedStrings(cols))
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if strings.Compare(s[i-1], s[i]) > 0 {
			return false
		}
	}
	return true
}
