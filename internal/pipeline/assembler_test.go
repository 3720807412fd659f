package pipeline

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesa-global/disaster-reports-etl/internal/domain"
	"github.com/cesa-global/disaster-reports-etl/internal/gis"
	"github.com/cesa-global/disaster-reports-etl/internal/observability"
)

func testAssembler(t *testing.T) *Assembler {
	t.Helper()
	packager := gis.NewPackager(t.TempDir(), discardLogger())
	opts := DatasetOptions{
		Maintainer:      "maintainer-id",
		Organization:    "org-id",
		UpdateFrequency: "Every day",
		Notes:           "Disaster reports scraped from CESA.",
		FixedTags:       []string{"climate hazards", "natural disasters", "affected population"},
	}
	return NewAssembler(packager, opts, discardLogger(), observability.NewMetricsForTesting())
}

func TestAssemblerBuildDataset(t *testing.T) {
	frozen := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	t.Run("assembles metadata and resources in fixed order", func(t *testing.T) {
		a := testAssembler(t)
		reports := domain.ReportCollection{
			"earthquake": collection(flatFeature("11", "ID-JT")),
			"wind":       collection(flatFeature("21", "ID-JK")),
			"volcano":    collection(flatFeature("31", "ID-JI")),
		}

		ds, err := a.BuildDataset(reports, "ID")
		require.NoError(t, err)

		assert.Equal(t, "cesa-disaster-reports-for-idn", ds.Name)
		assert.Equal(t, "Indonesia: CESA Disaster Reports", ds.Title)
		assert.Equal(t, "maintainer-id", ds.Maintainer)
		assert.Equal(t, "org-id", ds.Organization)
		assert.True(t, ds.Subnational)
		assert.Equal(t, []string{"IDN"}, ds.Locations)
		assert.Equal(t, frozen, ds.TimePeriodEnd)
		assert.Equal(t, frozen.Add(-domain.ReportWindow), ds.TimePeriodStart)

		assert.Equal(t, []string{
			"flooding-storm surge", "earthquake-tsunami",
			"climate hazards", "natural disasters", "affected population",
		}, ds.Tags)

		// two resources per disaster type, geojson first, in enumeration order
		require.Len(t, ds.Resources, 6)
		names := make([]string, 0, len(ds.Resources))
		for _, r := range ds.Resources {
			names = append(names, r.Name)
		}
		assert.Equal(t, []string{
			"earthquake_reports_idn.geojson", "earthquake_reports_idn.shp.zip",
			"wind_reports_idn.geojson", "wind_reports_idn.shp.zip",
			"volcano_reports_idn.geojson", "volcano_reports_idn.shp.zip",
		}, names)
		assert.Equal(t, gis.FormatGeoJSON, ds.Resources[0].Format)
		assert.Equal(t, gis.FormatShapefile, ds.Resources[1].Format)
		for _, r := range ds.Resources {
			assert.FileExists(t, r.UploadPath)
		}
	})

	t.Run("empty categories contribute no resources", func(t *testing.T) {
		a := testAssembler(t)
		reports := domain.ReportCollection{
			"flood":   collection(flatFeature("1", "PH-00")),
			"volcano": collection(), // scraped, filtered to nothing for PH
		}

		ds, err := a.BuildDataset(reports, "PH")
		require.NoError(t, err)

		assert.Equal(t, "cesa-disaster-reports-for-phl", ds.Name)
		assert.Equal(t, "Philippines: CESA Disaster Reports", ds.Title)
		require.Len(t, ds.Resources, 2)
		assert.Equal(t, "flood_reports_phl.geojson", ds.Resources[0].Name)
		// tags are the same for every dataset, independent of which
		// categories actually have data
		assert.Equal(t, []string{
			"flooding-storm surge", "earthquake-tsunami",
			"climate hazards", "natural disasters", "affected population",
		}, ds.Tags)
	})

	t.Run("unresolvable country code", func(t *testing.T) {
		a := testAssembler(t)
		reports := domain.ReportCollection{
			"flood": collection(flatFeature("1", "ZZ-00")),
		}

		_, err := a.BuildDataset(reports, "ZZ")
		require.ErrorIs(t, err, ErrUnknownCountry)
	})
}
