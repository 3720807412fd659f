package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesa-global/disaster-reports-etl/internal/adapter/hdx"
	"github.com/cesa-global/disaster-reports-etl/internal/gis"
	"github.com/cesa-global/disaster-reports-etl/internal/observability"
)

type recordingPublisher struct {
	datasets []hdx.Dataset
	opts     []hdx.UpsertOptions
	err      error
}

func (p *recordingPublisher) Upsert(_ context.Context, ds hdx.Dataset, opts hdx.UpsertOptions) error {
	if p.err != nil {
		return p.err
	}
	p.datasets = append(p.datasets, ds)
	p.opts = append(p.opts, opts)
	return nil
}

func testPipeline(t *testing.T, source ReportSource, pub Publisher) *Pipeline {
	t.Helper()
	logger := discardLogger()
	metrics := observability.NewMetricsForTesting()
	opts := DatasetOptions{
		Maintainer:      "maintainer-id",
		Organization:    "org-id",
		UpdateFrequency: "Every day",
		Notes:           "Disaster reports scraped from CESA.",
		FixedTags:       []string{"climate hazards", "natural disasters", "affected population"},
		Attribution:     "HDX Scraper: CESA",
	}
	return New(
		NewScraper(source, logger, metrics),
		NewPartitioner(logger, metrics),
		NewAssembler(gis.NewPackager(t.TempDir(), logger), opts, logger, metrics),
		pub,
		logger,
		metrics,
		0,
	)
}

func TestPipelineRunOnce(t *testing.T) {
	t.Run("full run over a mixed scrape", func(t *testing.T) {
		// earthquake: one report; wind: four, one without a region code;
		// volcano: one; flood, fire and haze empty upstream.
		source := &stubSource{collections: map[string]*geojson.FeatureCollection{
			"earthquake": collection(regionFeature("11", "ID-JT")),
			"wind": collection(
				regionFeature("21", "ID-JK"),
				reportFeature(map[string]any{"pkey": "22"}),
				regionFeature("23", "ID-JB"),
				regionFeature("24", "ID-JT"),
			),
			"volcano": collection(regionFeature("31", "ID-JI")),
		}}
		pub := &recordingPublisher{}
		p := testPipeline(t, source, pub)

		require.NoError(t, p.RunOnce(context.Background()))
		require.NoError(t, p.CheckReadiness(context.Background()))

		require.Len(t, pub.datasets, 1)
		ds := pub.datasets[0]
		assert.Equal(t, "cesa-disaster-reports-for-idn", ds.Name)
		assert.Equal(t, "Indonesia: CESA Disaster Reports", ds.Title)

		require.Len(t, ds.Resources, 6)
		names := make([]string, 0, 6)
		for _, r := range ds.Resources {
			names = append(names, r.Name)
		}
		assert.Equal(t, []string{
			"earthquake_reports_idn.geojson", "earthquake_reports_idn.shp.zip",
			"wind_reports_idn.geojson", "wind_reports_idn.shp.zip",
			"volcano_reports_idn.geojson", "volcano_reports_idn.shp.zip",
		}, names)

		opts := pub.opts[0]
		assert.True(t, opts.RemoveAdditionalResources)
		assert.False(t, opts.MatchResourceOrder)
		assert.Equal(t, "HDX Scraper: CESA", opts.UpdatedByScript)
		assert.NotEmpty(t, opts.Batch)
	})

	t.Run("one dataset per discovered country", func(t *testing.T) {
		source := &stubSource{collections: map[string]*geojson.FeatureCollection{
			"flood": collection(
				regionFeature("1", "ID-JK"),
				regionFeature("2", "PH-00"),
			),
		}}
		pub := &recordingPublisher{}
		p := testPipeline(t, source, pub)

		require.NoError(t, p.RunOnce(context.Background()))
		require.Len(t, pub.datasets, 2)
		assert.Equal(t, "cesa-disaster-reports-for-idn", pub.datasets[0].Name)
		assert.Equal(t, "cesa-disaster-reports-for-phl", pub.datasets[1].Name)
		// both runs share the one batch id
		assert.Equal(t, pub.opts[0].Batch, pub.opts[1].Batch)
	})

	t.Run("unresolvable country is skipped, the rest publish", func(t *testing.T) {
		source := &stubSource{collections: map[string]*geojson.FeatureCollection{
			"flood": collection(
				regionFeature("1", "ZZ-00"),
				regionFeature("2", "ID-JK"),
			),
		}}
		pub := &recordingPublisher{}
		p := testPipeline(t, source, pub)

		require.NoError(t, p.RunOnce(context.Background()))
		require.Len(t, pub.datasets, 1)
		assert.Equal(t, "cesa-disaster-reports-for-idn", pub.datasets[0].Name)
	})

	t.Run("nothing scraped means nothing published", func(t *testing.T) {
		source := &stubSource{}
		pub := &recordingPublisher{}
		p := testPipeline(t, source, pub)

		require.NoError(t, p.RunOnce(context.Background()))
		assert.Empty(t, pub.datasets)
	})

	t.Run("scrape failure aborts before publishing", func(t *testing.T) {
		boom := errors.New("upstream down")
		source := &stubSource{errs: map[string]error{"flood": boom}}
		pub := &recordingPublisher{}
		p := testPipeline(t, source, pub)

		err := p.RunOnce(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Empty(t, pub.datasets)
		assert.Error(t, p.CheckReadiness(context.Background()))
	})

	t.Run("publish failure is fatal", func(t *testing.T) {
		boom := errors.New("catalog rejected dataset")
		source := &stubSource{collections: map[string]*geojson.FeatureCollection{
			"flood": collection(regionFeature("1", "ID-JK")),
		}}
		p := testPipeline(t, source, &recordingPublisher{err: boom})

		require.ErrorIs(t, p.RunOnce(context.Background()), boom)
	})
}

func TestPipelineRun(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		source := &stubSource{collections: map[string]*geojson.FeatureCollection{
			"flood": collection(regionFeature("1", "ID-JK")),
		}}
		pub := &recordingPublisher{}
		p := testPipeline(t, source, pub)
		p.interval = time.Hour

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()

		// first run fires immediately, then the loop sleeps on the interval
		require.Eventually(t, func() bool {
			return p.CheckReadiness(context.Background()) == nil
		}, 5*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("pipeline did not stop after cancellation")
		}
		require.Len(t, pub.datasets, 1)
	})
}

func TestDryRunPublisher(t *testing.T) {
	pub := &DryRunPublisher{Logger: discardLogger()}
	err := pub.Upsert(context.Background(), hdx.Dataset{Name: "x"}, hdx.UpsertOptions{})
	require.NoError(t, err)
}
