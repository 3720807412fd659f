// Command genfixture generates deterministic saved-response fixtures in the
// upstream envelope format, one file per disaster type. The output directory
// can be fed straight to the service via USE_SAVED/SAVED_DATA_DIR, or used as
// offline test data.
//
// Usage:
//
//	go run ./cmd/genfixture -out saved_data -per-region 3
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/cesa-global/disaster-reports-etl/internal/adapter/cesa"
	"github.com/cesa-global/disaster-reports-etl/internal/domain"
)

// regionBox is a sampling area for one instance region code.
type regionBox struct {
	code           string
	minLon, maxLon float64
	minLat, maxLat float64
}

// Regions PetaBencana actually covers, so the fixtures partition into the
// same countries a live scrape would.
var regions = []regionBox{
	{code: "ID-JK", minLon: 106.68, maxLon: 106.97, minLat: -6.37, maxLat: -6.09},
	{code: "ID-JB", minLon: 106.37, maxLon: 108.83, minLat: -7.82, maxLat: -5.91},
	{code: "ID-JT", minLon: 108.56, maxLon: 111.69, minLat: -8.21, maxLat: -5.73},
	{code: "PH-00", minLon: 120.90, maxLon: 121.13, minLat: 14.40, maxLat: 14.78},
	{code: "IN-TN", minLon: 76.23, maxLon: 80.35, minLat: 8.07, maxLat: 13.56},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "saved_data", "output directory for saved-response files")
	perRegion := flag.Int("per-region", 3, "reports per (disaster type, region) pair")
	seed := flag.Int64("seed", 1, "random seed, fixed by default for reproducible fixtures")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	end := time.Date(2026, time.August, 24, 0, 0, 0, 0, time.UTC)

	pkey := 100000
	totals := make(map[string]int)

	for _, disasterType := range domain.DisasterTypes {
		fc := geojson.NewFeatureCollection()
		for _, region := range regions {
			for i := 0; i < *perRegion; i++ {
				pkey++
				fc.Append(report(rng, pkey, disasterType, region, end))
			}
		}
		totals[disasterType] = len(fc.Features)

		if err := cesa.WriteSaved(*out, disasterType, fc); err != nil {
			return fmt.Errorf("writing %s fixture: %w", disasterType, err)
		}
		log.Printf("%s: %d reports", disasterType, len(fc.Features))
	}

	printStats(totals, *perRegion)
	return nil
}

// report builds one feature with the nested property shape the live API
// returns. The flattener runs inside the pipeline, so fixtures stay nested.
func report(rng *rand.Rand, pkey int, disasterType string, region regionBox, end time.Time) *geojson.Feature {
	lon := region.minLon + rng.Float64()*(region.maxLon-region.minLon)
	lat := region.minLat + rng.Float64()*(region.maxLat-region.minLat)
	created := end.Add(-time.Duration(rng.Int63n(int64(domain.ReportWindow))))

	f := geojson.NewFeature(orb.Point{lon, lat})
	f.Properties = map[string]any{
		"pkey":          fmt.Sprintf("%d", pkey),
		"created_at":    created.Format(time.RFC3339),
		"source":        "grasp",
		"status":        "confirmed",
		"disaster_type": disasterType,
		"report_data": map[string]any{
			"report_type": disasterType,
		},
		"tags": map[string]any{
			"instance_region_code": region.code,
			"local_area_id":        fmt.Sprintf("%d", rng.Intn(900)+100),
		},
		"title": nil,
		"text":  fmt.Sprintf("%s report %d", disasterType, pkey),
	}
	return f
}

func printStats(totals map[string]int, perRegion int) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	grand := 0
	for _, disasterType := range domain.DisasterTypes {
		fmt.Printf("%s: %d\n", disasterType, totals[disasterType])
		grand += totals[disasterType]
	}
	fmt.Printf("Total: %d\n", grand)
	fmt.Printf("Regions: %d, reports per (type, region): %d\n", len(regions), perRegion)

	countrySet := map[string]bool{}
	for _, r := range regions {
		countrySet[r.code[:2]] = true
	}
	fmt.Printf("Expected countries per dataset run: %d\n", len(countrySet))
}
