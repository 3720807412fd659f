package domain

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ReportWindow is the trailing window reports are fetched and dated for.
// One week is the maximum lookback the upstream API supports.
const ReportWindow = 7 * 24 * time.Hour

// DisasterTypes is the fixed, ordered list of categories the upstream API
// accepts as a "disaster" filter. There is no endpoint to discover these;
// the list mirrors the PetaBencana documentation.
var DisasterTypes = []string{"flood", "earthquake", "fire", "haze", "wind", "volcano"}

// ReportCollection holds the scraped reports for the categories that returned
// data, keyed by disaster type. Categories with zero features are never
// stored; iterate with DisasterTypes to keep the fixed enumeration order.
type ReportCollection map[string]*geojson.FeatureCollection

// NormalizeCollection replaces every feature's nested properties with their
// flattened form. Geometry and feature type are untouched, feature order and
// count are preserved. Normalizing an already-normalized collection is a
// no-op because flattened properties have no nested maps left.
func NormalizeCollection(fc *geojson.FeatureCollection) error {
	for i, f := range fc.Features {
		flat, err := Flatten(f.Properties)
		if err != nil {
			return fmt.Errorf("normalize feature %d: %w", i, err)
		}
		f.Properties = flat
	}
	return nil
}

// CloneFeature returns an independent copy of a feature. Mutating the clone's
// properties or geometry never affects the original.
func CloneFeature(f *geojson.Feature) *geojson.Feature {
	clone := &geojson.Feature{
		ID:   f.ID,
		Type: f.Type,
	}
	if f.Geometry != nil {
		clone.Geometry = orb.Clone(f.Geometry)
	}
	if f.Properties != nil {
		clone.Properties = f.Properties.Clone()
	}
	if f.BBox != nil {
		clone.BBox = append(geojson.BBox(nil), f.BBox...)
	}
	return clone
}
