package domain

import "github.com/paulmach/orb/geojson"

// RegionCodeKey is the flattened property carrying the administrative region
// code, e.g. "ID-JT".
const RegionCodeKey = "tags-instance_region_code"

// RegionCode returns the region code of a normalized feature. The second
// return is false when the property is absent, null, or not a string; callers
// treat that as "no country" rather than an error.
func RegionCode(f *geojson.Feature) (string, bool) {
	v, exists := f.Properties[RegionCodeKey]
	if !exists || v == nil {
		return "", false
	}
	code, ok := v.(string)
	if !ok || code == "" {
		return "", false
	}
	return code, true
}

// CountryISO2 derives the ISO 3166-1 alpha-2 country code from a feature's
// region code by taking its first two characters. Codes shorter than two
// characters count as malformed.
func CountryISO2(f *geojson.Feature) (string, bool) {
	code, ok := RegionCode(f)
	if !ok || len(code) < 2 {
		return "", false
	}
	return code[:2], true
}
