// Package domain models CESA (Climate Emergency Software Alliance) disaster
// report data as served by the PetaBencana API.
//
// # Data Source
//
// Reports are crowd-sourced hazard observations confirmed by the PetaBencana
// platform (https://docs.petabencana.id). The API returns one GeoJSON
// FeatureCollection per disaster category, wrapped in a {"result": ...}
// envelope. Every feature is a point with a nested "properties" object, e.g.
//
//	"properties": {
//	  "pkey": "357181",
//	  "report_data": {"report_type": "structure", "structureFailure": 1},
//	  "tags": {"instance_region_code": "ID-JK"}
//	}
//
// # Property Flattening
//
// Downstream tabular formats (Shapefile DBF in particular) cannot represent
// nested attributes, so properties are flattened once after scraping: nested
// maps are collapsed depth-first into single-level keys joined with "-"
// ("tags" -> "instance_region_code" becomes "tags-instance_region_code").
// Lists are left as opaque values; report properties contain none in practice.
// A collision between two flattened keys would mean the upstream schema broke
// an assumption this whole pipeline relies on, so [Flatten] rejects duplicates
// with [ErrDuplicateKey] instead of silently overwriting.
//
// # Region Codes
//
// "tags-instance_region_code" holds a hierarchical administrative code such as
// "ID-JT" whose first two characters are the ISO 3166-1 alpha-2 country code.
// The field is sometimes null; such reports belong to no country partition and
// are excluded with a warning rather than failing the run.
package domain
