// Package hdx is a minimal client for the HDX (CKAN) catalog API, covering
// dataset upsert and file-backed resource upload.
package hdx

import "time"

// Dataset is the catalog-facing metadata for one country's reports.
type Dataset struct {
	Name            string // slug identifier
	Title           string
	Notes           string
	Maintainer      string
	Organization    string
	UpdateFrequency string
	Subnational     bool
	TimePeriodStart time.Time
	TimePeriodEnd   time.Time
	Tags            []string
	Locations       []string // ISO3 group codes
	Resources       []Resource
}

// Resource is one uploaded file attached to a dataset, in attachment order.
type Resource struct {
	Name        string
	Description string
	Format      string
	UploadPath  string
}

// UpsertOptions control dataset publication.
type UpsertOptions struct {
	// RemoveAdditionalResources deletes catalog resources that are not part
	// of the upload, e.g. a disaster type that had data last week but not now.
	RemoveAdditionalResources bool
	// MatchResourceOrder asks the catalog to reorder existing resources to
	// match the upload order.
	MatchResourceOrder bool
	// UpdatedByScript is the attribution string recorded on the dataset.
	UpdatedByScript string
	// Batch groups datasets created by the same run.
	Batch string
}
