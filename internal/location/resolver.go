// Package location resolves the two-letter codes embedded in report region
// codes into catalog-accepted country identities.
package location

import "github.com/biter777/countries"

// Country identifies a country the catalog accepts as a dataset location.
type Country struct {
	ISO2 string
	ISO3 string
	Name string
}

// Resolve maps an ISO 3166-1 alpha-2 code to a Country. The second return is
// false when the code is not a recognized country; callers skip the dataset
// for that code rather than failing the run.
func Resolve(iso2 string) (Country, bool) {
	c := countries.ByName(iso2)
	if c == countries.Unknown {
		return Country{}, false
	}
	return Country{
		ISO2: iso2,
		ISO3: c.Alpha3(),
		Name: c.String(),
	}, true
}
