// Command checkartifacts performs integrity checks on a directory of
// generated artifacts before they are trusted or published: filename
// conventions, GeoJSON structure, country consistency, and shapefile archive
// contents.
//
// Usage:
//
//	go run ./cmd/checkartifacts -dir /tmp/cesa-etl-work
package main

import (
	"archive/zip"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/biter777/countries"
	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb/geojson"

	"github.com/cesa-global/disaster-reports-etl/internal/domain"
)

// artifactName matches {disaster}_reports_{iso3}.geojson.
var artifactName = regexp.MustCompile(`^([a-z]+)_reports_([a-z]{3})\.geojson$`)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// artifact pairs one GeoJSON file with its shapefile archive.
type artifact struct {
	disasterType string
	iso3         string
	geojsonPath  string
	zipPath      string
	features     []*geojson.Feature
}

func main() {
	dir := flag.String("dir", "", "directory containing generated artifacts")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir); code != 0 {
		os.Exit(code)
	}
}

func run(dir string) int {
	fmt.Println("=== Artifact Integrity Validation ===")
	fmt.Println()

	artifacts, inventory := loadArtifacts(dir)

	phases := []*phase{
		inventory,
		validateGeoJSON(artifacts),
		validateCountryConsistency(artifacts),
		validateShapefiles(artifacts),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	totalFeatures := 0
	for _, a := range artifacts {
		totalFeatures += len(a.features)
	}
	fmt.Println()
	fmt.Printf("Artifacts: %d pairs, %d features\n", len(artifacts), totalFeatures)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Inventory ──
// Every GeoJSON file must follow the naming convention and have its matching
// shapefile archive next to it, with nothing unexpected in the directory.

func loadArtifacts(dir string) ([]*artifact, *phase) {
	p := &phase{name: "Phase 1: Inventory (naming, pairing)"}

	entries, err := os.ReadDir(dir)
	if err != nil {
		p.errorf("read dir: %v", err)
		return nil, p
	}

	var artifacts []*artifact
	claimed := map[string]bool{}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".geojson") {
			continue
		}
		m := artifactName.FindStringSubmatch(e.Name())
		if m == nil {
			p.errorf("%s: does not match {disaster}_reports_{iso3}.geojson", e.Name())
			continue
		}

		disasterType, iso3 := m[1], m[2]
		if !knownDisasterType(disasterType) {
			p.errorf("%s: unknown disaster type %q", e.Name(), disasterType)
		}

		base := strings.TrimSuffix(e.Name(), ".geojson")
		zipPath := filepath.Join(dir, base+".shp.zip")
		if _, err := os.Stat(zipPath); err != nil {
			p.errorf("%s: missing shapefile archive %s.shp.zip", e.Name(), base)
			continue
		}
		claimed[e.Name()] = true
		claimed[base+".shp.zip"] = true

		artifacts = append(artifacts, &artifact{
			disasterType: disasterType,
			iso3:         iso3,
			geojsonPath:  filepath.Join(dir, e.Name()),
			zipPath:      zipPath,
		})
	}

	for _, e := range entries {
		if e.IsDir() || claimed[e.Name()] {
			continue
		}
		if strings.HasSuffix(e.Name(), ".shp.zip") {
			p.errorf("%s: shapefile archive without a GeoJSON counterpart", e.Name())
		}
	}

	if len(artifacts) == 0 {
		p.errorf("no artifacts found in %s", dir)
	}
	return artifacts, p
}

func knownDisasterType(s string) bool {
	for _, t := range domain.DisasterTypes {
		if t == s {
			return true
		}
	}
	return false
}

// ── Phase 2: GeoJSON ──
// Files must parse, be non-empty, and carry fully flattened properties.

func validateGeoJSON(artifacts []*artifact) *phase {
	p := &phase{name: "Phase 2: GeoJSON (structure, flatness)"}

	for _, a := range artifacts {
		data, err := os.ReadFile(a.geojsonPath)
		if err != nil {
			p.errorf("%s: %v", a.geojsonPath, err)
			continue
		}
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			p.errorf("%s: parse: %v", filepath.Base(a.geojsonPath), err)
			continue
		}
		if len(fc.Features) == 0 {
			p.errorf("%s: zero features, should never have been written", filepath.Base(a.geojsonPath))
		}
		a.features = fc.Features

		for i, f := range fc.Features {
			for key, val := range f.Properties {
				if _, nested := val.(map[string]any); nested {
					p.errorf("%s: feature %d: property %q is a nested object", filepath.Base(a.geojsonPath), i, key)
				}
			}
		}
	}
	return p
}

// ── Phase 3: Country consistency ──
// Every feature's region code must resolve to the country in the filename.

func validateCountryConsistency(artifacts []*artifact) *phase {
	p := &phase{name: "Phase 3: Country consistency (region codes)"}

	for _, a := range artifacts {
		country := countries.ByName(strings.ToUpper(a.iso3))
		if country == countries.Unknown {
			p.errorf("%s: filename country %q is not a known ISO3 code", filepath.Base(a.geojsonPath), a.iso3)
			continue
		}
		iso2 := country.Alpha2()

		for i, f := range a.features {
			code, ok := domain.RegionCode(f)
			if !ok {
				p.errorf("%s: feature %d: missing region code", filepath.Base(a.geojsonPath), i)
				continue
			}
			if !strings.HasPrefix(code, iso2) {
				p.errorf("%s: feature %d: region code %q does not belong to %s", filepath.Base(a.geojsonPath), i, code, iso2)
			}
		}
	}
	return p
}

// ── Phase 4: Shapefile archives ──
// Archives must hold the full sidecar set flat at the root, and the .shp row
// count must match the GeoJSON feature count.

func validateShapefiles(artifacts []*artifact) *phase {
	p := &phase{name: "Phase 4: Shapefile archives (contents)"}

	for _, a := range artifacts {
		validateArchive(p, a)
	}
	return p
}

func validateArchive(p *phase, a *artifact) {
	name := filepath.Base(a.zipPath)
	base := strings.TrimSuffix(name, ".shp.zip")

	r, err := zip.OpenReader(a.zipPath)
	if err != nil {
		p.errorf("%s: %v", name, err)
		return
	}
	defer r.Close()

	want := map[string]bool{
		base + ".shp": false, base + ".shx": false, base + ".dbf": false,
		base + ".prj": false, base + ".cpg": false,
	}
	for _, f := range r.File {
		if strings.Contains(f.Name, "/") {
			p.errorf("%s: entry %q is not at the archive root", name, f.Name)
			continue
		}
		if _, ok := want[f.Name]; !ok {
			p.errorf("%s: unexpected entry %q", name, f.Name)
			continue
		}
		want[f.Name] = true
	}
	for entry, seen := range want {
		if !seen {
			p.errorf("%s: missing entry %q", name, entry)
		}
	}

	rows, err := countShapes(&r.Reader, base)
	if err != nil {
		p.errorf("%s: %v", name, err)
		return
	}
	if rows != len(a.features) {
		p.errorf("%s: %d shapes but GeoJSON has %d features", name, rows, len(a.features))
	}
}

// countShapes extracts the shapefile parts to a temp dir and reads the row
// count back through the same library that wrote them.
func countShapes(r *zip.Reader, base string) (int, error) {
	tmp, err := os.MkdirTemp("", "checkartifacts-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tmp)

	for _, f := range r.File {
		if err := extractFile(f, filepath.Join(tmp, filepath.Base(f.Name))); err != nil {
			return 0, fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}

	reader, err := shp.Open(filepath.Join(tmp, base+".shp"))
	if err != nil {
		return 0, fmt.Errorf("open shapefile: %w", err)
	}
	defer reader.Close()

	rows := 0
	for reader.Next() {
		_, shape := reader.Shape()
		if _, ok := shape.(*shp.Point); !ok {
			return 0, fmt.Errorf("row %d: not a point shape", rows)
		}
		rows++
	}
	if err := reader.Err(); err != nil {
		return 0, fmt.Errorf("read shapefile: %w", err)
	}
	return rows, nil
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
