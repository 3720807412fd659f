package gis

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// dbfFieldLength is the width of every attribute column. DBF string fields
// max out at 254 characters.
const dbfFieldLength = 254

// wgs84WKT is the projection definition written alongside the shapefile so
// GIS tools read coordinates as WGS-84 longitude/latitude.
const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// writeShapefileArchive writes the multi-file Shapefile encoding into a
// per-basename subdirectory and packs every component into one flat zip in
// the working directory. Only the zip is attached downstream.
func (p *Packager) writeShapefileArchive(fc *geojson.FeatureCollection, basename, description string) (Artifact, error) {
	shapeDir := filepath.Join(p.workDir, basename+"_shapefiles")
	if err := os.MkdirAll(shapeDir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create shapefile dir: %w", err)
	}

	if err := writeShapefile(fc, filepath.Join(shapeDir, basename)); err != nil {
		return Artifact{}, err
	}

	zipName := basename + ".shp.zip"
	zipPath := filepath.Join(p.workDir, zipName)
	if err := zipFlat(shapeDir, zipPath); err != nil {
		return Artifact{}, err
	}

	p.logger.Debug("wrote shapefile artifact", "path", zipPath, "features", len(fc.Features))
	return Artifact{
		Name:        zipName,
		Description: description,
		Format:      FormatShapefile,
		Path:        zipPath,
	}, nil
}

// writeShapefile writes base.shp/.shx/.dbf plus .prj and .cpg sidecars.
// All report geometries are points; anything else is a schema violation.
func writeShapefile(fc *geojson.FeatureCollection, base string) error {
	columns := attributeColumns(fc)

	fields := make([]shp.Field, len(columns))
	for i, name := range dbfFieldNames(columns) {
		fields[i] = shp.StringField(name, dbfFieldLength)
	}

	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}

	w.SetFields(fields)

	writeErr := writeRows(w, fc, columns)
	// Close flushes the .shp/.shx headers and the DBF table before anything
	// gets zipped; go-shp's Close does not report errors.
	w.Close()
	if writeErr != nil {
		return writeErr
	}

	// go-shp names the attribute table {base}dbf, without the extension dot,
	// which orphans it from the .shp in every GIS tool.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return fmt.Errorf("rename dbf: %w", err)
	}

	if err := os.WriteFile(base+".prj", []byte(wgs84WKT), 0o644); err != nil {
		return fmt.Errorf("write prj: %w", err)
	}
	if err := os.WriteFile(base+".cpg", []byte("UTF-8"), 0o644); err != nil {
		return fmt.Errorf("write cpg: %w", err)
	}
	return nil
}

func writeRows(w *shp.Writer, fc *geojson.FeatureCollection, columns []string) error {
	for i, f := range fc.Features {
		point, ok := f.Geometry.(orb.Point)
		if !ok {
			return fmt.Errorf("feature %d: geometry is %T, want point", i, f.Geometry)
		}
		w.Write(&shp.Point{X: point[0], Y: point[1]})

		for j, col := range columns {
			if err := w.WriteAttribute(i, j, attributeString(f.Properties[col])); err != nil {
				return fmt.Errorf("write attribute %q row %d: %w", col, i, err)
			}
		}
	}
	return nil
}

// dbfFieldNames mangles flattened property keys into valid DBF field names:
// at most 10 characters, "-" replaced with "_", collisions disambiguated with
// a numeric suffix. Order matches the input.
func dbfFieldNames(columns []string) []string {
	names := make([]string, len(columns))
	used := make(map[string]bool, len(columns))

	for i, col := range columns {
		name := make([]byte, 0, 10)
		for _, r := range col {
			if len(name) == 10 {
				break
			}
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
				name = append(name, byte(r))
			default:
				name = append(name, '_')
			}
		}
		candidate := string(name)
		if candidate == "" {
			candidate = "FIELD"
		}

		base := candidate
		for n := 2; used[candidate]; n++ {
			suffix := strconv.Itoa(n)
			trimmed := base
			if len(trimmed)+len(suffix) > 10 {
				trimmed = trimmed[:10-len(suffix)]
			}
			candidate = trimmed + suffix
		}
		used[candidate] = true
		names[i] = candidate
	}
	return names
}

// attributeString renders a flattened property value for the DBF table.
// Nulls become empty strings.
func attributeString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// zipFlat packs every file in dir into a zip with flat entry names.
func zipFlat(dir, zipPath string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list shapefile dir: %w", err)
	}

	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := addToZip(zw, filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func addToZip(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer src.Close()

	dst, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy %s into archive: %w", name, err)
	}
	return nil
}
