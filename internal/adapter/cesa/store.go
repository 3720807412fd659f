package cesa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
)

// Saved responses keep the upstream envelope shape so a replayed run decodes
// exactly what a live run would.

// savedFilename returns the fixture filename for one disaster type.
func savedFilename(disasterType string) string {
	return disasterType + "_reports.json"
}

// RecordingSource decorates a Source, writing every response to a directory
// so later runs (and tests) can replay it offline.
type RecordingSource struct {
	inner  Source
	dir    string
	logger *slog.Logger
}

// NewRecordingSource creates a recording decorator. The directory is created
// on first write.
func NewRecordingSource(inner Source, dir string, logger *slog.Logger) *RecordingSource {
	return &RecordingSource{inner: inner, dir: dir, logger: logger}
}

func (r *RecordingSource) GetReports(ctx context.Context, disasterType string) (*geojson.FeatureCollection, error) {
	fc, err := r.inner.GetReports(ctx, disasterType)
	if err != nil {
		return nil, err
	}
	if err := r.write(disasterType, fc); err != nil {
		// Recording is best-effort; the live response is still good.
		r.logger.Warn("saving response failed", "disaster", disasterType, "error", err)
	}
	return fc, nil
}

func (r *RecordingSource) write(disasterType string, fc *geojson.FeatureCollection) error {
	if err := WriteSaved(r.dir, disasterType, fc); err != nil {
		return err
	}
	r.logger.Debug("saved response", "disaster", disasterType, "dir", r.dir)
	return nil
}

// WriteSaved writes one response file in the saved-response format, creating
// the directory if needed.
func WriteSaved(dir, disasterType string, fc *geojson.FeatureCollection) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create saved-data dir: %w", err)
	}
	data, err := json.Marshal(envelope{Result: fc})
	if err != nil {
		return fmt.Errorf("marshal saved response: %w", err)
	}
	path := filepath.Join(dir, savedFilename(disasterType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write saved response: %w", err)
	}
	return nil
}

// ReplaySource serves previously recorded responses from a directory instead
// of hitting the network.
type ReplaySource struct {
	dir    string
	logger *slog.Logger
}

// NewReplaySource creates a source backed by saved response files.
func NewReplaySource(dir string, logger *slog.Logger) *ReplaySource {
	return &ReplaySource{dir: dir, logger: logger}
}

func (r *ReplaySource) GetReports(_ context.Context, disasterType string) (*geojson.FeatureCollection, error) {
	path := filepath.Join(r.dir, savedFilename(disasterType))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read saved %s response: %w", disasterType, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode saved %s response: %w", disasterType, err)
	}
	if env.Result == nil {
		return nil, fmt.Errorf("saved %s response has no result", disasterType)
	}
	r.logger.Debug("replayed saved response", "disaster", disasterType, "features", len(env.Result.Features))
	return env.Result, nil
}
