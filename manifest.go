package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/photoport/photoport/internal/importer"
)

// loadManifest reads a source export manifest: the albums and photos of
// one import job. A manifest without a job id gets a generated one —
// note that a generated id changes on every run, so resumable jobs
// should carry their own.
func loadManifest(path string) (importer.Collection, error) {
	var col importer.Collection

	data, err := os.ReadFile(path)
	if err != nil {
		return col, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &col); err != nil {
		return col, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	if col.JobID == "" {
		col.JobID = uuid.NewString()
	}

	if err := validateManifest(col); err != nil {
		return col, fmt.Errorf("manifest %s: %w", path, err)
	}

	return col, nil
}

// validateManifest rejects manifests the importer cannot process.
func validateManifest(col importer.Collection) error {
	albums := make(map[string]bool, len(col.Albums))

	for _, a := range col.Albums {
		if a.ID == "" {
			return fmt.Errorf("album %q has no id", a.Name)
		}

		if albums[a.ID] {
			return fmt.Errorf("duplicate album id %s", a.ID)
		}

		albums[a.ID] = true
	}

	for _, p := range col.Photos {
		if p.ID == "" {
			return fmt.Errorf("photo %q has no id", p.Title)
		}

		if p.AlbumID != "" && !albums[p.AlbumID] {
			return fmt.Errorf("photo %s references unknown album %s", p.ID, p.AlbumID)
		}
	}

	return nil
}
