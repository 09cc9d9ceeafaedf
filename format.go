package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/photoport/photoport/internal/idempotent"
	"github.com/photoport/photoport/internal/importer"
)

// resultJSON is the JSON-serializable import summary.
type resultJSON struct {
	JobID          string        `json:"job_id"`
	AlbumsImported int           `json:"albums_imported"`
	PhotosImported int           `json:"photos_imported"`
	Failures       []failureJSON `json:"failures,omitempty"`
}

type failureJSON struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Error string `json:"error"`
}

func printResult(col importer.Collection, res *importer.Result) {
	if flagJSON {
		out := resultJSON{
			JobID:          col.JobID,
			AlbumsImported: res.AlbumsImported,
			PhotosImported: res.PhotosImported,
		}

		for _, f := range res.Failures {
			out.Failures = append(out.Failures, failureJSON{
				Key:   f.Key,
				Label: f.Label,
				Error: f.Err.Error(),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out) //nolint:errcheck // stdout write

		return
	}

	fmt.Printf("Job %s: imported %d/%d albums, %d/%d photos\n",
		col.JobID,
		res.AlbumsImported, len(col.Albums),
		res.PhotosImported, len(col.Photos),
	)

	for _, f := range res.Failures {
		fmt.Printf("  FAILED %-12s %s: %v\n", f.Key, f.Label, f.Err)
	}
}

// printSteps renders persisted step records for the status command.
func printSteps(records []idempotent.StepRecord) {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(records) //nolint:errcheck // stdout write

		return
	}

	if len(records) == 0 {
		fmt.Println("No recorded steps.")
		return
	}

	for _, rec := range records {
		switch rec.Status {
		case "done":
			fmt.Printf("%-8s %-16s %-24s -> %s\n", rec.Status, rec.Key, rec.Label, rec.Result)
		default:
			fmt.Printf("%-8s %-16s %-24s !! %s\n", rec.Status, rec.Key, rec.Label, rec.Error)
		}
	}
}
