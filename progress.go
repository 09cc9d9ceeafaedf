package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/photoport/photoport/internal/graph"
	"github.com/photoport/photoport/internal/importer"
)

// newProgressBar builds a byte-progress bar sized for an 80-column
// terminal.
func newProgressBar(size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(description+":"),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowBytes(true),
		progressbar.OptionUseIECUnits(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowTotalBytes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
	)
}

// progressFactory returns a per-photo progress callback, or nil when
// output is non-interactive or suppressed. The total is only known once
// the stream has been split, so the bar is created on the first report.
func progressFactory() func(p importer.Photo) graph.ProgressFunc {
	if flagQuiet || flagJSON || !isatty.IsTerminal(os.Stderr.Fd()) {
		return nil
	}

	return func(p importer.Photo) graph.ProgressFunc {
		var bar *progressbar.ProgressBar

		return func(done, total int64) {
			if bar == nil {
				bar = newProgressBar(total, p.Title)
			}

			_ = bar.Set64(done) //nolint:errcheck // display only

			if done >= total {
				_ = bar.Finish() //nolint:errcheck // display only
			}
		}
	}
}
