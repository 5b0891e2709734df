// Package outwriter has output and writer logic.
package outwriter

import (
	"os"
	"time"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteLocalSummary prints the report of a local extraction.
func (ow *OutWriter) WriteLocalSummary(summary schema.LocalSummary, cfg *contract.Config) error {
	return PrintLocalSummary(summary, cfg)
}

// WriteBatchSummary prints the report of a remote batch sync.
func (ow *OutWriter) WriteBatchSummary(summary schema.BatchSummary, cfg *contract.Config) error {
	return PrintBatchSummary(summary, cfg)
}

// WriteDailySummary prints the report of a daily metrics run.
func (ow *OutWriter) WriteDailySummary(summary schema.DailyJobSummary, cfg *contract.Config) error {
	return PrintDailySummary(summary, cfg)
}

// WriteHotspots prints a file hotspot ranking.
func (ow *OutWriter) WriteHotspots(records []schema.FileMetricsRecord, cfg *contract.Config, duration time.Duration) error {
	return PrintHotspots(records, cfg, duration)
}

// WriteStoreStatus prints the status of the fact store.
func (ow *OutWriter) WriteStoreStatus(status schema.StoreStatus, cfg *contract.Config) error {
	return PrintStoreStatus(status, cfg)
}

// GetMaxTablePathWidth calculates the maximum width for paths in table output
// based on terminal width. reserved is the width taken by the other columns.
func GetMaxTablePathWidth(cfg *contract.Config, reserved int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Table borders, separators, and padding
	available := termWidth - reserved - 20
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
