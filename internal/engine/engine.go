// Package engine implements the four conversion engines. Video, audio, and
// ebook delegate to external binaries under subprocess supervision; image
// conversion runs in-process with an external rasteriser for SVG input.
package engine

import (
	"context"
	"time"

	"github.com/convarr/convarr/internal/format"
)

// Request describes one conversion for an engine. Source and Output are
// absolute paths; formats are normalized lowercase extensions.
type Request struct {
	Source       string
	Output       string
	SourceFormat string
	TargetFormat string
	Quality      format.Quality

	// Timeout bounds the engine run; zero disables the per-run deadline.
	Timeout time.Duration

	// Title and Author are honoured by the ebook engine only.
	Title  string
	Author string

	// OnProgress receives 0-100 percentages. May be nil. Called from engine
	// goroutines; must not block.
	OnProgress func(percent float64)
}

// Engine converts files of one category.
type Engine interface {
	// Category identifies which capability-matrix category this engine
	// serves.
	Category() format.Category

	// Available verifies the engine can run (external binary present). A
	// system error here fails conversions of this category without
	// affecting the others.
	Available() error

	// IsSupported reports whether f is a valid input (or, with forOutput,
	// a producible output) for this engine.
	IsSupported(f string, forOutput bool) bool

	// Convert performs the conversion described by req. On any non-nil
	// return the output path holds no partial artifact.
	Convert(ctx context.Context, req Request) error
}

// reportProgress invokes cb if set.
func reportProgress(cb func(float64), pct float64) {
	if cb != nil {
		cb(pct)
	}
}

// supports answers IsSupported from the capability matrix. The video engine
// additionally produces audio outputs (track extraction).
func supports(cat format.Category, f string, forOutput bool) bool {
	f = format.Normalize(f)
	if !forOutput {
		return cat.IsInput(f)
	}
	if cat == format.Video && format.Audio.IsOutput(f) {
		return true
	}
	return cat.IsOutput(f)
}
