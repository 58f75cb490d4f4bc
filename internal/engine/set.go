package engine

import (
	"log/slog"

	"github.com/convarr/convarr/internal/converr"
	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/proc"
)

// Set holds one engine per category.
type Set struct {
	engines map[format.Category]Engine
}

// BinaryPaths carries the configured engine binary overrides; empty fields
// fall back to discovery.
type BinaryPaths struct {
	FFmpeg       string
	EbookConvert string
	RSVGConvert  string
}

// NewSet builds the full engine set around one shared supervisor.
func NewSet(paths BinaryPaths, supervisor *proc.Supervisor, tempDir string) *Set {
	return &Set{engines: map[format.Category]Engine{
		format.Video: NewVideoEngine(paths.FFmpeg, supervisor),
		format.Audio: NewAudioEngine(paths.FFmpeg, supervisor),
		format.Image: NewImageEngine(paths.RSVGConvert, supervisor, tempDir),
		format.Ebook: NewEbookEngine(paths.EbookConvert, supervisor),
	}}
}

// For returns the engine serving the category.
func (s *Set) For(category format.Category) (Engine, error) {
	e, ok := s.engines[category]
	if !ok {
		return nil, converr.New(converr.KindSystem, "no engine for category %q", category)
	}
	return e, nil
}

// Availability probes every engine's external dependency. A nil map value
// means the engine is ready.
func (s *Set) Availability() map[format.Category]error {
	out := make(map[format.Category]error, len(s.engines))
	for cat, e := range s.engines {
		out[cat] = e.Available()
	}
	return out
}

// LogAvailability reports missing engine dependencies at startup. The
// service still starts; affected categories fail per-conversion.
func (s *Set) LogAvailability(logger *slog.Logger) {
	for cat, err := range s.Availability() {
		if err != nil {
			logger.Warn("engine dependency missing", "category", string(cat), "error", err)
		} else {
			logger.Debug("engine ready", "category", string(cat))
		}
	}
}
