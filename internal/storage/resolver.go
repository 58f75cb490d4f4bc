// Package storage handles output-path resolution for conversions: collision
// probing, output directory selection, and temp-file placement.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/convarr/convarr/internal/converr"
	"github.com/convarr/convarr/internal/format"
)

// maxCollisionProbes bounds the `stem_N.ext` suffix search. Exhausting it is
// a collision error, not an infinite loop.
const maxCollisionProbes = 1000

// Resolver picks collision-free output paths for converted files.
//
// Resolution is best-effort: the chosen path can still be taken by another
// writer between the probe and the engine opening it. The resolver only
// guarantees it never silently overwrites a file that existed at probe time.
type Resolver struct {
	outputDir string // empty means "next to the source file"
	logger    *slog.Logger
}

// NewResolver creates a Resolver. outputDir may be empty, in which case
// outputs land in the source file's directory.
func NewResolver(outputDir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{outputDir: outputDir, logger: logger.With("component", "resolver")}
}

// OutputDirFor returns the directory a conversion of source would write to,
// honouring the per-request override. Used by admission checks that need the
// output volume before a path is resolved.
func (r *Resolver) OutputDirFor(source, override string) string {
	if override != "" {
		return override
	}
	if r.outputDir != "" {
		return r.outputDir
	}
	return filepath.Dir(source)
}

// Resolve returns a collision-free output path for converting source to
// targetFormat. The first candidate is `stem.ext`; on collision it probes
// `stem_1.ext` through `stem_1000.ext` and then gives up with a collision
// error. dirOverride, when non-empty, wins over the resolver's configured
// output directory.
func (r *Resolver) Resolve(source, targetFormat, dirOverride string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", converr.SourceNotFound(source)
	}
	if info.IsDir() {
		return "", converr.InvalidInput("source path is a directory: %s", source)
	}

	ext := format.Normalize(targetFormat)
	if ext == "" {
		return "", converr.InvalidInput("target format must not be empty")
	}

	dir := r.OutputDirFor(source, dirOverride)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", dir, err)
	}

	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	candidate := filepath.Join(dir, stem+"."+ext)
	if !exists(candidate) {
		return candidate, nil
	}

	for i := 1; i <= maxCollisionProbes; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d.%s", stem, i, ext))
		if !exists(candidate) {
			r.logger.Debug("output name collision, using suffixed path",
				"source", source, "output", candidate, "probes", i)
			return candidate, nil
		}
	}

	return "", converr.CollisionLimit(filepath.Join(dir, stem+"."+ext), maxCollisionProbes)
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
