package engine

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	// webp decodes but has no Go encoder, so it stays input-only.
	_ "golang.org/x/image/webp"

	"github.com/convarr/convarr/internal/converr"
	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/proc"
	"github.com/convarr/convarr/internal/util"
)

// jpegQuality maps quality tiers onto JPEG encoder quality.
var jpegQuality = map[format.Quality]int{
	format.QualityLow:    60,
	format.QualityMedium: 85,
	format.QualityHigh:   95,
}

// ImageEngine converts raster images in-process. SVG sources are rasterised
// to a temporary PNG through rsvg-convert first; webp decodes but is never a
// target because no Go encoder exists for it.
type ImageEngine struct {
	rsvgPath   string
	supervisor *proc.Supervisor
	tempDir    string
}

// NewImageEngine creates the in-process image engine. tempDir holds
// intermediate rasterisations; empty means the OS default.
func NewImageEngine(rsvgPath string, supervisor *proc.Supervisor, tempDir string) *ImageEngine {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &ImageEngine{rsvgPath: rsvgPath, supervisor: supervisor, tempDir: tempDir}
}

// Category implements Engine.
func (e *ImageEngine) Category() format.Category { return format.Image }

// IsSupported reports input/output validity; svg and webp are input-only.
func (e *ImageEngine) IsSupported(f string, forOutput bool) bool {
	return supports(format.Image, f, forOutput)
}

// Available implements Engine. Raster conversion has no external
// dependency; rsvg-convert is only required once an SVG source shows up.
func (e *ImageEngine) Available() error { return nil }

// Convert implements Engine.
func (e *ImageEngine) Convert(ctx context.Context, req Request) error {
	source := req.Source
	if req.SourceFormat == "svg" {
		rasterised, cleanup, err := e.rasteriseSVG(ctx, req)
		if err != nil {
			return err
		}
		defer cleanup()
		source = rasterised
	}

	reportProgress(req.OnProgress, 0)

	img, err := decodeImage(source)
	if err != nil {
		return err
	}
	reportProgress(req.OnProgress, 50)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.encodeImage(ctx, img, req); err != nil {
		return err
	}

	reportProgress(req.OnProgress, 100)
	return nil
}

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, converr.SourceNotFound(path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, converr.Conversion(fmt.Sprintf("decoding %s", filepath.Base(path)), err.Error())
	}
	return img, nil
}

// encodeImage writes img to req.Output through a temp file so a failed
// encode never leaves a partial artifact at the output path. A job cancelled
// mid-encode must not see its output appear, so the context is re-checked
// before the rename.
func (e *ImageEngine) encodeImage(ctx context.Context, img image.Image, req Request) error {
	tmp, err := os.CreateTemp(filepath.Dir(req.Output), "convarr-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp output: %w", err)
	}
	tmpPath := tmp.Name()

	encodeErr := e.encodeTo(tmp, img, req)
	closeErr := tmp.Close()
	if encodeErr != nil || closeErr != nil {
		os.Remove(tmpPath) //nolint:errcheck
		if encodeErr != nil {
			return converr.Conversion(fmt.Sprintf("encoding %s", req.TargetFormat), encodeErr.Error())
		}
		return fmt.Errorf("closing temp output: %w", closeErr)
	}

	if err := ctx.Err(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return err
	}
	if err := os.Rename(tmpPath, req.Output); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("moving output into place: %w", err)
	}
	return nil
}

func (e *ImageEngine) encodeTo(f *os.File, img image.Image, req Request) error {
	switch req.TargetFormat {
	case "jpg", "jpeg":
		return jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality[req.Quality]})
	case "png":
		return png.Encode(f, img)
	case "gif":
		return gif.Encode(f, img, nil)
	case "bmp":
		return bmp.Encode(f, img)
	case "tiff":
		return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return converr.InvalidInput("no encoder for image format %q", req.TargetFormat)
}

// rasteriseSVG renders an SVG source to a temporary PNG via rsvg-convert.
// The returned cleanup removes the intermediate file.
func (e *ImageEngine) rasteriseSVG(ctx context.Context, req Request) (string, func(), error) {
	bin, err := util.FindEngine("rsvg-convert", e.rsvgPath)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp(e.tempDir, "convarr-svg-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("creating svg raster temp: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close() //nolint:errcheck
	cleanup := func() { os.Remove(tmpPath) }

	err = e.supervisor.Run(ctx, proc.Spec{
		Binary:     bin,
		Args:       []string{"--format", "png", "--output", tmpPath, req.Source},
		OutputPath: tmpPath,
		Timeout:    req.Timeout,
		Parser:     proc.NoProgress{},
	})
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return tmpPath, cleanup, nil
}
