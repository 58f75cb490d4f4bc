package engine

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convarr/convarr/internal/converr"
	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/proc"
)

func TestTranscodeArgs(t *testing.T) {
	args := transcodeArgs(Request{
		Source:       "/in/movie.mkv",
		Output:       "/out/movie.mp4",
		TargetFormat: "mp4",
		Quality:      format.QualityHigh,
	})
	assert.Equal(t, []string{
		"-y", "-hide_banner",
		"-i", "/in/movie.mkv",
		"-c:v", "libx264",
		"-crf", "18",
		"-preset", "slow",
		"-c:a", "aac",
		"/out/movie.mp4",
	}, args)
}

func TestTranscodeArgsWebm(t *testing.T) {
	args := transcodeArgs(Request{
		Source:       "a.mp4",
		Output:       "a.webm",
		TargetFormat: "webm",
		Quality:      format.QualityLow,
	})
	assert.Contains(t, args, "libvpx-vp9")
	assert.Contains(t, args, "libopus")
	assert.Contains(t, args, "28")
	assert.Contains(t, args, "faster")
}

func TestExtractionArgs(t *testing.T) {
	args := extractionArgs(Request{
		Source:       "/in/movie.mp4",
		Output:       "/out/movie.mp3",
		TargetFormat: "mp3",
		Quality:      format.QualityMedium,
	})
	assert.Contains(t, args, "-vn")
	assert.Contains(t, args, "libmp3lame")
	assert.Contains(t, args, "192k")
	assert.Contains(t, args, "-id3v2_version")
	assert.Equal(t, "/out/movie.mp3", args[len(args)-1])
}

func TestAudioEngineArgsViaConvertMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	e := NewAudioEngine("", proc.NewSupervisor(nil))
	err := e.Convert(context.Background(), Request{
		Source:       "a.flac",
		Output:       "a.mp3",
		TargetFormat: "mp3",
		Quality:      format.QualityMedium,
	})
	require.Error(t, err)
	assert.Equal(t, converr.KindSystem, converr.KindOf(err))
}

func TestEbookEngineUnavailableWithoutCalibre(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	e := NewEbookEngine("", proc.NewSupervisor(nil))
	assert.Error(t, e.Available())
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestImageEngineConvertPNGToJPEG(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "red.png")
	out := filepath.Join(dir, "red.jpg")
	writeTestPNG(t, src)

	var progress []float64
	e := NewImageEngine("", proc.NewSupervisor(nil), dir)
	err := e.Convert(context.Background(), Request{
		Source:       src,
		Output:       out,
		SourceFormat: "png",
		TargetFormat: "jpg",
		Quality:      format.QualityHigh,
		OnProgress:   func(p float64) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	require.FileExists(t, out)
	assert.Equal(t, []float64{0, 50, 100}, progress)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	cfg, kind, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", kind)
	assert.Equal(t, 100, cfg.Width)
}

func TestImageEngineConvertPNGToBMPAndTIFF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "red.png")
	writeTestPNG(t, src)

	e := NewImageEngine("", proc.NewSupervisor(nil), dir)
	for _, target := range []string{"bmp", "tiff", "gif"} {
		out := filepath.Join(dir, "red."+target)
		err := e.Convert(context.Background(), Request{
			Source:       src,
			Output:       out,
			SourceFormat: "png",
			TargetFormat: target,
			Quality:      format.QualityMedium,
		})
		require.NoError(t, err, target)
		assert.FileExists(t, out)
	}
}

func TestImageEngineCancelledMidEncodeLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "red.jpg")

	// Cancellation landing while the encoder runs is caught before the
	// rename, so the output never appears.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewImageEngine("", proc.NewSupervisor(nil), dir)
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	err := e.encodeImage(ctx, img, Request{
		Output:       out,
		TargetFormat: "jpg",
		Quality:      format.QualityMedium,
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, out)

	// the temp encode file is removed as well
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestImageEngineRejectsCorruptSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	e := NewImageEngine("", proc.NewSupervisor(nil), dir)
	err := e.Convert(context.Background(), Request{
		Source:       src,
		Output:       filepath.Join(dir, "broken.jpg"),
		SourceFormat: "png",
		TargetFormat: "jpg",
		Quality:      format.QualityMedium,
	})
	require.Error(t, err)
	assert.Equal(t, converr.KindConversion, converr.KindOf(err))
	assert.NoFileExists(t, filepath.Join(dir, "broken.jpg"))
}

func TestImageEngineSVGNeedsRasteriser(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	dir := t.TempDir()
	src := filepath.Join(dir, "logo.svg")
	require.NoError(t, os.WriteFile(src, []byte("<svg/>"), 0o644))

	e := NewImageEngine("", proc.NewSupervisor(nil), dir)
	err := e.Convert(context.Background(), Request{
		Source:       src,
		Output:       filepath.Join(dir, "logo.png"),
		SourceFormat: "svg",
		TargetFormat: "png",
		Quality:      format.QualityMedium,
	})
	require.Error(t, err)
	assert.Equal(t, converr.KindSystem, converr.KindOf(err))
}

func TestSetCoversAllCategories(t *testing.T) {
	s := NewSet(BinaryPaths{}, proc.NewSupervisor(nil), t.TempDir())
	for _, cat := range format.Categories {
		e, err := s.For(cat)
		require.NoError(t, err)
		assert.Equal(t, cat, e.Category())
	}

	avail := s.Availability()
	assert.Len(t, avail, 4)
	assert.NoError(t, avail[format.Image])
}

func TestIsSupported(t *testing.T) {
	s := NewSet(BinaryPaths{}, proc.NewSupervisor(nil), t.TempDir())

	video, err := s.For(format.Video)
	require.NoError(t, err)
	assert.True(t, video.IsSupported("mkv", false))
	assert.True(t, video.IsSupported("mp4", true))
	// audio targets route to the video engine for track extraction
	assert.True(t, video.IsSupported("mp3", true))
	assert.False(t, video.IsSupported("flv", true))

	img, err := s.For(format.Image)
	require.NoError(t, err)
	assert.True(t, img.IsSupported("SVG", false))
	assert.False(t, img.IsSupported("svg", true))
	assert.True(t, img.IsSupported("webp", false))
	assert.False(t, img.IsSupported("webp", true))
}
