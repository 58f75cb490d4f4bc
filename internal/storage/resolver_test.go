package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convarr/convarr/internal/converr"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestResolveNoCollision(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	touch(t, src)

	r := NewResolver("", nil)
	got, err := r.Resolve(src, "mp4", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "movie.mp4"), got)
}

func TestResolveProbesSuffixes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "movie.mkv")
	touch(t, src)
	touch(t, filepath.Join(dir, "movie.mp4"))
	touch(t, filepath.Join(dir, "movie_1.mp4"))

	r := NewResolver("", nil)
	got, err := r.Resolve(src, "mp4", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "movie_2.mp4"), got)
}

func TestResolveCollisionLimit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "doc.epub")
	touch(t, src)
	touch(t, filepath.Join(dir, "doc.pdf"))
	for i := 1; i <= maxCollisionProbes; i++ {
		touch(t, filepath.Join(dir, fmt.Sprintf("doc_%d.pdf", i)))
	}

	r := NewResolver("", nil)
	_, err := r.Resolve(src, "pdf", "")
	require.Error(t, err)
	assert.Equal(t, converr.KindCollision, converr.KindOf(err))
}

func TestResolveOutputDirPrecedence(t *testing.T) {
	srcDir := t.TempDir()
	cfgDir := t.TempDir()
	reqDir := t.TempDir()
	src := filepath.Join(srcDir, "song.flac")
	touch(t, src)

	// Request override wins over the configured directory.
	r := NewResolver(cfgDir, nil)
	got, err := r.Resolve(src, "mp3", reqDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(reqDir, "song.mp3"), got)

	// Configured directory wins over the source directory.
	got, err = r.Resolve(src, "mp3", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfgDir, "song.mp3"), got)

	// No configuration at all falls back to the source directory.
	got, err = NewResolver("", nil).Resolve(src, "mp3", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(srcDir, "song.mp3"), got)
}

func TestResolveCreatesOutputDir(t *testing.T) {
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "a.png")
	touch(t, src)

	nested := filepath.Join(t.TempDir(), "deep", "out")
	got, err := NewResolver("", nil).Resolve(src, "jpg", nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(nested, "a.jpg"), got)
	assert.DirExists(t, nested)
}

func TestResolveRejectsBadSource(t *testing.T) {
	r := NewResolver("", nil)

	_, err := r.Resolve(filepath.Join(t.TempDir(), "missing.mp4"), "mkv", "")
	require.Error(t, err)
	assert.Equal(t, converr.KindUser, converr.KindOf(err))

	_, err = r.Resolve(t.TempDir(), "mkv", "")
	require.Error(t, err)
	assert.Equal(t, converr.KindUser, converr.KindOf(err))
}

func TestResolveDottedFormatAndCase(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "photo.tiff")
	touch(t, src)

	got, err := NewResolver("", nil).Resolve(src, ".PNG", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "photo.png"), got)
}
