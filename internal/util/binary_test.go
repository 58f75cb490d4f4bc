package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convarr/convarr/internal/converr"
)

func writeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func TestFindEngineConfiguredPath(t *testing.T) {
	bin := writeExecutable(t, t.TempDir(), "ffmpeg")

	got, err := FindEngine("ffmpeg", bin)
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestFindEngineConfiguredPathMissing(t *testing.T) {
	_, err := FindEngine("ffmpeg", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, converr.KindSystem, converr.KindOf(err))
}

func TestFindEngineEnvOverride(t *testing.T) {
	bin := writeExecutable(t, t.TempDir(), "ebook-convert")
	t.Setenv("CONVARR_EBOOK_CONVERT_PATH", bin)

	got, err := FindEngine("ebook-convert", "")
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}

func TestFindEngineFallsBackToPath(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, dir, "rsvg-convert")
	t.Setenv("PATH", dir)

	got, err := FindEngine("rsvg-convert", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "rsvg-convert"), got)
}

func TestFindEngineNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := FindEngine("no-such-engine", "")
	require.Error(t, err)
	assert.Equal(t, converr.KindSystem, converr.KindOf(err))
}

func TestFindEngineRejectsNonExecutable(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(plain, []byte("data"), 0o644))
	t.Setenv("PATH", dir)

	_, err := FindEngine("ffmpeg", "")
	assert.Error(t, err)
}
