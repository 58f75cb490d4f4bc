// Package util provides shared utility functions.
package util

import (
	"os"
	"os/exec"
	"strings"

	"github.com/convarr/convarr/internal/converr"
)

// FindEngine locates an external engine binary (ffmpeg, ebook-convert,
// rsvg-convert). Search order:
//  1. configuredPath from the config file, when set
//  2. CONVARR_<NAME>_PATH environment variable
//  3. ./name (current directory, useful for development)
//  4. name on PATH (via exec.LookPath)
//
// Every candidate is verified to exist and be executable. A miss is a
// system error; conversions needing the engine fail, the rest of the
// service keeps running.
func FindEngine(name string, configuredPath string) (string, error) {
	if configuredPath != "" {
		if isExecutable(configuredPath) {
			return configuredPath, nil
		}
		return "", converr.MissingDependency(configuredPath)
	}

	if envPath := os.Getenv(engineEnvVar(name)); envPath != "" {
		if isExecutable(envPath) {
			return envPath, nil
		}
	}

	localPath := "./" + name
	if isExecutable(localPath) {
		return localPath, nil
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	return "", converr.MissingDependency(name)
}

// engineEnvVar maps a binary name to its override variable, e.g.
// ebook-convert -> CONVARR_EBOOK_CONVERT_PATH.
func engineEnvVar(name string) string {
	upper := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	return "CONVARR_" + upper + "_PATH"
}

// isExecutable checks if a file exists and is executable by the current user.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	return info.Mode()&0111 != 0
}
