package proc

import (
	"path/filepath"

	"github.com/convarr/convarr/internal/converr"
)

func timeoutError(spec Spec) error {
	return converr.Timeout(
		filepath.Base(spec.Binary) + " exceeded its time limit of " + spec.Timeout.String())
}

func conversionError(spec Spec, waitErr error, stderrTail string) error {
	return converr.Conversion(
		filepath.Base(spec.Binary)+" failed: "+waitErr.Error(), stderrTail)
}
