// Package converr defines the structured error taxonomy shared by every
// component of the conversion pipeline. Errors are a closed set of kinds
// carried by a single struct; callers branch on the kind, never on the
// message text.
package converr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error for propagation and caller-side handling.
type Kind string

const (
	// KindUser indicates invalid caller input (unsupported format pairing,
	// unknown quality preset, missing source file). Never retried.
	KindUser Kind = "user"
	// KindSystem indicates the environment cannot service the request
	// (engine binary missing, insufficient disk space). No permit is ever
	// consumed for these.
	KindSystem Kind = "system"
	// KindConversion indicates the external engine failed mid-run.
	KindConversion Kind = "conversion"
	// KindTimeout indicates a run exceeded its deadline. Kept distinct from
	// KindConversion so callers can retry with adjusted limits.
	KindTimeout Kind = "timeout"
	// KindCollision indicates output naming exhausted its probe budget.
	KindCollision Kind = "collision"
)

// maxDiagnosticLen bounds the engine output excerpt attached to conversion
// errors so a chatty engine cannot bloat error payloads.
const maxDiagnosticLen = 500

// Error is the single error type used across the conversion core.
type Error struct {
	Kind        Kind
	Message     string
	Suggestions []string // valid alternatives, when derivable
	Diagnostic  string   // bounded excerpt of engine output
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Suggestions) > 0 {
		b.WriteString(" (try: ")
		b.WriteString(strings.Join(e.Suggestions, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithSuggestions attaches a suggestion list and returns the error.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = suggestions
	return e
}

// WithDiagnostic attaches a diagnostic excerpt, truncated to the last
// maxDiagnosticLen bytes (the tail is where engines report their failure).
func (e *Error) WithDiagnostic(output string) *Error {
	if len(output) > maxDiagnosticLen {
		output = output[len(output)-maxDiagnosticLen:]
	}
	e.Diagnostic = output
	return e
}

// FormatNotSupported reports an unsupported (source, target) pairing.
// The suggestion list carries the valid output formats of the nearest
// matching category.
func FormatNotSupported(source, target string, validOutputs []string) *Error {
	return New(KindUser, "conversion from %q to %q is not supported", source, target).
		WithSuggestions(validOutputs...)
}

// InvalidInput reports malformed caller input such as an unknown quality
// preset.
func InvalidInput(format string, args ...any) *Error {
	return New(KindUser, format, args...)
}

// SourceNotFound reports a missing or unreadable source file.
func SourceNotFound(path string) *Error {
	return New(KindUser, "source file not found: %s", path)
}

// DiskSpace reports insufficient free disk space on the output volume.
func DiskSpace(freeMB, requiredMB uint64) *Error {
	return New(KindSystem, "insufficient disk space: %dMB free, %dMB required", freeMB, requiredMB)
}

// MissingDependency reports an absent external engine binary.
func MissingDependency(binary string) *Error {
	return New(KindSystem, "required binary %q not found", binary)
}

// Conversion reports an engine-level failure with a bounded diagnostic tail.
func Conversion(message, diagnostic string) *Error {
	return New(KindConversion, "%s", message).WithDiagnostic(diagnostic)
}

// Timeout reports a run that exceeded its deadline.
func Timeout(message string) *Error {
	return New(KindTimeout, "%s", message)
}

// CollisionLimit reports an exhausted output-naming probe budget.
func CollisionLimit(path string, probes int) *Error {
	return New(KindCollision, "no free output path for %s after %d probes", path, probes)
}

// KindOf returns the kind of err, or KindSystem for errors that do not
// originate from this taxonomy (unexpected failures are environment
// failures from the caller's point of view).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// As unwraps err to a taxonomy error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
