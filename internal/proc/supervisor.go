// Package proc supervises external engine subprocesses: process-group
// isolation, tree termination on cancel or timeout, progress scanning, a
// bounded stderr tail for diagnostics, and partial-output cleanup on every
// non-success path.
package proc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// maxStderrTail bounds the retained stderr lines per run.
const maxStderrTail = 100

// Spec describes one engine invocation.
type Spec struct {
	Binary string
	Args   []string

	// OutputPath, when set, is removed whenever the run does not succeed.
	// Engines never leave partial artifacts behind.
	OutputPath string

	// Timeout bounds the run; zero means no deadline beyond ctx.
	Timeout time.Duration

	// Parser extracts progress from engine output; nil disables scanning.
	Parser ProgressParser

	// OnProgress receives percentages as the parser emits them. Called from
	// the scanning goroutines; must not block.
	OnProgress func(percent float64)
}

// Supervisor runs engine subprocesses under a shared logger.
type Supervisor struct {
	logger *slog.Logger
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{logger: logger.With("component", "supervisor")}
}

// Run executes the spec to completion. The subprocess is placed in its own
// process group so that termination reaches the whole engine tree, not just
// the direct child. Returned errors carry the taxonomy kind the caller
// needs: timeout for deadline hits, conversion (with stderr tail) for engine
// failures, and the raw context error for cancellation.
func (s *Supervisor) Run(ctx context.Context, spec Spec) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.Command(spec.Binary, spec.Args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		s.removePartial(spec.OutputPath)
		return fmt.Errorf("starting %s: %w", spec.Binary, err)
	}
	s.logger.Debug("engine started", "binary", spec.Binary, "pid", cmd.Process.Pid)

	tail := newTailBuffer(maxStderrTail)
	var scanners sync.WaitGroup
	scanners.Add(2)
	go func() {
		defer scanners.Done()
		s.scan(stdout, spec, nil)
	}()
	go func() {
		defer scanners.Done()
		s.scan(stderr, spec, tail)
	}()

	waitErr := make(chan error, 1)
	go func() {
		scanners.Wait()
		waitErr <- cmd.Wait()
	}()

	select {
	case <-runCtx.Done():
		killTree(cmd.Process.Pid)
		<-waitErr
		s.removePartial(spec.OutputPath)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			s.logger.Warn("engine timed out", "binary", spec.Binary, "timeout", spec.Timeout)
			return timeoutError(spec)
		}
		s.logger.Info("engine cancelled", "binary", spec.Binary, "elapsed", time.Since(start))
		return ctx.Err()

	case err := <-waitErr:
		if err != nil {
			s.removePartial(spec.OutputPath)
			s.logger.Error("engine failed", "binary", spec.Binary, "error", err)
			return conversionError(spec, err, tail.String())
		}
		s.logger.Debug("engine finished", "binary", spec.Binary, "elapsed", time.Since(start))
		return nil
	}
}

// scan reads one output stream line by line, feeding the progress parser
// and, when tail is non-nil, the diagnostic ring buffer.
func (s *Supervisor) scan(r io.Reader, spec Spec, tail *tailBuffer) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitLines)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if tail != nil {
			tail.Add(line)
		}
		if spec.Parser == nil || spec.OnProgress == nil {
			continue
		}
		if pct, ok := spec.Parser.Parse(line); ok {
			spec.OnProgress(pct)
		}
	}
}

func (s *Supervisor) removePartial(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("removing partial output", "path", path, "error", err)
	}
}

// tailBuffer keeps the most recent lines of a stream.
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	max   int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := ""
	for i, l := range b.lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
