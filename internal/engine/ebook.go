package engine

import (
	"context"

	"github.com/convarr/convarr/internal/format"
	"github.com/convarr/convarr/internal/proc"
	"github.com/convarr/convarr/internal/util"
)

// EbookEngine converts ebooks via Calibre's ebook-convert, which infers both
// formats from the file extensions and prints `NN%` progress on stdout.
type EbookEngine struct {
	binaryPath string
	supervisor *proc.Supervisor
}

// NewEbookEngine creates the Calibre-backed ebook engine.
func NewEbookEngine(binaryPath string, supervisor *proc.Supervisor) *EbookEngine {
	return &EbookEngine{binaryPath: binaryPath, supervisor: supervisor}
}

// Category implements Engine.
func (e *EbookEngine) Category() format.Category { return format.Ebook }

func (e *EbookEngine) IsSupported(f string, forOutput bool) bool {
	return supports(format.Ebook, f, forOutput)
}

// Available implements Engine.
func (e *EbookEngine) Available() error {
	_, err := util.FindEngine("ebook-convert", e.binaryPath)
	return err
}

// Convert implements Engine.
func (e *EbookEngine) Convert(ctx context.Context, req Request) error {
	bin, err := util.FindEngine("ebook-convert", e.binaryPath)
	if err != nil {
		return err
	}

	args := []string{req.Source, req.Output}
	if req.Title != "" {
		args = append(args, "--title", req.Title)
	}
	if req.Author != "" {
		args = append(args, "--authors", req.Author)
	}
	if req.TargetFormat == "pdf" {
		args = append(args,
			"--paper-size", "a4",
			"--pdf-default-font-size", "12",
			"--pdf-mono-font-size", "12",
		)
	}

	return e.supervisor.Run(ctx, proc.Spec{
		Binary:     bin,
		Args:       args,
		OutputPath: req.Output,
		Timeout:    req.Timeout,
		Parser:     proc.NewPercentProgress(),
		OnProgress: req.OnProgress,
	})
}
