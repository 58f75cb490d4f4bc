package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/convarr/convarr/internal/convert"
)

// ConvertHandler serves the synchronous conversion endpoint.
type ConvertHandler struct {
	orchestrator *convert.Orchestrator
}

// NewConvertHandler creates a ConvertHandler.
func NewConvertHandler(orchestrator *convert.Orchestrator) *ConvertHandler {
	return &ConvertHandler{orchestrator: orchestrator}
}

// ConvertRequestBody is the conversion request payload.
type ConvertRequestBody struct {
	SourcePath   string `json:"source_path" doc:"Path to the source file" example:"/data/in/movie.mkv"`
	TargetFormat string `json:"target_format" doc:"Target format extension" example:"mp4"`
	Quality      string `json:"quality,omitempty" enum:"low,medium,high" doc:"Quality tier, medium by default"`
	OutputDir    string `json:"output_dir,omitempty" doc:"Output directory override"`
	Title        string `json:"title,omitempty" doc:"Ebook title metadata"`
	Author       string `json:"author,omitempty" doc:"Ebook author metadata"`
}

// ConvertInput is the input for the convert endpoint.
type ConvertInput struct {
	Body ConvertRequestBody
}

// ConvertResult is the conversion outcome payload.
type ConvertResult struct {
	Status     string `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	Message    string `json:"message"`
	Format     string `json:"format"`
	JobID      string `json:"job_id"`
}

// ConvertOutput is the output for the convert endpoint.
type ConvertOutput struct {
	Body ConvertResult
}

// Register registers the convert route with the API.
func (h *ConvertHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "convertFile",
		Method:        http.MethodPost,
		Path:          "/api/v1/convert",
		Summary:       "Convert a file",
		Description:   "Converts a file to the target format and blocks until the conversion finishes.",
		Tags:          []string{"Conversion"},
		DefaultStatus: http.StatusOK,
	}, h.Convert)
}

// Convert runs a conversion synchronously.
func (h *ConvertHandler) Convert(ctx context.Context, input *ConvertInput) (*ConvertOutput, error) {
	snap, err := h.orchestrator.Convert(ctx, convert.Request{
		Source:       input.Body.SourcePath,
		TargetFormat: input.Body.TargetFormat,
		Quality:      input.Body.Quality,
		OutputDir:    input.Body.OutputDir,
		Title:        input.Body.Title,
		Author:       input.Body.Author,
	})
	if err != nil {
		return nil, apiError(err)
	}

	return &ConvertOutput{Body: ConvertResult{
		Status:     "success",
		OutputPath: snap.OutputPath,
		Message:    fmt.Sprintf("converted %s to %s", input.Body.SourcePath, input.Body.TargetFormat),
		Format:     snap.TargetFormat,
		JobID:      snap.ID,
	}}, nil
}
