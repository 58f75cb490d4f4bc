package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/convarr/convarr/internal/format"
)

// FormatHandler serves the capability-matrix endpoints.
type FormatHandler struct{}

// NewFormatHandler creates a FormatHandler.
func NewFormatHandler() *FormatHandler {
	return &FormatHandler{}
}

// ListFormatsOutput is the capability matrix keyed by category.
type ListFormatsOutput struct {
	Body struct {
		Formats map[format.Category]format.Capability `json:"formats"`
	}
}

// ConversionInfoInput identifies a (source, target) pairing.
type ConversionInfoInput struct {
	Source string `query:"source" required:"true" doc:"Source format extension" example:"mkv"`
	Target string `query:"target" required:"true" doc:"Target format extension" example:"mp4"`
}

// ConversionInfo describes whether and how a pairing converts.
type ConversionInfo struct {
	Source         string          `json:"source"`
	Target         string          `json:"target"`
	Supported      bool            `json:"supported"`
	Category       format.Category `json:"category,omitempty"`
	QualityOptions []string        `json:"quality_options"`
	Notes          string          `json:"notes,omitempty"`
	ValidTargets   []string        `json:"valid_targets,omitempty"`
}

// ConversionInfoOutput wraps ConversionInfo.
type ConversionInfoOutput struct {
	Body ConversionInfo
}

// Register registers the format routes with the API.
func (h *FormatHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listFormats",
		Method:      http.MethodGet,
		Path:        "/api/v1/formats",
		Summary:     "List supported formats",
		Description: "Returns the input and output format sets per engine category.",
		Tags:        []string{"Formats"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getConversionInfo",
		Method:      http.MethodGet,
		Path:        "/api/v1/formats/info",
		Summary:     "Check a conversion pairing",
		Description: "Reports whether a source-to-target conversion is supported and which engine handles it.",
		Tags:        []string{"Formats"},
	}, h.Info)
}

// List returns the full capability matrix.
func (h *FormatHandler) List(ctx context.Context, _ *struct{}) (*ListFormatsOutput, error) {
	out := &ListFormatsOutput{}
	out.Body.Formats = format.SupportedConversions()
	return out, nil
}

// Info reports on one pairing. Unsupported pairings are a normal answer
// here, not an error.
func (h *FormatHandler) Info(ctx context.Context, input *ConversionInfoInput) (*ConversionInfoOutput, error) {
	src := format.Normalize(input.Source)
	tgt := format.Normalize(input.Target)

	// quality_options is always present: the tier list when supported,
	// empty otherwise.
	info := ConversionInfo{Source: src, Target: tgt, QualityOptions: []string{}}

	category, err := format.Route(src, tgt)
	if err == nil {
		info.Supported = true
		info.Category = category
		info.QualityOptions = format.QualityOptions()
		if category == format.Video && format.Audio.IsOutput(tgt) && !format.Video.IsOutput(tgt) {
			info.Notes = "audio track is extracted from the video source"
		}
		return &ConversionInfoOutput{Body: info}, nil
	}

	info.ValidTargets = format.ValidTargets(src)
	if info.ValidTargets == nil {
		info.Notes = fmt.Sprintf("format %q is not recognised by any engine", src)
	} else {
		info.Notes = fmt.Sprintf("%q cannot be produced from %q", tgt, src)
	}
	return &ConversionInfoOutput{Body: info}, nil
}
