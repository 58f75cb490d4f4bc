package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/convarr/convarr/internal/convert"
)

// JobHandler serves the asynchronous jobs API.
type JobHandler struct {
	orchestrator *convert.Orchestrator
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(orchestrator *convert.Orchestrator) *JobHandler {
	return &JobHandler{orchestrator: orchestrator}
}

// SubmitJobInput is the input for job submission.
type SubmitJobInput struct {
	Body ConvertRequestBody
}

// JobOutput wraps a single job snapshot.
type JobOutput struct {
	Body convert.Snapshot
}

// ListJobsOutput wraps the job list.
type ListJobsOutput struct {
	Body struct {
		Jobs []convert.Snapshot `json:"jobs"`
	}
}

// GetJobInput identifies a job by path parameter.
type GetJobInput struct {
	ID string `path:"id" doc:"Job ID"`
}

// Register registers the job routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "submitJob",
		Method:        http.MethodPost,
		Path:          "/api/v1/jobs",
		Summary:       "Submit a conversion job",
		Description:   "Starts a conversion asynchronously and returns the queued job.",
		Tags:          []string{"Jobs"},
		DefaultStatus: http.StatusAccepted,
	}, h.Submit)

	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs",
		Summary:     "List jobs",
		Tags:        []string{"Jobs"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      http.MethodGet,
		Path:        "/api/v1/jobs/{id}",
		Summary:     "Get a job",
		Tags:        []string{"Jobs"},
	}, h.Get)

	huma.Register(api, huma.Operation{
		OperationID: "cancelJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/jobs/{id}/cancel",
		Summary:     "Cancel a job",
		Description: "Requests cooperative cancellation; the job reaches the cancelled state once its engine has stopped.",
		Tags:        []string{"Jobs"},
	}, h.Cancel)
}

// Submit starts an asynchronous conversion.
func (h *JobHandler) Submit(ctx context.Context, input *SubmitJobInput) (*JobOutput, error) {
	job, err := h.orchestrator.Submit(ctx, convert.Request{
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
	return &JobOutput{Body: job.Snapshot()}, nil
}

// List returns all known jobs, newest first.
func (h *JobHandler) List(ctx context.Context, _ *struct{}) (*ListJobsOutput, error) {
	out := &ListJobsOutput{}
	out.Body.Jobs = h.orchestrator.Registry().List()
	return out, nil
}

// Get returns one job by ID.
func (h *JobHandler) Get(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	job, err := h.orchestrator.Registry().Get(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("job not found: " + input.ID)
	}
	return &JobOutput{Body: job.Snapshot()}, nil
}

// Cancel requests cancellation of one job.
func (h *JobHandler) Cancel(ctx context.Context, input *GetJobInput) (*JobOutput, error) {
	job, err := h.orchestrator.Registry().Get(input.ID)
	if err != nil {
		return nil, huma.Error404NotFound("job not found: " + input.ID)
	}
	job.Cancel()
	return &JobOutput{Body: job.Snapshot()}, nil
}
