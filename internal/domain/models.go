package domain

import (
	"time"
)

// Status is the result of one extraction attempt
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ExtractionRequest describes what to extract and where to put it
type ExtractionRequest struct {
	Source    string `json:"source"`
	StatFile  string `json:"stat_file,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
	DPI       int    `json:"dpi,omitempty"`
	Visualize bool   `json:"visualize,omitempty"`
}

// FigureSummary is the subset of a figure record surfaced to callers
type FigureSummary struct {
	Name      string `json:"name" yaml:"name"`
	FigType   string `json:"fig_type,omitempty" yaml:"fig_type,omitempty"`
	Page      int    `json:"page" yaml:"page"`
	Caption   string `json:"caption,omitempty" yaml:"caption,omitempty"`
	RenderURL string `json:"render_url,omitempty" yaml:"render_url,omitempty"`
}

// ExtractionOutcome is the result of running the external tool on one PDF.
// ErrorMessage is set iff Status is StatusFailure.
type ExtractionOutcome struct {
	FilePath       string          `json:"file_path" yaml:"file_path"`
	Status         Status          `json:"status" yaml:"status"`
	FigureCount    int             `json:"figure_count" yaml:"figure_count"`
	ElapsedSeconds float64         `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	ErrorMessage   string          `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	PageCount      int             `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	MetadataPath   string          `json:"metadata_path,omitempty" yaml:"metadata_path,omitempty"`
	Figures        []FigureSummary `json:"figures,omitempty" yaml:"figures,omitempty"`
}

// Succeeded reports whether the outcome is a success
func (o ExtractionOutcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// SuccessOutcome builds a success outcome
func SuccessOutcome(path string, figures []FigureSummary, elapsed time.Duration) ExtractionOutcome {
	return ExtractionOutcome{
		FilePath:       path,
		Status:         StatusSuccess,
		FigureCount:    len(figures),
		ElapsedSeconds: elapsed.Seconds(),
		Figures:        figures,
	}
}

// FailureOutcome builds a failure outcome. An empty message is replaced so the
// error_message field is always present on failures.
func FailureOutcome(path string, message string, elapsed time.Duration) ExtractionOutcome {
	if message == "" {
		message = "extraction failed"
	}
	return ExtractionOutcome{
		FilePath:       path,
		Status:         StatusFailure,
		ElapsedSeconds: elapsed.Seconds(),
		ErrorMessage:   message,
	}
}

// BatchResult is the ordered set of outcomes for one request
type BatchResult struct {
	BatchID        string              `json:"batch_id" yaml:"batch_id"`
	Source         string              `json:"source" yaml:"source"`
	Outcomes       []ExtractionOutcome `json:"outcomes" yaml:"outcomes"`
	Total          int                 `json:"total" yaml:"total"`
	Succeeded      int                 `json:"succeeded" yaml:"succeeded"`
	Failed         int                 `json:"failed" yaml:"failed"`
	StartedAt      time.Time           `json:"started_at" yaml:"started_at"`
	ElapsedSeconds float64             `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	StatFile       string              `json:"stat_file,omitempty" yaml:"stat_file,omitempty"`
	StatFileError  string              `json:"stat_file_error,omitempty" yaml:"stat_file_error,omitempty"`
}

// NewBatchResult builds a BatchResult from outcomes, computing aggregate counts
func NewBatchResult(batchID, source string, outcomes []ExtractionOutcome, startedAt time.Time) *BatchResult {
	if outcomes == nil {
		outcomes = []ExtractionOutcome{}
	}
	r := &BatchResult{
		BatchID:   batchID,
		Source:    source,
		Outcomes:  outcomes,
		StartedAt: startedAt,
	}
	r.Recount()
	return r
}

// Recount recomputes Total, Succeeded and Failed from Outcomes
func (r *BatchResult) Recount() {
	r.Total = len(r.Outcomes)
	r.Succeeded = 0
	r.Failed = 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
}

// TotalFigures sums figure counts over all outcomes; failures contribute 0
func (r *BatchResult) TotalFigures() int {
	n := 0
	for _, o := range r.Outcomes {
		n += o.FigureCount
	}
	return n
}

// VisualizationRequest asks for the tool's visualization CLI on one PDF
type VisualizationRequest struct {
	Source       string `json:"source"`
	Intermediate bool   `json:"intermediate,omitempty"`
}

// VisualizationResult carries the visualization CLI output
type VisualizationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Output  string `json:"output,omitempty"`
}
