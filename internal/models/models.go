// Package models defines the core domain types for Docbrief.
package models

import "time"

// Status is the lifecycle state of a project. It is never stored: it is
// always derived from the executed/finished timestamps and the run result,
// so it cannot drift out of sync with them.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Result is the aggregate outcome of a run. Exactly one shape is populated:
// the success shape (ProcessedFiles + Message) or the error shape (Error).
type Result struct {
	ProcessedFiles []string `json:"processed_files,omitempty"`
	Message        string   `json:"message,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Failed reports whether the result carries an error payload.
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// Project is a named source directory bound to one AI tool.
type Project struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Source     string     `json:"source"`
	Tool       string     `json:"tool"`
	Result     *Result    `json:"result"`
	CreatedAt  time.Time  `json:"created_at"`
	ExecutedAt *time.Time `json:"executed_at"`
	FinishedAt *time.Time `json:"finished_at"`
}

// Status derives the lifecycle state from the timestamps and result.
func (p *Project) Status() Status {
	switch {
	case p.ExecutedAt == nil:
		return StatusPending
	case p.FinishedAt == nil:
		return StatusProcessing
	case p.Result.Failed():
		return StatusFailed
	default:
		return StatusCompleted
	}
}

// StartProcessing marks the run as started. The caller persists the project
// immediately so observers see Processing before any AI call is made.
func (p *Project) StartProcessing(now time.Time) {
	t := now.UTC()
	p.ExecutedAt = &t
	p.FinishedAt = nil
	p.Result = nil
}

// Complete records a successful run outcome.
func (p *Project) Complete(now time.Time, processed []string, message string) {
	t := now.UTC()
	p.FinishedAt = &t
	p.Result = &Result{ProcessedFiles: processed, Message: message}
}

// Fail records a failed run outcome.
func (p *Project) Fail(now time.Time, msg string) {
	t := now.UTC()
	p.FinishedAt = &t
	p.Result = &Result{Error: msg}
}

// AITool is a named external HTTP endpoint capable of summarizing text and
// images. A disabled tool is never offered for new projects but stays
// resolvable for projects that already reference it.
type AITool struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	EndpointURL string     `json:"endpoint_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DisabledAt  *time.Time `json:"disabled_at"`
}

// Active reports whether the tool may be bound to new projects.
func (t *AITool) Active() bool {
	return t.DisabledAt == nil
}
