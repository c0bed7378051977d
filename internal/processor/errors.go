package processor

import (
	"errors"
	"fmt"

	"github.com/avermeer/docbrief/internal/executor"
)

// FileOp discriminates the two file error variants.
type FileOp string

const (
	OpRead  FileOp = "read"
	OpWrite FileOp = "write"
)

// FileError is a per-file processing failure. Inside the file loop it is
// absorbed into the report; for the report file itself (OpWrite at the top
// level) it is fatal to the run.
type FileError struct {
	Op   FileOp
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// RunError is a run-fatal failure, raised past the orchestrator to the
// worker, which logs and swallows it.
type RunError struct {
	ProjectID string
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("process project %s: %v", e.ProjectID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// categorize renders a failure into the message persisted on the Failed
// transition. File-processing and API-configuration errors carry distinct
// prefixes so operators can triage at a glance.
func categorize(err error) string {
	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return "file processing error: " + err.Error()
	}
	var cfgErr *executor.ConfigError
	if errors.As(err, &cfgErr) {
		return "AI tool error: " + err.Error()
	}
	return "project processing error: " + err.Error()
}
