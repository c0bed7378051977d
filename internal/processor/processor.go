// Package processor drives the project state machine for a single run:
// Pending -> Processing -> {Completed, Failed}.
//
// Failure handling is two-tiered. Errors reading or summarizing one file are
// rendered into the report and never abort the run; errors in setup (project
// load, tool resolution, executor construction, report creation) or in
// writing the report itself are run-fatal and move the project to Failed.
package processor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avermeer/docbrief/internal/collector"
	"github.com/avermeer/docbrief/internal/executor"
	"github.com/avermeer/docbrief/internal/models"
	"github.com/avermeer/docbrief/internal/store"
	"github.com/sirupsen/logrus"
)

// Factory builds an executor for a resolved tool record.
type Factory func(models.AITool) (executor.Executor, error)

// Processor runs the processing lifecycle for one project at a time.
type Processor struct {
	projects  *store.ProjectStore
	tools     *store.AIToolStore
	collector *collector.Collector
	factory   Factory
	reportDir string
	log       *logrus.Entry
}

// New creates a Processor.
func New(projects *store.ProjectStore, tools *store.AIToolStore, coll *collector.Collector, factory Factory, reportDir string, log *logrus.Entry) *Processor {
	return &Processor{
		projects:  projects,
		tools:     tools,
		collector: coll,
		factory:   factory,
		reportDir: reportDir,
		log:       log,
	}
}

// ReportPath returns the Markdown report location for a project.
func ReportPath(reportDir, projectID string) string {
	return filepath.Join(reportDir, projectID+".md")
}

// promptPath returns the debug artifact location for a project. The file is
// rewritten for every processed file; it is a diagnostic aid only.
func promptPath(reportDir, projectID string) string {
	return filepath.Join(reportDir, projectID+".prompt.json")
}

// Process executes one run. The Processing state is persisted before any AI
// call so observers see it even if the run later dies uncleanly. The
// returned error is for the worker's log only; the store already holds the
// final state by the time Process returns.
func (p *Processor) Process(ctx context.Context, projectID string) error {
	project, err := p.projects.FindByID(projectID)
	if err != nil {
		// No state to persist: there is no record to transition.
		return &RunError{ProjectID: projectID, Err: err}
	}

	project.StartProcessing(time.Now())
	if err := p.projects.Save(*project); err != nil {
		return &RunError{ProjectID: projectID, Err: fmt.Errorf("persist processing state: %w", err)}
	}

	processed, runErr := p.run(ctx, project)
	if runErr != nil {
		project.Fail(time.Now(), categorize(runErr))
		if saveErr := p.projects.Save(*project); saveErr != nil {
			p.log.WithError(saveErr).Error("failed to persist failed state")
		}
		return &RunError{ProjectID: projectID, Err: runErr}
	}

	message := fmt.Sprintf("processed %d files", len(processed))
	project.Complete(time.Now(), processed, message)
	if err := p.projects.Save(*project); err != nil {
		return &RunError{ProjectID: projectID, Err: fmt.Errorf("persist completed state: %w", err)}
	}
	return nil
}

// run performs setup and the file loop, returning the processed file names.
func (p *Processor) run(ctx context.Context, project *models.Project) ([]string, error) {
	tool, err := p.tools.FindByID(project.Tool)
	if err != nil {
		return nil, err
	}

	exec, err := p.factory(*tool)
	if err != nil {
		return nil, err
	}

	report, err := p.openReport(project, tool)
	if err != nil {
		return nil, err
	}
	defer report.Close()

	files, err := p.collector.CollectFiles(project.Source)
	if err != nil {
		return nil, &FileError{Op: OpRead, Path: project.Source, Err: err}
	}

	processed := []string{}
	for _, path := range files {
		name := filepath.Base(path)
		flog := p.log.WithField("file", name)

		content, images, err := p.collector.ReadContent(path)
		if err != nil {
			flog.WithError(err).Warn("file read failed")
			readErr := &FileError{Op: OpRead, Path: path, Err: err}
			if werr := p.writeFileError(report, name, "file processing error", readErr); werr != nil {
				return processed, werr
			}
			continue
		}
		if strings.TrimSpace(content) == "" {
			// Empty files are skipped: not an error, not counted as processed.
			flog.Debug("skipping empty file")
			continue
		}

		if err := p.writePrompt(project.ID, content, images); err != nil {
			// Debug artifact only; never fails the file.
			flog.WithError(err).Warn("failed to write prompt artifact")
		}

		summary, err := exec.Execute(ctx, content, images)
		if err != nil {
			flog.WithError(err).Warn("summarization failed")
			if werr := p.writeFileError(report, name, "AI tool error", err); werr != nil {
				return processed, werr
			}
			continue
		}

		if err := p.writeSummary(report, name, summary); err != nil {
			return processed, err
		}
		processed = append(processed, name)
		flog.Info("file summarized")
	}

	return processed, nil
}

// openReport prepares the report file, deleting any previous report for this
// project so a re-run is idempotent.
func (p *Processor) openReport(project *models.Project, tool *models.AITool) (*os.File, error) {
	if err := os.MkdirAll(p.reportDir, 0755); err != nil {
		return nil, &FileError{Op: OpWrite, Path: p.reportDir, Err: err}
	}

	path := ReportPath(p.reportDir, project.ID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, &FileError{Op: OpWrite, Path: path, Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, &FileError{Op: OpWrite, Path: path, Err: err}
	}

	title := fmt.Sprintf("# %s summary of project %q\n", tool.Name, project.Name)
	if _, err := f.WriteString(title); err != nil {
		f.Close()
		return nil, &FileError{Op: OpWrite, Path: path, Err: err}
	}
	return f, nil
}

func (p *Processor) writeSummary(report *os.File, name, summary string) error {
	section := fmt.Sprintf("\n## file: %s\n\n### result\n\n%s\n", name, summary)
	if _, err := report.WriteString(section); err != nil {
		return &FileError{Op: OpWrite, Path: report.Name(), Err: err}
	}
	return nil
}

func (p *Processor) writeFileError(report *os.File, name, label string, cause error) error {
	section := fmt.Sprintf("\n## file: %s\n\n> %s: %v\n", name, label, cause)
	if _, err := report.WriteString(section); err != nil {
		return &FileError{Op: OpWrite, Path: report.Name(), Err: err}
	}
	return nil
}

type promptEntry struct {
	Type   string `json:"type"`
	Figure int    `json:"figure,omitempty"`
	Data   string `json:"data"`
}

// writePrompt records the exact payload sent for the current file.
func (p *Processor) writePrompt(projectID, content string, images []collector.Image) error {
	entries := []promptEntry{{Type: "text", Data: content}}
	for _, img := range images {
		entries = append(entries, promptEntry{
			Type:   "image",
			Figure: img.Figure,
			Data:   base64.StdEncoding.EncodeToString(img.Data),
		})
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(promptPath(p.reportDir, projectID), data, 0644)
}
