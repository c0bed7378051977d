// Package controlplane provides the HTTP API and service layer of the
// docbrief daemon.
package controlplane

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/avermeer/docbrief/internal/audit"
	"github.com/avermeer/docbrief/internal/executor"
	"github.com/avermeer/docbrief/internal/models"
	"github.com/avermeer/docbrief/internal/processor"
	"github.com/avermeer/docbrief/internal/store"
	"github.com/avermeer/docbrief/internal/worker"
	"github.com/sirupsen/logrus"
)

// Service provides the control plane business logic.
type Service struct {
	projects  *store.ProjectStore
	tools     *store.AIToolStore
	events    *audit.Log
	registry  *worker.Registry
	reportDir string
	logger    *logrus.Logger
}

// NewService creates a control plane service.
func NewService(projects *store.ProjectStore, tools *store.AIToolStore, events *audit.Log, registry *worker.Registry, reportDir string, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		projects:  projects,
		tools:     tools,
		events:    events,
		registry:  registry,
		reportDir: reportDir,
		logger:    logger,
	}
}

// --- Project operations ---

// CreateProject registers a project bound to an AI tool. The tool must exist
// and be active; disabled tools are not offered for new bindings.
func (s *Service) CreateProject(name, source, toolID string) (*models.Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: source directory is required", ErrInvalidInput)
	}

	tool, err := s.tools.FindByID(toolID)
	if err != nil {
		return nil, err
	}
	if !tool.Active() {
		return nil, fmt.Errorf("%w: %s", ErrToolDisabled, tool.Name)
	}

	project, err := s.projects.Create(name, source, toolID)
	if err != nil {
		return nil, err
	}

	s.events.Record("project.create", project.ID, "success", name)
	return project, nil
}

// GetProject retrieves a project by id.
func (s *Service) GetProject(id string) (*models.Project, error) {
	return s.projects.FindByID(id)
}

// ListProjects returns every registered project.
func (s *Service) ListProjects() ([]models.Project, error) {
	return s.projects.FindAll()
}

// RunProject dispatches a worker for the project and returns its worker id.
// The run itself proceeds asynchronously; outcomes land in the store.
func (s *Service) RunProject(id string) (string, error) {
	if _, err := s.projects.FindByID(id); err != nil {
		return "", err
	}

	deps := worker.Deps{
		Projects:  s.projects,
		Tools:     s.tools,
		Events:    s.events,
		ReportDir: s.reportDir,
		Logger:    s.logger,
	}

	workerID, err := s.registry.Dispatch(id, func(workerID string) {
		worker.New(id, workerID, deps).Run()
	})
	if err != nil {
		s.events.Record("run.dispatch", id, "error", err.Error())
		return "", err
	}

	s.events.Record("run.dispatch", id, "success", workerID)
	return workerID, nil
}

// ProjectReport returns the Markdown report for the project's latest run.
func (s *Service) ProjectReport(id string) ([]byte, error) {
	if _, err := s.projects.FindByID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(processor.ReportPath(s.reportDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project %s: %w", id, ErrReportNotReady)
		}
		return nil, fmt.Errorf("read report: %w", err)
	}
	return data, nil
}

// ProjectEvents returns the audit trail for a project, newest first.
func (s *Service) ProjectEvents(id string) ([]audit.Event, error) {
	if _, err := s.projects.FindByID(id); err != nil {
		return nil, err
	}
	return s.events.ForEntity(id)
}

// RecoverStaleRuns fails every project left in the processing state by a
// previous daemon. The registry is in-memory, so after a restart no worker
// can still be attached to such a record. Called once at startup before the
// API starts accepting runs.
func (s *Service) RecoverStaleRuns() (int, error) {
	projects, err := s.projects.FindAll()
	if err != nil {
		return 0, err
	}

	recovered := 0
	for i := range projects {
		p := &projects[i]
		if p.Status() != models.StatusProcessing {
			continue
		}
		p.Fail(time.Now(), "project processing error: run interrupted by daemon restart")
		if err := s.projects.Save(*p); err != nil {
			return recovered, err
		}
		s.events.Record("run.recover", p.ID, "error", "stale processing record failed at startup")
		s.logger.WithField("project_id", p.ID).Warn("recovered stale processing record")
		recovered++
	}
	return recovered, nil
}

// Workers returns registry statistics.
func (s *Service) Workers() map[string]interface{} {
	return s.registry.Stats()
}

// --- AI tool operations ---

// CreateTool registers an AI tool.
func (s *Service) CreateTool(name, description, endpointURL string) (*models.AITool, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(endpointURL) == "" {
		return nil, fmt.Errorf("%w: endpoint URL is required", ErrInvalidInput)
	}

	tool, err := s.tools.Create(name, description, endpointURL)
	if err != nil {
		return nil, err
	}

	s.events.Record("tool.create", tool.ID, "success", name)
	return tool, nil
}

// GetTool retrieves an AI tool by id.
func (s *Service) GetTool(id string) (*models.AITool, error) {
	return s.tools.FindByID(id)
}

// ListTools returns active tools, or every tool when all is true.
func (s *Service) ListTools(all bool) ([]models.AITool, error) {
	if all {
		return s.tools.FindAll()
	}
	return s.tools.FindActive()
}

// EnableTool clears a tool's disabled flag.
func (s *Service) EnableTool(id string) (*models.AITool, error) {
	tool, err := s.tools.Enable(id)
	if err != nil {
		return nil, err
	}
	s.events.Record("tool.enable", id, "success", "")
	return tool, nil
}

// DisableTool marks a tool disabled. Projects already bound to it keep
// working; it just stops being offered for new projects.
func (s *Service) DisableTool(id string) (*models.AITool, error) {
	tool, err := s.tools.Disable(id)
	if err != nil {
		return nil, err
	}
	s.events.Record("tool.disable", id, "success", "")
	return tool, nil
}

// CheckTool probes the tool's endpoint for reachability.
func (s *Service) CheckTool(ctx context.Context, id string) error {
	tool, err := s.tools.FindByID(id)
	if err != nil {
		return err
	}

	if err := executor.Probe(ctx, *tool); err != nil {
		s.events.Record("tool.check", id, "error", err.Error())
		return err
	}

	s.events.Record("tool.check", id, "success", "")
	return nil
}
