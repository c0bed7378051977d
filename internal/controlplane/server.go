package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/avermeer/docbrief/internal/audit"
	"github.com/avermeer/docbrief/internal/models"
	"github.com/avermeer/docbrief/internal/store"
	"github.com/avermeer/docbrief/internal/worker"
	"github.com/sirupsen/logrus"
)

// Server provides the HTTP API of the docbrief daemon.
type Server struct {
	service *Service
	addr    string
	log     *logrus.Logger
	server  *http.Server
}

// NewServer creates an HTTP server around the service.
func NewServer(service *Service, addr string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		service: service,
		addr:    addr,
		log:     log,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/projects", s.handleProjects)
	mux.HandleFunc("/projects/", s.handleProjectByID)
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/tools/", s.handleToolByID)
	mux.HandleFunc("/workers", s.handleWorkers)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	return mux
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.log.WithField("addr", s.addr).Info("starting docbrief daemon")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// projectView is the API shape of a project: the stored record plus the
// derived status.
type projectView struct {
	models.Project
	Status models.Status `json:"status"`
}

func viewOf(p models.Project) projectView {
	return projectView{Project: p, Status: p.Status()}
}

// writeError maps sentinel errors to HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrReportNotReady):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ErrToolDisabled), errors.Is(err, worker.ErrAlreadyRunning):
		status = http.StatusConflict
	case errors.Is(err, worker.ErrAtCapacity):
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- Project handlers ---

// handleProjects handles POST /projects and GET /projects
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createProject(w, r)
	case http.MethodGet:
		s.listProjects(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleProjectByID handles /projects/{id}/*
func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/projects/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "project id required", http.StatusBadRequest)
		return
	}

	projectID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getProject(w, r, projectID)
	case action == "run" && r.Method == http.MethodPost:
		s.runProject(w, r, projectID)
	case action == "report" && r.Method == http.MethodGet:
		s.getProjectReport(w, r, projectID)
	case action == "events" && r.Method == http.MethodGet:
		s.getProjectEvents(w, r, projectID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type createProjectRequest struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Tool   string `json:"tool"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	project, err := s.service.CreateProject(req.Name, req.Source, req.Tool)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, viewOf(*project))
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.service.ListProjects()
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, viewOf(p))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request, projectID string) {
	project, err := s.service.GetProject(projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(*project))
}

func (s *Server) runProject(w http.ResponseWriter, r *http.Request, projectID string) {
	workerID, err := s.service.RunProject(projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"project_id": projectID,
		"worker_id":  workerID,
	})
}

func (s *Server) getProjectReport(w http.ResponseWriter, r *http.Request, projectID string) {
	report, err := s.service.ProjectReport(projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write(report)
}

func (s *Server) getProjectEvents(w http.ResponseWriter, r *http.Request, projectID string) {
	events, err := s.service.ProjectEvents(projectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if events == nil {
		events = []audit.Event{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

// --- AI tool handlers ---

// handleTools handles POST /tools and GET /tools
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createTool(w, r)
	case http.MethodGet:
		s.listTools(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleToolByID handles /tools/{id}/*
func (s *Server) handleToolByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/tools/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "tool id required", http.StatusBadRequest)
		return
	}

	toolID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.getTool(w, r, toolID)
	case action == "enable" && r.Method == http.MethodPost:
		s.enableTool(w, r, toolID)
	case action == "disable" && r.Method == http.MethodPost:
		s.disableTool(w, r, toolID)
	case action == "health" && r.Method == http.MethodGet:
		s.checkTool(w, r, toolID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

type createToolRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EndpointURL string `json:"endpoint_url"`
}

func (s *Server) createTool(w http.ResponseWriter, r *http.Request) {
	var req createToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	tool, err := s.service.CreateTool(req.Name, req.Description, req.EndpointURL)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, tool)
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	all := r.URL.Query().Get("all") == "true"
	tools, err := s.service.ListTools(all)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if tools == nil {
		tools = []models.AITool{}
	}
	s.writeJSON(w, http.StatusOK, tools)
}

func (s *Server) getTool(w http.ResponseWriter, r *http.Request, toolID string) {
	tool, err := s.service.GetTool(toolID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tool)
}

func (s *Server) enableTool(w http.ResponseWriter, r *http.Request, toolID string) {
	tool, err := s.service.EnableTool(toolID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tool)
}

func (s *Server) disableTool(w http.ResponseWriter, r *http.Request, toolID string) {
	tool, err := s.service.DisableTool(toolID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tool)
}

func (s *Server) checkTool(w http.ResponseWriter, r *http.Request, toolID string) {
	if err := s.service.CheckTool(r.Context(), toolID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"tool_id":   toolID,
			"reachable": false,
			"error":     err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"tool_id":   toolID,
		"reachable": true,
	})
}

// --- Worker handlers ---

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, s.service.Workers())
}
