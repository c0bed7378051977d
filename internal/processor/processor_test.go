package processor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/avermeer/docbrief/internal/collector"
	"github.com/avermeer/docbrief/internal/executor"
	"github.com/avermeer/docbrief/internal/models"
	"github.com/avermeer/docbrief/internal/store"
	"github.com/sirupsen/logrus"
)

type testEnv struct {
	projects  *store.ProjectStore
	tools     *store.AIToolStore
	reportDir string
	proc      *Processor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	projects, err := store.NewProjectStore(filepath.Join(dir, "projects.json"))
	if err != nil {
		t.Fatalf("NewProjectStore failed: %v", err)
	}
	tools, err := store.NewAIToolStore(filepath.Join(dir, "ai_tools.json"))
	if err != nil {
		t.Fatalf("NewAIToolStore failed: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	reportDir := filepath.Join(dir, "reports")
	proc := New(projects, tools, collector.New(), executor.New, reportDir, logrus.NewEntry(logger))
	return &testEnv{projects: projects, tools: tools, reportDir: reportDir, proc: proc}
}

// summaryServer returns a server answering every request with a fixed summary.
func summaryServer(t *testing.T, summary string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"result": summary})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	return dir
}

func TestProcess_SingleFileCompleted(t *testing.T) {
	env := newTestEnv(t)
	srv := summaryServer(t, "summary of the file")

	tool, _ := env.tools.Create("summarizer", "", srv.URL)
	src := writeSource(t, map[string]string{"file.txt": "some content"})
	project, _ := env.projects.Create("P", src, tool.ID)

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := env.projects.FindByID(project.ID)
	if got.Status() != models.StatusCompleted {
		t.Fatalf("Expected status completed, got %s", got.Status())
	}
	if len(got.Result.ProcessedFiles) != 1 || got.Result.ProcessedFiles[0] != "file.txt" {
		t.Errorf("Expected processed_files [file.txt], got %v", got.Result.ProcessedFiles)
	}

	report, err := os.ReadFile(ReportPath(env.reportDir, project.ID))
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !strings.Contains(string(report), "## file: file.txt") {
		t.Errorf("Report missing file section:\n%s", report)
	}
	if !strings.Contains(string(report), "summary of the file") {
		t.Errorf("Report missing summary:\n%s", report)
	}

	// Debug artifact carries the payload of the last processed file.
	prompt, err := os.ReadFile(promptPath(env.reportDir, project.ID))
	if err != nil {
		t.Fatalf("Failed to read prompt artifact: %v", err)
	}
	var entries []promptEntry
	if err := json.Unmarshal(prompt, &entries); err != nil {
		t.Fatalf("prompt.json is not valid JSON: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != "text" || entries[0].Data != "some content" {
		t.Errorf("Unexpected prompt entries: %+v", entries)
	}
}

func TestProcess_EndpointFailureIsFileScoped(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	tool, _ := env.tools.Create("summarizer", "", srv.URL)
	src := writeSource(t, map[string]string{"file.txt": "some content"})
	project, _ := env.projects.Create("P", src, tool.ID)

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	// The API failure is absorbed per file: the run still completes.
	got, _ := env.projects.FindByID(project.ID)
	if got.Status() != models.StatusCompleted {
		t.Fatalf("Expected status completed, got %s (result %+v)", got.Status(), got.Result)
	}
	if len(got.Result.ProcessedFiles) != 0 {
		t.Errorf("Expected no processed files, got %v", got.Result.ProcessedFiles)
	}

	report, _ := os.ReadFile(ReportPath(env.reportDir, project.ID))
	if !strings.Contains(string(report), "## file: file.txt") {
		t.Errorf("Report missing attempted-file section:\n%s", report)
	}
	if !strings.Contains(string(report), "AI tool error") {
		t.Errorf("Report missing inline error block:\n%s", report)
	}
}

func TestProcess_PerFileReadFailureDoesNotAbort(t *testing.T) {
	env := newTestEnv(t)
	srv := summaryServer(t, "ok")

	tool, _ := env.tools.Create("summarizer", "", srv.URL)
	src := writeSource(t, map[string]string{
		"good.txt":    "fine content",
		"broken.xlsx": "this is not a real workbook",
	})
	project, _ := env.projects.Create("P", src, tool.ID)

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := env.projects.FindByID(project.ID)
	if got.Status() != models.StatusCompleted {
		t.Fatalf("Expected status completed despite one bad file, got %s", got.Status())
	}
	if len(got.Result.ProcessedFiles) != 1 || got.Result.ProcessedFiles[0] != "good.txt" {
		t.Errorf("Expected processed_files [good.txt], got %v", got.Result.ProcessedFiles)
	}

	report, _ := os.ReadFile(ReportPath(env.reportDir, project.ID))
	if !strings.Contains(string(report), "## file: broken.xlsx") {
		t.Errorf("Report missing section for failing file:\n%s", report)
	}
	if !strings.Contains(string(report), "file processing error") {
		t.Errorf("Report missing read error block:\n%s", report)
	}
}

func TestProcess_EmptyFileSkipped(t *testing.T) {
	env := newTestEnv(t)
	srv := summaryServer(t, "ok")

	tool, _ := env.tools.Create("summarizer", "", srv.URL)
	src := writeSource(t, map[string]string{
		"empty.txt": "   \n\t\n",
		"real.txt":  "content",
	})
	project, _ := env.projects.Create("P", src, tool.ID)

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := env.projects.FindByID(project.ID)
	if len(got.Result.ProcessedFiles) != 1 || got.Result.ProcessedFiles[0] != "real.txt" {
		t.Errorf("Expected only real.txt processed, got %v", got.Result.ProcessedFiles)
	}

	report, _ := os.ReadFile(ReportPath(env.reportDir, project.ID))
	if strings.Contains(string(report), "empty.txt") {
		t.Errorf("Skipped empty file should not appear in report:\n%s", report)
	}
}

func TestProcess_UnknownToolFailsRun(t *testing.T) {
	env := newTestEnv(t)

	src := writeSource(t, map[string]string{"file.txt": "content"})
	project, _ := env.projects.Create("P", src, "no-such-tool")

	err := env.proc.Process(context.Background(), project.ID)
	if err == nil {
		t.Fatal("Expected Process to report the run failure")
	}

	got, _ := env.projects.FindByID(project.ID)
	if got.Status() != models.StatusFailed {
		t.Fatalf("Expected status failed, got %s", got.Status())
	}
	if len(got.Result.ProcessedFiles) != 0 {
		t.Errorf("Expected zero processed files, got %v", got.Result.ProcessedFiles)
	}
	if got.Result.Error == "" {
		t.Error("Expected categorized error message on result")
	}
}

func TestProcess_MissingProjectLeavesNoState(t *testing.T) {
	env := newTestEnv(t)

	err := env.proc.Process(context.Background(), "ghost")
	if err == nil {
		t.Fatal("Expected error for missing project")
	}

	all, _ := env.projects.FindAll()
	if len(all) != 0 {
		t.Errorf("No project state should be persisted, got %d records", len(all))
	}
}

func TestProcess_DisabledToolStillExecutes(t *testing.T) {
	env := newTestEnv(t)
	srv := summaryServer(t, "summary")

	tool, _ := env.tools.Create("summarizer", "", srv.URL)
	src := writeSource(t, map[string]string{"file.txt": "content"})
	project, _ := env.projects.Create("P", src, tool.ID)

	// Disabling blocks new project bindings only, not already-bound runs.
	if _, err := env.tools.Disable(tool.ID); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := env.projects.FindByID(project.ID)
	if got.Status() != models.StatusCompleted {
		t.Errorf("Expected completed run with disabled tool, got %s", got.Status())
	}
}

func TestProcess_RerunReplacesReport(t *testing.T) {
	env := newTestEnv(t)
	srv := summaryServer(t, "fresh summary")

	tool, _ := env.tools.Create("summarizer", "", srv.URL)
	src := writeSource(t, map[string]string{"file.txt": "content"})
	project, _ := env.projects.Create("P", src, tool.ID)

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// Poison the report between runs; the re-run must replace it.
	path := ReportPath(env.reportDir, project.ID)
	if err := os.WriteFile(path, []byte("stale report"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	report, _ := os.ReadFile(path)
	if strings.Contains(string(report), "stale report") {
		t.Errorf("Report was not rewritten on re-run:\n%s", report)
	}
	if !strings.Contains(string(report), "fresh summary") {
		t.Errorf("Re-run report missing new summary:\n%s", report)
	}
}

func TestProcess_ProcessingStateVisibleBeforeAICall(t *testing.T) {
	env := newTestEnv(t)

	observed := make(chan models.Status, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// By the time the endpoint is called, the store must already show
		// the Processing state.
		p, err := env.projects.FindAll()
		if err == nil && len(p) == 1 {
			observed <- p[0].Status()
		}
		json.NewEncoder(w).Encode(map[string]string{"result": "ok"})
	}))
	t.Cleanup(srv.Close)

	tool, _ := env.tools.Create("summarizer", "", srv.URL)
	src := writeSource(t, map[string]string{"file.txt": "content"})
	project, _ := env.projects.Create("P", src, tool.ID)

	if err := env.proc.Process(context.Background(), project.ID); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	select {
	case status := <-observed:
		if status != models.StatusProcessing {
			t.Errorf("Expected processing status during AI call, got %s", status)
		}
	default:
		t.Fatal("Endpoint never observed the store")
	}
}
