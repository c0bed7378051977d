package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avermeer/docbrief/internal/models"
	"github.com/avermeer/docbrief/internal/store"
	"github.com/sirupsen/logrus"
)

func newTestDeps(t *testing.T) Deps {
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

	return Deps{
		Projects:  projects,
		Tools:     tools,
		ReportDir: filepath.Join(dir, "reports"),
		Logger:    logger,
	}
}

func TestWorkerRun_Completes(t *testing.T) {
	deps := newTestDeps(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"result": "summary"})
	}))
	defer srv.Close()

	tool, _ := deps.Tools.Create("summarizer", "", srv.URL)
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "file.txt"), []byte("content"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	project, _ := deps.Projects.Create("P", src, tool.ID)

	New(project.ID, "w1", deps).Run()

	got, err := deps.Projects.FindByID(project.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got.Status() != models.StatusCompleted {
		t.Errorf("Expected completed project after worker run, got %s", got.Status())
	}
}

func TestWorkerRun_SwallowsFailures(t *testing.T) {
	deps := newTestDeps(t)

	// Missing project: the orchestrator fails, the worker must not.
	New("no-such-project", "w1", deps).Run()

	all, _ := deps.Projects.FindAll()
	if len(all) != 0 {
		t.Errorf("Worker must not create state for missing project, got %d records", len(all))
	}
}

func TestWorkerRun_FailedRunVisibleOnlyInStore(t *testing.T) {
	deps := newTestDeps(t)

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "file.txt"), []byte("content"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	project, _ := deps.Projects.Create("P", src, "unknown-tool")

	New(project.ID, "w1", deps).Run()

	got, _ := deps.Projects.FindByID(project.ID)
	if got.Status() != models.StatusFailed {
		t.Errorf("Expected failed project in store, got %s", got.Status())
	}
}

func TestRegistry_PerProjectExclusivity(t *testing.T) {
	r := NewRegistry(10)

	release := make(chan struct{})
	started := make(chan struct{})

	_, err := r.Dispatch("p1", func(string) {
		close(started)
		<-release
	})
	if err != nil {
		t.Fatalf("First dispatch failed: %v", err)
	}
	<-started

	_, err = r.Dispatch("p1", func(string) {})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Expected ErrAlreadyRunning for live project, got %v", err)
	}

	// A different project dispatches fine.
	release2 := make(chan struct{})
	_, err = r.Dispatch("p2", func(string) { <-release2 })
	if err != nil {
		t.Errorf("Dispatch of second project failed: %v", err)
	}

	close(release)
	close(release2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	// The slot is freed after the worker exits.
	if r.IsRunning("p1") {
		t.Error("Expected p1 slot to be released")
	}
	if _, err := r.Dispatch("p1", func(string) {}); err != nil {
		t.Errorf("Re-dispatch after release failed: %v", err)
	}
	r.Wait(context.Background())
}

func TestRegistry_Capacity(t *testing.T) {
	r := NewRegistry(2)

	release := make(chan struct{})
	for _, id := range []string{"p1", "p2"} {
		if _, err := r.Dispatch(id, func(string) { <-release }); err != nil {
			t.Fatalf("Dispatch %s failed: %v", id, err)
		}
	}

	_, err := r.Dispatch("p3", func(string) {})
	if !errors.Is(err, ErrAtCapacity) {
		t.Errorf("Expected ErrAtCapacity, got %v", err)
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	stats := r.Stats()
	if stats["active_workers"].(int) != 0 {
		t.Errorf("Expected 0 active workers after drain, got %v", stats["active_workers"])
	}
}

func TestRegistry_Wait_ContextExpiry(t *testing.T) {
	r := NewRegistry(1)

	release := make(chan struct{})
	defer close(release)
	if _, err := r.Dispatch("p1", func(string) { <-release }); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded while worker lives, got %v", err)
	}
}

func TestRegistry_RunningSnapshot(t *testing.T) {
	r := NewRegistry(5)

	release := make(chan struct{})
	wid, err := r.Dispatch("p1", func(string) { <-release })
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	running := r.Running()
	if running["p1"] != wid {
		t.Errorf("Expected running snapshot to map p1 -> %s, got %v", wid, running)
	}

	close(release)
	r.Wait(context.Background())
}
