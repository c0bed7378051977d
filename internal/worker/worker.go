// Package worker runs project processing in isolated per-run units.
//
// A Worker owns one orchestrator run. It reports only through the project
// store: it never returns a value and never lets an error or panic escape to
// its caller, because historically each run was a separate OS process whose
// only observable output was the store. The structured start/finish log
// markers keyed by project id are the sole way to tell "worker never
// started" apart from "worker finished".
package worker

import (
	"context"
	"runtime/debug"

	"github.com/avermeer/docbrief/internal/audit"
	"github.com/avermeer/docbrief/internal/collector"
	"github.com/avermeer/docbrief/internal/executor"
	"github.com/avermeer/docbrief/internal/processor"
	"github.com/avermeer/docbrief/internal/store"
	"github.com/sirupsen/logrus"
)

// Deps are the shared collaborators a worker needs. The file collector and
// executor factory are acquired fresh inside Run, so runs share no mutable
// dependency state.
type Deps struct {
	Projects  *store.ProjectStore
	Tools     *store.AIToolStore
	Events    *audit.Log
	ReportDir string
	Logger    *logrus.Logger
}

// Worker processes one project run.
type Worker struct {
	projectID string
	workerID  string
	deps      Deps
	log       *logrus.Entry
}

// New creates a worker for one triggered run.
func New(projectID, workerID string, deps Deps) *Worker {
	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Worker{
		projectID: projectID,
		workerID:  workerID,
		deps:      deps,
		log: logger.WithFields(logrus.Fields{
			"project_id": projectID,
			"worker_id":  workerID,
		}),
	}
}

// Run executes the orchestrator for this worker's project. It has no return
// value: outcomes are visible only in the store, the report file, and the
// log markers.
func (w *Worker) Run() {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Errorf("worker panicked\n%s", debug.Stack())
			w.deps.Events.Record("run.panic", w.projectID, "error", w.workerID)
		}
	}()

	w.log.Info("worker started")

	proc := processor.New(
		w.deps.Projects,
		w.deps.Tools,
		collector.New(),
		executor.New,
		w.deps.ReportDir,
		w.log,
	)

	if err := proc.Process(context.Background(), w.projectID); err != nil {
		w.log.WithError(err).Error("worker finished with failure")
		w.deps.Events.Record("run.fail", w.projectID, "error", err.Error())
		return
	}

	w.log.Info("worker finished")
	w.deps.Events.Record("run.complete", w.projectID, "success", w.workerID)
}
