package controlplane

import "errors"

// Sentinel errors for control plane operations. Store and worker sentinels
// (store.ErrNotFound, worker.ErrAlreadyRunning, worker.ErrAtCapacity) pass
// through unchanged so the server can map them to status codes.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrToolDisabled   = errors.New("AI tool is disabled")
	ErrReportNotReady = errors.New("no report has been produced for this project")
)
