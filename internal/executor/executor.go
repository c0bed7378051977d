// Package executor invokes external AI tool endpoints.
//
// Every AI tool is one HTTP endpoint: the factory maps a tool record to an
// executor purely by copying its id and endpoint URL, with no per-tool-type
// branching.
package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avermeer/docbrief/internal/collector"
	"github.com/avermeer/docbrief/internal/models"
)

// RequestTimeout bounds a single summarization call.
const RequestTimeout = 60 * time.Second

// probeTimeout bounds an endpoint reachability check.
const probeTimeout = 10 * time.Second

// ConfigError reports an unusable or misbehaving AI endpoint: missing
// configuration, unreachable host, non-2xx status, or a malformed response.
type ConfigError struct {
	Tool string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Executor sends extracted content to an AI endpoint and returns the summary.
type Executor interface {
	Execute(ctx context.Context, content string, images []collector.Image) (string, error)
}

// HTTP is the concrete executor: POST {content, images} as JSON to the
// tool's endpoint URL.
type HTTP struct {
	toolID   string
	endpoint string
	client   *http.Client
}

// New is the executor factory. It fails with a ConfigError when the tool has
// no endpoint URL configured.
func New(tool models.AITool) (Executor, error) {
	if tool.EndpointURL == "" {
		return nil, &ConfigError{Tool: tool.ID, Err: errors.New("endpoint URL is not configured")}
	}
	return &HTTP{
		toolID:   tool.ID,
		endpoint: tool.EndpointURL,
		client:   &http.Client{Timeout: RequestTimeout},
	}, nil
}

type request struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

type response struct {
	Result string `json:"result"`
}

// Execute calls the endpoint and returns the summary string. Any transport,
// status, or decoding failure surfaces as a ConfigError.
func (h *HTTP) Execute(ctx context.Context, content string, images []collector.Image) (string, error) {
	encoded := make([]string, 0, len(images))
	for _, img := range images {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(img.Data))
	}

	payload, err := json.Marshal(request{Content: content, Images: encoded})
	if err != nil {
		return "", &ConfigError{Tool: h.toolID, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &ConfigError{Tool: h.toolID, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return "", &ConfigError{Tool: h.toolID, Err: fmt.Errorf("call endpoint: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ConfigError{Tool: h.toolID, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ConfigError{
			Tool: h.toolID,
			Err:  fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &ConfigError{Tool: h.toolID, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return out.Result, nil
}

// Probe checks that a tool's endpoint is reachable. Any HTTP response counts
// as reachable; only transport failures are reported.
func Probe(ctx context.Context, tool models.AITool) error {
	if tool.EndpointURL == "" {
		return &ConfigError{Tool: tool.ID, Err: errors.New("endpoint URL is not configured")}
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, tool.EndpointURL, nil)
	if err != nil {
		return &ConfigError{Tool: tool.ID, Err: fmt.Errorf("build request: %w", err)}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return &ConfigError{Tool: tool.ID, Err: fmt.Errorf("endpoint unreachable: %w", err)}
	}
	resp.Body.Close()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
