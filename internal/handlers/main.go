// Package handlers implements the relay's HTTP surface: the streaming
// generation proxy and the small collaborator endpoints around it.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/parley-chat/parley/internal/models"
)

const errLoggerKey = "err"

// Runtime reports on the upstream model runtime without touching generation
// traffic. It backs the health and model-list endpoints.
type Runtime interface {
	Version(ctx context.Context) (string, error)
	Models(ctx context.Context) ([]string, error)
}

// Vision describes a base64-encoded image. A relay without a configured
// vision backend passes nil and the endpoint reports the capability as
// disabled.
type Vision interface {
	Describe(ctx context.Context, imageB64, prompt string) (string, error)
}

// UploadConfig bounds the upload storage collaborator.
type UploadConfig struct {
	// Dir is the directory uploaded files are stored in.
	Dir string
	// MaxBytes caps the size of a single upload.
	MaxBytes int64
}

// Main holds the relay's handlers and their collaborators. The relay keeps
// no cross-request state: every proxied call stands alone and may run
// concurrently with any other.
type Main struct {
	upstream   string
	httpClient *http.Client

	runtime Runtime
	vision  Vision
	uploads UploadConfig

	logger *slog.Logger
}

// NewMain creates a Main proxying to the runtime at the given upstream base
// URL (e.g. "http://localhost:11434"). The HTTP client used for proxying
// carries no overall timeout: a generation stream legitimately outlives any
// fixed request deadline, and the caller hanging up cancels the forward leg
// through the request context.
func NewMain(upstream string, runtime Runtime, vision Vision, uploads UploadConfig, logger *slog.Logger) Main {
	return Main{
		upstream:   upstream,
		httpClient: &http.Client{},
		runtime:    runtime,
		vision:     vision,
		uploads:    uploads,
		logger:     logger.With(slog.String("module", "handlers")),
	}
}

const runtimeProbeTimeout = 3 * time.Second

type healthUpstream struct {
	Reachable bool   `json:"reachable"`
	Version   string `json:"version,omitempty"`
}

type healthResponse struct {
	Status   string         `json:"status"`
	Upstream healthUpstream `json:"upstream"`
}

// HandleHealth reports the relay's own liveness plus a best-effort probe of
// the upstream runtime. An unreachable runtime never fails the endpoint; it
// is reported in the payload instead.
func (m Main) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), runtimeProbeTimeout)
	defer cancel()

	res := healthResponse{Status: "ok"}
	version, err := m.runtime.Version(ctx)
	if err != nil {
		m.logger.Debug("Upstream probe failed", slog.String(errLoggerKey, err.Error()))
	} else {
		res.Upstream = healthUpstream{Reachable: true, Version: version}
	}

	m.writeJSON(w, http.StatusOK, res)
}

// HandleModels lists the models the upstream runtime has available.
func (m Main) HandleModels(w http.ResponseWriter, r *http.Request) {
	names, err := m.runtime.Models(r.Context())
	if err != nil {
		m.logger.Error("Failed to list models", slog.String(errLoggerKey, err.Error()))
		m.writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to list models: %v", err))
		return
	}

	m.writeJSON(w, http.StatusOK, map[string][]string{"models": names})
}

func (m Main) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Error("Failed to encode response", slog.String(errLoggerKey, err.Error()))
	}
}

func (m Main) writeError(w http.ResponseWriter, status int, msg string) {
	m.writeJSON(w, status, models.GenerateError{Error: msg})
}
