package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// The endpoints in this file are collaborators around the streaming core,
// not part of it: each accepts a narrow request shape and returns either a
// small result object or an explicit capability-disabled notice.

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
	Notice  string   `json:"notice,omitempty"`
}

// HandleSearch accepts a search query and returns a placeholder result set.
// No search backend ships with the relay; the notice says so explicitly
// instead of pretending an empty result is an answer.
func (m Main) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Query == "" {
		m.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	m.writeJSON(w, http.StatusOK, searchResponse{
		Query:   req.Query,
		Results: []string{},
		Notice:  "search is not configured on this relay",
	})
}

// HandleSSH exists so clients probing the endpoint get a deliberate answer:
// remote command execution is disabled and stays disabled.
func (m Main) HandleSSH(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.writeJSON(w, http.StatusOK, map[string]string{
		"notice": "remote command execution is disabled on this relay",
	})
}

type visionRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

// HandleVision describes an uploaded image through the configured vision
// backend, or reports the capability as disabled when none is configured.
func (m Main) HandleVision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if m.vision == nil {
		m.writeJSON(w, http.StatusOK, map[string]string{
			"notice": "vision is not configured on this relay",
		})
		return
	}

	var req visionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Image == "" {
		m.writeError(w, http.StatusBadRequest, "image is required")
		return
	}

	description, err := m.vision.Describe(r.Context(), req.Image, req.Prompt)
	if err != nil {
		m.logger.Error("Vision backend failed", slog.String(errLoggerKey, err.Error()))
		m.writeError(w, http.StatusBadGateway, fmt.Sprintf("vision backend failed: %v", err))
		return
	}

	m.writeJSON(w, http.StatusOK, map[string]string{"description": description})
}
