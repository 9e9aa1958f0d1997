package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/parley-chat/parley/internal/models"
)

const maxErrorBody = 4096

// HandleChat proxies a generation request to the upstream runtime.
//
// With streaming on (the default), the upstream's newline-delimited JSON
// response is forwarded byte-for-byte as it arrives, flushed after every
// read so fragments reach the caller without buffering; the relay never
// holds the full response in memory. With streaming off, the complete
// upstream response is returned as one JSON document.
//
// An unreachable upstream or a non-success upstream status yields a
// synchronous {"error": ...} payload with a 502. A failure after streaming
// has begun aborts the connection instead, so the caller never mistakes a
// truncated stream for a complete one.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var genReq models.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&genReq); err != nil {
		m.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if genReq.Model == "" {
		m.writeError(w, http.StatusBadRequest, "model is required")
		return
	}

	body, err := json.Marshal(genReq)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to marshal request: %v", err))
		return
	}

	upReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		m.upstream+"/api/generate", bytes.NewReader(body))
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create upstream request: %v", err))
		return
	}
	upReq.Header.Set("Content-Type", "application/json")

	upResp, err := m.httpClient.Do(upReq)
	if err != nil {
		m.logger.Error("Upstream unreachable",
			slog.String("upstream", m.upstream),
			slog.String(errLoggerKey, err.Error()))
		m.writeError(w, http.StatusBadGateway, fmt.Sprintf("upstream unreachable: %v", err))
		return
	}
	defer upResp.Body.Close()

	if upResp.StatusCode < http.StatusOK || upResp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(upResp.Body, maxErrorBody))
		m.logger.Error("Upstream rejected request",
			slog.Int("status", upResp.StatusCode),
			slog.String("body", string(msg)))
		m.writeError(w, http.StatusBadGateway,
			fmt.Sprintf("upstream returned status %d: %s", upResp.StatusCode, msg))
		return
	}

	if !genReq.Streaming() {
		m.relayWhole(w, upResp.Body)
		return
	}
	m.relayStream(w, upResp.Body)
}

// relayWhole returns the complete upstream response as a single JSON
// document, verifying it actually is one before forwarding.
func (m Main) relayWhole(w http.ResponseWriter, body io.Reader) {
	data, err := io.ReadAll(body)
	if err != nil {
		m.writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to read upstream response: %v", err))
		return
	}
	if !json.Valid(data) {
		m.writeError(w, http.StatusBadGateway, "upstream returned malformed response")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		m.logger.Debug("Caller went away", slog.String(errLoggerKey, err.Error()))
	}
}

// relayStream copies upstream bytes to the caller as they arrive. The
// upstream's newline framing passes through untouched; this loop neither
// inspects nor re-chunks it.
func (m Main) relayStream(w http.ResponseWriter, body io.Reader) {
	w.Header().Set("Content-Type", "application/json")

	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				m.logger.Debug("Caller went away mid-stream", slog.String(errLoggerKey, werr.Error()))
				return
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			// Headers are out; the only honest failure signal left is
			// dropping the connection.
			m.logger.Error("Upstream stream failed mid-flight", slog.String(errLoggerKey, err.Error()))
			panic(http.ErrAbortHandler)
		}
	}
}
