package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type uploadResponse struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// HandleUpload stores one multipart file under the uploads directory with a
// UUID-prefixed name, so colliding filenames never overwrite each other.
// Stored files are transient; the purge loop removes them after the
// configured retention.
func (m Main) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, m.uploads.MaxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		m.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
		return
	}
	defer file.Close()

	if err := os.MkdirAll(m.uploads.Dir, 0o755); err != nil {
		m.logger.Error("Failed to create upload directory", slog.String(errLoggerKey, err.Error()))
		m.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	name := uuid.New().String() + "-" + filepath.Base(header.Filename)
	dst, err := os.Create(filepath.Join(m.uploads.Dir, name))
	if err != nil {
		m.logger.Error("Failed to create upload file", slog.String(errLoggerKey, err.Error()))
		m.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer dst.Close()

	size, err := io.Copy(dst, file)
	if err != nil {
		m.logger.Error("Failed to write upload file",
			slog.String("name", name),
			slog.String(errLoggerKey, err.Error()))
		m.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	m.logger.Info("Stored upload", slog.String("name", name), slog.Int64("size", size))
	m.writeJSON(w, http.StatusOK, uploadResponse{Name: name, Size: size})
}

// PurgeOldUploads deletes uploaded files whose modification time is older
// than the retention window, returning how many were removed. It is called
// periodically from the server's purge loop.
func (m Main) PurgeOldUploads(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(m.uploads.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read upload directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(m.uploads.Dir, entry.Name())); err != nil {
			m.logger.Error("Failed to remove stale upload",
				slog.String("name", entry.Name()),
				slog.String(errLoggerKey, err.Error()))
			continue
		}
		removed++
	}

	if removed > 0 {
		m.logger.Info("Purged stale uploads", slog.Int("count", removed))
	}
	return removed, nil
}
