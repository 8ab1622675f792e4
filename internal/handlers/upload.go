package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	applog "darkhaven/internal/log"
)

type uploadRequest struct {
	FileName string `json:"fileName"`
	File     string `json:"file"`
}

// Upload stores a base64-encoded media file and returns its public
// URL. Only authenticated members may upload.
func Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if uploads == nil {
		errorJSON(w, http.StatusServiceUnavailable, "uploads unavailable")
		return
	}
	if _, ok := requireAccount(w, r); !ok {
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.FileName) == "" || req.File == "" {
		errorJSON(w, http.StatusBadRequest, "fileName and file are required")
		return
	}

	saved, err := uploads.SaveBase64(req.FileName, req.File)
	if err != nil {
		applog.Error(r.Context(), "failed to store upload", "error", err, "fileName", req.FileName)
		errorJSON(w, http.StatusBadRequest, "could not store file")
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}
