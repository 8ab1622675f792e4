package handlers

import (
	"io"
	"net/http"

	applog "darkhaven/internal/log"
)

// Storage serves the whole site document for browser sync: GET hands
// out the current snapshot, PUT (admins only) replaces it.
func Storage(w http.ResponseWriter, r *http.Request) {
	if siteStore == nil {
		errorJSON(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		snapshot, err := siteStore.Snapshot()
		if err != nil {
			applog.Error(r.Context(), "failed to snapshot document", "error", err)
			errorJSON(w, http.StatusInternalServerError, "snapshot failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(snapshot); err != nil {
			applog.Error(r.Context(), "failed to write snapshot", "error", err)
		}
	case http.MethodPut:
		if _, ok := requireAdmin(w, r); !ok {
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "unreadable body")
			return
		}
		if err := siteStore.ReplaceSnapshot(body); err != nil {
			applog.Error(r.Context(), "rejected document replacement", "error", err)
			errorJSON(w, http.StatusBadRequest, "invalid document")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		errorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
