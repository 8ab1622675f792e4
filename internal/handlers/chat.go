package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	applog "darkhaven/internal/log"
)

const (
	defaultChatRoom = "general"
	chatPageSize    = 50
)

type chatPostRequest struct {
	Room    string `json:"room"`
	Content string `json:"content"`
}

// Chat serves the chat API: GET lists the latest messages of a room,
// POST appends one, DELETE removes one (admins only).
func Chat(w http.ResponseWriter, r *http.Request) {
	if siteStore == nil {
		errorJSON(w, http.StatusServiceUnavailable, "chat unavailable")
		return
	}

	switch r.Method {
	case http.MethodGet:
		listMessages(w, r)
	case http.MethodPost:
		postMessage(w, r)
	case http.MethodDelete:
		deleteMessage(w, r)
	default:
		errorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func listMessages(w http.ResponseWriter, r *http.Request) {
	room := strings.TrimSpace(r.URL.Query().Get("room"))
	if room == "" {
		room = defaultChatRoom
	}
	limit := chatPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages := siteStore.ChatMessages(room)
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"room":     room,
		"messages": messages,
	})
}

func postMessage(w http.ResponseWriter, r *http.Request) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req chatPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		errorJSON(w, http.StatusBadRequest, "message content is required")
		return
	}
	room := strings.TrimSpace(req.Room)
	if room == "" {
		room = defaultChatRoom
	}

	message, err := siteStore.AddChatMessage(room, account.Username, content, account.AvatarURL)
	if err != nil {
		applog.Error(r.Context(), "failed to store chat message", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to store message")
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAdmin(w, r); !ok {
		return
	}

	id, err := strconv.Atoi(r.URL.Query().Get("id"))
	if err != nil {
		errorJSON(w, http.StatusBadRequest, "message id is required")
		return
	}

	deleted, err := siteStore.DeleteChatMessage(id)
	if err != nil {
		applog.Error(r.Context(), "failed to delete chat message", "error", err)
		errorJSON(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	if !deleted {
		errorJSON(w, http.StatusNotFound, "message not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
