package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	applog "darkhaven/internal/log"
	"darkhaven/models"
)

const userListLimit = 100

// Users looks up community members: ?id fetches one account, ?search
// filters by username substring, otherwise accounts are listed
// alphabetically.
func Users(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if database == nil {
		errorJSON(w, http.StatusServiceUnavailable, "accounts unavailable")
		return
	}

	if rawID := r.URL.Query().Get("id"); rawID != "" {
		id, err := strconv.Atoi(rawID)
		if err != nil {
			errorJSON(w, http.StatusBadRequest, "invalid user id")
			return
		}
		account := &models.Account{}
		if err := database.WithContext(r.Context()).First(account, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				errorJSON(w, http.StatusNotFound, "user not found")
				return
			}
			applog.Error(r.Context(), "failed to load user", "error", err)
			errorJSON(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, mapAccount(account))
		return
	}

	query := database.WithContext(r.Context()).Model(&models.Account{})
	if search := strings.TrimSpace(r.URL.Query().Get("search")); search != "" {
		query = query.Where("lower(username) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var accounts []models.Account
	if err := query.Order("username").Limit(userListLimit).Find(&accounts).Error; err != nil {
		applog.Error(r.Context(), "failed to list users", "error", err)
		errorJSON(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	payloads := make([]accountPayload, 0, len(accounts))
	for i := range accounts {
		payloads = append(payloads, mapAccount(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, payloads)
}
