// Package handlers implements the site's JSON API: authentication,
// chat, user lookup, media upload and document sync.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"gorm.io/gorm"

	applog "darkhaven/internal/log"
	"darkhaven/internal/store"
	"darkhaven/internal/upload"
	"darkhaven/models"
)

const (
	sessionAuthenticatedKey = "auth:authenticated"
	sessionAccountIDKey     = "auth:account:id"
	sessionUsernameKey      = "auth:account:username"
	sessionIsAdminKey       = "auth:account:admin"
)

var (
	sessionManager *scs.SessionManager
	database       *gorm.DB
	siteStore      *store.Store
	uploads        *upload.FileStorage
)

// Configure installs the shared dependencies used by the HTTP handlers.
func Configure(sm *scs.SessionManager, db *gorm.DB, st *store.Store, storage *upload.FileStorage) {
	sessionManager = sm
	database = db
	siteStore = st
	uploads = storage
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Error(context.Background(), "failed to encode response", "error", err)
	}
}

func errorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// ActiveSession returns true when the current request carries an
// authenticated session.
func ActiveSession(r *http.Request) bool {
	if sessionManager == nil {
		return false
	}
	return sessionManager.GetBool(r.Context(), sessionAuthenticatedKey) && sessionManager.GetInt(r.Context(), sessionAccountIDKey) > 0
}

// bearerToken extracts the token from an Authorization header, or ""
// when none is present.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// currentAccount resolves the requesting account from the session
// first, then from a bearer token.
func currentAccount(r *http.Request) (*models.Account, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}

	if ActiveSession(r) {
		id := sessionManager.GetInt(r.Context(), sessionAccountIDKey)
		account := &models.Account{}
		if err := database.WithContext(r.Context()).First(account, id).Error; err == nil {
			return account, nil
		}
	}

	if token := bearerToken(r); token != "" {
		return findAccountByToken(r, token)
	}

	return nil, gorm.ErrRecordNotFound
}

func findAccountByToken(r *http.Request, token string) (*models.Account, error) {
	if database == nil {
		return nil, gorm.ErrInvalidDB
	}
	account := &models.Account{}
	err := database.WithContext(r.Context()).Where("token = ? AND token <> ''", token).First(account).Error
	if err != nil {
		return nil, err
	}
	return account, nil
}

// requireAccount resolves the caller or writes a 401.
func requireAccount(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	account, err := currentAccount(r)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(r.Context(), "failed to resolve account", "error", err)
		}
		errorJSON(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return account, true
}

// requireAdmin resolves the caller and writes 401/403 as appropriate.
func requireAdmin(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	account, ok := requireAccount(w, r)
	if !ok {
		return nil, false
	}
	if !account.IsAdmin {
		errorJSON(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return account, true
}
