package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	applog "darkhaven/internal/log"
	"darkhaven/models"
)

const (
	minUsernameLength = 3
	minPasswordLength = 4
)

type authRequest struct {
	Action   string `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`

	// update_profile fields.
	Email     *string `json:"email"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
}

type accountPayload struct {
	ID           uint   `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	IsAdmin      bool   `json:"isAdmin"`
	AvatarURL    string `json:"avatarUrl"`
	Bio          string `json:"bio"`
	Level        int    `json:"level"`
	Experience   int    `json:"experience"`
	OnlineStatus string `json:"onlineStatus"`
}

type authResponse struct {
	Token string         `json:"token,omitempty"`
	User  accountPayload `json:"user"`
}

func mapAccount(account *models.Account) accountPayload {
	return accountPayload{
		ID:           account.ID,
		Username:     account.Username,
		Email:        account.Email,
		IsAdmin:      account.IsAdmin,
		AvatarURL:    account.AvatarURL,
		Bio:          account.Bio,
		Level:        account.Level,
		Experience:   account.Experience,
		OnlineStatus: models.NormalizeStatus(account.OnlineStatus),
	}
}

// Auth is the single authentication endpoint. The request body names
// the action: register, login, verify or update_profile.
func Auth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorJSON(w, http.StatusBadRequest, "invalid json")
		return
	}

	switch req.Action {
	case "register":
		register(w, r, req)
	case "login":
		login(w, r, req)
	case "verify":
		verify(w, r, req)
	case "update_profile":
		updateProfile(w, r, req)
	default:
		errorJSON(w, http.StatusBadRequest, "invalid action")
	}
}

func register(w http.ResponseWriter, r *http.Request, req authRequest) {
	username := strings.TrimSpace(req.Username)
	if len(username) < minUsernameLength {
		errorJSON(w, http.StatusBadRequest, "username must be at least 3 characters")
		return
	}
	if len(req.Password) < minPasswordLength {
		errorJSON(w, http.StatusBadRequest, "password must be at least 4 characters")
		return
	}
	if database == nil {
		errorJSON(w, http.StatusServiceUnavailable, "accounts unavailable")
		return
	}

	var count int64
	err := database.WithContext(r.Context()).
		Model(&models.Account{}).
		Where("lower(username) = ?", strings.ToLower(username)).
		Count(&count).Error
	if err != nil {
		applog.Error(r.Context(), "failed to check username availability", "error", err)
		errorJSON(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if count > 0 {
		errorJSON(w, http.StatusConflict, "username already taken")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		applog.Error(r.Context(), "failed to hash password", "error", err)
		errorJSON(w, http.StatusInternalServerError, "registration failed")
		return
	}

	now := time.Now().UTC()
	account := &models.Account{
		Username:     username,
		PasswordHash: string(hashed),
		Token:        uuid.NewString(),
		Level:        1,
		OnlineStatus: models.StatusOnline,
		LastLogin:    &now,
	}
	if err := database.WithContext(r.Context()).Create(account).Error; err != nil {
		applog.Error(r.Context(), "failed to create account", "error", err)
		errorJSON(w, http.StatusInternalServerError, "registration failed")
		return
	}

	if err := establishSession(r, account); err != nil {
		applog.Error(r.Context(), "failed to establish session", "error", err)
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: account.Token, User: mapAccount(account)})
}

func login(w http.ResponseWriter, r *http.Request, req authRequest) {
	if database == nil {
		errorJSON(w, http.StatusServiceUnavailable, "accounts unavailable")
		return
	}

	account := &models.Account{}
	err := database.WithContext(r.Context()).
		Where("lower(username) = ?", strings.ToLower(strings.TrimSpace(req.Username))).
		First(account).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(r.Context(), "failed to load account during login", "error", err)
		}
		errorJSON(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		errorJSON(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	// Each login rotates the API token.
	now := time.Now().UTC()
	account.Token = uuid.NewString()
	account.OnlineStatus = models.StatusOnline
	account.LastLogin = &now
	if err := database.WithContext(r.Context()).Save(account).Error; err != nil {
		applog.Error(r.Context(), "failed to persist login", "error", err)
		errorJSON(w, http.StatusInternalServerError, "login failed")
		return
	}

	if err := establishSession(r, account); err != nil {
		applog.Error(r.Context(), "failed to establish session", "error", err)
	}
	writeJSON(w, http.StatusOK, authResponse{Token: account.Token, User: mapAccount(account)})
}

func verify(w http.ResponseWriter, r *http.Request, req authRequest) {
	token := req.Token
	if token == "" {
		token = bearerToken(r)
	}
	if token == "" {
		// A live session is as good as a token.
		account, err := currentAccount(r)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				applog.Error(r.Context(), "failed to resolve session account", "error", err)
			}
			errorJSON(w, http.StatusUnauthorized, "missing token")
			return
		}
		writeJSON(w, http.StatusOK, authResponse{User: mapAccount(account)})
		return
	}

	account, err := findAccountByToken(r, token)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			applog.Error(r.Context(), "failed to verify token", "error", err)
		}
		errorJSON(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: mapAccount(account)})
}

func updateProfile(w http.ResponseWriter, r *http.Request, req authRequest) {
	account, ok := requireAccount(w, r)
	if !ok {
		return
	}

	if req.Email != nil {
		account.Email = strings.TrimSpace(*req.Email)
	}
	if req.Bio != nil {
		account.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.AvatarURL != nil {
		account.AvatarURL = strings.TrimSpace(*req.AvatarURL)
	}

	if err := database.WithContext(r.Context()).Save(account).Error; err != nil {
		applog.Error(r.Context(), "failed to update profile", "error", err)
		errorJSON(w, http.StatusInternalServerError, "profile update failed")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: mapAccount(account)})
}

func establishSession(r *http.Request, account *models.Account) error {
	if sessionManager == nil {
		return errors.New("session manager not configured")
	}
	if err := sessionManager.RenewToken(r.Context()); err != nil {
		return err
	}
	sessionManager.Put(r.Context(), sessionAuthenticatedKey, true)
	sessionManager.Put(r.Context(), sessionAccountIDKey, int(account.ID))
	sessionManager.Put(r.Context(), sessionUsernameKey, account.Username)
	sessionManager.Put(r.Context(), sessionIsAdminKey, account.IsAdmin)
	return nil
}

// Logout destroys the current session and marks the account offline.
func Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if account, err := currentAccount(r); err == nil {
		account.OnlineStatus = models.StatusOffline
		account.Token = ""
		if err := database.WithContext(r.Context()).Save(account).Error; err != nil {
			applog.Error(r.Context(), "failed to mark account offline", "error", err)
		}
	}

	if sessionManager != nil {
		if err := sessionManager.Destroy(r.Context()); err != nil {
			applog.Error(r.Context(), "failed to destroy session", "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
