package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"darkhaven/internal/store"
	"darkhaven/internal/upload"
	"darkhaven/models"
)

// The handlers share package-level dependencies, so these tests run
// sequentially against a fresh set per test.
func setup(t *testing.T) (http.Handler, *gorm.DB, *store.Store) {
	t.Helper()

	dsn := fmt.Sprintf("file:handlers-%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	st, err := store.Open(store.NewMemoryBackend())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}

	sm := scs.New()
	Configure(sm, db, st, upload.NewFileStorage(t.TempDir(), ""))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth", Auth)
	mux.HandleFunc("/api/logout", Logout)
	mux.HandleFunc("/api/chat", Chat)
	mux.HandleFunc("/api/users", Users)
	mux.HandleFunc("/api/upload", Upload)
	mux.HandleFunc("/db/storage.json", Storage)

	return sm.LoadAndSave(mux), db, st
}

func createAccount(t *testing.T, db *gorm.DB, username string, admin bool) *models.Account {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	account := &models.Account{
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      admin,
		Token:        uuid.NewString(),
		Level:        1,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return account
}

func doJSON(t *testing.T, handler http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthRegisterValidation(t *testing.T) {
	handler, _, _ := setup(t)

	tests := []struct {
		name     string
		username string
		password string
		want     int
	}{
		{"short username", "ab", "longenough", http.StatusBadRequest},
		{"short password", "newcomer", "abc", http.StatusBadRequest},
		{"valid", "newcomer", "abcd", http.StatusCreated},
	}

	for _, tt := range tests {
		rec := doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
			"action":   "register",
			"username": tt.username,
			"password": tt.password,
		})
		if rec.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d (body %s)", tt.name, rec.Code, tt.want, rec.Body)
		}
	}

	// The username is now taken, case-insensitively.
	rec := doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "register", "username": "NEWCOMER", "password": "abcd",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d, want 409", rec.Code)
	}
}

func TestAuthLoginRotatesToken(t *testing.T) {
	handler, _, _ := setup(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "register", "username": "drifter", "password": "abcd",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	var registered authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &registered); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if registered.Token == "" {
		t.Fatal("register returned no token")
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "login", "username": "drifter", "password": "abcd",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d (body %s)", rec.Code, rec.Body)
	}
	var loggedIn authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &loggedIn); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if loggedIn.Token == "" || loggedIn.Token == registered.Token {
		t.Fatalf("login token %q should differ from register token %q", loggedIn.Token, registered.Token)
	}
	if loggedIn.User.OnlineStatus != models.StatusOnline {
		t.Fatalf("online status = %q, want online", loggedIn.User.OnlineStatus)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "login", "username": "drifter", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", rec.Code)
	}
}

func TestAuthVerify(t *testing.T) {
	handler, db, _ := setup(t)
	account := createAccount(t, db, "keeper", false)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "verify", "token": account.Token,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d (body %s)", rec.Code, rec.Body)
	}
	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if resp.User.Username != "keeper" {
		t.Fatalf("verified user = %q", resp.User.Username)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "verify", "token": "not-a-token",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}
}

func TestAuthVerifyWithSessionOnly(t *testing.T) {
	handler, _, _ := setup(t)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "register", "username": "drifter", "password": "abcd",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("register set no session cookie")
	}

	// Verify with the session cookie only, no token anywhere.
	body, _ := json.Marshal(map[string]string{"action": "verify"})
	req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("session-only verify status = %d (body %s), want 200", rr.Code, rr.Body)
	}
	var resp authResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if resp.User.Username != "drifter" {
		t.Fatalf("verified user = %q", resp.User.Username)
	}
}

func TestAuthUpdateProfile(t *testing.T) {
	handler, db, _ := setup(t)
	account := createAccount(t, db, "drifter", false)

	rec := doJSON(t, handler, http.MethodPost, "/api/auth", account.Token, map[string]any{
		"action":    "update_profile",
		"bio":       "  Wanderer of the void.  ",
		"email":     "drifter@darkhaven.example",
		"avatarUrl": "/files/abc.png",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d (body %s)", rec.Code, rec.Body)
	}
	var resp authResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.Bio != "Wanderer of the void." {
		t.Fatalf("bio = %q", resp.User.Bio)
	}
	if resp.User.Email != "drifter@darkhaven.example" || resp.User.AvatarURL != "/files/abc.png" {
		t.Fatalf("profile = %+v", resp.User)
	}

	// Omitted fields stay untouched.
	rec = doJSON(t, handler, http.MethodPost, "/api/auth", account.Token, map[string]string{
		"action": "update_profile",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("no-op update status = %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.User.Bio != "Wanderer of the void." {
		t.Fatalf("bio after no-op update = %q", resp.User.Bio)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/auth", "", map[string]string{
		"action": "update_profile", "bio": "anonymous",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated update status = %d, want 401", rec.Code)
	}
}

func TestChatFlow(t *testing.T) {
	handler, db, _ := setup(t)
	member := createAccount(t, db, "drifter", false)
	admin := createAccount(t, db, "warden", true)

	rec := doJSON(t, handler, http.MethodPost, "/api/chat", "", map[string]string{"content": "hello"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated post status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/chat", member.Token, map[string]string{"content": "hello haven"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post status = %d (body %s)", rec.Code, rec.Body)
	}
	var posted store.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &posted); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if posted.RoomID != "general" || posted.Username != "drifter" {
		t.Fatalf("message = %+v", posted)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/chat", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listing struct {
		Room     string              `json:"room"`
		Messages []store.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if listing.Room != "general" || len(listing.Messages) != 1 {
		t.Fatalf("listing = %+v", listing)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/chat?room=off-topic", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Messages) != 0 {
		t.Fatalf("off-topic room has %d messages, want 0", len(listing.Messages))
	}

	target := fmt.Sprintf("/api/chat?id=%d", posted.ID)
	rec = doJSON(t, handler, http.MethodDelete, target, member.Token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member delete status = %d, want 403", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, target, admin.Token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete status = %d (body %s)", rec.Code, rec.Body)
	}
	rec = doJSON(t, handler, http.MethodDelete, target, admin.Token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double delete status = %d, want 404", rec.Code)
	}
}

func TestChatListCapsAtPageSize(t *testing.T) {
	handler, db, st := setup(t)
	_ = createAccount(t, db, "drifter", false)

	for i := 0; i < chatPageSize+10; i++ {
		if _, err := st.AddChatMessage("general", "drifter", fmt.Sprintf("msg %d", i), ""); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/chat", "", nil)
	var listing struct {
		Messages []store.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Messages) != chatPageSize {
		t.Fatalf("listing has %d messages, want %d", len(listing.Messages), chatPageSize)
	}
	if got := listing.Messages[len(listing.Messages)-1].Content; got != fmt.Sprintf("msg %d", chatPageSize+9) {
		t.Fatalf("newest message = %q", got)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/chat?limit=5", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Messages) != 5 {
		t.Fatalf("limited listing has %d messages, want 5", len(listing.Messages))
	}
}

func TestUsersLookup(t *testing.T) {
	handler, db, _ := setup(t)
	account := createAccount(t, db, "drifter", false)
	createAccount(t, db, "dragoon", false)
	createAccount(t, db, "warden", true)

	rec := doJSON(t, handler, http.MethodGet, fmt.Sprintf("/api/users?id=%d", account.ID), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rec.Code)
	}
	var single accountPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &single); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if single.Username != "drifter" {
		t.Fatalf("user = %+v", single)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/users?id=9999", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing user status = %d, want 404", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/users?id=bogus", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid id status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/users?search=dr", "", nil)
	var list []accountPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("search matched %d users, want 2", len(list))
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/users", "", nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listing has %d users, want 3", len(list))
	}
}

func TestUploadEndpoint(t *testing.T) {
	handler, db, _ := setup(t)
	member := createAccount(t, db, "drifter", false)

	payload := base64.StdEncoding.EncodeToString([]byte("png bytes"))

	rec := doJSON(t, handler, http.MethodPost, "/api/upload", "", map[string]string{
		"fileName": "shot.png", "file": payload,
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated upload status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/upload", member.Token, map[string]string{
		"fileName": "shot.png", "file": payload,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d (body %s)", rec.Code, rec.Body)
	}
	var saved upload.Saved
	if err := json.Unmarshal(rec.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode saved: %v", err)
	}
	if saved.ContentType != "image/png" || saved.URL == "" {
		t.Fatalf("saved = %+v", saved)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/upload", member.Token, map[string]string{
		"fileName": "noext", "file": payload,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("extensionless upload status = %d, want 400", rec.Code)
	}
}

func TestStorageSync(t *testing.T) {
	handler, db, st := setup(t)
	member := createAccount(t, db, "drifter", false)
	admin := createAccount(t, db, "warden", true)

	rec := doJSON(t, handler, http.MethodGet, "/db/storage.json", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	var envelope struct {
		Version int             `json:"version"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("snapshot does not parse: %v", err)
	}
	if envelope.Version != store.SchemaVersion || len(envelope.Data) == 0 {
		t.Fatalf("snapshot envelope = %+v", envelope)
	}

	// Build a replacement document on a separate store.
	other, err := store.Open(store.NewMemoryBackend())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	if err := other.SetUser(&store.Identity{Username: "imported", IsAdmin: true}); err != nil {
		t.Fatalf("SetUser() error = %v", err)
	}
	replacement, err := other.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	rec = doJSON(t, handler, http.MethodPut, "/db/storage.json", member.Token, replacement)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member replace status = %d, want 403", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/db/storage.json", admin.Token, replacement)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin replace status = %d (body %s)", rec.Code, rec.Body)
	}
	if user := st.User(); user == nil || user.Username != "imported" {
		t.Fatalf("document after replace = %+v", user)
	}

	rec = doJSON(t, handler, http.MethodPut, "/db/storage.json", admin.Token, []byte(`{"version":1}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid replace status = %d, want 400", rec.Code)
	}
	if user := st.User(); user == nil || user.Username != "imported" {
		t.Fatal("rejected replace modified the document")
	}
}
