package server

import (
	"context"
	"net/http"

	"darkhaven/internal/handlers"
	applog "darkhaven/internal/log"
)

func newRouter(uploadsDir string) http.Handler {
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")
	mux.HandleFunc("/healthz", handlers.Health)
	applog.Debug(context.Background(), "route registered", "path", "/healthz")
	mux.HandleFunc("/api/auth", handlers.Auth)
	applog.Debug(context.Background(), "route registered", "path", "/api/auth")
	mux.HandleFunc("/api/logout", handlers.Logout)
	applog.Debug(context.Background(), "route registered", "path", "/api/logout")
	mux.HandleFunc("/api/chat", handlers.Chat)
	applog.Debug(context.Background(), "route registered", "path", "/api/chat")
	mux.HandleFunc("/api/users", handlers.Users)
	applog.Debug(context.Background(), "route registered", "path", "/api/users")
	mux.HandleFunc("/api/upload", handlers.Upload)
	applog.Debug(context.Background(), "route registered", "path", "/api/upload")
	mux.HandleFunc("/db/storage.json", handlers.Storage)
	applog.Debug(context.Background(), "route registered", "path", "/db/storage.json")
	if uploadsDir != "" {
		mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(uploadsDir))))
		applog.Debug(context.Background(), "route registered", "path", "/files/", "static", true)
	}
	return mux
}
