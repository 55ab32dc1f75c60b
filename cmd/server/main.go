package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/creativecanvas/creativecanvas/backend-go/internal/asset"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/auth"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/config"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/db"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/editor"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/export"
	mw "github.com/creativecanvas/creativecanvas/backend-go/internal/middleware"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/project"
	"github.com/creativecanvas/creativecanvas/backend-go/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	assets, err := asset.NewStore(cfg.AssetDir, cfg.MaxUploadBytes())
	if err != nil {
		slog.Error("open asset store", "error", err)
		os.Exit(1)
	}

	authService := auth.NewService(store, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	projectService, err := project.NewService(store, assets, cfg.ThumbnailDir)
	if err != nil {
		slog.Error("create project service", "error", err)
		os.Exit(1)
	}
	projectHandler := project.NewHandler(projectService)

	hub := session.NewHub(projectService, editor.Config{
		Width:      cfg.CanvasWidth,
		Height:     cfg.CanvasHeight,
		Background: cfg.CanvasBackground,
		Loader:     assets,
		Uploader:   assets,
	})
	go hub.Run()

	assetHandler := asset.NewHandler(assets, cfg.MaxUploadBytes())
	exportHandler := export.NewHandler(assets, cfg.CanvasWidth, cfg.CanvasHeight, cfg.CanvasBackground)
	origins := mw.ParseOrigins(cfg.AllowedOrigins)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(origins))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Uploaded files
	r.PathPrefix(asset.URLPrefix).Handler(assetHandler.Serve()).Methods("GET")
	r.PathPrefix(project.ThumbnailPrefix).Handler(
		http.StripPrefix(project.ThumbnailPrefix, http.FileServer(http.Dir(projectService.ThumbnailDir()))),
	).Methods("GET")

	// Public API (playground and authenticated users)
	r.HandleFunc("/api/upload/image", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/upload/images", assetHandler.UploadMany).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/templates", exportHandler.Catalog).Methods("GET")
	r.HandleFunc("/api/export", exportHandler.Export).Methods("POST", "OPTIONS")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	api.HandleFunc("/projects", projectHandler.List).Methods("GET")
	api.HandleFunc("/projects", projectHandler.Create).Methods("POST")
	api.HandleFunc("/projects/{projectId}", projectHandler.Get).Methods("GET")
	api.HandleFunc("/projects/{projectId}", projectHandler.Update).Methods("PUT")
	api.HandleFunc("/projects/{projectId}", projectHandler.Delete).Methods("DELETE")
	api.HandleFunc("/projects/{projectId}/thumbnail", projectHandler.Thumbnail).Methods("POST")

	// WebSocket endpoint
	patterns := originPatterns(origins)
	r.HandleFunc("/ws/editor", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, projectService, patterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first so open compositions are saved
		slog.Info("saving open projects...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "canvas", fmt.Sprintf("%dx%d", cfg.CanvasWidth, cfg.CanvasHeight))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, authSvc *auth.Service, projects *project.Service, patterns []string) {
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		projectID = session.PlaygroundProjectID
	}

	var userID string
	if projectID == session.PlaygroundProjectID {
		// Anonymous user for playground
		userID = "anon-" + uuid.New().String()[:8]
	} else {
		// Auth via query param for real projects
		var err error
		userID, err = authSvc.Authenticate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		if _, err := projects.Get(r.Context(), projectID, userID); err != nil {
			switch {
			case errors.Is(err, project.ErrNotFound):
				http.Error(w, "project not found", http.StatusNotFound)
			case errors.Is(err, project.ErrForbidden):
				http.Error(w, "not the project owner", http.StatusForbidden)
			default:
				slog.Error("load project for websocket", "project", projectID, "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: patterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	client := session.NewClient(hub, conn, userID, projectID, uuid.New().String())
	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}

// originPatterns turns allowed origins into host patterns for the
// websocket origin check.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		patterns = append(patterns, o)
	}
	return patterns
}
