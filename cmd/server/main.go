package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notebuddy/internal/ai"
	"notebuddy/internal/blob"
	"notebuddy/internal/config"
	"notebuddy/internal/files"
	"notebuddy/internal/handler"
	"notebuddy/internal/localcache"
	"notebuddy/internal/middleware"
	"notebuddy/internal/notestore"
	"notebuddy/internal/sync"
	"notebuddy/internal/websocket"
	"notebuddy/pkg/logger"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.New(cfg.Server.Env, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		zlog.Fatal("Failed to connect to CouchDB", zap.Error(err))
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		zlog.Fatal("Failed to check database existence", zap.Error(err))
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			zlog.Fatal("Failed to create database", zap.Error(err))
		}
		zlog.Info("Created database", zap.String("name", cfg.Database.Name))
	}

	blobStore := blob.NewCouchStore(client, cfg.Database.Name)

	cache, err := localcache.NewRedisCache(
		context.Background(),
		cfg.Cache.Addr,
		cfg.Cache.Password,
		cfg.Cache.DB,
		zlog,
	)
	if err != nil {
		zlog.Fatal("Failed to initialize local cache", zap.Error(err))
	}

	remoteStore := notestore.NewRemoteStore(blobStore, zlog, cfg.Sync.RemoteTimeout)

	wsManager := websocket.NewManager(
		cfg.WebSocket.MaxConnPerUser,
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
		zlog,
	)
	go wsManager.Run()

	detector := sync.NewDetector(cache, remoteStore, cfg.Sync.ConflictTolerance, zlog)
	syncService := sync.NewService(
		cache,
		remoteStore,
		detector,
		wsManager,
		cfg.Sync.DebounceInterval,
		zlog,
	)

	fileService := files.NewService(blobStore, syncService, zlog)
	aiService := ai.NewService(cfg.OpenAI.APIKey, cfg.OpenAI.Model, fileService, zlog)
	transcriber := ai.NewTranscriber(cfg.OpenAI.APIKey, cfg.OpenAI.Model, blobStore, zlog)

	wsManager.SetMessageHandler(handler.NewEditMessageHandler(syncService, zlog))

	noteHandler := handler.NewNoteHandler(syncService)
	settingsHandler := handler.NewSettingsHandler(syncService)
	aiHandler := handler.NewAIHandler(aiService, transcriber)
	fileHandler := handler.NewFileHandler(fileService)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.JWT.Secret, zlog)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware(zlog))
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	api.HandleFunc("/notes", noteHandler.Create).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes", noteHandler.List).Methods("GET", "OPTIONS")
	// Registered ahead of /notes/{id} so "search" is never read as a note ID.
	api.HandleFunc("/notes/search", noteHandler.Search).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Open).Methods("GET", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Update).Methods("PUT", "OPTIONS")
	api.HandleFunc("/notes/{id}", noteHandler.Delete).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/notes/{id}/favorite", noteHandler.ToggleFavorite).Methods("POST", "OPTIONS")
	api.HandleFunc("/notes/{id}/resolve", noteHandler.Resolve).Methods("POST", "OPTIONS")

	api.HandleFunc("/settings", settingsHandler.Get).Methods("GET", "OPTIONS")
	api.HandleFunc("/settings", settingsHandler.Save).Methods("PUT", "OPTIONS")

	api.HandleFunc("/ai/complete", aiHandler.Complete).Methods("POST", "OPTIONS")
	api.HandleFunc("/ai/summary", aiHandler.Summarize).Methods("POST", "OPTIONS")
	api.HandleFunc("/ai/transcribe", aiHandler.Transcribe).Methods("POST", "OPTIONS")

	api.HandleFunc("/files/{noteId}", fileHandler.Upload).Methods("POST", "OPTIONS")
	api.HandleFunc("/files/{noteId}", fileHandler.List).Methods("GET", "OPTIONS")
	api.HandleFunc("/files/{noteId}", fileHandler.Delete).Methods("DELETE", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	r.HandleFunc("/health", healthHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("Starting NoteBuddy sync server",
			zap.String("addr", addr),
			zap.String("env", cfg.Server.Env),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zlog.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zlog.Info("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"notebuddy"}`))
}
