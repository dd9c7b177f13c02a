package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chainring/backend/internal/api"
	"github.com/chainring/backend/internal/config"
	"github.com/chainring/backend/internal/index"
	"github.com/chainring/backend/internal/models"
	"github.com/chainring/backend/internal/parser"
	"github.com/chainring/backend/internal/session"
	"github.com/chainring/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chainring: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("CHAINRING_CONFIG")
	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "chainring.config")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	level, _ := config.ParseLogLevel(cfg.Advanced.LogLevel)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	log := slog.Default().With("component", "server")

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	fileStore, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	snapshots, err := session.NewDrawingStore(cfg.Storage.DrawingsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize drawing store: %w", err)
	}
	if files, err := fileStore.List(0); err == nil {
		ids := make([]string, len(files))
		for i, f := range files {
			ids[i] = f.ID
		}
		if n := snapshots.CleanupOrphaned(ids); n > 0 {
			log.Info("removed orphaned drawings", "count", n)
		}
	}

	rules := &models.LayerRules{RoomLayer: cfg.Import.RoomLayer}
	if cfg.Import.LayerRulesPath != "" {
		rules, err = parser.ParseLayerRules(cfg.Import.LayerRulesPath)
		if err != nil {
			return fmt.Errorf("failed to load layer rules: %w", err)
		}
		if rules.RoomLayer == "" {
			rules.RoomLayer = cfg.Import.RoomLayer
		}
		log.Info("layer rules loaded", "path", cfg.Import.LayerRulesPath, "hidden", len(rules.Hidden), "renamed", len(rules.Rename))
	}

	registry := parser.NewRegistry(parser.WithEncodings(cfg.EncodingList()))
	sessions := session.NewManager(session.Options{
		Registry:   registry,
		Rules:      rules,
		RoomPrefix: cfg.Import.RoomIDPrefix,
		IndexDir:   cfg.Storage.IndexDirectory,
		Index: index.Options{
			Threads:     cfg.Advanced.DuckDBThreads,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		},
		Snapshots: snapshots,
	})
	defer sessions.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Import.CleanupIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		maxAge := time.Duration(cfg.Import.SessionTimeoutMinutes) * time.Minute
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessions.CleanupOldSessions(maxAge); n > 0 {
					log.Info("closed idle drawings", "count", n)
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	var origins []string
	if cfg.Server.EnableCORS {
		for _, o := range strings.Split(cfg.Server.AllowOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
	}
	api.SetupMiddleware(e, api.MiddlewareOptions{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		AllowOrigins:   origins,
		BodyLimit:      cfg.Server.BodyLimit,
		Timeout:        time.Duration(cfg.Server.ReadTimeout) * time.Second,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Store:     fileStore,
		Sessions:  sessions,
		Registry:  registry,
		Writer:    parser.NewWriter(),
		RoomLayer: rules.RoomLayer,
		Version:   Version,
	})
	api.RegisterRoutes(e, handlers, true)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info("starting",
		"version", Version,
		"build", BuildTime,
		"config", configPath,
		"listen", cfg.GetServerAddr(),
		"data", cfg.Storage.DataDirectory,
		"formats", registry.Names())

	errCh := make(chan error, 1)
	go func() { errCh <- e.StartServer(s) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
