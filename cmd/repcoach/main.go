package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/repcoach/internal/config"
	"github.com/claude/repcoach/internal/mcp"
	"github.com/claude/repcoach/internal/profile"
	"github.com/claude/repcoach/internal/server"
	"github.com/claude/repcoach/internal/storage"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpMode := flag.Bool("mcp", false, "serve MCP over stdio instead of HTTP")
	mcpServerURL := flag.String("mcp-server", "", "remote RepCoach base URL for MCP mode (default: local database)")
	flag.Parse()

	if *mcpMode {
		runMCP(*configPath, *mcpServerURL)
		return
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("RepCoach starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Run migrations
	dsn := cfg.Database.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	// Connect database
	ctx := context.Background()
	db, err := storage.New(ctx, dsn)
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	// Exercise profiles
	registry, err := loadRegistry(cfg.Engine.ProfilesPath, log)
	if err != nil {
		log.Error("failed to load exercise profiles", "error", err)
		os.Exit(1)
	}

	// Create server
	srv := server.New(db, registry, server.EngineOptions{
		VisibilityThreshold: cfg.Engine.VisibilityThreshold,
		FeedbackCooldown:    cfg.Engine.FeedbackCooldown,
	}, cfg.Auth.APIKey, log)

	// Start server, tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// loadRegistry builds the exercise registry, applying the override file
// when one is configured.
func loadRegistry(profilesPath string, log *slog.Logger) (*profile.Registry, error) {
	registry, err := profile.NewRegistry()
	if err != nil {
		return nil, err
	}
	if profilesPath != "" {
		if err := registry.ApplyOverrides(profilesPath); err != nil {
			return nil, fmt.Errorf("applying profile overrides: %w", err)
		}
		log.Info("profile overrides applied", "path", profilesPath)
	}
	return registry, nil
}

// runMCP serves MCP over stdio. Stdout carries the protocol, so logs
// go to stderr. With -mcp-server the tools query a remote RepCoach
// REST API; otherwise they hit the local database directly.
func runMCP(configPath, serverURL string) {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var ds mcp.DataSource
	var registry *profile.Registry

	if serverURL != "" {
		ds = mcp.NewHTTPClient(serverURL)

		var err error
		registry, err = profile.NewRegistry()
		if err != nil {
			log.Error("failed to load exercise profiles", "error", err)
			os.Exit(1)
		}
	} else {
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}

		db, err := storage.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		ds = db

		registry, err = loadRegistry(cfg.Engine.ProfilesPath, log)
		if err != nil {
			log.Error("failed to load exercise profiles", "error", err)
			os.Exit(1)
		}
	}

	s := mcp.New(ds, registry, Version, log)
	if err := mcpserver.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
