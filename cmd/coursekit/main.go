// File path: cmd/coursekit/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/coursekit/coursekit/internal/api"
	"github.com/coursekit/coursekit/internal/artifact"
	"github.com/coursekit/coursekit/internal/common"
	"github.com/coursekit/coursekit/internal/llm"
	"github.com/coursekit/coursekit/internal/session"
	"github.com/coursekit/coursekit/internal/workflow"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("coursekit: .env file not loaded", "error", err)
	} else {
		logger.Info("coursekit: environment loaded from .env")
	}

	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", defaultDBPath(), "path to the session database")
	artifactRoot := flag.String("artifacts", defaultArtifactRoot(), "directory for generated course materials")
	maxUpload := flag.Int64("max-upload", 0, "maximum upload size in bytes (0 uses defaults)")
	flag.Parse()

	logger.Info("coursekit: startup initiated", "addr", *addr, "db", *dbPath, "artifacts", *artifactRoot)

	sessionCfg, err := session.LoadConfig()
	if err != nil {
		logger.Error("coursekit: session config load failed", "error", err)
		fmt.Println("session config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*dbPath); trimmed != "" {
		sessionCfg.Path = trimmed
	}
	store, err := session.OpenWithConfig(sessionCfg)
	if err != nil {
		logger.Error("coursekit: session store open failed", "error", err)
		fmt.Println("session store error:", err)
		os.Exit(1)
	}
	defer store.Close()

	artifacts, err := artifact.NewStore(*artifactRoot)
	if err != nil {
		logger.Error("coursekit: artifact store init failed", "error", err)
		fmt.Println("artifact store error:", err)
		os.Exit(1)
	}

	provider := llm.NewProvider()
	logger.Info("coursekit: llm provider ready", "provider", provider.Name())

	workflowCfg, err := workflow.LoadConfig()
	if err != nil {
		logger.Error("coursekit: workflow config load failed", "error", err)
		fmt.Println("workflow config error:", err)
		os.Exit(1)
	}

	engine := workflow.NewEngine(store, artifacts, provider, workflowCfg)
	defer engine.Close()
	go engine.RunJanitor(ctx)

	apiCfg := api.DefaultConfig()
	if *maxUpload > 0 {
		apiCfg.MaxUploadBytes = *maxUpload
	}
	server := api.NewServer(engine, &apiCfg)

	httpServer := &http.Server{
		Addr:              *addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("coursekit: server listening", "addr", *addr, "health", "/healthz")
		fmt.Printf("Serving on %s\n", *addr)
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("coursekit: shutdown requested", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("coursekit: server stopped", "error", err)
			fmt.Println("server stopped:", err)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("coursekit: shutdown failed", "error", err)
	}
	engine.Wait()
	logger.Info("coursekit: shutdown complete")
}

func defaultDBPath() string {
	return filepath.Join("data", "coursekit.db")
}

func defaultArtifactRoot() string {
	return filepath.Join("data", "materials")
}
