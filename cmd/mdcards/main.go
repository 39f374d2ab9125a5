package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mdcards/mdcards/internal/api"
	"github.com/mdcards/mdcards/internal/config"
	"github.com/mdcards/mdcards/internal/media"
	"github.com/mdcards/mdcards/internal/store"
	"github.com/mdcards/mdcards/pkg/logger"
	"github.com/mdcards/mdcards/pkg/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	listenAddr := flag.String("addr", "", "listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	log := logger.New(logger.WithPrefix("[mdcards] "))
	log.SetVerbose(*verbose)

	if *showVersion {
		log.Info("%s", version.GetVersionInfo())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal("Error loading config: %v", err)
		}
		log.Debug("no config file at %s, using defaults", *configPath)
		cfg = config.Default()
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *verbose {
		cfg.Verbose = true
	}
	log.SetVerbose(cfg.Verbose)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal("Error creating data directory: %v", err)
	}

	st, err := store.Open(filepath.Join(cfg.DataDir, "mdcards.db"), log)
	if err != nil {
		log.Fatal("Error opening store: %v", err)
	}
	defer st.Close()

	md, err := media.NewStore(cfg.UploadsDir, log)
	if err != nil {
		log.Fatal("Error opening media store: %v", err)
	}

	server := api.NewServer(st, md, cfg, log)
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("%s listening on %s", version.GetVersionInfo(), cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("forced shutdown: %v", err)
	}
}
