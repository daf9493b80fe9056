package daemon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uplo-tech/threadgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/allaspectsdev/frkbsync/internal/api"
	"github.com/allaspectsdev/frkbsync/internal/bloomcache"
	"github.com/allaspectsdev/frkbsync/internal/config"
	"github.com/allaspectsdev/frkbsync/internal/ephemeralcache"
	"github.com/allaspectsdev/frkbsync/internal/metrics"
	"github.com/allaspectsdev/frkbsync/internal/store"
	"github.com/allaspectsdev/frkbsync/internal/synclock"
	"github.com/allaspectsdev/frkbsync/internal/syncengine"
	"github.com/allaspectsdev/frkbsync/internal/version"
)

const logFilename = "frkbsyncd.log"

// Run is the main daemon orchestrator. It initialises the storage layer,
// the sync engine and its caches, the HTTP surface, and blocks until a
// shutdown signal is received.
func Run(cfg *config.Config, foreground bool) error {
	dataDir := expandHome(cfg.Storage.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	zerolog.SetGlobalLevel(logLevel)

	writers := []io.Writer{}

	logPath := filepath.Join(dataDir, logFilename)
	logFile := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	defer logFile.Close()
	writers = append(writers, logFile)

	if foreground {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
		writers = append(writers, consoleWriter)
	}

	multi := zerolog.MultiLevelWriter(writers...)
	log.Logger = zerolog.New(multi).With().Timestamp().Str("service", "frkbsyncd").Logger()

	log.Info().
		Str("version", version.Version).
		Str("data_dir", dataDir).
		Bool("foreground", foreground).
		Msg("frkbsyncd starting")

	if IsRunning(dataDir) {
		return fmt.Errorf("frkbsyncd is already running (PID file exists at %s)", filepath.Join(dataDir, pidFilename))
	}

	dbPath := filepath.Join(dataDir, cfg.Storage.Filename)
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	log.Info().Str("db_path", dbPath).Msg("store opened")

	if err := WritePID(dataDir); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer func() {
		if err := RemovePID(dataDir); err != nil {
			log.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	log.Info().Int("pid", os.Getpid()).Msg("PID file written")

	configFile := config.ConfigFilePath()
	if configFile == "" {
		configFile = filepath.Join(dataDir, config.DefaultConfigFilename)
	}

	var watcher *config.Watcher
	if _, statErr := os.Stat(configFile); statErr == nil {
		w, watchErr := config.Watch(configFile)
		if watchErr != nil {
			log.Warn().Err(watchErr).Msg("failed to start config watcher; continuing without hot-reload")
		} else {
			watcher = w
			defer watcher.Close()
			watcher.OnChange(func(old, newCfg *config.Config) {
				log.Info().Msg("configuration reloaded")
				newLevel := parseLogLevel(newCfg.Server.LogLevel)
				zerolog.SetGlobalLevel(newLevel)
			})
			log.Info().Str("file", configFile).Msg("config watcher started")
		}
	}

	// ---------------------------------------------------------------
	// Wire the sync stack: cache, bloom filter, lock registry, engine.
	// ---------------------------------------------------------------

	cacheCapacity := cfg.Cache.Capacity
	if !cfg.Cache.Enabled {
		cacheCapacity = 0
	}
	cache, err := ephemeralcache.New(cacheCapacity)
	if err != nil {
		return fmt.Errorf("creating ephemeral cache: %w", err)
	}

	var bloom *bloomcache.Cache
	if cfg.Bloom.Enabled {
		bloom = bloomcache.New(st.Meta(), st.Fingerprints(), cfg.Bloom.RebuildsPerSecond)
	}

	locks := synclock.NewRegistry()

	engine := syncengine.New(cfg.SyncEngineConfig(), st, cache, bloom, locks, log.Logger, nil)

	var tg threadgroup.ThreadGroup
	if err := engine.StartMaintenance(&tg); err != nil {
		return fmt.Errorf("starting maintenance loop: %w", err)
	}

	// ---------------------------------------------------------------
	// Wire the metrics collector and HTTP surface.
	// ---------------------------------------------------------------

	reg := metrics.NewRegistry()
	collector := metrics.NewCollector(reg, func() (*metrics.ServiceStats, error) {
		stats, err := engine.GetServiceStats()
		if err != nil {
			return nil, err
		}
		return &metrics.ServiceStats{
			ActiveSessions:                  stats.ActiveSessions,
			ActiveSyncLocks:                 stats.ActiveSyncLocks,
			CacheHits:                       stats.CacheHits,
			CacheMisses:                     stats.CacheMisses,
			CacheEvictions:                  stats.CacheEvictions,
			BloomFilterUsers:                stats.BloomFilterUsers,
			BloomElementCount:               stats.BloomElementCount,
			BloomEstimatedFalsePositiveRate: stats.BloomEstimatedFalsePositiveRate,
		}, nil
	})

	authenticator := api.NewHeaderAuthenticator(cfg.Auth.UserKeyHeaderName)
	srv := api.NewServer(engine, st, authenticator, cfg.Auth.AdminToken, log.Logger, collector, metrics.Handler(reg))
	router := srv.Router()

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var serveErr error
		if cfg.Server.TLSEnabled {
			log.Info().Str("addr", addr).Msg("sync server starting (TLS)")
			serveErr = httpServer.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			log.Info().Str("addr", addr).Msg("sync server starting")
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && serveErr != http.ErrServerClosed {
			errCh <- fmt.Errorf("sync server: %w", serveErr)
		}
	}()

	scheme := "http"
	if cfg.Server.TLSEnabled {
		scheme = "https"
	}

	log.Info().
		Str("addr", addr).
		Bool("tls", cfg.Server.TLSEnabled).
		Msg("frkbsyncd is ready")

	if foreground {
		fmt.Printf("\n  frkbsyncd is running!\n")
		fmt.Printf("  Sync API: %s://%s%s\n\n", scheme, addr, api.BasePrefix)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error")
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info().Msg("shutting down...")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("sync server shutdown error")
	}

	if err := tg.Stop(); err != nil {
		log.Error().Err(err).Msg("maintenance loop shutdown error")
	}

	st.Close()
	if err := RemovePID(dataDir); err != nil {
		log.Error().Err(err).Msg("failed to remove PID file during shutdown")
	}

	log.Info().Msg("frkbsyncd stopped")
	return nil
}

// Stop reads the PID file and sends SIGTERM to the running daemon.
func Stop() error {
	dataDir := expandHome(config.Get().Storage.DataDir)

	pid, err := ReadPID(dataDir)
	if err != nil {
		return fmt.Errorf("frkbsyncd does not appear to be running: %w", err)
	}

	if !isProcessAlive(pid) {
		if rmErr := RemovePID(dataDir); rmErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to remove stale PID file: %v\n", rmErr)
		}
		return fmt.Errorf("frkbsyncd is not running (stale PID file removed)")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("sending SIGTERM to process %d: %w", pid, err)
	}

	fmt.Printf("Sent SIGTERM to frkbsyncd (PID %d)\n", pid)

	for i := 0; i < 30; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessAlive(pid) {
			return nil
		}
	}

	return nil
}

// Status checks if the daemon is running and probes the unauthenticated
// /health endpoint to confirm the HTTP surface is actually answering
// (per-user /status needs an X-User-Key this CLI doesn't have, so health
// is the honest signal to report here).
func Status() error {
	cfg := config.Get()
	dataDir := expandHome(cfg.Storage.DataDir)

	if !IsRunning(dataDir) {
		fmt.Println("frkbsyncd is not running")
		return nil
	}

	pid, _ := ReadPID(dataDir)
	fmt.Printf("frkbsyncd is running (PID %d)\n", pid)

	scheme := "http"
	if cfg.Server.TLSEnabled {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s:%d/health", scheme, cfg.Server.BindAddress, cfg.Server.Port)
	client := &http.Client{Timeout: 3 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		fmt.Println("  (sync API unreachable)")
		return nil
	}
	defer resp.Body.Close()

	fmt.Printf("  HTTP status: %s\n", resp.Status)
	return nil
}

// parseLogLevel converts a string log level to a zerolog.Level.
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// expandHome replaces a leading ~ with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
