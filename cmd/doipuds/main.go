package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tormodh/doipuds/internal/api"
	"github.com/tormodh/doipuds/internal/config"
	"github.com/tormodh/doipuds/internal/logging"
	"github.com/tormodh/doipuds/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// cliFlags holds parsed command-line flag values.
type cliFlags struct {
	configPath string
	apiHost    string
	apiPort    int
	jsonLogs   bool
	debug      bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", "", "Path to YAML config file")
	flag.StringVar(&f.apiHost, "api-host", "", "Override REST API bind host")
	flag.IntVar(&f.apiPort, "api-port", 0, "Override REST API bind port")
	flag.BoolVar(&f.jsonLogs, "json-logs", false, "Enable JSON structured logging")
	flag.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	flag.Parse()
	return f
}

func applyCLIOverrides(cfg *config.Config, f cliFlags) {
	if f.apiHost != "" {
		cfg.API.Host = f.apiHost
	}
	if f.apiPort != 0 {
		cfg.API.Port = f.apiPort
	}
	if f.jsonLogs {
		cfg.Logging.Structured = true
		cfg.Logging.StructuredFormat = "json"
	}
	if f.debug {
		cfg.Logging.Level = "DEBUG"
	}
}

func run() error {
	flags := parseFlags()

	cfg, err := config.Load(config.ResolveConfigPath(flags.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyCLIOverrides(cfg, flags)

	logger := logging.Configure(logging.Config{
		Level:            cfg.Logging.Level,
		Structured:       cfg.Logging.Structured,
		StructuredFormat: cfg.Logging.StructuredFormat,
		IncludePID:       cfg.Logging.IncludePID,
		ExtraFields:      cfg.Logging.ExtraFields,
	})
	logger.Info("doipuds starting",
		"api_host", cfg.API.Host,
		"api_port", cfg.API.Port,
		"default_timeout_ms", cfg.Transport.DefaultTimeoutMs,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	manager := session.New(cfg.Security.Constants, logger)

	if !cfg.API.Enabled {
		logger.Info("REST API disabled, nothing to run; exiting")
		return nil
	}

	apiSrv := api.New(cfg, manager, logger)
	logger.Info("REST API starting", "addr", apiSrv.Addr())

	go func() {
		serveErr := apiSrv.ListenAndServe()
		if serveErr == nil || errors.Is(serveErr, http.ErrServerClosed) {
			return
		}
		logger.Error("API server error", "err", serveErr)
		cancel()
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("API shutdown error", "err", err)
	}

	if env := manager.Disconnect(); !env.Success {
		logger.Warn("disconnect on shutdown reported failure", "message", env.Message)
	}

	logger.Info("doipuds stopped")
	return nil
}
