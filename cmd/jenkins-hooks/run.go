package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/jenkins-hooks/internal/config"
	"github.com/jenkins-hooks/internal/jenkins"
	"github.com/jenkins-hooks/internal/logging"
	"github.com/jenkins-hooks/internal/processor"
	"github.com/jenkins-hooks/internal/server"
	"github.com/jenkins-hooks/internal/webhook"
)

// runCommand loads the configuration, wires the relay and serves until
// SIGINT or SIGTERM. It returns the process exit code.
func runCommand(args []string) int {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	resolvePath := configFlag(fs)
	debug := fs.Bool("debug", false, "force debug logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	configPath, err := resolvePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve config path: %v\n", err)
		return 1
	}
	loadDotEnv(configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
		return 1
	}

	level := cfg.Logging.Level
	if *debug {
		level = "debug"
	}
	logger, closer, err := logging.New(logging.Options{
		Level:      level,
		Format:     cfg.Logging.Format,
		Directory:  cfg.Logging.Directory,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logging: %v\n", err)
		return 1
	}
	defer closer.Close()

	mapping := cfg.Mapping()
	logger.Info("configuration loaded",
		slog.String("path", configPath),
		slog.Int("folders", len(mapping.Folders())),
		slog.String("jenkins", cfg.Jenkins.BaseURL()),
		slog.Bool("skip_tls_verify", cfg.Jenkins.SkipTLSVerify),
	)
	if cfg.Jenkins.SkipTLSVerify {
		logger.Warn("TLS certificate verification is disabled for jenkins")
	}

	httpClient := jenkins.NewHTTPClient(cfg.Jenkins.SkipTLSVerify, cfg.Jenkins.Timeout.Duration)
	jenkinsClient, err := jenkins.New(
		cfg.Jenkins.BaseURL(),
		cfg.Jenkins.Username,
		cfg.Jenkins.API,
		httpClient,
		logger.With(slog.String("component", "jenkins_client")),
		jenkins.WithStrictStatus(cfg.Jenkins.StrictStatus),
	)
	if err != nil {
		logger.Error("failed to create jenkins client", slog.String("error", err.Error()))
		return 1
	}

	proc := processor.New(mapping, jenkinsClient, logger.With(slog.String("component", "processor")))
	hook := webhook.New(
		webhook.NewDecoder(cfg.Server.EventHeader),
		proc,
		logger.With(slog.String("component", "webhook_handler")),
	)

	if level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(cfg.Server, hook, logger.With(slog.String("component", "http")))

	ln, err := srv.Listen()
	if err != nil {
		logger.Error("failed to bind", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx, ln); err != nil {
		logger.Error("server terminated with error", slog.String("error", err.Error()))
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}
