package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/loqalabs/loqa-interview/internal/config"
	"github.com/loqalabs/loqa-interview/internal/runtime"
)

var version = "0.1.0-dev"

const usage = "expected 'run', 'questions', 'devices', 'sessions' or 'version'"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cmd := os.Args[1]
	if cmd == "version" || cmd == "-version" {
		fmt.Println(version)
		return
	}

	var configPath string
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file (defaults apply when empty)")
	limit := fs.Int("limit", 20, "Maximum sessions to list (sessions only)")
	_ = fs.Parse(os.Args[2:])

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout belongs to the interview
	logger := runtime.NewLogger(cfg.Telemetry, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		err = runInterview(ctx, cfg, logger)
	case "questions":
		err = listQuestions(ctx, cfg, logger, os.Stdout)
	case "devices":
		err = listDevices(ctx, cfg, os.Stdout)
	case "sessions":
		err = listSessions(ctx, cfg, logger, os.Stdout, *limit)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd+" failed", slog.String("error", err.Error()))
		stop()
		os.Exit(1)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
