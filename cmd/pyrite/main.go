// # cmd/pyrite/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pyrite/internal/app"
	"pyrite/internal/config"
	"pyrite/internal/shared/observability"
)

var (
	configPath = flag.String("config", "./pyrite.toml", "Path to config file")
	watch      = flag.Bool("watch", false, "Re-check on file changes")
	dotPath    = flag.String("dot", "", "Write the import graph as DOT to this path")
	emit       = flag.Bool("emit", false, "Emit lowered C for annotated modules")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "0.3.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("pyrite v%s\n", VERSION)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) && *configPath == "./pyrite.toml" {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 {
		cfg.SourcePaths = flag.Args()
	}
	if *dotPath != "" {
		cfg.Output.DOT = *dotPath
	}
	if *emit {
		cfg.Codegen.Enabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := os.Getenv("PYRITE_OTLP_ENDPOINT"); endpoint != "" {
		shutdown, err := observability.SetupTracing(ctx, endpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	checker, err := app.NewChecker(cfg, os.Stdout)
	if err != nil {
		slog.Error("failed to initialize checker", "error", err)
		os.Exit(1)
	}
	defer checker.Close()

	res, err := checker.Run(ctx)
	if err != nil {
		slog.Error("check failed", "error", err)
		os.Exit(1)
	}
	checker.Report(res)

	if *watch {
		if err := checker.Watch(ctx); err != nil && ctx.Err() == nil {
			slog.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if len(res.Diagnostics) > 0 {
		os.Exit(1)
	}
}
