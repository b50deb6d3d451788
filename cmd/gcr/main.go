// Command gcr polls Gerrit for open changes and posts automated reviews.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/claude"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/cli"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/gerrit"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/observability"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/store"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/store/sqlite"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/adapter/tracking"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/config"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/scheduler"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/usecase/review"
	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/version"
)

// Compile-time checks that the adapters satisfy the orchestrator's ports.
var (
	_ review.ChangeSource = (*gerrit.Client)(nil)
	_ review.Generator    = (*claude.Generator)(nil)
	_ review.Tracker      = (*tracking.FileStore)(nil)
	_ review.HistoryStore = (*store.Bridge)(nil)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// Optional .env file; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: configPaths(),
	})
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := buildLogger(cfg.Observability.Logging)

	runner, err := gerrit.NewSSHRunner(cfg.Gerrit.Host, cfg.Gerrit.Port, cfg.Gerrit.Username, cfg.Gerrit.SSHKeyPath)
	if err != nil {
		return fmt.Errorf("configure gerrit transport: %w", err)
	}

	diffs := gerrit.NewGitDiffProvider(cfg.Gerrit.Host, cfg.Gerrit.Port, cfg.Gerrit.Username, cfg.Gerrit.SSHKeyPath)

	client := gerrit.NewClient(runner, logger, gerrit.Options{
		DiffProvider: diffs,
		HTTPBase:     httpBase(cfg.Gerrit),
	})

	generator := claude.NewGenerator(
		cfg.Review.ClaudeCommand,
		time.Duration(cfg.Review.TimeoutSeconds)*time.Second,
		logger,
	)

	tracker := tracking.NewFileStore(cfg.Tracking.Path)

	var history review.HistoryStore
	if cfg.Store.Enabled {
		db, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		defer db.Close()
		history = store.NewBridge(db)
	}

	orchestrator, err := review.NewOrchestrator(review.Deps{
		Source:    client,
		Generator: generator,
		Tracker:   tracker,
		Store:     history,
		Logger:    logger,
	}, review.Params{
		Query:            gerrit.BuildQuery(cfg.Gerrit.QueryAge),
		MaxLinesChanged:  cfg.Review.MaxLinesChanged,
		MaxContentBytes:  cfg.Review.MaxContentBytes,
		MaxCommentBytes:  cfg.Review.MaxCommentBytes,
		InterChangeDelay: time.Duration(cfg.Review.InterChangeDelaySeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("wire review pipeline: %w", err)
	}

	sched, err := scheduler.New(scheduler.Config{
		Interval:      time.Duration(cfg.Schedule.IntervalMinutes) * time.Minute,
		MorningTime:   cfg.Schedule.MorningTime,
		AfternoonTime: cfg.Schedule.AfternoonTime,
		CheckEvery:    time.Duration(cfg.Schedule.CheckSeconds) * time.Second,
		ErrorBackoff:  time.Duration(cfg.Schedule.ErrorRetrySeconds) * time.Second,
	}, func(ctx context.Context) {
		orchestrator.ProcessChanges(ctx)
	}, logger)
	if err != nil {
		return fmt.Errorf("configure schedule: %w", err)
	}

	root := cli.NewRootCommand(cli.Dependencies{
		Pipeline: orchestrator,
		Checker:  connectivity{client: client, generator: generator},
		Schedule: sched.Start,
		Args: cli.Arguments{
			OutWriter: os.Stdout,
			ErrWriter: os.Stderr,
		},
		Version: version.Value(),
	})
	root.SetArgs(args)

	return root.ExecuteContext(ctx)
}

// connectivity probes both external collaborators before any cycle runs.
type connectivity struct {
	client    *gerrit.Client
	generator *claude.Generator
}

func (c connectivity) Check(ctx context.Context) error {
	if _, err := c.client.Version(ctx); err != nil {
		return fmt.Errorf("gerrit unreachable: %w", err)
	}
	if err := c.generator.Ping(ctx); err != nil {
		return fmt.Errorf("review backend unreachable: %w", err)
	}
	return nil
}

func configPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "gcr"))
	}
	return paths
}

func httpBase(cfg config.GerritConfig) string {
	host := cfg.HTTPHost
	if host == "" {
		host = cfg.Host
	}
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

func buildLogger(cfg config.LoggingConfig) *observability.Logger {
	format := observability.LogFormatJSON
	switch strings.ToLower(cfg.Format) {
	case "human":
		format = observability.LogFormatHuman
	case "json":
		format = observability.LogFormatJSON
	default:
		if review.IsOutputTerminal() {
			format = observability.LogFormatHuman
		}
	}
	return observability.NewLogger(observability.ParseLevel(cfg.Level), format)
}
