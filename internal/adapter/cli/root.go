// Package cli wires the cobra command surface for the reviewer daemon.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicolaschoi7042/gerrit-claude-reviewer/internal/usecase/review"
)

// ErrVersionRequested indicates the user requested the CLI version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Pipeline runs one poll cycle.
type Pipeline interface {
	ProcessChanges(ctx context.Context) review.CycleStats
}

// Checker verifies both external collaborators are reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Pipeline Pipeline
	Checker  Checker

	// Schedule blocks running the poll schedule until the context is
	// canceled. The first cycle fires immediately inside it.
	Schedule func(ctx context.Context)

	Args    Arguments
	Version string
}

// NewRootCommand constructs the root Cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "gcr",
		Short: "Automated Gerrit code reviewer backed by Claude",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(runCommand(deps))
	root.AddCommand(onceCommand(deps))
	root.AddCommand(checkCommand(deps))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func runCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the polling daemon until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := deps.Checker.Check(ctx); err != nil {
				return fmt.Errorf("startup connectivity check failed: %w", err)
			}
			deps.Schedule(ctx)
			return nil
		},
	}
}

func onceCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := deps.Checker.Check(ctx); err != nil {
				return fmt.Errorf("startup connectivity check failed: %w", err)
			}
			stats := deps.Pipeline.ProcessChanges(ctx)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"changes=%d posted=%d skipped=%d nothing-to-do=%d post-failures=%d errors=%d\n",
				stats.ChangesSeen, stats.Posted, stats.Skipped,
				stats.NothingToDo, stats.PostFailures, stats.Errors)
			if stats.PostFailures > 0 || stats.Errors > 0 {
				return fmt.Errorf("cycle finished with %d failures", stats.PostFailures+stats.Errors)
			}
			return nil
		},
	}
}

func checkCommand(deps Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify connectivity to Gerrit and the review backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.Checker.Check(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "all connections ok")
			return nil
		},
	}
}
