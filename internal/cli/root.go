// Package cli implements the cobra-based CLI commands for shadowrepo.
//
// Each subcommand (init, switch, stage, checkpoint, delete, status,
// suppress) is defined in its own file within this package. This file
// defines the root command that serves as the parent for all subcommands
// and handles global flags, logging and exit codes.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/shadowrepo/internal/config"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// Logs on stderr switch to JSON lines as well.
	jsonOutput bool

	// verbose lowers the log level from warn to debug, which includes
	// every git command the manager runs.
	verbose bool

	// configPath overrides config file discovery.
	configPath string

	// storageRoot overrides the storage root from the config file.
	storageRoot string
)

// Version, Commit, and Date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
//
// The root command itself does not perform any action. It only provides
// help text and global flags; the subcommands do the work.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shadowrepo",
		Short: "Per-task checkpoints of a workspace in a shadow git repository",
		Long: `shadowrepo snapshots a workspace into a git repository whose metadata lives
in private storage, so an agent's edits can be checkpointed and rolled back
without touching the workspace's own version control.

Each workspace gets one shadow repository with one branch per task. Task
repositories created by older versions (one repository per task) are still
recognized and take precedence.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		SilenceUsage: true,

		// SilenceErrors lets Execute format errors (text or JSON).
		SilenceErrors: true,

		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $"+config.EnvConfigPath+" or the user config directory)")
	rootCmd.PersistentFlags().StringVar(&storageRoot, "storage", "", "Storage root for shadow repositories")

	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewSwitchCommand())
	rootCmd.AddCommand(NewStageCommand())
	rootCmd.AddCommand(NewCheckpointCommand())
	rootCmd.AddCommand(NewDeleteCommand())
	rootCmd.AddCommand(NewStatusCommand())
	rootCmd.AddCommand(NewSuppressCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// Errors are mapped to exit codes with model.ExitCodeFor, so shadow
// repository failures (mismatch, branch, staging) keep their own codes
// even when they wrap a git failure.
func Execute(rootCmd *cobra.Command) {
	// An interrupt cancels the context; git subprocesses are killed and
	// deferred restores (worktree binding, nested repositories) still run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(int(model.ExitCodeFor(err)))
	}
}

// printError outputs an error in the appropriate format (JSON or text)
// based on the --json global flag.
func printError(w io.Writer, err error) {
	message := err.Error()
	var detail string
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) && cliErr == err {
		message = cliErr.Message
		if cliErr.Err != nil {
			detail = cliErr.Err.Error()
		}
	}

	if !jsonOutput {
		if detail != "" {
			fmt.Fprintf(w, "Error: %s: %s\n", message, detail)
		} else {
			fmt.Fprintf(w, "Error: %s\n", message)
		}
		return
	}

	errObj := map[string]interface{}{
		"message":  message,
		"exitCode": int(model.ExitCodeFor(err)),
	}
	if detail != "" {
		errObj["detail"] = detail
	}
	var shadowErr *model.ShadowError
	if errors.As(err, &shadowErr) {
		errObj["kind"] = shadowErr.Kind.Error()
		errObj["op"] = shadowErr.Op
		if shadowErr.Path != "" {
			errObj["path"] = shadowErr.Path
		}
	}

	// stderr even in JSON mode: stdout is reserved for successful output.
	data, _ := json.MarshalIndent(map[string]interface{}{"error": errObj}, "", "  ")
	fmt.Fprintln(w, string(data))
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
