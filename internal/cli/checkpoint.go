// Package cli: checkpoint.go implements the "shadowrepo checkpoint"
// command: initialize, switch, stage and commit in one step.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/shadowrepo/internal/shadow"
)

// checkpointFlags holds the flag values for the checkpoint command.
type checkpointFlags struct {
	workspaceFlags

	// message is the commit message. Defaults to "checkpoint <task>".
	message string
}

// NewCheckpointCommand creates the "checkpoint" cobra command.
func NewCheckpointCommand() *cobra.Command {
	flags := &checkpointFlags{}

	cmd := &cobra.Command{
		Use:   "checkpoint <task>",
		Short: "Record a checkpoint of the workspace for a task",
		Long: `Record the current state of the workspace as a commit on the task's
branch. A commit is created even when nothing changed, so every checkpoint
has its own hash.

Examples:
  shadowrepo checkpoint t1
  shadowrepo checkpoint t1 -m "before refactor" --json`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckpoint(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace directory (default: current directory)")
	cmd.Flags().StringVarP(&flags.message, "message", "m", "", "Commit message")

	return cmd
}

func runCheckpoint(cmd *cobra.Command, taskID string, flags *checkpointFlags) error {
	if err := validateTask(taskID); err != nil {
		return err
	}
	workspace, err := resolveWorkspace(flags.workspace)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	repo := a.locator.Resolve(taskID, workspace)
	var result shadow.CheckpointResult
	err = a.serialize(cmd.Context(), repo, func(ctx context.Context) error {
		var err error
		result, err = a.manager.Checkpoint(ctx, taskID, workspace, flags.message)
		return err
	})
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(a.out, result)
	}
	fmt.Fprintf(a.out, "Checkpoint %s on %s (%d file(s))\n", shortHash(result.Commit), result.Branch, result.Staging.FileCount)
	return nil
}

// shortHash abbreviates a commit hash for text output.
func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
