// Package cli: delete.go implements the "shadowrepo delete" command.
//
// The delete command discards every checkpoint of a task:
//  1. In the workspace's shared repository, the task's branch is deleted.
//     If it is checked out, HEAD first moves to main (or master) with the
//     workspace binding temporarily lifted, so the user's files are never
//     reset.
//  2. Otherwise, a legacy per-task repository is removed entirely.
//
// A task without checkpoints is not an error. By default, the command
// prompts for confirmation before proceeding; --force skips the prompt.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// deleteFlags holds the flag values for the delete command.
type deleteFlags struct {
	workspaceFlags

	// force skips the interactive confirmation prompt when true.
	force bool
}

// NewDeleteCommand creates the "delete" cobra command.
func NewDeleteCommand() *cobra.Command {
	flags := &deleteFlags{}

	cmd := &cobra.Command{
		Use:   "delete <task>",
		Short: "Delete all checkpoints of a task",
		Long: `Delete all checkpoints of a task: its branch in the workspace's shadow
repository, or its legacy per-task repository.

Unless --force is specified, the command prompts for confirmation.

Examples:
  shadowrepo delete t1
  shadowrepo delete --force t1 -w ~/src/project`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace the task ran in (default: current directory)")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Delete without confirmation")

	return cmd
}

// runDelete optionally prompts, then deletes while holding the locks of
// both repository layouts.
func runDelete(cmd *cobra.Command, taskID string, flags *deleteFlags) error {
	if err := validateTask(taskID); err != nil {
		return err
	}

	// The workspace only has to be a path here; it may already be gone.
	workspace, err := absWorkspace(flags.workspace)
	if err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	repo := a.locator.Resolve(taskID, workspace)
	if !a.locator.Exists(taskID, workspace) {
		a.logger.Debug().Str("task", taskID).Msg("No shadow repository for task")
	}

	if !flags.force {
		confirmed, err := promptConfirmation(cmd.InOrStdin(), a.out, taskID, repo.MetadataPath)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
		}
		if !confirmed {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	err = a.serializeAll(cmd.Context(), deleteLockOrder(a, taskID, workspace), func(ctx context.Context) error {
		return a.manager.DeleteTaskBranch(ctx, taskID, workspace)
	})
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(a.out, map[string]interface{}{
			"task":   taskID,
			"action": "deleted",
			"layout": repo.Kind.String(),
		})
	}
	fmt.Fprintf(a.out, "Deleted checkpoints of task %q\n", taskID)
	return nil
}

// deleteLockOrder lists both repositories a task's deletion may touch:
// the shared repository is checked first, then the legacy one.
func deleteLockOrder(a *app, taskID, workspace string) []locator.Repository {
	return []locator.Repository{
		a.locator.BranchPerTask(workspace),
		a.locator.Legacy(taskID),
	}
}

// promptConfirmation asks the user to confirm the delete operation.
// It reads a single line from in and checks for "y" or "yes".
func promptConfirmation(in io.Reader, out io.Writer, taskID, metadataPath string) (bool, error) {
	fmt.Fprintf(out, "About to delete all checkpoints of task %q\n", taskID)
	fmt.Fprintf(out, "  Repository: %s\n", metadataPath)
	fmt.Fprint(out, "\nContinue? [y/N] ")

	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
		return answer == "y" || answer == "yes", nil
	}

	// Closed stdin counts as "no".
	if err := scanner.Err(); err != nil {
		return false, err
	}
	return false, nil
}
