// Package cli: stage.go implements the "shadowrepo stage" command.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// NewStageCommand creates the "stage" cobra command.
func NewStageCommand() *cobra.Command {
	flags := &workspaceFlags{}

	cmd := &cobra.Command{
		Use:   "stage <task>",
		Short: "Stage the workspace on a task's branch without committing",
		Long: `Switch to the task's branch and stage every tracked file and every
untracked file that is not excluded. Nested repositories are hidden while
staging and restored afterwards.

Examples:
  shadowrepo stage t1
  shadowrepo stage t1 --json`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace directory (default: current directory)")

	return cmd
}

func runStage(cmd *cobra.Command, taskID string, flags *workspaceFlags) error {
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
	var result model.StagingResult
	err = a.serialize(cmd.Context(), repo, func(ctx context.Context) error {
		var err error
		if _, err = a.manager.Initialize(ctx, repo, workspace); err != nil {
			return err
		}
		if err = a.manager.SwitchToTaskBranch(ctx, repo, taskID); err != nil {
			return err
		}
		result, err = a.manager.AddCheckpointFiles(ctx, repo.MetadataPath, workspace)
		return err
	})
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(a.out, result)
	}
	fmt.Fprintf(a.out, "Staged %d file(s)\n", result.FileCount)
	return nil
}
