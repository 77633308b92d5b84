// Package cli: switch.go implements the "shadowrepo switch" command.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// workspaceFlags is shared by commands that act on a task in a workspace.
type workspaceFlags struct {
	// workspace defaults to the current directory.
	workspace string
}

// NewSwitchCommand creates the "switch" cobra command.
func NewSwitchCommand() *cobra.Command {
	flags := &workspaceFlags{}

	cmd := &cobra.Command{
		Use:   "switch <task>",
		Short: "Check out a task's branch, creating it if needed",
		Long: `Check out the branch of a task in the workspace's shadow repository,
creating it from the current HEAD when it does not exist yet. The
repository is initialized first if necessary.

Tasks stored in a legacy per-task repository have no branch to switch to;
the command succeeds without changes.

Examples:
  shadowrepo switch t1
  shadowrepo switch t1 -w ~/src/project`,

		Args: cobra.ExactArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			return runSwitch(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace directory (default: current directory)")

	return cmd
}

func runSwitch(cmd *cobra.Command, taskID string, flags *workspaceFlags) error {
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
	err = a.serialize(cmd.Context(), repo, func(ctx context.Context) error {
		if _, err := a.manager.Initialize(ctx, repo, workspace); err != nil {
			return err
		}
		return a.manager.SwitchToTaskBranch(ctx, repo, taskID)
	})
	if err != nil {
		return err
	}

	branch := a.manager.Settings().BranchName(taskID)
	if repo.IsLegacy() {
		branch = ""
	}
	if IsJSONOutput() {
		return printJSON(a.out, map[string]interface{}{
			"task":         taskID,
			"branch":       branch,
			"layout":       repo.Kind.String(),
			"metadataPath": repo.MetadataPath,
		})
	}
	if branch == "" {
		fmt.Fprintf(a.out, "Task %q uses a legacy repository; nothing to switch\n", taskID)
		return nil
	}
	fmt.Fprintf(a.out, "Switched to %s\n", branch)
	return nil
}
