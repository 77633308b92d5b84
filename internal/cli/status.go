// Package cli: status.go implements the "shadowrepo status" command.
//
// status is read-only: it reports which repository a task (or just the
// workspace) resolves to, whether it exists, its worktree binding, the
// checked-out branch and the task branches.
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/shadowrepo/internal/shadow"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	flags := &workspaceFlags{}

	cmd := &cobra.Command{
		Use:   "status [task]",
		Short: "Show the shadow repository of a workspace or task",
		Long: `Show the shadow repository a workspace (and optionally a task) resolves
to: layout, metadata path, worktree binding, current branch and branches.

Examples:
  shadowrepo status
  shadowrepo status t1 --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := ""
			if len(args) == 1 {
				taskID = args[0]
			}
			return runStatus(cmd, taskID, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.workspace, "workspace", "w", "", "Workspace directory (default: current directory)")

	return cmd
}

func runStatus(cmd *cobra.Command, taskID string, flags *workspaceFlags) error {
	if taskID != "" {
		if err := validateTask(taskID); err != nil {
			return err
		}
	}
	workspace, err := resolveWorkspace(flags.workspace)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	st, err := a.manager.Inspect(cmd.Context(), taskID, workspace)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(a.out, st)
	}
	printStatusText(a.out, st)
	return nil
}

// printStatusText outputs the status as aligned key/value lines.
//
//	Layout:     branch-per-task
//	Metadata:   /home/u/.cache/shadowrepo/checkpoints/1a2b.../.git
//	Worktree:   /home/u/src/project
//	HEAD:       task-t1
//	Branches:   main, *task-t1, task-t2
func printStatusText(w io.Writer, st shadow.Status) {
	fmt.Fprintf(w, "%-11s %s\n", "Layout:", st.Repository.Kind)
	fmt.Fprintf(w, "%-11s %s\n", "Metadata:", st.Repository.MetadataPath)
	if !st.Exists {
		fmt.Fprintln(w, "No shadow repository yet.")
		return
	}
	fmt.Fprintf(w, "%-11s %s\n", "Worktree:", st.Worktree)
	fmt.Fprintf(w, "%-11s %s\n", "HEAD:", st.CurrentBranch)
	fmt.Fprintf(w, "%-11s %s\n", "Branches:", FormatBranchList(st.Branches, st.CurrentBranch))
	if st.TaskBranch != "" {
		state := "absent"
		if st.HasTaskBranch {
			state = "present"
		}
		fmt.Fprintf(w, "%-11s %s (%s)\n", "Task:", st.TaskBranch, state)
	}
}

// FormatBranchList joins branch names with ", ", marking the current
// branch with "*". Returns "-" for no branches.
//
// Example:
//
//	["main", "task-t1"], "task-t1" → "main, *task-t1"
func FormatBranchList(branches []string, current string) string {
	if len(branches) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(branches))
	for _, b := range branches {
		if b == current {
			b = "*" + b
		}
		parts = append(parts, b)
	}
	return strings.Join(parts, ", ")
}
