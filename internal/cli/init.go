// Package cli: init.go implements the "shadowrepo init" command.
//
// init creates the shadow repository for a workspace, or verifies that an
// existing one is still bound to it. With --task the task's legacy
// repository is used when one exists.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// initFlags holds the flag values for the init command.
type initFlags struct {
	// task selects the repository a task resolves to. Optional.
	task string
}

// initResult is the JSON output of the init command.
type initResult struct {
	MetadataPath string `json:"metadataPath"`
	Layout       string `json:"layout"`
	Workspace    string `json:"workspace"`
	Created      bool   `json:"created"`
}

// NewInitCommand creates the "init" cobra command.
func NewInitCommand() *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init [workspace]",
		Short: "Create or verify the shadow repository of a workspace",
		Long: `Create the shadow repository for a workspace (default: the current
directory), or verify that an existing one is bound to it.

A repository bound to a different directory is never rebound; the command
fails with exit code 2 instead.

Examples:
  shadowrepo init
  shadowrepo init ~/src/project
  shadowrepo init --task t1 --json`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := ""
			if len(args) == 1 {
				workspace = args[0]
			}
			return runInit(cmd, workspace, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.task, "task", "t", "", "Task whose repository to use")

	return cmd
}

// runInit resolves the repository and initializes it under the
// repository lock.
func runInit(cmd *cobra.Command, workspaceArg string, flags *initFlags) error {
	if flags.task != "" {
		if err := validateTask(flags.task); err != nil {
			return err
		}
	}
	workspace, err := resolveWorkspace(workspaceArg)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	repo := a.locator.Resolve(flags.task, workspace)
	result := initResult{
		MetadataPath: repo.MetadataPath,
		Layout:       repo.Kind.String(),
		Workspace:    workspace,
	}

	err = a.serialize(cmd.Context(), repo, func(ctx context.Context) error {
		result.Created = !a.locator.PathExists(repo.MetadataPath)
		_, err := a.manager.Initialize(ctx, repo, workspace)
		return err
	})
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(a.out, result)
	}
	if result.Created {
		fmt.Fprintf(a.out, "Created shadow repository for %s\n", workspace)
	} else {
		fmt.Fprintf(a.out, "Shadow repository for %s is ready\n", workspace)
	}
	fmt.Fprintf(a.out, "  Metadata: %s (%s)\n", result.MetadataPath, result.Layout)
	return nil
}
