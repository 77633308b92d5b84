// Package cli: suppress.go implements the "shadowrepo suppress" command,
// a manual recovery tool for nested repositories left disabled by an
// interrupted staging run.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// suppressFlags holds the flag values for the suppress command.
type suppressFlags struct {
	disable bool
	enable  bool
}

// NewSuppressCommand creates the "suppress" cobra command.
func NewSuppressCommand() *cobra.Command {
	flags := &suppressFlags{}

	cmd := &cobra.Command{
		Use:   "suppress (--disable | --enable) [workspace]",
		Short: "Hide or restore nested repositories in a workspace",
		Long: `Rename the .git directories of repositories nested inside a workspace to
.git_disabled (--disable), or back (--enable). The workspace's own .git is
never touched.

Staging does this automatically and always restores the names. Use
--enable to recover if a staging run was killed before it could.

The command exits with code 6 if any directory could not be renamed.

Examples:
  shadowrepo suppress --enable
  shadowrepo suppress --disable ~/src/project`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := ""
			if len(args) == 1 {
				workspace = args[0]
			}
			return runSuppress(cmd, workspace, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.disable, "disable", false, "Rename nested .git directories to .git_disabled")
	cmd.Flags().BoolVar(&flags.enable, "enable", false, "Rename nested .git_disabled directories back to .git")
	cmd.MarkFlagsMutuallyExclusive("disable", "enable")
	cmd.MarkFlagsOneRequired("disable", "enable")

	return cmd
}

func runSuppress(cmd *cobra.Command, workspaceArg string, flags *suppressFlags) error {
	workspace, err := resolveWorkspace(workspaceArg)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	res, err := a.manager.Suppress(workspace, flags.disable)
	if err != nil {
		return model.WrapCLIError(model.ExitStagingFailed, "failed to scan workspace", err)
	}

	if IsJSONOutput() {
		if err := printJSON(a.out, res); err != nil {
			return err
		}
	} else {
		verb := "Restored"
		if flags.disable {
			verb = "Disabled"
		}
		fmt.Fprintf(a.out, "%s %d nested repositories\n", verb, len(res.Renamed))
		for _, p := range res.Renamed {
			fmt.Fprintf(a.out, "  %s\n", p)
		}
	}

	if len(res.Failed) > 0 {
		return model.WrapCLIError(model.ExitStagingFailed,
			fmt.Sprintf("%d nested repositories could not be renamed", len(res.Failed)), res.Err())
	}
	return nil
}
