package git

import (
	"context"
	"slices"
	"strings"
)

// Client is the capability set the shadow repository manager needs from a
// version-control tool. Every method targets one repository: the directory
// that contains the shadow metadata directory.
type Client interface {
	// Init creates a new repository in the client's directory.
	Init(ctx context.Context) error

	// ConfigGet returns the local value of key. An unset key yields ""
	// and a nil error.
	ConfigGet(ctx context.Context, key string) (string, error)

	// ConfigSet writes key=value to the repository's local config.
	ConfigSet(ctx context.Context, key, value string) error

	// LocalBranches lists local branch short names.
	LocalBranches(ctx context.Context) ([]string, error)

	// Checkout switches HEAD to an existing branch. With force, local
	// changes are discarded.
	Checkout(ctx context.Context, branch string, force bool) error

	// CheckoutNewBranch creates branch at HEAD and checks it out in a
	// single command.
	CheckoutNewBranch(ctx context.Context, branch string) error

	// ResetHard discards all uncommitted changes to tracked files.
	ResetHard(ctx context.Context) error

	// Clean removes untracked files and directories.
	Clean(ctx context.Context) error

	// RevParse runs rev-parse with args and returns trimmed output.
	RevParse(ctx context.Context, args ...string) (string, error)

	// Commit records the index. allowEmpty permits a commit with no
	// changes.
	Commit(ctx context.Context, message string, allowEmpty bool) error

	// Add stages exactly the given paths, relative to the worktree root.
	Add(ctx context.Context, paths []string) error

	// Raw runs any other git command and returns untrimmed stdout.
	Raw(ctx context.Context, args ...string) (string, error)
}

// Opener returns a Client bound to the directory containing a shadow
// metadata directory.
type Opener func(dir string) Client

// CurrentBranch returns the short name of the checked-out branch, or "HEAD"
// when HEAD is detached.
func CurrentBranch(ctx context.Context, c Client) (string, error) {
	return c.RevParse(ctx, "--abbrev-ref", "HEAD")
}

// HasLocalBranch reports whether branch is in the local branch list.
func HasLocalBranch(ctx context.Context, c Client, branch string) (bool, error) {
	branches, err := c.LocalBranches(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(branches, branch), nil
}

// UnsetConfig removes key from the local config. Removing a key that is not
// set is not an error.
func UnsetConfig(ctx context.Context, c Client, key string) error {
	value, err := c.ConfigGet(ctx, key)
	if err != nil {
		return err
	}
	if value == "" {
		return nil
	}
	_, err = c.Raw(ctx, "config", "--unset", key)
	return err
}

// DeleteBranch force-deletes a local branch.
func DeleteBranch(ctx context.Context, c Client, branch string) error {
	_, err := c.Raw(ctx, "branch", "-D", branch)
	return err
}

// ListCheckpointFiles returns tracked files plus untracked files that are
// not ignored, relative to the worktree root. Paths are read NUL-separated
// so names with spaces, quotes or newlines survive intact.
func ListCheckpointFiles(ctx context.Context, c Client) ([]string, error) {
	out, err := c.Raw(ctx, "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return parseNulList(out), nil
}

// parseNulList splits NUL-separated git output, dropping empty entries and
// duplicates while preserving order. ls-files reports a path once per index
// stage, so unmerged files would otherwise appear more than once.
func parseNulList(out string) []string {
	var files []string
	seen := make(map[string]struct{})
	for _, f := range strings.Split(out, "\x00") {
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		files = append(files, f)
	}
	return files
}
