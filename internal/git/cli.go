package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// maxAddBatch bounds the number of paths passed to a single `git add`
// invocation so large workspaces stay under the OS argument length limit.
const maxAddBatch = 500

// isolatedEnvVars are stripped from the inherited environment. Any of them
// would redirect git away from the shadow repository (e.g., a GIT_DIR left
// over from a user hook).
var isolatedEnvVars = []string{
	"GIT_DIR",
	"GIT_WORK_TREE",
	"GIT_INDEX_FILE",
	"GIT_OBJECT_DIRECTORY",
	"GIT_COMMON_DIR",
	"GIT_NAMESPACE",
}

// CLI is a Client that invokes the git binary.
//
// Every command runs as `git -C <dir> ...`, where dir is the directory
// holding the shadow metadata directory. git discovers the metadata from
// there and follows core.worktree to the workspace.
//
// A detached client adds `--work-tree=.`, which overrides core.worktree
// with dir itself. git then never resolves the stored binding, so branch
// and config commands keep working after the workspace was removed.
type CLI struct {
	dir      string
	binary   string
	detached bool
	logger   zerolog.Logger
}

// NewCLI returns a CLI client for dir. An empty binary means "git" from PATH.
func NewCLI(dir, binary string, logger zerolog.Logger) *CLI {
	if binary == "" {
		binary = "git"
	}
	return &CLI{dir: dir, binary: binary, logger: logger}
}

// NewOpener returns an Opener producing CLI clients that share binary and
// logger.
func NewOpener(binary string, logger zerolog.Logger) Opener {
	return func(dir string) Client {
		return NewCLI(dir, binary, logger)
	}
}

// NewDetachedCLI returns a CLI client for dir that ignores core.worktree.
// Commands that read or write files act on dir, not on the workspace.
func NewDetachedCLI(dir, binary string, logger zerolog.Logger) *CLI {
	c := NewCLI(dir, binary, logger)
	c.detached = true
	return c
}

// NewDetachedOpener returns an Opener producing detached CLI clients.
func NewDetachedOpener(binary string, logger zerolog.Logger) Opener {
	return func(dir string) Client {
		return NewDetachedCLI(dir, binary, logger)
	}
}

// Dir returns the directory the client targets.
func (c *CLI) Dir() string {
	return c.dir
}

// Init runs `git init`.
func (c *CLI) Init(ctx context.Context) error {
	_, err := c.run(ctx, "init")
	return err
}

// ConfigGet runs `git config --local --get <key>`. git exits with status 1
// when the key is absent, which is reported as an empty value.
func (c *CLI) ConfigGet(ctx context.Context, key string) (string, error) {
	out, err := c.run(ctx, "config", "--local", "--get", key)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil
		}
		return "", err
	}
	// Only git's line terminator is dropped; the value may carry spaces.
	return strings.TrimSuffix(out, "\n"), nil
}

// ConfigSet runs `git config --local <key> <value>`.
func (c *CLI) ConfigSet(ctx context.Context, key, value string) error {
	_, err := c.run(ctx, "config", "--local", key, value)
	return err
}

// LocalBranches runs `git branch --format=%(refname:short)`.
func (c *CLI) LocalBranches(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	return parseBranchList(out), nil
}

// Checkout runs `git checkout [-f] <branch>`.
func (c *CLI) Checkout(ctx context.Context, branch string, force bool) error {
	args := []string{"checkout"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, branch, "--")
	_, err := c.run(ctx, args...)
	return err
}

// CheckoutNewBranch runs `git checkout -b <branch>`.
func (c *CLI) CheckoutNewBranch(ctx context.Context, branch string) error {
	_, err := c.run(ctx, "checkout", "-b", branch)
	return err
}

// ResetHard runs `git reset --hard`.
func (c *CLI) ResetHard(ctx context.Context) error {
	_, err := c.run(ctx, "reset", "--hard")
	return err
}

// Clean runs `git clean -f -d`.
func (c *CLI) Clean(ctx context.Context) error {
	_, err := c.run(ctx, "clean", "-f", "-d")
	return err
}

// RevParse runs `git rev-parse <args>` and trims the output.
func (c *CLI) RevParse(ctx context.Context, args ...string) (string, error) {
	out, err := c.run(ctx, append([]string{"rev-parse"}, args...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Commit runs `git commit`. Hooks are skipped: the shadow repository is
// private to this tool and never has any.
func (c *CLI) Commit(ctx context.Context, message string, allowEmpty bool) error {
	args := []string{"commit", "--no-verify", "-m", message}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	_, err := c.run(ctx, args...)
	return err
}

// Add runs `git add -- <paths>` in batches of maxAddBatch.
func (c *CLI) Add(ctx context.Context, paths []string) error {
	for start := 0; start < len(paths); start += maxAddBatch {
		end := min(start+maxAddBatch, len(paths))
		args := append([]string{"add", "--"}, paths[start:end]...)
		if _, err := c.run(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// Raw runs an arbitrary git command.
func (c *CLI) Raw(ctx context.Context, args ...string) (string, error) {
	return c.run(ctx, args...)
}

// run executes git with -C <dir> and returns stdout.
//
// On failure it returns a model.CLIError with ExitGitError that includes
// stderr and wraps the *exec.ExitError, so callers can still inspect the
// exit status with errors.As.
func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("git: no command specified")
	}

	fullArgs := []string{"-C", c.dir}
	if c.detached {
		// Relative to -C, so this is dir.
		fullArgs = append(fullArgs, "--work-tree=.")
	}
	fullArgs = append(fullArgs, args...)

	// #nosec G204 -- args are constructed internally, not from user input
	cmd := exec.CommandContext(ctx, c.binary, fullArgs...)
	cmd.Env = isolatedEnv(os.Environ())

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	c.logger.Debug().
		Str("dir", c.dir).
		Bool("detached", c.detached).
		Strs("args", args).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Bool("ok", err == nil).
		Msg("git command completed")

	if err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		message := fmt.Sprintf("git %s failed", summarizeArgs(args))
		if stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}
	return stdout.String(), nil
}

// summarizeArgs keeps error messages readable when add is called with
// hundreds of paths.
func summarizeArgs(args []string) string {
	const maxShown = 8
	if len(args) <= maxShown {
		return strings.Join(args, " ")
	}
	return fmt.Sprintf("%s ... (%d more)", strings.Join(args[:maxShown], " "), len(args)-maxShown)
}

// isolatedEnv drops isolatedEnvVars from env.
func isolatedEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		isolated := false
		for _, v := range isolatedEnvVars {
			if name == v {
				isolated = true
				break
			}
		}
		if !isolated {
			out = append(out, kv)
		}
	}
	return out
}

// parseBranchList parses `git branch --format=%(refname:short)` output.
// A detached HEAD appears as "(HEAD detached at ...)" and is skipped.
func parseBranchList(out string) []string {
	branches := []string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "(") {
			continue
		}
		branches = append(branches, line)
	}
	return branches
}
