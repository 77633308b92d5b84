package git

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Fake is an in-memory Client that models just enough git state (local
// branches, HEAD, local config) for manager tests. Every call is recorded
// in Calls, and any operation can be made to fail through Failures.
//
// Operation names used in Calls and Failures: "init", "config get",
// "config set", "config unset", "branch list", "checkout", "checkout -b",
// "reset", "clean", "rev-parse", "commit", "add", "branch -D", "ls-files",
// "symbolic-ref", and "raw" for anything else.
type Fake struct {
	mu sync.Mutex

	// Initialized is set by Init.
	Initialized bool

	// Branches is the local branch list.
	Branches []string

	// Head is the checked-out branch.
	Head string

	// Config holds local config values.
	Config map[string]string

	// HeadReads, when non-empty, is consumed one entry per HEAD read
	// before falling back to Head. It simulates HEAD lagging a checkout.
	HeadReads []string

	// Files is returned by ls-files.
	Files []string

	// Added accumulates every path passed to Add.
	Added []string

	// Commits counts successful commits.
	Commits int

	// Failures maps an operation name to the error it returns.
	Failures map[string]error

	// Calls records "op arg" for every invocation, in order.
	Calls []string

	// Dirs records every directory an Opener built from this fake was
	// asked to open.
	Dirs []string
}

// NewFake returns an empty, uninitialized Fake.
func NewFake() *Fake {
	return &Fake{
		Config:   make(map[string]string),
		Failures: make(map[string]error),
	}
}

// Opener returns an Opener that always yields this fake.
func (f *Fake) Opener() Opener {
	return func(dir string) Client {
		f.mu.Lock()
		f.Dirs = append(f.Dirs, dir)
		f.mu.Unlock()
		return f
	}
}

// CallsWithPrefix returns the recorded calls that start with op.
func (f *Fake) CallsWithPrefix(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.Calls {
		if strings.HasPrefix(c, op) {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) record(op string, args ...string) error {
	f.Calls = append(f.Calls, strings.TrimSpace(op+" "+strings.Join(args, " ")))
	if err, ok := f.Failures[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("init"); err != nil {
		return err
	}
	f.Initialized = true
	if f.Head == "" {
		f.Head = "master"
	}
	return nil
}

func (f *Fake) ConfigGet(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("config get", key); err != nil {
		return "", err
	}
	return f.Config[key], nil
}

func (f *Fake) ConfigSet(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("config set", key, value); err != nil {
		return err
	}
	f.Config[key] = value
	return nil
}

func (f *Fake) LocalBranches(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("branch list"); err != nil {
		return nil, err
	}
	return slices.Clone(f.Branches), nil
}

func (f *Fake) Checkout(ctx context.Context, branch string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := "checkout"
	if force {
		op = "checkout -f"
	}
	f.Calls = append(f.Calls, op+" "+branch)
	if err, ok := f.Failures["checkout"]; ok {
		return err
	}
	if !slices.Contains(f.Branches, branch) {
		return fmt.Errorf("pathspec '%s' did not match any file(s) known to git", branch)
	}
	f.Head = branch
	return nil
}

func (f *Fake) CheckoutNewBranch(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("checkout -b", branch); err != nil {
		return err
	}
	if slices.Contains(f.Branches, branch) {
		return fmt.Errorf("a branch named '%s' already exists", branch)
	}
	f.Branches = append(f.Branches, branch)
	f.Head = branch
	return nil
}

func (f *Fake) ResetHard(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("reset", "--hard")
}

func (f *Fake) Clean(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record("clean", "-f", "-d")
}

func (f *Fake) RevParse(ctx context.Context, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("rev-parse", args...); err != nil {
		return "", err
	}
	if slices.Equal(args, []string{"--abbrev-ref", "HEAD"}) {
		if len(f.HeadReads) > 0 {
			head := f.HeadReads[0]
			f.HeadReads = f.HeadReads[1:]
			return head, nil
		}
		return f.Head, nil
	}
	if slices.Equal(args, []string{"HEAD"}) {
		return fmt.Sprintf("%040d", f.Commits), nil
	}
	return "", nil
}

func (f *Fake) Commit(ctx context.Context, message string, allowEmpty bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("commit", message); err != nil {
		return err
	}
	if !slices.Contains(f.Branches, f.Head) {
		f.Branches = append(f.Branches, f.Head)
	}
	f.Commits++
	return nil
}

func (f *Fake) Add(ctx context.Context, paths []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("add", paths...); err != nil {
		return err
	}
	f.Added = append(f.Added, paths...)
	return nil
}

func (f *Fake) Raw(ctx context.Context, args ...string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case len(args) >= 3 && args[0] == "config" && args[1] == "--unset":
		if err := f.record("config unset", args[2]); err != nil {
			return "", err
		}
		delete(f.Config, args[2])
		return "", nil

	case len(args) == 3 && args[0] == "branch" && args[1] == "-D":
		if err := f.record("branch -D", args[2]); err != nil {
			return "", err
		}
		i := slices.Index(f.Branches, args[2])
		if i < 0 {
			return "", fmt.Errorf("branch '%s' not found", args[2])
		}
		f.Branches = slices.Delete(f.Branches, i, i+1)
		return "", nil

	case len(args) >= 1 && args[0] == "ls-files":
		if err := f.record("ls-files", args[1:]...); err != nil {
			return "", err
		}
		if len(f.Files) == 0 {
			return "", nil
		}
		return strings.Join(f.Files, "\x00") + "\x00", nil

	case len(args) == 3 && args[0] == "symbolic-ref" && args[1] == "HEAD":
		if err := f.record("symbolic-ref", args[1:]...); err != nil {
			return "", err
		}
		f.Head = strings.TrimPrefix(args[2], "refs/heads/")
		return "", nil
	}

	return "", f.record("raw", args...)
}
