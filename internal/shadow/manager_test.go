package shadow

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// stubExclusions records exclusion writes instead of touching disk.
type stubExclusions struct {
	mu       sync.Mutex
	patterns []string
	err      error
	writeErr error
	written  map[string][]string
}

func newStubExclusions(patterns ...string) *stubExclusions {
	return &stubExclusions{patterns: patterns, written: make(map[string][]string)}
}

func (s *stubExclusions) Patterns(string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.patterns, nil
}

func (s *stubExclusions) Write(metadataPath string, patterns []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written[metadataPath] = patterns
	return nil
}

// fixture wires a Manager to a git.Fake, stub exclusions and a scripted
// existence probe.
type fixture struct {
	manager    *Manager
	fake       *git.Fake
	exclusions *stubExclusions
	present    map[string]bool
	removed    []string
	removeErr  error
	storage    string
	logs       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		fake:       git.NewFake(),
		exclusions: newStubExclusions("*.log", "node_modules/"),
		present:    make(map[string]bool),
		storage:    t.TempDir(),
		logs:       &bytes.Buffer{},
	}

	settings := model.DefaultSettings()
	settings.VerifyInterval = 0

	loc := locator.New(f.storage, settings,
		locator.WithHasher(func(string) string { return "abc123" }),
		locator.WithExists(func(p string) bool { return f.present[p] }),
	)

	m, err := NewManager(Options{
		Locator:    loc,
		Settings:   &settings,
		Opener:     f.fake.Opener(),
		Exclusions: f.exclusions,
		Getwd:      func() (string, error) { return "/work/cwd", nil },
		RemoveAll: func(p string) error {
			f.removed = append(f.removed, p)
			return f.removeErr
		},
		Logger: zerolog.New(f.logs).Level(zerolog.DebugLevel),
	})
	require.NoError(t, err)
	f.manager = m
	return f
}

func (f *fixture) sharedRepo(workspace string) locator.Repository {
	return f.manager.Locator().BranchPerTask(workspace)
}

func TestNewManager_RequiresLocator(t *testing.T) {
	_, err := NewManager(Options{})
	assert.Error(t, err)
}

func TestNewManager_Defaults(t *testing.T) {
	m, err := NewManager(Options{Locator: locator.New(t.TempDir(), model.DefaultSettings())})
	require.NoError(t, err)

	assert.Equal(t, model.DefaultSettings(), m.Settings())
	assert.NotNil(t, m.open)
	assert.NotNil(t, m.detached)
	assert.NotNil(t, m.exclusions)
	assert.NotNil(t, m.getwd)
	assert.NotNil(t, m.removeAll)
	assert.NotNil(t, m.rename)
}

func TestInitialize_CreatesRepository(t *testing.T) {
	f := newFixture(t)
	repo := f.sharedRepo("/work/app")

	path, err := f.manager.Initialize(t.Context(), repo, "/work/app")
	require.NoError(t, err)
	assert.Equal(t, repo.MetadataPath, path)

	assert.True(t, f.fake.Initialized)
	assert.Equal(t, "main", f.fake.Head, "HEAD pinned to the initial branch")
	assert.Equal(t, 1, f.fake.Commits, "exactly one root commit")
	assert.Equal(t, "/work/app", f.fake.Config[model.WorktreeConfigKey])
	for _, entry := range model.DefaultSettings().RepositoryConfig() {
		assert.Equal(t, entry.Value, f.fake.Config[entry.Key], entry.Key)
	}
	assert.Equal(t, []string{"*.log", "node_modules/", ".git_disabled/"}, f.exclusions.written[repo.MetadataPath])

	// Order: init, pin HEAD, configure, then the root commit last.
	calls := f.fake.Calls
	require.NotEmpty(t, calls)
	assert.Equal(t, "init", calls[0])
	assert.Equal(t, "symbolic-ref HEAD refs/heads/main", calls[1])
	assert.Equal(t, "config set core.worktree /work/app", calls[2])
	assert.Equal(t, "commit initial commit", calls[len(calls)-1])

	for _, dir := range f.fake.Dirs {
		assert.Equal(t, repo.Dir(), dir)
	}
}

func TestInitialize_ExistingRepositoryIsOnlyVerified(t *testing.T) {
	f := newFixture(t)
	repo := f.sharedRepo("/work/app")
	f.present[repo.MetadataPath] = true
	f.fake.Config[model.WorktreeConfigKey] = "/work/app/"

	path, err := f.manager.Initialize(t.Context(), repo, "/work/app")
	require.NoError(t, err)
	assert.Equal(t, repo.MetadataPath, path)

	assert.Equal(t, []string{"config get core.worktree"}, f.fake.Calls)
	assert.Zero(t, f.fake.Commits)
	assert.Empty(t, f.exclusions.written)
}

func TestInitialize_ConfigurationMismatch(t *testing.T) {
	f := newFixture(t)
	repo := f.sharedRepo("/work/app")
	f.present[repo.MetadataPath] = true
	f.fake.Config[model.WorktreeConfigKey] = "/work/other"

	_, err := f.manager.Initialize(t.Context(), repo, "/work/app")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConfigurationMismatch)
	assert.Contains(t, err.Error(), "/work/other")

	assert.Empty(t, f.fake.CallsWithPrefix("config set"), "existing repository left untouched")
	assert.Equal(t, "/work/other", f.fake.Config[model.WorktreeConfigKey])
}

func TestInitialize_UnboundExistingRepositoryIsAMismatch(t *testing.T) {
	f := newFixture(t)
	repo := f.sharedRepo("/work/app")
	f.present[repo.MetadataPath] = true

	_, err := f.manager.Initialize(t.Context(), repo, "/work/app")
	assert.ErrorIs(t, err, model.ErrConfigurationMismatch)
}

func TestInitialize_Failures(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{"init", func(f *fixture) { f.fake.Failures["init"] = cause }},
		{"config", func(f *fixture) { f.fake.Failures["config set"] = cause }},
		{"patterns", func(f *fixture) { f.exclusions.err = cause }},
		{"exclusion write", func(f *fixture) { f.exclusions.writeErr = cause }},
		{"root commit", func(f *fixture) { f.fake.Failures["commit"] = cause }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			repo := f.sharedRepo("/work/app")

			_, err := f.manager.Initialize(t.Context(), repo, "/work/app")
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrRepositoryInitialization)
			assert.ErrorIs(t, err, cause)

			_, statErr := os.Stat(repo.MetadataPath)
			assert.True(t, os.IsNotExist(statErr), "partial metadata directory removed")
		})
	}
}

func TestInitialize_RejectsForeignMetadataName(t *testing.T) {
	f := newFixture(t)
	repo := locator.Repository{Kind: locator.BranchPerTask, MetadataPath: filepath.Join(f.storage, "x", "meta")}

	_, err := f.manager.Initialize(t.Context(), repo, "/work/app")
	assert.ErrorIs(t, err, model.ErrRepositoryInitialization)
	assert.Empty(t, f.fake.Calls)
}

func TestSwitchToTaskBranch_LegacyIsNoOp(t *testing.T) {
	f := newFixture(t)
	repo := f.manager.Locator().Legacy("t1")

	require.NoError(t, f.manager.SwitchToTaskBranch(t.Context(), repo, "t1"))
	assert.Empty(t, f.fake.Calls)
}

func TestSwitchToTaskBranch_CreatesBranch(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main"}
	f.fake.Head = "main"

	require.NoError(t, f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/work/app"), "t1"))

	assert.Equal(t, "task-t1", f.fake.Head)
	assert.Equal(t, []string{"checkout -b task-t1"}, f.fake.CallsWithPrefix("checkout"))
}

func TestSwitchToTaskBranch_ChecksOutExistingBranch(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t1"}
	f.fake.Head = "main"

	require.NoError(t, f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/work/app"), "t1"))

	assert.Equal(t, "task-t1", f.fake.Head)
	assert.Equal(t, []string{"checkout task-t1"}, f.fake.CallsWithPrefix("checkout"))
}

func TestSwitchToTaskBranch_HeadLagsThenSettles(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t1"}
	f.fake.Head = "main"
	f.fake.HeadReads = []string{"main", "main"}

	require.NoError(t, f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/work/app"), "t1"))
	assert.Len(t, f.fake.CallsWithPrefix("rev-parse"), 3)
}

func TestSwitchToTaskBranch_WrongBranchIsFatal(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t1"}
	f.fake.HeadReads = []string{"main", "main", "main"}

	err := f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/work/app"), "t1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBranchSwitch)
	assert.Contains(t, err.Error(), `got "main"`)
}

func TestSwitchToTaskBranch_UnreadableHeadIsTolerated(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main"}
	f.fake.Failures["rev-parse"] = errors.New("index.lock exists")

	require.NoError(t, f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/work/app"), "t1"))
	assert.Len(t, f.fake.CallsWithPrefix("rev-parse"), 3)
	assert.Contains(t, f.logs.String(), "Could not confirm HEAD after checkout")
}

func TestSwitchToTaskBranch_Errors(t *testing.T) {
	cause := errors.New("boom")

	t.Run("invalid task id", func(t *testing.T) {
		f := newFixture(t)
		err := f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/w"), "../escape")
		assert.ErrorIs(t, err, model.ErrBranchSwitch)
		assert.Empty(t, f.fake.Calls)
	})

	t.Run("branch list", func(t *testing.T) {
		f := newFixture(t)
		f.fake.Failures["branch list"] = cause
		err := f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/w"), "t1")
		assert.ErrorIs(t, err, model.ErrBranchSwitch)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("checkout", func(t *testing.T) {
		f := newFixture(t)
		f.fake.Branches = []string{"task-t1"}
		f.fake.Failures["checkout"] = cause
		err := f.manager.SwitchToTaskBranch(t.Context(), f.sharedRepo("/w"), "t1")
		assert.ErrorIs(t, err, model.ErrBranchSwitch)
		assert.ErrorIs(t, err, cause)
	})
}

func TestDeleteBranch_MissingBranchIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t2"}
	f.fake.Head = "task-t2"

	require.NoError(t, f.manager.DeleteBranch(t.Context(), "task-t1", "/s/checkpoints/h/.git"))

	assert.Equal(t, []string{"branch list"}, f.fake.Calls)
	assert.Equal(t, []string{"main", "task-t2"}, f.fake.Branches)
	assert.Equal(t, "task-t2", f.fake.Head)
}

func TestDeleteBranch_NotCheckedOut(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t1", "task-t2"}
	f.fake.Head = "task-t2"
	f.fake.Config[model.WorktreeConfigKey] = "/work/app"

	require.NoError(t, f.manager.DeleteBranch(t.Context(), "task-t1", "/s/checkpoints/h/.git"))

	assert.Equal(t, []string{"main", "task-t2"}, f.fake.Branches)
	assert.Equal(t, "task-t2", f.fake.Head)
	assert.Empty(t, f.fake.CallsWithPrefix("config"), "worktree binding never touched")
	assert.Empty(t, f.fake.CallsWithPrefix("reset"))
	assert.Equal(t, []string{"/s/checkpoints/h"}, f.fake.Dirs)
}

func TestDeleteBranch_CheckedOut(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t1", "task-t2"}
	f.fake.Head = "task-t2"
	f.fake.Config[model.WorktreeConfigKey] = "/work/app"

	require.NoError(t, f.manager.DeleteBranch(t.Context(), "task-t2", "/s/checkpoints/h/.git"))

	assert.Equal(t, []string{"main", "task-t1"}, f.fake.Branches)
	assert.Equal(t, "main", f.fake.Head)
	assert.Equal(t, "/work/app", f.fake.Config[model.WorktreeConfigKey], "binding restored")

	assert.Equal(t, []string{
		"branch list",
		"rev-parse --abbrev-ref HEAD",
		"config get core.worktree",
		"config get core.worktree",
		"config unset core.worktree",
		"reset --hard",
		"clean -f -d",
		"checkout -f main",
		"rev-parse --abbrev-ref HEAD",
		"branch -D task-t2",
		"config set core.worktree /work/app",
	}, f.fake.Calls)
}

func TestDeleteBranch_FallsBackToMaster(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"master", "task-t2"}
	f.fake.Head = "task-t2"
	f.fake.Config[model.WorktreeConfigKey] = "/work/app"

	require.NoError(t, f.manager.DeleteBranch(t.Context(), "task-t2", "/s/checkpoints/h/.git"))

	assert.Equal(t, "master", f.fake.Head)
	assert.Equal(t, []string{"checkout -f master"}, f.fake.CallsWithPrefix("checkout"))
}

func TestDeleteBranch_NoFallbackBranch(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"task-t2"}
	f.fake.Head = "task-t2"
	f.fake.Config[model.WorktreeConfigKey] = "/work/app"

	err := f.manager.DeleteBranch(t.Context(), "task-t2", "/s/checkpoints/h/.git")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBranchSwitch)

	assert.Equal(t, []string{"checkout -f master"}, f.fake.CallsWithPrefix("checkout"))
	assert.Contains(t, f.fake.Branches, "task-t2", "branch kept when HEAD cannot move")
	assert.Equal(t, "/work/app", f.fake.Config[model.WorktreeConfigKey])
}

func TestDeleteBranch_VerificationExhausted(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t2"}
	f.fake.Head = "task-t2"
	f.fake.Config[model.WorktreeConfigKey] = "/work/app"
	// One read to detect the checked-out branch, then three stale reads
	// after the forced checkout.
	f.fake.HeadReads = []string{"task-t2", "task-t2", "task-t2", "task-t2"}

	err := f.manager.DeleteBranch(t.Context(), "task-t2", "/s/checkpoints/h/.git")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBranchSwitch)

	assert.Len(t, f.fake.CallsWithPrefix("rev-parse"), 4)
	assert.Empty(t, f.fake.CallsWithPrefix("branch -D"), "no deletion without a confirmed HEAD")
	assert.Equal(t, "/work/app", f.fake.Config[model.WorktreeConfigKey], "binding restored on failure")
}

func TestDeleteBranch_RestoresWorktreeOnEveryFailure(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		op   string
		kind error
	}{
		{"reset", model.ErrBranchSwitch},
		{"clean", model.ErrBranchSwitch},
		{"checkout", model.ErrBranchSwitch},
		{"branch -D", model.ErrBranchDeletion},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			f := newFixture(t)
			f.fake.Branches = []string{"main", "task-t2"}
			f.fake.Head = "task-t2"
			f.fake.Config[model.WorktreeConfigKey] = "/work/app"
			f.fake.Failures[tt.op] = cause

			err := f.manager.DeleteBranch(t.Context(), "task-t2", "/s/checkpoints/h/.git")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, "/work/app", f.fake.Config[model.WorktreeConfigKey])
		})
	}
}

func TestDeleteBranch_RestoreFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t2"}
	f.fake.Head = "task-t2"
	f.fake.Config[model.WorktreeConfigKey] = "/work/app"
	f.fake.Failures["config set"] = errors.New("config locked")

	err := f.manager.DeleteBranch(t.Context(), "task-t2", "/s/checkpoints/h/.git")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrBranchSwitch)
	assert.Contains(t, err.Error(), "restore core.worktree=/work/app")
	assert.NotContains(t, f.fake.Branches, "task-t2", "deletion itself succeeded")
}

func TestDeleteBranch_DeleteCommandFails(t *testing.T) {
	f := newFixture(t)
	f.fake.Branches = []string{"main", "task-t1"}
	f.fake.Head = "main"
	f.fake.Failures["branch -D"] = errors.New("cannot lock ref")

	err := f.manager.DeleteBranch(t.Context(), "task-t1", "/s/checkpoints/h/.git")
	assert.ErrorIs(t, err, model.ErrBranchDeletion)
}

func TestDeleteTaskBranch(t *testing.T) {
	t.Run("branch-per-task repository with the branch", func(t *testing.T) {
		f := newFixture(t)
		shared := f.sharedRepo("/work/app")
		f.present[shared.MetadataPath] = true
		f.present[f.manager.Locator().Legacy("t1").MetadataPath] = true
		f.fake.Branches = []string{"main", "task-t1"}
		f.fake.Head = "main"

		require.NoError(t, f.manager.DeleteTaskBranch(t.Context(), "t1", "/work/app"))
		assert.Equal(t, []string{"main"}, f.fake.Branches)
		assert.Empty(t, f.removed, "legacy directory not consulted once the branch is found")
	})

	t.Run("legacy directory", func(t *testing.T) {
		f := newFixture(t)
		legacy := f.manager.Locator().Legacy("t3")
		f.present[legacy.MetadataPath] = true

		require.NoError(t, f.manager.DeleteTaskBranch(t.Context(), "t3", "/work/app"))
		assert.Equal(t, []string{filepath.Join(f.storage, "tasks", "t3", "checkpoints")}, f.removed)
		assert.Empty(t, f.fake.Calls)
	})

	t.Run("shared repository without the branch falls through to legacy", func(t *testing.T) {
		f := newFixture(t)
		f.present[f.sharedRepo("/work/app").MetadataPath] = true
		f.present[f.manager.Locator().Legacy("t3").MetadataPath] = true
		f.fake.Branches = []string{"main", "task-other"}

		require.NoError(t, f.manager.DeleteTaskBranch(t.Context(), "t3", "/work/app"))
		assert.Len(t, f.removed, 1)
		assert.Equal(t, []string{"main", "task-other"}, f.fake.Branches)
	})

	t.Run("nothing to delete", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.manager.DeleteTaskBranch(t.Context(), "t9", "/work/app"))
		assert.Empty(t, f.removed)
		assert.Empty(t, f.fake.Calls)
	})

	t.Run("working directory used without hint", func(t *testing.T) {
		f := newFixture(t)
		shared := f.sharedRepo("/work/cwd")
		f.present[shared.MetadataPath] = true
		f.fake.Branches = []string{"main", "task-t1"}
		f.fake.Head = "main"

		require.NoError(t, f.manager.DeleteTaskBranch(t.Context(), "t1", ""))
		assert.Contains(t, f.fake.Dirs, shared.Dir())
		assert.Equal(t, []string{"main"}, f.fake.Branches)
	})

	t.Run("legacy removal failure", func(t *testing.T) {
		f := newFixture(t)
		f.present[f.manager.Locator().Legacy("t3").MetadataPath] = true
		f.removeErr = errors.New("permission denied")

		err := f.manager.DeleteTaskBranch(t.Context(), "t3", "/work/app")
		assert.ErrorIs(t, err, model.ErrLegacyDirectoryRemoval)
	})

	t.Run("invalid task id", func(t *testing.T) {
		f := newFixture(t)
		err := f.manager.DeleteTaskBranch(t.Context(), "../../etc", "/work/app")
		assert.Error(t, err)
		assert.Empty(t, f.removed)
	})
}
