package shadow

import (
	"context"
	"fmt"
	"slices"

	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// Status is a read-only view of the repository a task or workspace
// resolves to.
type Status struct {
	Repository locator.Repository `json:"repository"`
	Exists     bool               `json:"exists"`

	// Worktree is the stored core.worktree binding.
	Worktree string `json:"worktree,omitempty"`

	CurrentBranch string   `json:"currentBranch,omitempty"`
	Branches      []string `json:"branches,omitempty"`

	// TaskBranch is set when a task identifier was given.
	TaskBranch    string `json:"taskBranch,omitempty"`
	HasTaskBranch bool   `json:"hasTaskBranch"`
}

// Inspect reports on the repository taskID (optional) and workspacePath
// resolve to. Nothing is written.
func (m *Manager) Inspect(ctx context.Context, taskID, workspacePath string) (Status, error) {
	if taskID != "" {
		if err := model.ValidateTaskID(taskID); err != nil {
			return Status{}, err
		}
	}

	repo := m.locator.Resolve(taskID, workspacePath)
	st := Status{Repository: repo}
	if taskID != "" && !repo.IsLegacy() {
		st.TaskBranch = m.settings.BranchName(taskID)
	}

	if !m.locator.PathExists(repo.MetadataPath) {
		return st, nil
	}
	st.Exists = true

	client := m.detached(repo.Dir())

	worktree, err := client.ConfigGet(ctx, model.WorktreeConfigKey)
	if err != nil {
		return st, fmt.Errorf("read %s: %w", model.WorktreeConfigKey, err)
	}
	st.Worktree = worktree

	branches, err := client.LocalBranches(ctx)
	if err != nil {
		return st, fmt.Errorf("list branches: %w", err)
	}
	st.Branches = branches

	current, err := git.CurrentBranch(ctx, client)
	if err != nil {
		return st, fmt.Errorf("read HEAD: %w", err)
	}
	st.CurrentBranch = current

	if repo.IsLegacy() {
		st.HasTaskBranch = true
	} else if st.TaskBranch != "" {
		st.HasTaskBranch = slices.Contains(branches, st.TaskBranch)
	}
	return st, nil
}
