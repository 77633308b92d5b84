package shadow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

const (
	opDeleteBranch     = "delete branch"
	opDeleteTaskBranch = "delete task checkpoints"
)

// DeleteBranch force-deletes branchName from the shadow repository at
// metadataPath. A branch that does not exist is not an error.
//
// Deleting the checked-out branch first moves HEAD to a fallback branch.
// For the duration of that move core.worktree is unset, so the reset,
// clean and forced checkout act on the metadata's parent directory and
// never on the user's workspace. The binding is restored on every exit
// path; a failed restore is joined into the returned error.
//
// Every command runs detached from the workspace, so a task whose
// workspace was removed can still be deleted.
func (m *Manager) DeleteBranch(ctx context.Context, branchName, metadataPath string) (retErr error) {
	client := m.detached(filepath.Dir(metadataPath))
	log := m.logger.With().Str("metadata", metadataPath).Str("branch", branchName).Logger()

	branches, err := client.LocalBranches(ctx)
	if err != nil {
		return model.NewShadowError(model.ErrBranchDeletion, opDeleteBranch, metadataPath,
			fmt.Errorf("list branches: %w", err))
	}
	if !slices.Contains(branches, branchName) {
		log.Debug().Msg("Branch does not exist, nothing to delete")
		return nil
	}

	current, err := git.CurrentBranch(ctx, client)
	if err != nil {
		return model.NewShadowError(model.ErrBranchDeletion, opDeleteBranch, metadataPath,
			fmt.Errorf("read HEAD: %w", err))
	}

	if current != branchName {
		if err := git.DeleteBranch(ctx, client, branchName); err != nil {
			return model.NewShadowError(model.ErrBranchDeletion, opDeleteBranch, metadataPath, err)
		}
		log.Info().Msg("Deleted task branch")
		return nil
	}

	log.Info().Msg("Branch is checked out, moving HEAD before deletion")

	worktree, err := client.ConfigGet(ctx, model.WorktreeConfigKey)
	if err != nil {
		return model.NewShadowError(model.ErrBranchSwitch, opDeleteBranch, metadataPath,
			fmt.Errorf("read %s: %w", model.WorktreeConfigKey, err))
	}
	if err := git.UnsetConfig(ctx, client, model.WorktreeConfigKey); err != nil {
		return model.NewShadowError(model.ErrBranchSwitch, opDeleteBranch, metadataPath,
			fmt.Errorf("unset %s: %w", model.WorktreeConfigKey, err))
	}
	if worktree != "" {
		defer func() {
			// The caller's context may already be cancelled; the binding
			// must come back regardless.
			restoreCtx := context.WithoutCancel(ctx)
			if err := client.ConfigSet(restoreCtx, model.WorktreeConfigKey, worktree); err != nil {
				log.Error().Err(err).Str("worktree", worktree).Msg("Failed to restore worktree binding")
				retErr = errors.Join(retErr, model.NewShadowError(model.ErrBranchSwitch, opDeleteBranch, metadataPath,
					fmt.Errorf("restore %s=%s: %w", model.WorktreeConfigKey, worktree, err)))
			}
		}()
	}

	fallback, err := m.moveHeadToFallback(ctx, client, branches, branchName)
	if err != nil {
		return model.NewShadowError(model.ErrBranchSwitch, opDeleteBranch, metadataPath, err)
	}
	log.Debug().Str("fallback", fallback).Msg("HEAD moved to fallback branch")

	if err := git.DeleteBranch(ctx, client, branchName); err != nil {
		return model.NewShadowError(model.ErrBranchDeletion, opDeleteBranch, metadataPath, err)
	}
	log.Info().Msg("Deleted task branch")
	return nil
}

// moveHeadToFallback discards local state and force-checks-out the
// fallback branch, then confirms HEAD moved.
func (m *Manager) moveHeadToFallback(ctx context.Context, client git.Client, branches []string, deleting string) (string, error) {
	if err := client.ResetHard(ctx); err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	if err := client.Clean(ctx); err != nil {
		return "", fmt.Errorf("clean: %w", err)
	}

	fallback := m.fallbackBranch(branches, deleting)
	if err := client.Checkout(ctx, fallback, true); err != nil {
		return "", fmt.Errorf("checkout %s: %w", fallback, err)
	}
	if err := m.verifyHead(ctx, client, fallback); err != nil {
		return "", fmt.Errorf("HEAD not on %s after checkout: %w", fallback, err)
	}
	return fallback, nil
}

// fallbackBranch returns the first configured fallback branch that exists.
// When none does, the last configured name is returned so the checkout
// fails with git's own message.
func (m *Manager) fallbackBranch(branches []string, deleting string) string {
	candidates := m.settings.FallbackBranches
	for _, b := range candidates {
		if b != deleting && slices.Contains(branches, b) {
			return b
		}
	}
	if len(candidates) == 0 {
		return m.settings.InitialBranch
	}
	return candidates[len(candidates)-1]
}

// DeleteTaskBranch removes every checkpoint of taskID, whichever layout
// holds them. worktreeHint is the workspace recorded for the task; when
// empty the current working directory is used.
//
// The branch-per-task repository is consulted first and, when it has the
// task's branch, the branch is deleted. Otherwise the task's legacy
// checkpoint directory is removed recursively if present. A task with no
// checkpoints in either layout is not an error.
func (m *Manager) DeleteTaskBranch(ctx context.Context, taskID, worktreeHint string) error {
	if err := model.ValidateTaskID(taskID); err != nil {
		return model.NewShadowError(model.ErrBranchDeletion, opDeleteTaskBranch, "", err)
	}

	workspace := worktreeHint
	if workspace == "" {
		wd, err := m.getwd()
		if err != nil {
			return model.NewShadowError(model.ErrBranchDeletion, opDeleteTaskBranch, "",
				fmt.Errorf("resolve working directory: %w", err))
		}
		workspace = wd
	}

	log := m.logger.With().Str("task", taskID).Str("workspace", workspace).Logger()
	branch := m.settings.BranchName(taskID)

	shared := m.locator.BranchPerTask(workspace)
	if m.locator.PathExists(shared.MetadataPath) {
		client := m.detached(shared.Dir())
		has, err := git.HasLocalBranch(ctx, client, branch)
		if err != nil {
			return model.NewShadowError(model.ErrBranchDeletion, opDeleteTaskBranch, shared.MetadataPath,
				fmt.Errorf("list branches: %w", err))
		}
		if has {
			log.Debug().Str("metadata", shared.MetadataPath).Msg("Deleting task branch")
			return m.DeleteBranch(ctx, branch, shared.MetadataPath)
		}
	}

	legacy := m.locator.Legacy(taskID)
	if m.locator.PathExists(legacy.MetadataPath) {
		dir := legacy.Dir()
		log.Info().Str("dir", dir).Msg("Removing legacy checkpoint directory")
		if err := m.removeAll(dir); err != nil {
			return model.NewShadowError(model.ErrLegacyDirectoryRemoval, opDeleteTaskBranch, dir, err)
		}
		return nil
	}

	log.Debug().Msg("No checkpoints found for task")
	return nil
}
