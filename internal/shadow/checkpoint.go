package shadow

import (
	"context"
	"fmt"

	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

const (
	opCommit     = "commit checkpoint"
	opCheckpoint = "checkpoint"
)

// CheckpointResult describes one recorded checkpoint.
type CheckpointResult struct {
	Repository locator.Repository  `json:"repository"`
	Branch     string              `json:"branch"`
	Commit     string              `json:"commit"`
	Staging    model.StagingResult `json:"staging"`
}

// Commit records the index of repo as a commit, even when nothing changed,
// and returns the new HEAD hash.
func (m *Manager) Commit(ctx context.Context, repo locator.Repository, message string) (string, error) {
	client := m.open(repo.Dir())

	if err := client.Commit(ctx, message, true); err != nil {
		return "", model.NewShadowError(model.ErrCommit, opCommit, repo.MetadataPath, err)
	}
	hash, err := client.RevParse(ctx, "HEAD")
	if err != nil {
		return "", model.NewShadowError(model.ErrCommit, opCommit, repo.MetadataPath,
			fmt.Errorf("read HEAD: %w", err))
	}
	return hash, nil
}

// Checkpoint snapshots workspacePath for taskID: it resolves the task's
// repository, initializes or verifies it, switches to the task branch,
// stages the workspace and commits.
func (m *Manager) Checkpoint(ctx context.Context, taskID, workspacePath, message string) (CheckpointResult, error) {
	if err := model.ValidateTaskID(taskID); err != nil {
		return CheckpointResult{}, model.NewShadowError(model.ErrStaging, opCheckpoint, workspacePath, err)
	}

	repo := m.locator.Resolve(taskID, workspacePath)
	result := CheckpointResult{Repository: repo}

	if _, err := m.Initialize(ctx, repo, workspacePath); err != nil {
		return result, err
	}
	if err := m.SwitchToTaskBranch(ctx, repo, taskID); err != nil {
		return result, err
	}

	staged, err := m.AddCheckpointFiles(ctx, repo.MetadataPath, workspacePath)
	if err != nil {
		return result, err
	}
	result.Staging = staged

	if message == "" {
		message = fmt.Sprintf("checkpoint %s", taskID)
	}
	hash, err := m.Commit(ctx, repo, message)
	if err != nil {
		return result, err
	}
	result.Commit = hash

	branch, err := git.CurrentBranch(ctx, m.open(repo.Dir()))
	if err != nil {
		m.logger.Warn().Err(err).Str("metadata", repo.MetadataPath).Msg("Could not read branch after commit")
	}
	result.Branch = branch

	m.logger.Info().
		Str("task", taskID).
		Str("commit", hash).
		Int("files", staged.FileCount).
		Msg("Checkpoint recorded")
	return result, nil
}
