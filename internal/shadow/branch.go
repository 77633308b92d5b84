package shadow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
	"github.com/mmr-tortoise/shadowrepo/internal/retry"
)

const opSwitch = "switch to task branch"

// errHeadMismatch marks a HEAD read that succeeded but named another branch.
var errHeadMismatch = errors.New("HEAD is on a different branch")

// SwitchToTaskBranch checks out the task's branch in repo, creating it at
// HEAD when it does not exist yet. Legacy repositories hold a single task
// and are left untouched.
//
// After the checkout HEAD is read back. A read that keeps failing is
// logged and tolerated; a read that names a different branch fails with
// model.ErrBranchSwitch, since the next commit would land on that branch.
func (m *Manager) SwitchToTaskBranch(ctx context.Context, repo locator.Repository, taskID string) error {
	if repo.IsLegacy() {
		return nil
	}
	if err := model.ValidateTaskID(taskID); err != nil {
		return model.NewShadowError(model.ErrBranchSwitch, opSwitch, repo.MetadataPath, err)
	}

	branch := m.settings.BranchName(taskID)
	log := m.logger.With().Str("metadata", repo.MetadataPath).Str("branch", branch).Logger()
	client := m.open(repo.Dir())

	exists, err := git.HasLocalBranch(ctx, client, branch)
	if err != nil {
		return model.NewShadowError(model.ErrBranchSwitch, opSwitch, repo.MetadataPath,
			fmt.Errorf("list branches: %w", err))
	}

	if exists {
		log.Debug().Msg("Checking out task branch")
		err = client.Checkout(ctx, branch, false)
	} else {
		log.Debug().Msg("Creating task branch")
		err = client.CheckoutNewBranch(ctx, branch)
	}
	if err != nil {
		return model.NewShadowError(model.ErrBranchSwitch, opSwitch, repo.MetadataPath, err)
	}

	err = m.verifyHead(ctx, client, branch)
	switch {
	case err == nil:
	case errors.Is(err, errHeadMismatch):
		return model.NewShadowError(model.ErrBranchSwitch, opSwitch, repo.MetadataPath, err)
	default:
		log.Warn().Err(err).Msg("Could not confirm HEAD after checkout")
	}
	return nil
}

// verifyHead polls HEAD until it names branch. When the attempts run out
// the returned error wraps errHeadMismatch if the last successful read
// named another branch, or the last read error otherwise.
func (m *Manager) verifyHead(ctx context.Context, client git.Client, branch string) error {
	var lastSeen string
	err := retry.Until(ctx, m.settings.VerifyAttempts, m.settings.VerifyInterval, func(ctx context.Context, attempt int) (bool, error) {
		head, err := git.CurrentBranch(ctx, client)
		if err != nil {
			m.logger.Debug().Err(err).Int("attempt", attempt).Msg("HEAD read failed")
			return false, err
		}
		lastSeen = head
		return head == branch, nil
	})
	if err == nil {
		return nil
	}
	if lastSeen != "" && lastSeen != branch {
		return fmt.Errorf("%w: expected %q, got %q", errHeadMismatch, branch, lastSeen)
	}
	return err
}
