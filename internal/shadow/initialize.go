package shadow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

const opInitialize = "initialize shadow repository"

// Initialize creates the shadow repository for repo, bound to
// workspacePath, or verifies an existing one. It returns the metadata
// path.
//
// An existing repository is only read: if its core.worktree differs from
// workspacePath the call fails with model.ErrConfigurationMismatch and
// nothing is written. Calling Initialize again with the same arguments
// therefore never creates a second root commit.
//
// A new repository gets the fixed configuration from model.Settings, the
// current exclusion patterns, and one empty root commit on the initial
// branch that every task branch forks from. If any creation step fails the
// half-built metadata directory is removed and the error is reported as
// model.ErrRepositoryInitialization.
func (m *Manager) Initialize(ctx context.Context, repo locator.Repository, workspacePath string) (string, error) {
	metadataPath := repo.MetadataPath
	log := m.logger.With().
		Str("metadata", metadataPath).
		Str("layout", repo.Kind.String()).
		Str("workspace", workspacePath).
		Logger()

	if filepath.Base(metadataPath) != m.settings.MetadataDirName {
		return "", model.NewShadowError(model.ErrRepositoryInitialization, opInitialize, metadataPath,
			fmt.Errorf("metadata directory must be named %q", m.settings.MetadataDirName))
	}

	if m.locator.PathExists(metadataPath) {
		// Detached, so a binding to a removed directory reads back as a
		// mismatch instead of failing inside git.
		client := m.detached(repo.Dir())
		worktree, err := client.ConfigGet(ctx, model.WorktreeConfigKey)
		if err != nil {
			return "", model.NewShadowError(model.ErrRepositoryInitialization, opInitialize, metadataPath,
				fmt.Errorf("read %s: %w", model.WorktreeConfigKey, err))
		}
		if !samePath(worktree, workspacePath) {
			return "", model.NewShadowError(model.ErrConfigurationMismatch, opInitialize, metadataPath,
				fmt.Errorf("%s is %q, expected %q", model.WorktreeConfigKey, worktree, workspacePath))
		}
		log.Debug().Msg("Using existing shadow repository")
		return metadataPath, nil
	}

	log.Info().Msg("Creating shadow repository")

	if err := os.MkdirAll(repo.Dir(), 0o755); err != nil {
		return "", model.NewShadowError(model.ErrRepositoryInitialization, opInitialize, metadataPath,
			fmt.Errorf("create %s: %w", repo.Dir(), err))
	}

	if err := m.createRepository(ctx, repo, workspacePath); err != nil {
		// Leave no half-configured repository behind: the next call would
		// otherwise take the verification path and trust it.
		if rmErr := os.RemoveAll(metadataPath); rmErr != nil {
			log.Error().Err(rmErr).Msg("Failed to remove partially initialized shadow repository")
		}
		return "", model.NewShadowError(model.ErrRepositoryInitialization, opInitialize, metadataPath, err)
	}

	log.Info().Msg("Shadow repository created")
	return metadataPath, nil
}

// createRepository runs git init and applies configuration, exclusions and
// the root commit.
func (m *Manager) createRepository(ctx context.Context, repo locator.Repository, workspacePath string) error {
	client := m.open(repo.Dir())

	if err := client.Init(ctx); err != nil {
		return fmt.Errorf("git init: %w", err)
	}

	// Pin the initial branch so the fallback used when deleting the
	// checked-out task branch exists regardless of init.defaultBranch.
	if _, err := client.Raw(ctx, "symbolic-ref", "HEAD", "refs/heads/"+m.settings.InitialBranch); err != nil {
		return fmt.Errorf("set initial branch: %w", err)
	}

	if err := client.ConfigSet(ctx, model.WorktreeConfigKey, workspacePath); err != nil {
		return fmt.Errorf("set %s: %w", model.WorktreeConfigKey, err)
	}
	for _, entry := range m.settings.RepositoryConfig() {
		if err := client.ConfigSet(ctx, entry.Key, entry.Value); err != nil {
			return fmt.Errorf("set %s: %w", entry.Key, err)
		}
	}

	if err := m.writeExclusions(repo.MetadataPath, workspacePath); err != nil {
		return err
	}

	if err := client.Commit(ctx, m.settings.InitialCommitMessage, true); err != nil {
		return fmt.Errorf("create root commit: %w", err)
	}
	return nil
}

// writeExclusions fetches the current pattern set and writes it to the
// repository's exclusion file. The suppressed nested metadata directory is
// always excluded, whatever the collaborator returns, so a hidden nested
// repository's object store is never staged.
func (m *Manager) writeExclusions(metadataPath, workspacePath string) error {
	patterns, err := m.exclusions.Patterns(workspacePath)
	if err != nil {
		return fmt.Errorf("compute exclusion patterns: %w", err)
	}
	if marker := m.settings.DisabledMetadataDirName() + "/"; !slices.Contains(patterns, marker) {
		patterns = append(slices.Clone(patterns), marker)
	}
	if err := m.exclusions.Write(metadataPath, patterns); err != nil {
		return fmt.Errorf("write exclusion file: %w", err)
	}
	m.logger.Debug().Str("metadata", metadataPath).Int("patterns", len(patterns)).Msg("Exclusion file written")
	return nil
}

// samePath compares a stored worktree binding with the expected workspace.
// Only lexical normalization is applied; symlinks are not resolved, so a
// binding stored through a different link path is still a mismatch.
func samePath(stored, expected string) bool {
	if stored == "" || expected == "" {
		return stored == expected
	}
	return filepath.Clean(stored) == filepath.Clean(expected)
}
