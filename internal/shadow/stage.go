package shadow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

const opStage = "stage checkpoint files"

// AddCheckpointFiles stages every tracked file and every untracked file
// not matched by an ignore rule in workspaceRoot, into the shadow
// repository at metadataPath.
//
// The exclusion file is rewritten first, since patterns may have changed
// since the last checkpoint. Nested repositories are suppressed for the
// duration of the call and re-enabled on every return path. An empty file
// set is a success with FileCount 0 and no git add is issued.
func (m *Manager) AddCheckpointFiles(ctx context.Context, metadataPath, workspaceRoot string) (result model.StagingResult, retErr error) {
	log := m.logger.With().Str("metadata", metadataPath).Str("workspace", workspaceRoot).Logger()

	if err := m.writeExclusions(metadataPath, workspaceRoot); err != nil {
		return model.StagingResult{}, model.NewShadowError(model.ErrStaging, opStage, metadataPath, err)
	}

	disabled, err := m.Suppress(workspaceRoot, true)
	if err != nil {
		return model.StagingResult{}, model.NewShadowError(model.ErrStaging, opStage, metadataPath, err)
	}
	defer func() {
		// A walk error is the only error Suppress returns; rename failures
		// are already logged per directory and reported by the result.
		restored, err := m.Suppress(workspaceRoot, false)
		if err != nil {
			log.Error().Err(err).Msg("Failed to re-enable nested repositories")
			retErr = errors.Join(retErr, model.NewShadowError(model.ErrStaging, opStage, metadataPath, err))
			return
		}
		if len(restored.Failed) > 0 {
			log.Error().Int("failed", len(restored.Failed)).Msg("Some nested repositories are still disabled")
		}
	}()
	if len(disabled.Renamed) > 0 {
		log.Debug().Int("nested", len(disabled.Renamed)).Msg("Nested repositories suppressed")
	}

	client := m.open(filepath.Dir(metadataPath))

	for _, entry := range m.settings.PathConfig() {
		if err := client.ConfigSet(ctx, entry.Key, entry.Value); err != nil {
			return model.StagingResult{}, model.NewShadowError(model.ErrStaging, opStage, metadataPath,
				fmt.Errorf("set %s: %w", entry.Key, err))
		}
	}

	files, err := git.ListCheckpointFiles(ctx, client)
	if err != nil {
		return model.StagingResult{}, model.NewShadowError(model.ErrStaging, opStage, metadataPath,
			fmt.Errorf("list files: %w", err))
	}
	if len(files) == 0 {
		log.Debug().Msg("No files to stage")
		return model.StagingResult{Success: true, FileCount: 0}, nil
	}

	if err := client.Add(ctx, files); err != nil {
		return model.StagingResult{}, model.NewShadowError(model.ErrStaging, opStage, metadataPath, err)
	}

	log.Debug().Int("files", len(files)).Msg("Checkpoint files staged")
	return model.StagingResult{Success: true, FileCount: len(files)}, nil
}
