package shadow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// RenameFailure records one nested metadata directory that could not be
// renamed.
type RenameFailure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`

	// Message duplicates Err for JSON output.
	Message string `json:"error"`
}

// SuppressResult lists what a Suppress call renamed and what it could not.
type SuppressResult struct {
	// Renamed holds the original paths that were renamed, in walk order.
	Renamed []string `json:"renamed"`

	// Failed holds per-directory rename failures.
	Failed []RenameFailure `json:"failed"`
}

// Err joins every rename failure, or returns nil when there were none.
func (r SuppressResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("rename %s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

// Suppress hides (disable=true) or restores (disable=false) the metadata
// directories of repositories nested below workspaceRoot, by appending or
// stripping the disabled suffix. The workspace root's own metadata
// directory is never touched, and the walk does not descend into any
// metadata directory.
//
// Renames run one at a time. A failed rename is logged, recorded in the
// result and does not stop the batch; the returned error is non-nil only
// when the workspace could not be walked at all.
func (m *Manager) Suppress(workspaceRoot string, disable bool) (SuppressResult, error) {
	active := m.settings.MetadataDirName
	disabled := m.settings.DisabledMetadataDirName()
	match := disabled
	if disable {
		match = active
	}

	root := filepath.Clean(workspaceRoot)
	targets, err := m.findNestedMetadata(root, match, active, disabled)
	if err != nil {
		return SuppressResult{}, fmt.Errorf("scan %s for nested repositories: %w", root, err)
	}

	action := "Enabling"
	if disable {
		action = "Disabling"
	}

	var result SuppressResult
	for _, path := range targets {
		target := filepath.Join(filepath.Dir(path), active)
		if disable {
			target = filepath.Join(filepath.Dir(path), disabled)
		}

		m.logger.Debug().Str("path", path).Msgf("%s nested repository", action)
		err := m.renameDir(path, target)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", path).Str("target", target).Msg("Failed to rename nested metadata directory")
			result.Failed = append(result.Failed, RenameFailure{Path: path, Err: err, Message: err.Error()})
			continue
		}
		result.Renamed = append(result.Renamed, path)
	}
	return result, nil
}

// renameDir renames path to target unless target is already taken, which
// would otherwise replace an empty directory silently.
func (m *Manager) renameDir(path, target string) error {
	if _, err := os.Lstat(target); err == nil {
		return fmt.Errorf("%s: %w", target, fs.ErrExist)
	}
	return m.rename(path, target)
}

// findNestedMetadata collects directories named match strictly below root,
// skipping anything directly inside root. Directories named active or
// disabled are never descended into.
func (m *Manager) findNestedMetadata(root, match, active, disabled string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			m.logger.Debug().Err(err).Str("path", path).Msg("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() || path == root {
			return nil
		}

		name := d.Name()
		if name != active && name != disabled {
			return nil
		}
		if name == match && filepath.Dir(path) != root {
			found = append(found, path)
		}
		return filepath.SkipDir
	})
	return found, err
}
