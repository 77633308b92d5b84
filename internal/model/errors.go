package model

import (
	"errors"
	"fmt"
)

// Error kinds. A ShadowError always carries exactly one of these, so callers
// branch with errors.Is(err, model.ErrStaging) without caring about the
// underlying git failure.
var (
	// ErrConfigurationMismatch: the stored core.worktree of an existing
	// shadow repository differs from the expected workspace. Never repaired
	// automatically.
	ErrConfigurationMismatch = errors.New("shadow repository bound to a different workspace")

	// ErrRepositoryInitialization: directory creation, git init, config
	// writes, exclusion file write or the root commit failed.
	ErrRepositoryInitialization = errors.New("shadow repository initialization failed")

	// ErrBranchSwitch: a checkout could not be confirmed by reading HEAD.
	ErrBranchSwitch = errors.New("branch switch failed")

	// ErrBranchDeletion: the branch delete command itself failed.
	ErrBranchDeletion = errors.New("branch deletion failed")

	// ErrStaging: enumerating or adding checkpoint files failed.
	ErrStaging = errors.New("staging failed")

	// ErrCommit: recording a checkpoint commit or reading its hash failed.
	ErrCommit = errors.New("checkpoint commit failed")

	// ErrLegacyDirectoryRemoval: a legacy per-task checkpoint tree could not
	// be removed.
	ErrLegacyDirectoryRemoval = errors.New("legacy checkpoint directory removal failed")
)

// ShadowError is the error type returned by the shadow repository manager.
// It records the operation, the path it acted on, the error kind and the
// original cause.
type ShadowError struct {
	// Kind is one of the Err* sentinels above.
	Kind error

	// Op names the operation that failed (e.g., "initialize", "delete branch").
	Op string

	// Path is the metadata or workspace path involved, if any.
	Path string

	// Err is the original cause. May be nil for failures detected by the
	// manager itself (e.g., a worktree mismatch).
	Err error
}

// Error renders "op path: kind: cause".
func (e *ShadowError) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg = fmt.Sprintf("%s: %v", msg, e.Kind)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is/errors.As.
func (e *ShadowError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewShadowError builds a ShadowError.
func NewShadowError(kind error, op, path string, err error) *ShadowError {
	return &ShadowError{Kind: kind, Op: op, Path: path, Err: err}
}

// ExitCodeFor maps an error from the manager to a CLI exit code.
func ExitCodeFor(err error) ExitCode {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrConfigurationMismatch):
		return ExitConfigurationMismatch
	case errors.Is(err, ErrRepositoryInitialization):
		return ExitInitializationFailed
	case errors.Is(err, ErrBranchSwitch), errors.Is(err, ErrBranchDeletion):
		return ExitBranchError
	case errors.Is(err, ErrStaging):
		return ExitStagingFailed
	case errors.Is(err, ErrCommit):
		return ExitGitError
	case errors.Is(err, ErrLegacyDirectoryRemoval):
		return ExitGeneralError
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}
	return ExitGeneralError
}
