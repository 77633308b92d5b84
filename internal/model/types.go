// Package model defines the domain types for shadowrepo.
//
// A shadow repository is a git repository whose metadata directory lives in
// tool-owned storage while its working tree is bound (via core.worktree) to
// the user's real workspace. The types in this package describe the fixed
// configuration those repositories are created with and the transient values
// exchanged between the manager and its callers.
package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Settings is the fixed configuration shared by every shadow repository.
//
// Initialization writes these values and later operations (staging,
// branch switching, deletion) read the same value, so a change here is a
// change everywhere. Use DefaultSettings for the canonical values.
type Settings struct {
	// MetadataDirName is the name of the git metadata directory, both for
	// the shadow repository itself and for nested repositories found in the
	// workspace.
	MetadataDirName string

	// BranchPrefix is prepended to a task identifier to build the task
	// branch name (e.g., "task-" + "t1" = "task-t1").
	BranchPrefix string

	// DisabledSuffix is appended to a nested metadata directory name while
	// it is suppressed (e.g., ".git" becomes ".git_disabled").
	DisabledSuffix string

	// AuthorName and AuthorEmail form the non-personal identity recorded on
	// every checkpoint commit.
	AuthorName  string
	AuthorEmail string

	// InitialBranch is the branch the root commit is created on.
	InitialBranch string

	// InitialCommitMessage is the message of the empty root commit that
	// every task branch forks from.
	InitialCommitMessage string

	// FallbackBranches are tried in order when the currently checked-out
	// task branch has to be deleted and HEAD must move elsewhere.
	FallbackBranches []string

	// VerifyAttempts bounds how many times HEAD is re-read after a
	// checkout before the switch is declared failed.
	VerifyAttempts int

	// VerifyInterval is the pause between HEAD verification reads.
	VerifyInterval time.Duration
}

// DefaultSettings returns the canonical shadow repository configuration.
func DefaultSettings() Settings {
	return Settings{
		MetadataDirName:      ".git",
		BranchPrefix:         "task-",
		DisabledSuffix:       "_disabled",
		AuthorName:           "Shadow Checkpoint",
		AuthorEmail:          "checkpoint@shadowrepo.local",
		InitialBranch:        "main",
		InitialCommitMessage: "initial commit",
		FallbackBranches:     []string{"main", "master"},
		VerifyAttempts:       3,
		VerifyInterval:       50 * time.Millisecond,
	}
}

// BranchName returns the task branch name for the given task identifier.
func (s Settings) BranchName(taskID string) string {
	return s.BranchPrefix + taskID
}

// DisabledMetadataDirName returns the suppressed form of the metadata
// directory name (e.g., ".git_disabled").
func (s Settings) DisabledMetadataDirName() string {
	return s.MetadataDirName + s.DisabledSuffix
}

// RepositoryConfig returns the git config entries applied to a freshly
// initialized shadow repository, excluding core.worktree which depends on
// the workspace. Order is stable so callers can apply and log them
// deterministically.
func (s Settings) RepositoryConfig() []ConfigEntry {
	return []ConfigEntry{
		{Key: "commit.gpgSign", Value: "false"},
		{Key: "user.name", Value: s.AuthorName},
		{Key: "user.email", Value: s.AuthorEmail},
		{Key: "core.quotePath", Value: "false"},
		{Key: "core.precomposeUnicode", Value: "true"},
	}
}

// PathConfig returns the subset of RepositoryConfig that affects how file
// paths are reported. Staging re-applies these before enumerating files.
func (s Settings) PathConfig() []ConfigEntry {
	return []ConfigEntry{
		{Key: "core.quotePath", Value: "false"},
		{Key: "core.precomposeUnicode", Value: "true"},
	}
}

// ConfigEntry is a single git config key/value pair.
type ConfigEntry struct {
	Key   string
	Value string
}

// WorktreeConfigKey is the git config key that binds a shadow repository's
// metadata directory to the workspace it tracks.
const WorktreeConfigKey = "core.worktree"

// taskIDRegex restricts task identifiers to characters that are safe both
// as a path segment and as part of a git ref name.
var taskIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateTaskID checks that a task identifier can be used as a directory
// name under the legacy layout and as a branch name suffix.
func ValidateTaskID(taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id must not be empty")
	}
	if !taskIDRegex.MatchString(taskID) || strings.Contains(taskID, "..") || strings.HasSuffix(taskID, ".lock") {
		return fmt.Errorf("invalid task id %q: must contain only alphanumeric characters, '.', '_' or '-'", taskID)
	}
	return nil
}

// StagingResult is the outcome of a single staging call. It is not
// persisted.
type StagingResult struct {
	// Success is true when staging completed (including the empty case).
	Success bool `json:"success"`

	// FileCount is the number of files passed to git add.
	FileCount int `json:"fileCount"`
}

// ExitCode defines standard CLI exit codes. These codes allow scripts and
// orchestrators to programmatically determine the outcome of a command.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitConfigurationMismatch indicates an existing shadow repository is
	// bound to a different workspace than the one requested.
	ExitConfigurationMismatch ExitCode = 2

	// ExitInitializationFailed indicates a shadow repository could not be
	// created.
	ExitInitializationFailed ExitCode = 3

	// ExitBranchError indicates a branch switch or deletion failed.
	ExitBranchError ExitCode = 4

	// ExitGitError indicates a git subprocess failed outside the more
	// specific categories.
	ExitGitError ExitCode = 5

	// ExitStagingFailed indicates files could not be staged, or a nested
	// repository marker could not be restored.
	ExitStagingFailed ExitCode = 6

	// ExitUserCancelled indicates the user cancelled an interactive prompt.
	ExitUserCancelled ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
