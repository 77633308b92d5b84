package locator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// Kind identifies the on-disk layout of a shadow repository.
type Kind int

const (
	// BranchPerTask is one repository per workspace with one branch per task.
	BranchPerTask Kind = iota + 1

	// Legacy is one dedicated repository per task.
	Legacy
)

// String returns the layout name used in CLI output.
func (k Kind) String() string {
	switch k {
	case BranchPerTask:
		return "branch-per-task"
	case Legacy:
		return "legacy"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Repository identifies one shadow repository.
type Repository struct {
	// Kind is the layout variant.
	Kind Kind `json:"kind"`

	// MetadataPath is the absolute path of the metadata directory
	// (ending in .git).
	MetadataPath string `json:"metadataPath"`

	// TaskID is set for Legacy repositories.
	TaskID string `json:"taskId,omitempty"`

	// WorkspaceHash is set for BranchPerTask repositories.
	WorkspaceHash string `json:"workspaceHash,omitempty"`
}

// IsLegacy reports whether r uses the legacy layout.
func (r Repository) IsLegacy() bool {
	return r.Kind == Legacy
}

// Dir returns the directory that contains the metadata directory. git
// commands for r run with this directory as -C target.
func (r Repository) Dir() string {
	return filepath.Dir(r.MetadataPath)
}

// Locator computes repository paths below a storage root.
type Locator struct {
	storageRoot string
	settings    model.Settings
	hash        func(workspacePath string) string
	exists      func(path string) bool
}

// Option customizes a Locator.
type Option func(*Locator)

// WithHasher replaces the workspace hash function.
func WithHasher(hash func(workspacePath string) string) Option {
	return func(l *Locator) { l.hash = hash }
}

// WithExists replaces the filesystem existence probe.
func WithExists(exists func(path string) bool) Option {
	return func(l *Locator) { l.exists = exists }
}

// New returns a Locator rooted at storageRoot.
func New(storageRoot string, settings model.Settings, opts ...Option) *Locator {
	l := &Locator{
		storageRoot: storageRoot,
		settings:    settings,
		hash:        HashWorkspace,
		exists:      PathExists,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// StorageRoot returns the root all repositories live under.
func (l *Locator) StorageRoot() string {
	return l.storageRoot
}

// Legacy returns the legacy repository for taskID.
func (l *Locator) Legacy(taskID string) Repository {
	return Repository{
		Kind:         Legacy,
		MetadataPath: filepath.Join(l.storageRoot, "tasks", taskID, "checkpoints", l.settings.MetadataDirName),
		TaskID:       taskID,
	}
}

// BranchPerTask returns the shared repository for workspacePath.
func (l *Locator) BranchPerTask(workspacePath string) Repository {
	h := l.hash(workspacePath)
	return Repository{
		Kind:          BranchPerTask,
		MetadataPath:  filepath.Join(l.storageRoot, "checkpoints", h, l.settings.MetadataDirName),
		WorkspaceHash: h,
	}
}

// Exists reports whether a shadow repository exists for the task. The
// legacy path is checked first and the branch-per-task path only when the
// legacy path is absent.
func (l *Locator) Exists(taskID, workspacePath string) bool {
	if taskID != "" && l.exists(l.Legacy(taskID).MetadataPath) {
		return true
	}
	return l.exists(l.BranchPerTask(workspacePath).MetadataPath)
}

// Resolve picks the repository a task should use: its legacy repository
// if one exists, otherwise the branch-per-task repository of the
// workspace. Precedence matches Exists.
func (l *Locator) Resolve(taskID, workspacePath string) Repository {
	if taskID != "" {
		if legacy := l.Legacy(taskID); l.exists(legacy.MetadataPath) {
			return legacy
		}
	}
	return l.BranchPerTask(workspacePath)
}

// PathExists reports whether path exists. Any stat error, including
// permission errors, counts as absent.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// PathExists runs the locator's existence probe, so collaborators share
// one notion of "present".
func (l *Locator) PathExists(path string) bool {
	return l.exists(path)
}
