package shadow

import (
	"errors"
	"os"

	"github.com/rs/zerolog"

	"github.com/mmr-tortoise/shadowrepo/internal/exclude"
	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// Exclusions supplies and persists the ignore patterns for a shadow
// repository.
type Exclusions interface {
	// Patterns returns the ordered pattern set for a workspace.
	Patterns(workspacePath string) ([]string, error)

	// Write replaces the repository's exclusion file with patterns.
	Write(metadataPath string, patterns []string) error
}

// Options configures a Manager. Only Locator is required.
type Options struct {
	// Locator computes repository paths and probes for their existence.
	Locator *locator.Locator

	// Settings defaults to model.DefaultSettings().
	Settings *model.Settings

	// Opener defaults to git.NewOpener("", Logger).
	Opener git.Opener

	// DetachedOpener opens clients that ignore core.worktree, used where
	// the workspace may no longer exist (branch deletion, inspection).
	// Defaults to git.NewDetachedOpener("", Logger) when Opener is unset,
	// and to Opener otherwise.
	DetachedOpener git.Opener

	// Exclusions defaults to exclude.NewSource(Settings, nil).
	Exclusions Exclusions

	// Getwd resolves the working directory when DeleteTaskBranch gets no
	// stored hint. Defaults to os.Getwd.
	Getwd func() (string, error)

	// RemoveAll removes a legacy checkpoint tree. Defaults to os.RemoveAll.
	RemoveAll func(path string) error

	// Rename renames nested metadata directories. Defaults to os.Rename.
	Rename func(oldPath, newPath string) error

	// Logger receives diagnostics. The zero value discards them.
	Logger zerolog.Logger
}

// Manager drives shadow repositories through a git.Client.
type Manager struct {
	locator    *locator.Locator
	settings   model.Settings
	open       git.Opener
	detached   git.Opener
	exclusions Exclusions
	getwd      func() (string, error)
	removeAll  func(string) error
	rename     func(string, string) error
	logger     zerolog.Logger
}

// NewManager builds a Manager, filling unset Options with defaults.
func NewManager(opts Options) (*Manager, error) {
	if opts.Locator == nil {
		return nil, errors.New("shadow: Options.Locator is required")
	}

	settings := model.DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}

	m := &Manager{
		locator:    opts.Locator,
		settings:   settings,
		open:       opts.Opener,
		detached:   opts.DetachedOpener,
		exclusions: opts.Exclusions,
		getwd:      opts.Getwd,
		removeAll:  opts.RemoveAll,
		rename:     opts.Rename,
		logger:     opts.Logger.With().Str("component", "shadow").Logger(),
	}
	if m.open == nil {
		m.open = git.NewOpener("", opts.Logger)
		if m.detached == nil {
			m.detached = git.NewDetachedOpener("", opts.Logger)
		}
	}
	if m.detached == nil {
		m.detached = m.open
	}
	if m.exclusions == nil {
		m.exclusions = exclude.NewSource(settings, nil)
	}
	if m.getwd == nil {
		m.getwd = os.Getwd
	}
	if m.removeAll == nil {
		m.removeAll = os.RemoveAll
	}
	if m.rename == nil {
		m.rename = os.Rename
	}
	return m, nil
}

// Settings returns the fixed configuration the manager applies.
func (m *Manager) Settings() model.Settings {
	return m.settings
}

// Locator returns the manager's locator.
func (m *Manager) Locator() *locator.Locator {
	return m.locator
}
