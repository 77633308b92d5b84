package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/shadowrepo/internal/config"
	"github.com/mmr-tortoise/shadowrepo/internal/exclude"
	"github.com/mmr-tortoise/shadowrepo/internal/git"
	"github.com/mmr-tortoise/shadowrepo/internal/locator"
	"github.com/mmr-tortoise/shadowrepo/internal/model"
	"github.com/mmr-tortoise/shadowrepo/internal/queue"
	"github.com/mmr-tortoise/shadowrepo/internal/shadow"
)

// app bundles what every subcommand needs: resolved configuration, the
// manager and the per-repository serializer.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	locator *locator.Locator
	manager *shadow.Manager
	queue   *queue.Serializer
	out     io.Writer
}

// newApp loads configuration and wires the manager for cmd.
func newApp(cmd *cobra.Command) (*app, error) {
	logger := newLogger(cmd.ErrOrStderr())

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if storageRoot != "" {
		root, err := filepath.Abs(storageRoot)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --storage path", err)
		}
		cfg.StorageRoot = root
	}
	if cfg.Path != "" {
		logger.Debug().Str("path", cfg.Path).Msg("Loaded config file")
	}
	logger.Debug().Str("storage", cfg.StorageRoot).Msg("Using storage root")

	settings := cfg.Settings()
	loc := locator.New(cfg.StorageRoot, settings)
	gitLogger := logger.With().Str("component", "git").Logger()
	manager, err := shadow.NewManager(shadow.Options{
		Locator:        loc,
		Settings:       &settings,
		Opener:         git.NewOpener(cfg.GitBinary, gitLogger),
		DetachedOpener: git.NewDetachedOpener(cfg.GitBinary, gitLogger),
		Exclusions:     exclude.NewSource(settings, cfg.Exclude),
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		locator: loc,
		manager: manager,
		queue:   queue.NewSerializer(queue.WithLockFile(lockPathFor)),
		out:     cmd.OutOrStdout(),
	}, nil
}

// lockPathFor places a repository's lock file next to the directory that
// holds its metadata, outside anything a reset or clean can touch.
func lockPathFor(metadataPath string) string {
	return filepath.Dir(metadataPath) + ".lock"
}

// serialize runs fn while holding the lock for repo.
func (a *app) serialize(ctx context.Context, repo locator.Repository, fn func(ctx context.Context) error) error {
	return a.queue.Do(ctx, repo.MetadataPath, fn)
}

// serializeAll runs fn while holding the locks of every repo, taken in
// slice order. Callers list repositories in the same order everywhere.
func (a *app) serializeAll(ctx context.Context, repos []locator.Repository, fn func(ctx context.Context) error) error {
	if len(repos) == 0 {
		return fn(ctx)
	}
	return a.serialize(ctx, repos[0], func(ctx context.Context) error {
		return a.serializeAll(ctx, repos[1:], fn)
	})
}

// newLogger builds the CLI logger: warn level by default, debug with
// --verbose, JSON lines with --json and a console format otherwise.
func newLogger(w io.Writer) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	if jsonOutput {
		return zerolog.New(w).Level(level).With().Timestamp().Logger()
	}

	noColor := true
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		noColor = false
		w = colorable.NewColorable(f)
	}
	console := zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: time.Kitchen}
	return zerolog.New(console).Level(level).With().Timestamp().Logger()
}

// absWorkspace returns the absolute workspace path for arg, or the
// current directory when arg is empty. The directory need not exist.
//
// Repositories are keyed by the absolute path, so every command must go
// through here (or resolveWorkspace) before touching the locator.
func absWorkspace(arg string) (string, error) {
	if arg == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", model.WrapCLIError(model.ExitGeneralError, "failed to determine current directory", err)
		}
		return wd, nil
	}

	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("invalid workspace path %q", arg), err)
	}
	return abs, nil
}

// resolveWorkspace is absWorkspace for an existing directory.
func resolveWorkspace(arg string) (string, error) {
	abs, err := absWorkspace(arg)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("workspace not found: %s", abs), err)
	}
	if !info.IsDir() {
		return "", model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("workspace is not a directory: %s", abs))
	}
	return abs, nil
}

// validateTask turns an invalid task identifier into a usage error.
func validateTask(taskID string) error {
	if err := model.ValidateTaskID(taskID); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid task id", err)
	}
	return nil
}
