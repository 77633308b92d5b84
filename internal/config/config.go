// Package config loads the user configuration for shadowrepo.
//
// The file may be JSON with comments (shadowrepo.jsonc, parsed with
// github.com/tidwall/jsonc and encoding/json) or YAML (parsed with
// gopkg.in/yaml.v3). Every field is optional; a missing file means
// defaults.
//
// Lookup order:
//  1. the --config flag
//  2. $SHADOWREPO_CONFIG
//  3. <UserConfigDir>/shadowrepo/config.jsonc, config.yaml, config.yml
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// EnvConfigPath names the environment variable holding a config file path.
const EnvConfigPath = "SHADOWREPO_CONFIG"

// appName is the directory name used under the user config and cache dirs.
const appName = "shadowrepo"

// candidateNames are tried in order inside the user config directory.
var candidateNames = []string{"config.jsonc", "config.yaml", "config.yml"}

// fileConfig mirrors the on-disk format.
type fileConfig struct {
	// StorageRoot is where shadow repositories are kept. Relative paths
	// are resolved against the config file's directory, and a leading ~/
	// against the home directory.
	StorageRoot string `json:"storage_root" yaml:"storage_root"`

	// GitBinary overrides the git executable looked up on PATH.
	GitBinary string `json:"git_binary" yaml:"git_binary"`

	// Exclude adds patterns to the built-in exclusion set.
	Exclude []string `json:"exclude" yaml:"exclude"`

	// VerifyInterval is a Go duration string ("50ms") for the pause
	// between HEAD verification reads.
	VerifyInterval string `json:"verify_interval" yaml:"verify_interval"`
}

// Config is the resolved configuration.
type Config struct {
	// Path is the file the configuration was read from, or "" for
	// defaults.
	Path string

	StorageRoot    string
	GitBinary      string
	Exclude        []string
	VerifyInterval time.Duration
}

// Default returns the configuration used when no file is present.
func Default() (Config, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return Config{}, fmt.Errorf("failed to determine cache directory: %w", err)
	}
	return Config{
		StorageRoot:    filepath.Join(cacheDir, appName),
		VerifyInterval: model.DefaultSettings().VerifyInterval,
	}, nil
}

// Settings returns model.DefaultSettings with the configured overrides.
func (c Config) Settings() model.Settings {
	s := model.DefaultSettings()
	if c.VerifyInterval > 0 {
		s.VerifyInterval = c.VerifyInterval
	}
	return s
}

// Load resolves the config file (explicit path first, then the lookup
// order) and merges it over Default. An explicit path that does not exist
// is an error; an absent discovered file is not.
func Load(explicit string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	path, err := Discover(explicit, os.Getenv)
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		return cfg, nil
	}
	return LoadFile(path, cfg)
}

// Discover returns the config file to read, or "" when none exists.
// explicit and the environment variable must name existing files.
func Discover(explicit string, getenv func(string) string) (string, error) {
	for _, p := range []string{explicit, getenv(EnvConfigPath)} {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return "", model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("config file not found: %s", p), err)
		}
		return p, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		// No config directory (e.g., $HOME unset): run on defaults.
		return "", nil
	}
	for _, name := range candidateNames {
		p := filepath.Join(configDir, appName, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// LoadFile parses path and applies its values over base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	raw, err := parse(path, data)
	if err != nil {
		return Config{}, err
	}

	cfg := base
	cfg.Path = path
	if raw.StorageRoot != "" {
		root, err := resolvePath(raw.StorageRoot, filepath.Dir(path))
		if err != nil {
			return Config{}, err
		}
		cfg.StorageRoot = root
	}
	if raw.GitBinary != "" {
		cfg.GitBinary = raw.GitBinary
	}
	if len(raw.Exclude) > 0 {
		cfg.Exclude = append([]string(nil), raw.Exclude...)
	}
	if raw.VerifyInterval != "" {
		d, err := time.ParseDuration(raw.VerifyInterval)
		if err != nil {
			return Config{}, fmt.Errorf("invalid verify_interval %q in %s: %w", raw.VerifyInterval, path, err)
		}
		if d < 0 {
			return Config{}, fmt.Errorf("verify_interval must not be negative in %s", path)
		}
		cfg.VerifyInterval = d
	}
	return cfg, nil
}

// parse decodes data by file extension. Unknown extensions are tried as
// JSONC, which also accepts plain JSON.
func parse(path string, data []byte) (fileConfig, error) {
	var raw fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fileConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return fileConfig{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return raw, nil
}

// resolvePath expands a leading ~/ and makes p absolute relative to base.
func resolvePath(p, base string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Join(fmt.Errorf("cannot expand %q", p), err)
		}
		p = filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p), nil
}
