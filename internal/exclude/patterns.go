// Package exclude produces and writes the ignore patterns that keep large,
// binary, generated and secret files out of checkpoint tracking.
//
// Patterns come from three places, in this order:
//  1. built-in groups (build output, media, caches, env files, archives,
//     databases, logs) plus the nested-repository marker directory
//  2. Git LFS patterns declared in the workspace's .gitattributes
//  3. extra patterns from the user configuration
//
// The result is written to <metadata>/info/exclude, which git honours for
// `ls-files --exclude-standard` without touching the user's own .gitignore.
package exclude

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

var (
	buildPatterns = []string{
		".gradle/", ".idea/", ".next/", ".nuxt/", ".parcel-cache/", ".pytest_cache/",
		".sass-cache/", ".vs/", ".vscode/", "Pods/", "__pycache__/", "bin/", "build/",
		"bundle/", "coverage/", "deps/", "dist/", "env/", "node_modules/", "obj/",
		"out/", "target/", "temp/", "venv/", ".venv/",
	}

	mediaPatterns = []string{
		"*.jpg", "*.jpeg", "*.png", "*.gif", "*.bmp", "*.ico", "*.webp", "*.tiff", "*.tif",
		"*.svgz", "*.heic", "*.psd", "*.raw",
		"*.mp3", "*.wav", "*.flac", "*.ogg", "*.aac", "*.m4a",
		"*.mp4", "*.mov", "*.avi", "*.mkv", "*.webm", "*.wmv",
		"*.ttf", "*.otf", "*.woff", "*.woff2", "*.eot",
	}

	cachePatterns = []string{
		".cache/", "*.cache", "*.tmp", "*.temp", "*.swp", "*.swo", "*.pyc", "*.pyo",
		".DS_Store", "Thumbs.db",
	}

	envPatterns = []string{
		".env", ".env.*", "*.local", "*.development", "*.production",
	}

	archivePatterns = []string{
		"*.zip", "*.tar", "*.gz", "*.tgz", "*.bz2", "*.xz", "*.rar", "*.7z", "*.iso", "*.dmg",
		"*.exe", "*.dll", "*.so", "*.dylib", "*.o", "*.a", "*.class", "*.jar", "*.war",
		"*.pdf", "*.bin",
	}

	databasePatterns = []string{
		"*.db", "*.sqlite", "*.sqlite3", "*.mdb", "*.db-journal", "*.db-wal", "*.db-shm",
		"*.parquet", "*.arrow", "*.h5", "*.hdf5", "*.npy", "*.npz", "*.pkl", "*.pt", "*.onnx",
	}

	logPatterns = []string{
		"*.log", "logs/", "*.log.*",
	}
)

// DefaultPatterns returns the built-in pattern groups plus the marker
// directory used while nested repositories are suppressed.
func DefaultPatterns(settings model.Settings) []string {
	groups := [][]string{
		{settings.DisabledMetadataDirName() + "/"},
		buildPatterns,
		mediaPatterns,
		cachePatterns,
		envPatterns,
		archivePatterns,
		databasePatterns,
		logPatterns,
	}
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Source computes the exclusion pattern set for a workspace and writes it
// to a shadow repository.
type Source struct {
	settings model.Settings
	extra    []string
}

// NewSource returns a Source that appends extra to the built-in and LFS
// patterns.
func NewSource(settings model.Settings, extra []string) *Source {
	return &Source{settings: settings, extra: slices.Clone(extra)}
}

// Patterns returns the ordered, de-duplicated pattern set for
// workspacePath. A missing .gitattributes is not an error.
func (s *Source) Patterns(workspacePath string) ([]string, error) {
	lfs, err := LFSPatterns(workspacePath)
	if err != nil {
		return nil, err
	}

	all := DefaultPatterns(s.settings)
	all = append(all, lfs...)
	all = append(all, s.extra...)
	return dedupe(all), nil
}

// Write writes patterns to metadataPath/info/exclude.
func (s *Source) Write(metadataPath string, patterns []string) error {
	return WriteFile(metadataPath, patterns)
}

// LFSPatterns returns the patterns of .gitattributes entries that route
// files through the Git LFS filter (filter=lfs). LFS-tracked files are
// large by definition and are not checkpointed.
func LFSPatterns(workspacePath string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(workspacePath, ".gitattributes"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read .gitattributes: %w", err)
	}
	return parseLFSAttributes(data), nil
}

func parseLFSAttributes(data []byte) []string {
	var patterns []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if slices.Contains(fields[1:], "filter=lfs") {
			patterns = append(patterns, fields[0])
		}
	}
	return patterns
}

// WriteFile writes patterns, one per line, to metadataPath/info/exclude,
// replacing any previous content.
func WriteFile(metadataPath string, patterns []string) error {
	infoDir := filepath.Join(metadataPath, "info")
	if err := os.MkdirAll(infoDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", infoDir, err)
	}

	var buf strings.Builder
	for _, p := range patterns {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}

	path := filepath.Join(infoDir, "exclude")
	if err := os.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func dedupe(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
