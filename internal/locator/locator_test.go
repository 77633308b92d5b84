package locator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/shadowrepo/internal/model"
)

// fixedHash makes paths predictable in assertions.
func fixedHash(string) string { return "abc123" }

// probeSet records which paths were probed and answers from a set.
type probeSet struct {
	present map[string]bool
	probed  []string
}

func (p *probeSet) exists(path string) bool {
	p.probed = append(p.probed, path)
	return p.present[path]
}

func TestLocator_Paths(t *testing.T) {
	l := New("/storage", model.DefaultSettings(), WithHasher(fixedHash))

	legacy := l.Legacy("t3")
	assert.Equal(t, Legacy, legacy.Kind)
	assert.Equal(t, filepath.Join("/storage", "tasks", "t3", "checkpoints", ".git"), legacy.MetadataPath)
	assert.Equal(t, filepath.Join("/storage", "tasks", "t3", "checkpoints"), legacy.Dir())
	assert.Equal(t, "t3", legacy.TaskID)
	assert.True(t, legacy.IsLegacy())

	shared := l.BranchPerTask("/home/u/project")
	assert.Equal(t, BranchPerTask, shared.Kind)
	assert.Equal(t, filepath.Join("/storage", "checkpoints", "abc123", ".git"), shared.MetadataPath)
	assert.Equal(t, "abc123", shared.WorkspaceHash)
	assert.False(t, shared.IsLegacy())
}

// TestLocator_ExistsLegacyPrecedence verifies the legacy path wins and the
// branch-per-task path is not even probed when the legacy one exists.
func TestLocator_ExistsLegacyPrecedence(t *testing.T) {
	probe := &probeSet{present: map[string]bool{
		filepath.Join("/storage", "tasks", "t3", "checkpoints", ".git"): true,
		filepath.Join("/storage", "checkpoints", "abc123", ".git"):      true,
	}}
	l := New("/storage", model.DefaultSettings(), WithHasher(fixedHash), WithExists(probe.exists))

	assert.True(t, l.Exists("t3", "/home/u/project"))
	assert.Equal(t, []string{filepath.Join("/storage", "tasks", "t3", "checkpoints", ".git")}, probe.probed)
}

func TestLocator_ExistsFallsBackToBranchPerTask(t *testing.T) {
	tests := []struct {
		name    string
		present map[string]bool
		want    bool
	}{
		{
			name:    "only branch-per-task",
			present: map[string]bool{filepath.Join("/storage", "checkpoints", "abc123", ".git"): true},
			want:    true,
		},
		{
			name:    "neither",
			present: map[string]bool{},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := &probeSet{present: tt.present}
			l := New("/storage", model.DefaultSettings(), WithHasher(fixedHash), WithExists(probe.exists))
			assert.Equal(t, tt.want, l.Exists("t1", "/home/u/project"))
			assert.Len(t, probe.probed, 2, "legacy probed first, then branch-per-task")
		})
	}
}

func TestLocator_Resolve(t *testing.T) {
	legacyPath := filepath.Join("/storage", "tasks", "old", "checkpoints", ".git")
	probe := &probeSet{present: map[string]bool{legacyPath: true}}
	l := New("/storage", model.DefaultSettings(), WithHasher(fixedHash), WithExists(probe.exists))

	assert.Equal(t, Legacy, l.Resolve("old", "/ws").Kind)
	assert.Equal(t, BranchPerTask, l.Resolve("new", "/ws").Kind)
	assert.Equal(t, BranchPerTask, l.Resolve("", "/ws").Kind)
}

// TestLocator_RealFilesystem exercises the default probe against a
// temporary storage root.
func TestLocator_RealFilesystem(t *testing.T) {
	root := t.TempDir()
	l := New(root, model.DefaultSettings())

	assert.False(t, l.Exists("t3", "/ws"))

	require.NoError(t, os.MkdirAll(l.Legacy("t3").MetadataPath, 0o755))
	assert.True(t, l.Exists("t3", "/ws"))
	assert.True(t, l.PathExists(l.Legacy("t3").MetadataPath))
	assert.False(t, l.Exists("t4", "/ws"))
}

func TestHashWorkspace(t *testing.T) {
	h := HashWorkspace("/home/u/project")
	assert.Len(t, h, 16)
	assert.Regexp(t, `^[0-9a-f]{16}$`, h)

	assert.Equal(t, h, HashWorkspace("/home/u/project"), "stable across calls")
	assert.Equal(t, h, HashWorkspace("/home/u/project/"), "trailing separator ignored")
	assert.Equal(t, h, HashWorkspace("/home/u/./project"), "cleaned before hashing")
	assert.NotEqual(t, h, HashWorkspace("/home/u/other"))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "branch-per-task", BranchPerTask.String())
	assert.Equal(t, "legacy", Legacy.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}
