package locator

import (
	"encoding/hex"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// workspaceDomain separates workspace path hashes from any other BLAKE3
// use. Changing it moves every branch-per-task repository.
const workspaceDomain = "shadowrepo.workspace\x00"

// hashLen is the number of digest bytes kept in the directory name.
const hashLen = 8

// HashWorkspace returns a stable identifier for a workspace path: the first
// 8 bytes of the BLAKE3 digest of the cleaned path, hex encoded. Paths that
// differ only by a trailing separator or "." segments hash identically.
func HashWorkspace(workspacePath string) string {
	sum := blake3.Sum256([]byte(workspaceDomain + filepath.Clean(workspacePath)))
	return hex.EncodeToString(sum[:hashLen])
}
