// Package git is the version-control adapter for shadow repositories.
//
// All shadow repository operations go through the narrow Client interface
// (config get/set, local branch listing, checkout, checkout of a new branch,
// reset, clean, rev-parse, commit, add and a raw escape hatch). The CLI
// implementation shells out to the git binary via os/exec rather than using
// a Go git library, so that core.worktree, info/exclude and
// core.precomposeUnicode behave exactly as in the user's own git.
//
// Fake is an in-memory Client for tests that need to script failures,
// lagging HEAD reads and command ordering without a subprocess.
package git
