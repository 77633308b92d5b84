// Package shadow manages the lifecycle of shadow repositories: git
// repositories whose metadata lives in tool-owned storage and whose
// working tree is bound, through core.worktree, to a user's workspace.
//
// The Manager creates and verifies repositories (Initialize), moves HEAD
// between task branches (SwitchToTaskBranch), deletes task branches even
// when they are checked out (DeleteBranch, DeleteTaskBranch), hides nested
// repositories while the whole tree is staged (Suppress) and stages
// checkpoint files (AddCheckpointFiles).
//
// The Manager holds no locks and caches no repository state. Callers must
// serialize operations per repository themselves, e.g. with
// queue.Serializer keyed by metadata path.
package shadow
