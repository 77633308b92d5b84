// Package locator computes where a shadow repository's metadata lives.
//
// Two on-disk layouts coexist and are never migrated between:
//
//	legacy:          <storage>/tasks/<taskID>/checkpoints/.git
//	branch-per-task: <storage>/checkpoints/<hash(workspace)>/.git
//
// A Repository value carries which layout it belongs to (Kind) together
// with its metadata path, so branch and deletion logic switch on the kind
// instead of threading an isLegacy flag through every call.
package locator
