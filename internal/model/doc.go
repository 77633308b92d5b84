// Package model defines the shared values and error types for shadowrepo.
//
// This package contains pure data structures with no external dependencies.
// The fixed configuration applied to every shadow repository (identity,
// signing, branch prefix, nested-repository marker suffix) lives in a single
// Settings value so that initialization and verification never disagree.
//
// The package also defines the domain error taxonomy (ShadowError and its
// sentinel kinds), exit codes (ExitCode), and the CLIError type that carries
// an exit code for proper OS process exit handling.
package model
