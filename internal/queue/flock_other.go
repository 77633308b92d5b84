//go:build !(darwin || linux)

package queue

import "context"

// lockFile is a no-op where flock(2) is unavailable; only in-process
// serialization applies.
func lockFile(ctx context.Context, path string) (func() error, error) {
	return func() error { return nil }, nil
}
