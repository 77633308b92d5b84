// Package queue serializes work on shadow repositories.
//
// The shadow manager performs no locking of its own: at most one operation
// may run against a repository at a time, and that is the caller's job.
// Serializer provides it. Operations on the same key run one after another
// while different keys proceed concurrently. An optional advisory file
// lock extends the exclusion to other processes on platforms with flock(2).
package queue
