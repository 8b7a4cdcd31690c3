// Package par provides a parallel-capable unit of work for Go.
// A handle returned by Go owns the task it spawned: awaiting the handle
// delivers the task's result, and releasing (or losing) the handle sends a
// best-effort cancellation to the task so no work outlives its handle.
package par
