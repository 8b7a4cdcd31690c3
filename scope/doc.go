// Package scope binds parallel handles to a structured-concurrency scope.
// A scope owns the handles spawned in it, propagates cancellation and errors
// according to a policy, and releases unconsumed handles when it joins.
package scope
