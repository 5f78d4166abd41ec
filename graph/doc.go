// Package graph validates delegation requests and builds the per-request
// dependency graph the scheduler executes.
//
// The builder rejects malformed graphs (duplicate ids, self or missing
// dependencies, cycles, size and depth limits) before any job is created,
// so an invalid request produces zero side effects.
package graph
