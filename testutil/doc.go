// Package testutil provides shared helpers for tests: bounded test
// contexts, polling assertions, and builders for delegation requests.
package testutil
