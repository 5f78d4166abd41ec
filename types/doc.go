// Package types provides the shared data model of the delegraph runtime.
//
// It defines the caller-facing delegation types (Brief, Request), the
// mutable execution record for one brief (Job) together with its legal
// lifecycle transitions (JobState), and the structured Error type used
// across the framework.
package types
