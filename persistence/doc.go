// Package persistence provides the write-behind audit sink for delegation
// jobs and their lifecycle events.
//
// The scheduler writes every job mutation through a JobStore; it never
// reads one back during a run. Reads (GetJob, ListJobs, ListEvents) exist
// for operators and tests.
//
// Supported backends:
//   - Memory: for development and testing (default)
//   - Redis: for distributed deployments
//   - Gorm: relational storage (sqlite, mysql, postgres)
//   - Mongo: document storage
package persistence
