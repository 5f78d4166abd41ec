// Package scheduler executes delegation graphs: it validates a request into
// a DAG of jobs, runs ready jobs in bounded concurrent batches, retries
// failed attempts, cascades cancellation through dependents of failed jobs,
// and records every lifecycle transition to the configured job store.
package scheduler
