// Package migration manages the schema of the relational job store. SQL
// files for sqlite, postgres and mysql are embedded in the binary and
// applied through golang-migrate, so deployments never need the migration
// files on disk.
package migration
