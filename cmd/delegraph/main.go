// Command delegraph runs delegation plans from the command line.
//
// Usage:
//
//	delegraph run --plan plan.yaml            # execute a delegation plan
//	delegraph run --config config.yaml ...    # with an explicit config file
//	delegraph migrate up                      # apply database migrations
//	delegraph version                         # show version information
package main

import (
	"fmt"
	"os"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runRun(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("delegraph %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`delegraph - delegation graph scheduler

Usage:
  delegraph <command> [options]

Commands:
  run       Execute a delegation plan
  migrate   Database migration commands
  version   Show version information
  help      Show this help message

Options for 'run':
  --plan <path>     Path to the delegation plan (YAML, required)
  --config <path>   Path to configuration file (YAML)
  --json            Print the full result as JSON instead of the summary

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Rollback the last migration
  migrate reset     Rollback all migrations
  migrate version   Show current migration version

Examples:
  delegraph run --plan plan.yaml
  delegraph run --plan plan.yaml --config /etc/delegraph/config.yaml
  delegraph migrate up --db-type sqlite --db-url file:./delegraph.db
  delegraph version`)
}
