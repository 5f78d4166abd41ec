package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/verdantlabs/delegraph/config"
	"github.com/verdantlabs/delegraph/internal/migration"
)

// runMigrate handles the migrate command and its subcommands.
func runMigrate(args []string) {
	if len(args) < 1 {
		printMigrateUsage()
		os.Exit(1)
	}

	subcommand := args[0]
	subargs := args[1:]

	switch subcommand {
	case "up":
		withMigrator(subcommand, subargs, func(ctx context.Context, m migration.Migrator) error {
			if err := m.Up(ctx); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		})
	case "down":
		withMigrator(subcommand, subargs, func(ctx context.Context, m migration.Migrator) error {
			if err := m.Down(ctx); err != nil {
				return err
			}
			fmt.Println("rolled back one migration")
			return nil
		})
	case "reset":
		withMigrator(subcommand, subargs, func(ctx context.Context, m migration.Migrator) error {
			if err := m.DownAll(ctx); err != nil {
				return err
			}
			fmt.Println("rolled back all migrations")
			return nil
		})
	case "version":
		withMigrator(subcommand, subargs, func(ctx context.Context, m migration.Migrator) error {
			version, dirty, err := m.Version(ctx)
			if err != nil {
				return err
			}
			if dirty {
				fmt.Printf("version %d (dirty)\n", version)
			} else {
				fmt.Printf("version %d\n", version)
			}
			return nil
		})
	case "help", "-h", "--help":
		printMigrateUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown migrate subcommand: %s\n", subcommand)
		printMigrateUsage()
		os.Exit(1)
	}
}

// withMigrator builds a migrator from flags and runs fn against it,
// exiting nonzero on any error.
func withMigrator(name string, args []string, fn func(context.Context, migration.Migrator) error) {
	fs := flag.NewFlagSet("migrate "+name, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql, sqlite)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	fs.Parse(args)

	var (
		migrator migration.Migrator
		err      error
	)

	if *dbType != "" && *dbURL != "" {
		migrator, err = migration.NewMigratorFromURL(*dbType, *dbURL)
	} else {
		loader := config.NewLoader()
		if *configPath != "" {
			loader = loader.WithConfigPath(*configPath)
		}

		var cfg *config.Config
		cfg, err = loader.Load()
		if err == nil {
			if *dbType != "" {
				cfg.Store.Database.Driver = *dbType
			}
			migrator, err = migration.NewMigratorFromDatabaseConfig(cfg.Store.Database)
		}
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer migrator.Close()

	if err := fn(context.Background(), migrator); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

func printMigrateUsage() {
	fmt.Println(`Database Migration Commands

Usage:
  delegraph migrate <subcommand> [options]

Subcommands:
  up        Apply all pending migrations
  down      Rollback the last migration
  reset     Rollback all migrations
  version   Show current migration version
  help      Show this help message

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  delegraph migrate up
  delegraph migrate up --config /etc/delegraph/config.yaml
  delegraph migrate up --db-type sqlite --db-url file:./delegraph.db
  delegraph migrate version`)
}
