package migration

import (
	"fmt"

	"github.com/verdantlabs/delegraph/config"
)

// NewMigratorFromDatabaseConfig builds a migrator for the relational job
// store described by cfg. The sqlite DSN is a plain file path.
func NewMigratorFromDatabaseConfig(cfg config.DatabaseConfig) (Migrator, error) {
	dbType, err := ParseDatabaseType(cfg.Driver)
	if err != nil {
		return nil, err
	}

	url := cfg.DSN
	if dbType == DatabaseTypeSQLite {
		url = fmt.Sprintf("file:%s?mode=rwc&_foreign_keys=on", cfg.DSN)
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  url,
	})
}

// NewMigratorFromURL builds a migrator from an explicit driver name and
// connection URL, bypassing the config layer.
func NewMigratorFromURL(driver, url string) (Migrator, error) {
	dbType, err := ParseDatabaseType(driver)
	if err != nil {
		return nil, err
	}

	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  url,
	})
}
