package store

import (
	"fmt"

	"mindcare/internal/config"
)

// Open builds the backend selected by STORE_DRIVER.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreFile, "":
		return NewFileStore(cfg.StorePath)
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.StoreDriver)
	}
}
