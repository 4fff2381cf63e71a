package storage

import (
	// Registers the "postgres" driver.
	_ "github.com/lib/pq"
	// Registers the "sqlite3" driver.
	_ "github.com/mattn/go-sqlite3"
)
