// Package all wires every built-in storage backend into the storage factory.
//
// Importing it for side effects registers the "postgres", "mssql",
// "mysql" and "sqlite" kinds with storage.New.
package all

import (
	_ "kaggleelt/internal/storage/mssql"
	_ "kaggleelt/internal/storage/mysql"
	_ "kaggleelt/internal/storage/postgres"
	_ "kaggleelt/internal/storage/sqlite"
)
