// Package all links every storage backend into the binary.
package all

import (
	_ "recordnorm/internal/storage/mssql"
	_ "recordnorm/internal/storage/mysql"
	_ "recordnorm/internal/storage/postgres"
	_ "recordnorm/internal/storage/sqlite"
)
