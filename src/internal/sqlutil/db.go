// Package sqlutil holds the database types shared by the stores, and the knowledge of which SQL
// dialect a connection speaks.
package sqlutil

import (
	"github.com/jmoiron/sqlx"
)

const (
	ProtocolPostgres = "postgres"
	ProtocolSQLite   = "sqlite"
)

// Driver names registered with database/sql.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

func init() {
	// sqlx does not know the pure-Go driver's name; without this Rebind would leave
	// placeholders alone only by accident.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// DB is an alias for sqlx.DB, the database handle used throughout the project.
type DB = sqlx.DB

// Tx is an alias for sqlx.Tx, the transaction type used throughout the project.
type Tx = sqlx.Tx

// Dialect identifies the flavour of SQL a connection understands.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectPostgres
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// DialectOf returns the dialect of a connection, based on its driver.
func DialectOf(db interface{ DriverName() string }) Dialect {
	switch db.DriverName() {
	case DriverPostgres, "postgres":
		return DialectPostgres
	case DriverSQLite, "sqlite3":
		return DialectSQLite
	default:
		return DialectUnknown
	}
}
