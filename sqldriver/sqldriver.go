// Package sqldriver is a concrete dbpool.Driver over database/sql,
// registered against github.com/lib/pq so dbpool can front a real
// Postgres server. It is the domain-stack counterpart to the teacher
// repo's net.go/http.go concrete drivers, adapted from raw TCP/HTTP to
// SQL.
//
// Each dbpool connection maps to exactly one reserved *sql.Conn
// (DB.Conn(ctx) against a *sql.DB capped at MaxOpenConns(1)), so dbpool
// never ends up pooling on top of another pool.
package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/rbt/dbpool"
)

// Driver opens dbpool.Connections backed by a single reserved
// database/sql connection apiece. name is interpreted as a data source
// name (DSN); args, if non-empty, is appended to name as "key=value"
// pairs in the libpq connection-string format.
type Driver struct {
	// SQLName is the database/sql driver name to open against (default
	// "postgres", the name github.com/lib/pq registers itself under).
	// Exposed so tests can substitute a fake database/sql/driver.Driver
	// without a live server.
	SQLName string
}

// New returns a Driver ready to be used as dbpool.Options.Driver, wired
// to github.com/lib/pq.
func New() *Driver { return &Driver{SQLName: "postgres"} }

// Connect implements dbpool.Driver.
func (d *Driver) Connect(ctx context.Context, name string, args map[string]string) (dbpool.Connection, error) {
	dsn := buildDSN(name, args)

	sqlName := d.SQLName
	if sqlName == "" {
		sqlName = "postgres"
	}

	db, err := sql.Open(sqlName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqldriver: open: %w", err)
	}
	// Exactly one underlying connection: dbpool owns the pooling, this
	// *sql.DB is just a handle to a single reserved session.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqldriver: conn: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("sqldriver: ping: %w", err)
	}

	return &sqlConnection{db: db, conn: conn}, nil
}

func buildDSN(name string, args map[string]string) string {
	dsn := name
	for k, v := range args {
		dsn += fmt.Sprintf(" %s='%s'", k, v)
	}
	return dsn
}

// sqlConnection implements dbpool.Connection over a single reserved
// *sql.Conn.
type sqlConnection struct {
	db   *sql.DB
	conn *sql.Conn
}

// Conn exposes the underlying *sql.Conn for running queries and
// transactions; dbpool never calls this itself.
func (c *sqlConnection) Conn() *sql.Conn { return c.conn }

func (c *sqlConnection) Ping(ctx context.Context) bool {
	return c.conn.PingContext(ctx) == nil
}

// SupportsReuse is always true: libpq sessions survive DISCARD ALL.
func (c *sqlConnection) SupportsReuse() bool { return true }

// ScrubForReuse resets all session-local state a prior caller may have
// left behind: temp tables, prepared statements, session variables,
// advisory locks (the GLOSSARY's "Scrub" entry, in one statement).
func (c *sqlConnection) ScrubForReuse(ctx context.Context) error {
	_, err := c.conn.ExecContext(ctx, "DISCARD ALL")
	return err
}

func (c *sqlConnection) RawDisconnect() {
	c.conn.Close()
	c.db.Close()
}
