// Package sqlite writes aggregate tables to a SQLite database file for
// dashboard collaborators who don't read parquet.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pilosa/bikeshare"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Open opens (creating if needed) the database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enabling WAL")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return db, nil
}

func sqlType(t bikeshare.ColumnType) string {
	switch t {
	case bikeshare.Integer, bikeshare.Boolean:
		return "INTEGER"
	case bikeshare.Float:
		return "REAL"
	}
	return "TEXT"
}

func quote(ident string) string {
	return `"` + strings.Replace(ident, `"`, `""`, -1) + `"`
}

// value converts a table value to what the driver stores. Timestamps are
// RFC 3339 text in UTC and geometries are WKT.
func value(v interface{}) interface{} {
	switch v := v.(type) {
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bikeshare.Geometry:
		return v.WKT()
	}
	return v
}

// WriteTable replaces the SQLite table named after the contract with the
// contract's columns of t, in one transaction. Non-null contract columns are
// declared NOT NULL and the contract's first key becomes the primary key.
func WriteTable(ctx context.Context, db *sql.DB, t *bikeshare.Table, c *bikeshare.Contract) error {
	sel, err := c.Conform(t)
	if err != nil {
		return errors.Wrapf(err, "conforming '%s'", t.Name())
	}
	defs := make([]string, 0, len(c.Columns)+1)
	for _, col := range c.Columns {
		def := quote(col.Name) + " " + sqlType(col.Type)
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if len(c.Keys) > 0 {
		key := make([]string, len(c.Keys[0]))
		for i, k := range c.Keys[0] {
			key[i] = quote(k)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(key, ", ")+")")
	}
	name := quote(c.Name)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback() // no-op after commit

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+name); err != nil {
		return errors.Wrapf(err, "dropping %s", c.Name)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, strings.Join(defs, ", "))); err != nil {
		return errors.Wrapf(err, "creating %s", c.Name)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(c.Columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", name, marks))
	if err != nil {
		return errors.Wrap(err, "preparing insert")
	}
	defer stmt.Close()
	args := make([]interface{}, len(c.Columns))
	for i := 0; i < sel.Len(); i++ {
		for j, v := range sel.Row(i) {
			args[j] = value(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return errors.Wrapf(err, "inserting row %d into %s", i, c.Name)
		}
	}
	return errors.Wrap(tx.Commit(), "committing")
}
