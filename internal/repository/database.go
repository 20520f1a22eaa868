package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"bazaar-api/internal/model"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name        string
	numbered    bool // $1, $2 placeholders instead of ?
	returningID bool // INSERT ... RETURNING id instead of LastInsertId
	schema      []string
	isDuplicate func(err error) bool
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Database is an open SQL connection pool with its dialect.
// Both SQL stores can share one Database.
type Database struct {
	db      *sql.DB
	dialect dialect
}

// Driver returns the backend name: sqlite, postgres or mysql.
func (d *Database) Driver() string {
	return d.dialect.name
}

// PingContext verifies the connection is alive.
func (d *Database) PingContext(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the underlying pool. Safe to call more than once.
func (d *Database) Close() error {
	return d.db.Close()
}

// migrate creates the tables if they do not exist and brings stored item
// definitions in line with the single-unit rule.
func (d *Database) migrate(ctx context.Context) error {
	for _, stmt := range d.dialect.schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	if _, err := d.normalizeItems(ctx); err != nil {
		return fmt.Errorf("failed to normalize items: %w", err)
	}
	return nil
}

// normalizeItems rewrites item definitions stored with a unit count other
// than 1 and returns how many rows changed.
func (d *Database) normalizeItems(ctx context.Context) (int, error) {
	type fix struct {
		id   int64
		data string
	}

	rows, err := d.query(ctx, d.db, `SELECT id, item_data FROM items`)
	if err != nil {
		return 0, err
	}
	var fixes []fix
	for rows.Next() {
		var f fix
		if err := rows.Scan(&f.id, &f.data); err != nil {
			rows.Close()
			return 0, err
		}
		if normalized := model.NormalizeItemData(f.data); normalized != f.data {
			fixes = append(fixes, fix{f.id, normalized})
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, f := range fixes {
		if _, err := d.exec(ctx, d.db, `UPDATE items SET item_data = ? WHERE id = ?`, f.data, f.id); err != nil {
			return 0, err
		}
	}
	return len(fixes), nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (d *Database) exec(ctx context.Context, q queryer, query string, args ...interface{}) (sql.Result, error) {
	return q.ExecContext(ctx, d.dialect.rebind(query), args...)
}

func (d *Database) query(ctx context.Context, q queryer, query string, args ...interface{}) (*sql.Rows, error) {
	return q.QueryContext(ctx, d.dialect.rebind(query), args...)
}

func (d *Database) queryRow(ctx context.Context, q queryer, query string, args ...interface{}) *sql.Row {
	return q.QueryRowContext(ctx, d.dialect.rebind(query), args...)
}

// insert runs an INSERT and returns the generated id.
func (d *Database) insert(ctx context.Context, q queryer, query string, args ...interface{}) (int64, error) {
	if d.dialect.returningID {
		var id int64
		if err := d.queryRow(ctx, q, query+" RETURNING id", args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := d.exec(ctx, q, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// exists reports whether a row with the given id is present in table.
func (d *Database) exists(ctx context.Context, q queryer, table string, id int64) (bool, error) {
	var n int
	err := d.queryRow(ctx, q, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// requireRow turns "no rows affected" into ErrNotFound when the row is really gone.
// MySQL reports zero affected rows for an UPDATE that writes the same value.
func (d *Database) requireRow(ctx context.Context, q queryer, res sql.Result, table string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	ok, err := d.exists(ctx, q, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
