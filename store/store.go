// Package store is the durable record source: a single sqlite database of
// login accounting events. It only supplies records; all session reasoning
// lives in the engine package.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ncruces/go-strftime"
	_ "modernc.org/sqlite"

	"github.com/lastdb/lastdb/model"
	"github.com/lastdb/lastdb/timefmt"
)

// DefaultPath is the system-wide database location.
const DefaultPath = "/var/lib/lastdb/lastdb.db"

const schema = `
CREATE TABLE IF NOT EXISTS wtmp (
	ID         INTEGER PRIMARY KEY AUTOINCREMENT,
	Type       INTEGER,
	User       TEXT NOT NULL,
	Login      INTEGER,
	Logout     INTEGER,
	TTY        TEXT,
	RemoteHost TEXT,
	Service    TEXT
);`

const readCols = `ID, Type, User, Login, Logout, TTY, RemoteHost, Service`

// DB is an open login accounting database.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens the database at path for writing, creating the file and schema
// when necessary. An empty path means DefaultPath.
func Open(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &DB{db: db, path: path}, nil
}

// OpenRead opens an existing database for reading. A missing file is an
// error rather than a silently created empty database.
func OpenRead(path string) (*DB, error) {
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{db: db, path: path}, nil
}

// Path returns the database file location.
func (d *DB) Path() string { return d.path }

// Close releases the database handle.
func (d *DB) Close() error { return d.db.Close() }

// Append records a new login or boot marker and returns its id. Ids are
// sqlite rowids: opaque, monotonic, consumed only by writers.
func (d *DB) Append(kind model.Kind, user string, login uint64, tty, host, service string) (int64, error) {
	res, err := d.db.Exec(
		`INSERT INTO wtmp (Type, User, Login, TTY, RemoteHost, Service) VALUES (?, ?, ?, ?, ?, ?)`,
		int(kind), user, int64(login), tty, host, service)
	if err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	return res.LastInsertId()
}

// CloseSession sets the logout time of an open entry.
func (d *DB) CloseSession(id int64, logout uint64) error {
	res, err := d.db.Exec(`UPDATE wtmp SET Logout = ? WHERE ID = ?`, int64(logout), id)
	if err != nil {
		return fmt.Errorf("close entry %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no entry with id %d", id)
	}
	return nil
}

// OpenID returns the id of the most recent entry on tty that has no logout.
func (d *DB) OpenID(tty string) (int64, error) {
	var id int64
	err := d.db.QueryRow(
		`SELECT ID FROM wtmp WHERE TTY = ? AND Logout IS NULL ORDER BY Login DESC LIMIT 1`,
		tty).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no open entry for %s", tty)
	}
	if err != nil {
		return 0, fmt.Errorf("look up open entry for %s: %w", tty, err)
	}
	return id, nil
}

// BootTime returns the most recently recorded boot time in microseconds.
func (d *DB) BootTime() (uint64, error) {
	var login int64
	err := d.db.QueryRow(
		`SELECT Login FROM wtmp WHERE Type = ? ORDER BY Login DESC LIMIT 1`,
		int(model.Boot)).Scan(&login)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no boot entry recorded")
	}
	if err != nil {
		return 0, fmt.Errorf("read boot entry: %w", err)
	}
	return uint64(login), nil
}

// Read starts a newest-first pass over all records. With uniq set, only the
// most recent record of each user is returned; the reconstruction engine
// relies on the query doing this, not on post-filtering.
func (d *DB) Read(uniq bool) (*Iterator, error) {
	q := `SELECT ` + readCols + ` FROM wtmp ORDER BY Login DESC`
	if uniq {
		q = `SELECT ` + readCols + ` FROM wtmp
			WHERE (User, Login) IN (SELECT User, MAX(Login) FROM wtmp GROUP BY User)
			ORDER BY Login DESC`
	}
	rows, err := d.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("read entries: %w", err)
	}
	return &Iterator{rows: rows}, nil
}

// Iterator yields records newest first. A malformed row (missing or
// non-numeric login time) is a protocol violation: the pass stops and Err
// reports it. There is no skip-and-continue path.
type Iterator struct {
	rows *sql.Rows
	cur  model.Record
	err  error
}

// Next advances to the next record; it returns false at the end of the
// stream or on the first malformed row.
func (it *Iterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}

	var (
		kind           int64
		login, logout  sql.NullInt64
		tty, host, svc sql.NullString
	)
	rec := model.Record{}
	if err := it.rows.Scan(&rec.ID, &kind, &rec.User, &login, &logout, &tty, &host, &svc); err != nil {
		it.err = fmt.Errorf("mangled entry: %w", err)
		return false
	}
	if !login.Valid {
		it.err = fmt.Errorf("mangled entry %d: missing login time", rec.ID)
		return false
	}

	rec.Kind = model.Kind(kind)
	rec.Login = uint64(login.Int64)
	if logout.Valid {
		rec.Logout = uint64(logout.Int64)
		rec.HasLogout = true
	}
	rec.TTY = "?"
	if tty.Valid {
		rec.TTY = tty.String
	}
	rec.Host = host.String
	rec.Service = svc.String
	it.cur = rec
	return true
}

// Record returns the record Next advanced to.
func (it *Iterator) Record() model.Record { return it.cur }

// Err reports the first malformed-row or cursor error of the pass.
func (it *Iterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

// Close releases the cursor.
func (it *Iterator) Close() error { return it.rows.Close() }

// Rotate moves entries older than days into a timestamped backup database
// next to the live one. It returns the number of entries moved and the
// backup path (zero and empty when nothing qualified).
func (d *DB) Rotate(days int) (int64, string, error) {
	now := time.Now()
	cutoff := int64(uint64(now.Unix())*timefmt.UsecPerSec - uint64(days)*86400*timefmt.UsecPerSec)

	var n int64
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM wtmp WHERE Login < ?`, cutoff).Scan(&n); err != nil {
		return 0, "", fmt.Errorf("count old entries: %w", err)
	}
	if n == 0 {
		return 0, "", nil
	}

	backup := d.path + "_" + strftime.Format("%Y%m%d%H%M%S", now)

	// ATTACH is per-connection state, so pin one connection for the whole
	// copy+delete sequence.
	ctx := context.Background()
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return 0, "", err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `ATTACH DATABASE ? AS backup`, backup); err != nil {
		return 0, "", fmt.Errorf("attach backup database: %w", err)
	}
	defer conn.ExecContext(ctx, `DETACH DATABASE backup`)

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, "", err
	}
	defer tx.Rollback()

	steps := []struct {
		q    string
		args []any
	}{
		{`CREATE TABLE backup.wtmp (
			ID         INTEGER PRIMARY KEY AUTOINCREMENT,
			Type       INTEGER,
			User       TEXT NOT NULL,
			Login      INTEGER,
			Logout     INTEGER,
			TTY        TEXT,
			RemoteHost TEXT,
			Service    TEXT
		)`, nil},
		{`INSERT INTO backup.wtmp SELECT ` + readCols + ` FROM wtmp WHERE Login < ?`, []any{cutoff}},
		{`DELETE FROM wtmp WHERE Login < ?`, []any{cutoff}},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.q, s.args...); err != nil {
			return 0, "", fmt.Errorf("rotate entries: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, "", err
	}
	return n, backup, nil
}
