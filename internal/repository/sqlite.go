package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync/atomic"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/standardbeagle/uidmgr/internal/debug"
	uiderrors "github.com/standardbeagle/uidmgr/internal/errors"
	"github.com/standardbeagle/uidmgr/internal/keys"
	"github.com/standardbeagle/uidmgr/internal/uid"
	"github.com/standardbeagle/uidmgr/internal/version"
)

// ErrNotFound is returned by Load when no record exists under the key
var ErrNotFound = errors.New("record not found")

// SQLiteOptions configures OpenSQLite
type SQLiteOptions struct {
	// Manager binds canonical handles to loaded records; nil leaves them unbound
	Manager *uid.Manager
	// Compress enables zstd payload compression at Level
	Compress bool
	Level    int
}

// SQLite persists records as JSON payloads in a single table
type SQLite struct {
	db      *sql.DB
	path    string
	manager *uid.Manager
	codec   *payloadCodec
	gets    atomic.Int64
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path
func OpenSQLite(path string, opts SQLiteOptions) (*SQLite, error) {
	if path == "" {
		return nil, uiderrors.NewArgumentError("OpenSQLite", "path", "must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; sqlite would otherwise report SQLITE_BUSY
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS entities (
			key TEXT PRIMARY KEY,
			unit INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS entities_unit ON entities(unit)`,
		`CREATE TABLE IF NOT EXISTS meta (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	if err := checkFormat(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT INTO meta(name,value) VALUES('build_id',?) ON CONFLICT(name) DO UPDATE SET value=excluded.value`, version.BuildID()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("write meta: %w", err)
	}

	codec, err := newPayloadCodec(opts.Compress, opts.Level)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	debug.LogRepository("opened sqlite repository %s (compress=%v)\n", path, opts.Compress)
	return &SQLite{db: db, path: path, manager: opts.Manager, codec: codec}, nil
}

// checkFormat records the payload format of a new database and rejects one
// written in another format
func checkFormat(db *sql.DB) error {
	want := strconv.Itoa(version.PayloadFormat)
	var got string
	err := db.QueryRow(`SELECT value FROM meta WHERE name = 'format'`).Scan(&got)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec(`INSERT INTO meta(name,value) VALUES('format',?)`, want); err != nil {
			return fmt.Errorf("write meta: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read meta: %w", err)
	case got != want:
		return uiderrors.NewRepositoryError("open", "format", fmt.Errorf("payload format %s, want %s", got, want))
	}
	return nil
}

// Put upserts r under r.Key
func (s *SQLite) Put(ctx context.Context, r *Record) error {
	if r == nil {
		return uiderrors.NewArgumentError("Put", "record", "must not be nil")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return uiderrors.NewRepositoryError("put", r.Key.String(), err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO entities(key,unit,payload) VALUES(?,?,?) ON CONFLICT(key) DO UPDATE SET unit=excluded.unit, payload=excluded.payload`,
		r.Key.String(), r.Key.Unit, s.codec.encode(data)); err != nil {
		return uiderrors.NewRepositoryError("put", r.Key.String(), err)
	}
	return nil
}

// Load reads the record under key and binds its handle. A missing record
// returns ErrNotFound.
func (s *SQLite) Load(ctx context.Context, key keys.Key) (*Record, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM entities WHERE key = ?`, key.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, uiderrors.NewRepositoryError("load", key.String(), err)
	}

	data, err := s.codec.decode(payload)
	if err != nil {
		return nil, uiderrors.NewRepositoryError("load", key.String(), err)
	}
	r := &Record{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, uiderrors.NewRepositoryError("load", key.String(), err)
	}
	r.Key = key
	if s.manager != nil {
		if err := r.bind(s.manager); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Get implements uid.Repository; a missing record is nil with no error
func (s *SQLite) Get(ctx context.Context, key uid.Key) (any, error) {
	s.gets.Add(1)
	k, err := asKey("Get", key)
	if err != nil {
		return nil, err
	}
	r, err := s.Load(ctx, k)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes the record under key
func (s *SQLite) Delete(ctx context.Context, key keys.Key) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE key = ?`, key.String())
	if err != nil {
		return false, uiderrors.NewRepositoryError("delete", key.String(), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, uiderrors.NewRepositoryError("delete", key.String(), err)
	}
	return n > 0, nil
}

// DropPartition removes every record of unit
func (s *SQLite) DropPartition(ctx context.Context, unit uint32) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE unit = ?`, unit)
	if err != nil {
		return 0, uiderrors.NewRepositoryError("drop partition", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, uiderrors.NewRepositoryError("drop partition", "", err)
	}
	debug.LogRepository("dropped %d records of unit %d\n", n, unit)
	return int(n), nil
}

// Keys returns the stored keys of unit in key order
func (s *SQLite) Keys(ctx context.Context, unit uint32) ([]keys.Key, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entities WHERE unit = ?`, unit)
	if err != nil {
		return nil, uiderrors.NewRepositoryError("keys", "", err)
	}
	defer func() { _ = rows.Close() }()

	var out []keys.Key
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, uiderrors.NewRepositoryError("keys", "", err)
		}
		k, err := keys.Parse(text)
		if err != nil {
			return nil, uiderrors.NewRepositoryError("keys", text, err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, uiderrors.NewRepositoryError("keys", "", err)
	}
	slices.SortFunc(out, func(a, b keys.Key) int { return a.Compare(b) })
	return out, nil
}

// Count returns the number of stored records
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&n); err != nil {
		return 0, uiderrors.NewRepositoryError("count", "", err)
	}
	return n, nil
}

// BuildID returns the build fingerprint of the last binary that opened the database
func (s *SQLite) BuildID(ctx context.Context) (string, error) {
	var id string
	if err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE name = 'build_id'`).Scan(&id); err != nil {
		return "", uiderrors.NewRepositoryError("meta", "build_id", err)
	}
	return id, nil
}

func (s *SQLite) PartitionOf(key uid.Key) int {
	return keys.Partition(key)
}

// Gets returns the number of Get calls served
func (s *SQLite) Gets() int64 {
	return s.gets.Load()
}

// Path returns the database path
func (s *SQLite) Path() string { return s.path }

// Close releases the database and the payload codec
func (s *SQLite) Close() error {
	s.codec.close()
	return s.db.Close()
}
