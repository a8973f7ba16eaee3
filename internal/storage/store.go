// Package storage is the backing-store adapter (component A): it executes
// parameterized statements against a single-file SQLite database and
// exposes the STATIC/OBJECT/SCAN tables that the block manager and GC
// state machine build on. It owns schema creation and the persisted
// Metadata record; it has no notion of blocks, references, or garbage
// collection beyond storing and retrieving the bytes the caller hands it.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
)

func init() {
	// Avoid the ~220ms WASM JIT compile cost on every process start.
	cacheDir := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "blockstore", "wasm")
	}
	var cache wazero.CompilationCache
	if cacheDir != "" {
		if c, err := wazero.NewCompilationCacheWithDir(cacheDir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

const schema = `
CREATE TABLE IF NOT EXISTS STATIC (data BLOB NOT NULL);
CREATE TABLE IF NOT EXISTS OBJECT (
	id   INTEGER PRIMARY KEY,
	gc   BOOLEAN NOT NULL,
	data BLOB NOT NULL,
	ref  BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS SCAN (id INTEGER NOT NULL);
`

// Querier is satisfied by both *sql.DB and *sql.Tx. Every low-level
// accessor in this package takes one so callers can run it either
// standalone or inside a transaction, matching the block manager's need
// to reuse its single open *sql.Tx for most of a user transaction's work.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the open connection to a single-file SQLite database holding
// the block store schema.
type Store struct {
	db     *sql.DB
	path   string
	log    zerolog.Logger
	closed bool
}

// Options configures Open.
type Options struct {
	// BusyTimeout bounds how long SQLite waits on a locked database
	// before giving up. Zero selects the default of 30 seconds.
	BusyTimeout time.Duration
	Log         zerolog.Logger
}

// Open opens (creating if necessary) the database file at path and
// ensures the STATIC/OBJECT/SCAN schema exists. It does not itself read
// or validate Metadata; callers do that via ReadMetadata after Open
// returns, so they can distinguish "schema just created" from "schema
// pre-existing but incompatible".
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 30 * time.Second
	}
	timeoutMs := int64(opts.BusyTimeout / time.Millisecond)

	var connStr string
	if path == ":memory:" {
		connStr = "file:memdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=busy_timeout(" +
			fmt.Sprint(timeoutMs) + ")"
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("storage: create directory: %w", err)
			}
		}
		connStr = fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, timeoutMs)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", backendErr(err))
	}
	// Single writer, single process: one connection keeps SQLite's
	// single-writer semantics and the block manager's flat-transaction
	// model trivially correct.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: enable WAL: %w", backendErr(err))
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: enable foreign keys: %w", backendErr(err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping database: %w", backendErr(err))
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create schema: %w", backendErr(err))
	}

	s := &Store{db: db, path: path, log: opts.Log}
	s.log.Debug().Str("path", path).Msg("storage opened")
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return backendErr(err)
	}
	return nil
}

// DB returns the underlying *sql.DB for use as a Querier outside any
// transaction (e.g. read-only CLI inspection).
func (s *Store) DB() *sql.DB { return s.db }

// BeginTx starts a new backing-store transaction.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: begin transaction: %w", backendErr(err))
	}
	return tx, nil
}

// --- STATIC (Metadata) ---

// ReadMetadata returns the persisted Metadata record, or (zero, false, nil)
// if STATIC has never been populated (a brand-new file).
func (s *Store) ReadMetadata(ctx context.Context, q Querier) (Metadata, bool, error) {
	row := q.QueryRowContext(ctx, "SELECT data FROM STATIC LIMIT 1")
	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return Metadata{}, false, nil
		}
		return Metadata{}, false, fmt.Errorf("storage: read metadata: %w", backendErr(err))
	}
	m, err := decodeMetadata(data)
	if err != nil {
		return Metadata{}, false, err
	}
	return m, true, nil
}

// WriteMetadata persists m, replacing whatever STATIC currently holds.
func (s *Store) WriteMetadata(ctx context.Context, q Querier, m Metadata) error {
	buf := encodeMetadata(m)
	if _, err := q.ExecContext(ctx, "DELETE FROM STATIC"); err != nil {
		return fmt.Errorf("storage: clear metadata: %w", backendErr(err))
	}
	if _, err := q.ExecContext(ctx, "INSERT INTO STATIC (data) VALUES (?)", buf); err != nil {
		return fmt.Errorf("storage: write metadata: %w", backendErr(err))
	}
	return nil
}

// --- OBJECT ---

// InsertEmptyObject inserts a fresh, empty-payload row with the given mark
// color and returns its allocated id. Used by the allocator to pre-create
// a batch of rows ahead of demand.
func (s *Store) InsertEmptyObject(ctx context.Context, q Querier, mark bool) (uint64, error) {
	res, err := q.ExecContext(ctx, "INSERT INTO OBJECT (id, gc, data, ref) VALUES (NULL, ?, X'', X'')", mark)
	if err != nil {
		return 0, fmt.Errorf("storage: allocate object: %w", backendErr(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: allocate object: %w", backendErr(err))
	}
	return uint64(id), nil
}

// ReadObject returns the payload and ref list for id.
func (s *Store) ReadObject(ctx context.Context, q Querier, id uint64) ([]byte, []uint64, error) {
	row := q.QueryRowContext(ctx, "SELECT data, ref FROM OBJECT WHERE id = ?", id)
	var data, ref []byte
	if err := row.Scan(&data, &ref); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, fmt.Errorf("storage: object %d does not exist", id)
		}
		return nil, nil, fmt.Errorf("storage: read object %d: %w", id, backendErr(err))
	}
	refs, err := decodeRefs(ref)
	if err != nil {
		return nil, nil, err
	}
	return data, refs, nil
}

// WriteObject overwrites id's payload, ref list and mark color and
// returns the mark color the row carried immediately beforehand, needed
// by the Scanning-phase write barrier. The read and the
// update run as two statements over the same connection inside the
// caller's transaction, so they are atomic with respect to everything
// else this single-writer store does.
func (s *Store) WriteObject(ctx context.Context, q Querier, id uint64, payload []byte, refs []uint64, mark bool) (prevMark bool, err error) {
	if err := q.QueryRowContext(ctx, "SELECT gc FROM OBJECT WHERE id = ?", id).Scan(&prevMark); err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("storage: write object %d: object does not exist", id)
		}
		return false, fmt.Errorf("storage: write object %d: %w", id, backendErr(err))
	}
	if _, err := q.ExecContext(ctx, "UPDATE OBJECT SET data = ?, ref = ?, gc = ? WHERE id = ?",
		payload, encodeRefs(refs), mark, id); err != nil {
		return false, fmt.Errorf("storage: write object %d: %w", id, backendErr(err))
	}
	return prevMark, nil
}

// MarkReachable recolors id to mark if its current color is not already
// mark, returning whether the row matched and, if so, its ref list. This
// is the Scanning-step recolor-and-expand primitive: blocks already
// carrying mark are left untouched and reported unmatched (silently
// skipped).
func (s *Store) MarkReachable(ctx context.Context, q Querier, id uint64, mark bool) (matched bool, refs []uint64, err error) {
	row := q.QueryRowContext(ctx,
		"UPDATE OBJECT SET gc = ? WHERE id = ? AND gc != ? RETURNING ref", mark, id, mark)
	var ref []byte
	if err := row.Scan(&ref); err != nil {
		if err == sql.ErrNoRows {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("storage: mark object %d: %w", id, backendErr(err))
	}
	refs, err = decodeRefs(ref)
	if err != nil {
		return false, nil, err
	}
	return true, refs, nil
}

// CountObjects returns |OBJECT|.
func (s *Store) CountObjects(ctx context.Context, q Querier) (uint64, error) {
	var n uint64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM OBJECT").Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count objects: %w", backendErr(err))
	}
	return n, nil
}

// MaxObjectID returns the largest id in OBJECT, or 0 if empty.
func (s *Store) MaxObjectID(ctx context.Context, q Querier) (uint64, error) {
	var n sql.NullInt64
	if err := q.QueryRowContext(ctx, "SELECT MAX(id) FROM OBJECT").Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: max object id: %w", backendErr(err))
	}
	if !n.Valid {
		return 0, nil
	}
	return uint64(n.Int64), nil
}

// IDsInRange returns up to limit ids in OBJECT with id >= from, ascending.
func (s *Store) IDsInRange(ctx context.Context, q Querier, from uint64, limit int) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, "SELECT id FROM OBJECT WHERE id >= ? ORDER BY id ASC LIMIT ?", from, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list object ids: %w", backendErr(err))
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: list object ids: %w", backendErr(err))
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDeadInRange deletes OBJECT rows with id in [from, to) whose mark
// color is not liveMark, i.e. the blocks the current sweep cursor has
// proven dead in this slice of the id space.
func (s *Store) DeleteDeadInRange(ctx context.Context, q Querier, from, to uint64, liveMark bool) (int64, error) {
	res, err := q.ExecContext(ctx, "DELETE FROM OBJECT WHERE id >= ? AND id < ? AND gc != ?", from, to, liveMark)
	if err != nil {
		return 0, fmt.Errorf("storage: sweep [%d,%d): %w", from, to, backendErr(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("storage: sweep [%d,%d): %w", from, to, backendErr(err))
	}
	return n, nil
}

// --- SCAN queue ---

// ScanPush inserts ids into the SCAN queue.
func (s *Store) ScanPush(ctx context.Context, q Querier, ids []uint64) error {
	for _, id := range ids {
		if _, err := q.ExecContext(ctx, "INSERT INTO SCAN (id) VALUES (?)", id); err != nil {
			return fmt.Errorf("storage: push scan queue: %w", backendErr(err))
		}
	}
	return nil
}

// ScanRow is one popped SCAN queue entry.
type ScanRow struct {
	RowID int64
	ID    uint64
}

// ScanPopBatch returns up to limit of the newest SCAN rows (LIFO, giving
// the scan its depth-first character) without deleting them; the caller
// deletes by RowID once it has processed them.
func (s *Store) ScanPopBatch(ctx context.Context, q Querier, limit int) ([]ScanRow, error) {
	rows, err := q.QueryContext(ctx, "SELECT rowid, id FROM SCAN ORDER BY rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("storage: pop scan queue: %w", backendErr(err))
	}
	defer rows.Close()
	var out []ScanRow
	for rows.Next() {
		var r ScanRow
		if err := rows.Scan(&r.RowID, &r.ID); err != nil {
			return nil, fmt.Errorf("storage: pop scan queue: %w", backendErr(err))
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScanDelete removes the given SCAN rows by rowid.
func (s *Store) ScanDelete(ctx context.Context, q Querier, rowIDs []int64) error {
	for _, id := range rowIDs {
		if _, err := q.ExecContext(ctx, "DELETE FROM SCAN WHERE rowid = ?", id); err != nil {
			return fmt.Errorf("storage: delete scan row: %w", backendErr(err))
		}
	}
	return nil
}

// ScanEmpty reports whether the SCAN queue currently holds no rows.
func (s *Store) ScanEmpty(ctx context.Context, q Querier) (bool, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM SCAN").Scan(&n); err != nil {
		return false, fmt.Errorf("storage: scan queue count: %w", backendErr(err))
	}
	return n == 0, nil
}

// ClearScan empties the SCAN queue outright; used when resetting a
// GC cycle's allocator/queue state is simpler than draining it row by row.
func (s *Store) ClearScan(ctx context.Context, q Querier) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM SCAN"); err != nil {
		return fmt.Errorf("storage: clear scan queue: %w", backendErr(err))
	}
	return nil
}
