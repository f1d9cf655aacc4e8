package contentdb

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/portalnetwork/contentdb/log"
)

// memoryDBSeq hands out a distinct name per in-memory store so that two
// Open calls in the same process never land on the same shared-cache
// database: "file::memory:?cache=shared" is shared by name across every
// connection that uses it, not just within one *sql.DB's pool.
var memoryDBSeq int64

const schemaSQL = `CREATE TABLE IF NOT EXISTS kvstore (
	key   BLOB PRIMARY KEY,
	value BLOB
);`

// KVBackend is a thin wrapper over the embedded SQL store: it owns the file
// handle, write-ahead-log semantics, and checkpoint/vacuum primitives, and
// exposes byte-keyed get/put/contains/delete plus access to the underlying
// *sql.DB for the prepared statements Statistics and Eviction need.
//
// All errors surface as fatal: there is no meaningful local recovery
// for a corrupt store or a failed disk.
type KVBackend struct {
	db *sql.DB

	getStmt      *sql.Stmt
	putStmt      *sql.Stmt
	containsStmt *sql.Stmt
	delStmt      *sql.Stmt
}

// openKVBackend opens (creating if necessary) the store at path, or an
// in-memory store when path is empty or inMemory is true, registers the
// distance scalar functions, creates the schema, and prepares the four core
// statements. Opening is expensive — callers are expected to do this once,
// eagerly, at node boot.
func openKVBackend(path string, inMemory bool, manualCheckpoint bool) (*KVBackend, error) {
	registerDistanceFunctions()

	dsn := path
	if inMemory || path == "" {
		seq := atomic.AddInt64(&memoryDBSeq, 1)
		dsn = fmt.Sprintf("file:contentdb-mem-%d?mode=memory&cache=shared", seq)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("contentdb: open: %w", err)
	}
	// A single connection keeps the in-memory database's content stable
	// across calls and sidesteps sqlite's "database is locked"
	// surprises under the single-writer assumption.
	db.SetMaxOpenConns(1)

	journalMode := "DELETE"
	if !inMemory && path != "" {
		journalMode = "WAL"
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA journal_mode=%s;", journalMode)); err != nil {
		db.Close()
		return nil, fmt.Errorf("contentdb: set journal_mode: %w", err)
	}
	if manualCheckpoint {
		if _, err := db.Exec("PRAGMA wal_autocheckpoint=0;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("contentdb: disable auto checkpoint: %w", err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("contentdb: create schema: %w", err)
	}

	kv := &KVBackend{db: db}
	if err := kv.prepare(); err != nil {
		db.Close()
		return nil, err
	}
	return kv, nil
}

func (kv *KVBackend) prepare() error {
	var err error
	if kv.getStmt, err = kv.db.Prepare("SELECT value FROM kvstore WHERE key = ?"); err != nil {
		return fmt.Errorf("contentdb: prepare get: %w", err)
	}
	if kv.putStmt, err = kv.db.Prepare("INSERT OR REPLACE INTO kvstore (key, value) VALUES (?, ?)"); err != nil {
		return fmt.Errorf("contentdb: prepare put: %w", err)
	}
	if kv.containsStmt, err = kv.db.Prepare("SELECT 1 FROM kvstore WHERE key = ?"); err != nil {
		return fmt.Errorf("contentdb: prepare contains: %w", err)
	}
	if kv.delStmt, err = kv.db.Prepare("DELETE FROM kvstore WHERE key = ?"); err != nil {
		return fmt.Errorf("contentdb: prepare del: %w", err)
	}
	return nil
}

// Get reads the value stored under id. The bool reports presence; a false
// with a nil error is the ordinary "absent" result, not an error.
func (kv *KVBackend) Get(id ContentId) ([]byte, bool) {
	var value []byte
	err := kv.getStmt.QueryRow(id.Bytes()).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		fatal("get failed", "id", id, "err", err)
	}
	return value, true
}

// GetOrErr returns the value stored for id using the (value, error)
// convention of go-ethereum's ethdb.KeyValueReader (whose Get returns
// leveldb's ErrNotFound rather than a bool), for callers driving KVBackend
// directly that prefer idiomatic Go error handling over GetHandler's
// bool-based contract. Returns ErrNotFound when absent — still not a
// backend failure: only I/O and corruption are fatal.
func (kv *KVBackend) GetOrErr(id ContentId) ([]byte, error) {
	v, ok := kv.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

// Put inserts or replaces the value stored under id. Overwrite of an
// existing id is atomic (single-row INSERT OR REPLACE).
func (kv *KVBackend) Put(id ContentId, value []byte) {
	if _, err := kv.putStmt.Exec(id.Bytes(), value); err != nil {
		fatal("put failed", "id", id, "err", err)
	}
}

// Contains reports whether id has a stored value.
func (kv *KVBackend) Contains(id ContentId) bool {
	var one int
	err := kv.containsStmt.QueryRow(id.Bytes()).Scan(&one)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		fatal("contains failed", "id", id, "err", err)
	}
	return true
}

// Del deletes id if present. Idempotent: deleting an absent id is a no-op.
func (kv *KVBackend) Del(id ContentId) {
	if _, err := kv.delStmt.Exec(id.Bytes()); err != nil {
		fatal("delete failed", "id", id, "err", err)
	}
}

// Vacuum repacks the file, releasing free pages back to the OS. It does not
// shrink logically-deleted-but-not-yet-reclaimed space until called.
func (kv *KVBackend) Vacuum() {
	if _, err := kv.db.Exec("VACUUM;"); err != nil {
		fatal("vacuum failed", "err", err)
	}
	log.Notice("contentdb: vacuum complete")
}

// Checkpoint runs a write-ahead-log checkpoint; it does not itself check
// whether manual checkpointing is enabled (reclaimAndTruncate does). truncate
// selects the TRUNCATE checkpoint mode (shrinking the WAL file to zero bytes)
// over the default PASSIVE mode.
func (kv *KVBackend) Checkpoint(truncate bool) {
	mode := "PASSIVE"
	if truncate {
		mode = "TRUNCATE"
	}
	if _, err := kv.db.Exec(fmt.Sprintf("PRAGMA wal_checkpoint(%s);", mode)); err != nil {
		fatal("checkpoint failed", "err", err)
	}
}

// Close disposes prepared statements first, then the underlying handle, so
// no statement outlives the connection it was prepared on.
func (kv *KVBackend) Close() error {
	for _, stmt := range []*sql.Stmt{kv.getStmt, kv.putStmt, kv.containsStmt, kv.delStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return kv.db.Close()
}
