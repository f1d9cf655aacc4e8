package contentdb

import (
	"database/sql"
	"fmt"

	"github.com/holiman/uint256"
)

// Statistics holds the prepared, read-only accounting queries, compiled
// once at construction and reused for the database's lifetime.
type Statistics struct {
	db *sql.DB

	pageCountStmt    *sql.Stmt
	pageSizeStmt     *sql.Stmt
	freelistStmt     *sql.Stmt
	contentSizeStmt  *sql.Stmt
	contentCountStmt *sql.Stmt
	largestDistStmt  *sql.Stmt
}

func newStatistics(db *sql.DB) (*Statistics, error) {
	s := &Statistics{db: db}
	var err error
	if s.pageCountStmt, err = db.Prepare("PRAGMA page_count;"); err != nil {
		return nil, fmt.Errorf("contentdb: prepare page_count: %w", err)
	}
	if s.pageSizeStmt, err = db.Prepare("PRAGMA page_size;"); err != nil {
		return nil, fmt.Errorf("contentdb: prepare page_size: %w", err)
	}
	if s.freelistStmt, err = db.Prepare("PRAGMA freelist_count;"); err != nil {
		return nil, fmt.Errorf("contentdb: prepare freelist_count: %w", err)
	}
	if s.contentSizeStmt, err = db.Prepare("SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kvstore;"); err != nil {
		return nil, fmt.Errorf("contentdb: prepare content size: %w", err)
	}
	if s.contentCountStmt, err = db.Prepare("SELECT COUNT(*) FROM kvstore;"); err != nil {
		return nil, fmt.Errorf("contentdb: prepare content count: %w", err)
	}
	if s.largestDistStmt, err = db.Prepare("SELECT MAX(xorDistance(?, key)) FROM kvstore;"); err != nil {
		return nil, fmt.Errorf("contentdb: prepare largest distance: %w", err)
	}
	return s, nil
}

// Size returns the total on-disk size in bytes: page_count * page_size. It
// reflects peak usage, not live content — deletions do not shrink it until a
// Vacuum.
func (s *Statistics) Size() uint64 {
	return s.pragmaUint64(s.pageCountStmt) * s.pragmaUint64(s.pageSizeStmt)
}

// UnusedSize returns the free-list size in bytes: freelist_count * page_size.
func (s *Statistics) UnusedSize() uint64 {
	return s.pragmaUint64(s.freelistStmt) * s.pragmaUint64(s.pageSizeStmt)
}

// UsedSize is Size() - UnusedSize(): the physical footprint the OS sees,
// and the quantity PutAndPrune compares against StorageCapacity.
func (s *Statistics) UsedSize() uint64 {
	size, unused := s.Size(), s.UnusedSize()
	if unused > size {
		return 0
	}
	return size - unused
}

// ContentSize is the sum of value lengths: the pure payload total, and the
// denominator Eviction expresses its deletion target as a fraction of.
func (s *Statistics) ContentSize() uint64 {
	var n int64
	row := s.contentSizeStmt.QueryRow()
	if err := row.Scan(&n); err != nil {
		fatal("content size query failed", "err", err)
	}
	return uint64(n)
}

// ContentCount is the number of stored rows.
func (s *Statistics) ContentCount() uint64 {
	var n int64
	row := s.contentCountStmt.QueryRow()
	if err := row.Scan(&n); err != nil {
		fatal("content count query failed", "err", err)
	}
	return uint64(n)
}

// GetLargestDistance returns MAX(xorDistance(origin, key)) over all stored
// ids. O(n): a full scan. ContentSize and ContentCount are full scans as
// well (SUM and COUNT over the table); only Size and UnusedSize, which read
// page-count pragmas, are constant time. Returns the zero value when the
// store is empty.
func (s *Statistics) GetLargestDistance(origin LocalId) *uint256.Int {
	var b []byte
	row := s.largestDistStmt.QueryRow(origin.Bytes())
	if err := row.Scan(&b); err != nil {
		if err == sql.ErrNoRows {
			return new(uint256.Int)
		}
		fatal("largest distance query failed", "err", err)
	}
	if b == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).SetBytes32(b)
}

func (s *Statistics) pragmaUint64(stmt *sql.Stmt) uint64 {
	var n int64
	if err := stmt.QueryRow().Scan(&n); err != nil {
		fatal("pragma query failed", "err", err)
	}
	return uint64(n)
}

// Snapshot bundles the size and content statistics in one value, for
// the maintenance CLI's "stats" subcommand and for tests asserting several
// invariants at once.
type Snapshot struct {
	Size         uint64
	UnusedSize   uint64
	UsedSize     uint64
	ContentSize  uint64
	ContentCount uint64
}

// TakeSnapshot computes a Snapshot in one call, running each statistics
// query in turn. GetLargestDistance is omitted —
// it needs an origin and is O(n); callers that need it call it directly.
func (s *Statistics) TakeSnapshot() Snapshot {
	return Snapshot{
		Size:         s.Size(),
		UnusedSize:   s.UnusedSize(),
		UsedSize:     s.UsedSize(),
		ContentSize:  s.ContentSize(),
		ContentCount: s.ContentCount(),
	}
}

func (s *Statistics) close() {
	for _, stmt := range []*sql.Stmt{
		s.pageCountStmt, s.pageSizeStmt, s.freelistStmt,
		s.contentSizeStmt, s.contentCountStmt, s.largestDistStmt,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
}
