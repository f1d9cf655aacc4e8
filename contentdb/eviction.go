package contentdb

import (
	"database/sql"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/portalnetwork/contentdb/log"
)

// EvictionResult carries the outcome of deleteContentFraction: how much was
// freed, and where the new "furthest held" boundary sits.
type EvictionResult struct {
	FurthestRemainingDistance *uint256.Int
	DeletedBytes              uint64
	TotalContentSize          uint64
	DeletedCount              uint64
}

// deleteContentFraction deletes content ordered by descending distance from
// target until a target byte budget (fraction * total content size) is
// freed. It streams the cursor and stops on the first row that would
// exceed the budget, returning that row's distance — it is still held — and
// the running totals. It does not vacuum; space is reclaimed lazily.
//
// When the furthest row alone already exceeds the budget, nothing is deleted
// and the result is (that row's distance, 0, totalContentSize, 0); when the
// table is empty, the result is (0, 0, 0, 0). Both cases return early,
// before any delete transaction is opened.
func deleteContentFraction(db *sql.DB, stats *Statistics, target LocalId, fraction float64) (EvictionResult, error) {
	if fraction <= 0 || fraction >= 1 {
		return EvictionResult{}, fmt.Errorf("contentdb: fraction must be in (0,1), got %v", fraction)
	}

	totalContentSize := stats.ContentSize()
	budget := uint64(fraction * float64(totalContentSize))

	rows, err := db.Query(
		"SELECT key, LENGTH(value), xorDistance(?, key) FROM kvstore ORDER BY xorDistance(?, key) DESC",
		target.Bytes(), target.Bytes(),
	)
	if err != nil {
		fatal("eviction scan failed", "err", err)
	}
	defer rows.Close()

	type candidate struct {
		key []byte
		len uint64
	}
	var toDelete []candidate
	var deletedBytes uint64
	furthestRemaining := new(uint256.Int)
	sawRow := false

	for rows.Next() {
		var key, dist []byte
		var length int64
		if err := rows.Scan(&key, &length, &dist); err != nil {
			fatal("eviction scan row failed", "err", err)
		}
		sawRow = true
		if deletedBytes+uint64(length) > budget {
			furthestRemaining = new(uint256.Int).SetBytes32(dist)
			break
		}
		deletedBytes += uint64(length)
		toDelete = append(toDelete, candidate{key: key, len: uint64(length)})
	}
	if err := rows.Err(); err != nil {
		fatal("eviction scan iteration failed", "err", err)
	}
	rows.Close()

	if !sawRow {
		return EvictionResult{
			FurthestRemainingDistance: furthestRemaining,
			DeletedBytes:              0,
			TotalContentSize:          totalContentSize,
			DeletedCount:              0,
		}, nil
	}

	if len(toDelete) == 0 {
		return EvictionResult{
			FurthestRemainingDistance: furthestRemaining,
			DeletedBytes:              0,
			TotalContentSize:          totalContentSize,
			DeletedCount:              0,
		}, nil
	}

	tx, err := db.Begin()
	if err != nil {
		fatal("eviction delete transaction begin failed", "err", err)
	}
	delStmt, err := tx.Prepare("DELETE FROM kvstore WHERE key = ?")
	if err != nil {
		fatal("eviction delete prepare failed", "err", err)
	}
	defer delStmt.Close()
	for _, c := range toDelete {
		if _, err := delStmt.Exec(c.key); err != nil {
			fatal("eviction delete failed", "err", err)
		}
	}
	if err := tx.Commit(); err != nil {
		fatal("eviction delete commit failed", "err", err)
	}

	// If every row was consumed without exceeding budget, the furthest
	// remaining element is whatever the backend now holds furthest from
	// target — recomputed since the scan's last row was itself deleted.
	if furthestRemaining.IsZero() {
		furthestRemaining = stats.GetLargestDistance(target)
	}

	log.Info("contentdb: fractional eviction complete",
		"deletedCount", len(toDelete), "deletedBytes", deletedBytes, "totalContentSize", totalContentSize)

	return EvictionResult{
		FurthestRemainingDistance: furthestRemaining,
		DeletedBytes:              deletedBytes,
		TotalContentSize:          totalContentSize,
		DeletedCount:              uint64(len(toDelete)),
	}, nil
}

// deleteContentOutOfRadius deletes every row whose key is not within radius
// of localId, in one statement. Used by forcePrune (startup after a
// capacity reduction) and by operators.
func deleteContentOutOfRadius(db *sql.DB, localId LocalId, radius *uint256.Int) {
	res, err := db.Exec("DELETE FROM kvstore WHERE isInRadius(?, key, ?) = 0", localId.Bytes(), toBytes32(radius))
	if err != nil {
		fatal("delete-out-of-radius failed", "err", err)
	}
	n, _ := res.RowsAffected()
	log.Info("contentdb: deleted content out of radius", "count", n, "radius", radius.Hex())
}

// reclaimAndTruncate vacuums the file and, when manualCheckpoint is enabled,
// truncates the WAL, so disk savings from a bulk deletion are realized
// immediately instead of lazily.
func reclaimAndTruncate(kv *KVBackend, manualCheckpoint bool) {
	kv.Vacuum()
	if manualCheckpoint {
		kv.Checkpoint(true)
	}
}
