package contentdb

import "github.com/holiman/uint256"

// PutOutcome reports whether a write triggered fractional eviction.
type PutOutcome struct {
	Pruned                    bool
	FurthestRemainingDistance *uint256.Int
	DeletedFraction           float64
	DeletedCount              uint64
}

// putAndPrune is the write path: insert a value; if the store's used
// size is now at or above capacity, run a fixed fractional eviction and report it so
// the caller can feed RadiusController.Adjust. In Static mode capacity is
// advisory and this always reports Stored.
func (db *ContentDB) putAndPrune(id ContentId, value []byte) PutOutcome {
	db.kv.Put(id, value)

	if db.radiusCfg.Mode != RadiusDynamic {
		return PutOutcome{}
	}
	if db.stats.UsedSize() < db.capacity {
		return PutOutcome{}
	}

	result, err := deleteContentFraction(db.kv.db, db.stats, db.localId, evictionFraction)
	if err != nil {
		// evictionFraction is a package constant in (0,1); this cannot
		// happen in practice, but surfacing it as fatal keeps the invariant
		// honest rather than silently continuing over capacity.
		fatal("fractional eviction precondition violated", "err", err)
	}

	var deletedFraction float64
	if result.TotalContentSize > 0 {
		deletedFraction = float64(result.DeletedBytes) / float64(result.TotalContentSize)
	}

	return PutOutcome{
		Pruned:                    true,
		FurthestRemainingDistance: result.FurthestRemainingDistance,
		DeletedFraction:           deletedFraction,
		DeletedCount:              result.DeletedCount,
	}
}
