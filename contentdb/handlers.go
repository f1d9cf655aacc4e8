package contentdb

import "github.com/holiman/uint256"

// The four handler types form the stable contract between ContentDB and the
// Portal wire layer. They must never raise to their caller — all storage
// errors are fatal inside ContentDB itself.

// GetHandler returns the value stored for contentId, if any. contentKey is
// accepted but unused: future schemas may key by the raw content key rather
// than solely by its id.
type GetHandler func(contentKey []byte, contentId ContentId) ([]byte, bool)

// StoreHandler stores value under contentId and reports whether the write
// triggered pruning.
type StoreHandler func(contentKey []byte, contentId ContentId, value []byte) (pruned bool)

// ContainsHandler reports whether contentId has a stored value.
type ContainsHandler func(contentKey []byte, contentId ContentId) bool

// RadiusHandler returns the radius currently in effect.
type RadiusHandler func() *uint256.Int

// Get implements GetHandler against this database.
func (db *ContentDB) Get(contentKey []byte, contentId ContentId) ([]byte, bool) {
	return db.kv.Get(contentId)
}

// Store implements StoreHandler against this database. In Dynamic mode it
// runs PutAndPrune and, on a Pruned outcome, records the pruning metric and
// — when content was actually freed — asks RadiusController to adjust. In
// Static mode it puts unconditionally and always reports false.
func (db *ContentDB) Store(contentKey []byte, contentId ContentId, value []byte) bool {
	outcome := db.putAndPrune(contentId, value)
	if !outcome.Pruned {
		return false
	}

	db.pruningEvents.Inc(1)
	db.pruningDeletedTotal.Inc(int64(outcome.DeletedCount))

	if outcome.DeletedFraction > 0 {
		db.radius.Adjust(outcome.DeletedFraction, outcome.FurthestRemainingDistance)
	}
	return true
}

// Contains implements ContainsHandler against this database.
func (db *ContentDB) Contains(contentKey []byte, contentId ContentId) bool {
	return db.kv.Contains(contentId)
}

// RadiusValue implements RadiusHandler against this database.
func (db *ContentDB) RadiusValue() *uint256.Int {
	return db.radius.Current()
}

// GetHandlerFunc returns a bound GetHandler for wiring into the wire layer.
func (db *ContentDB) GetHandlerFunc() GetHandler { return db.Get }

// StoreHandlerFunc returns a bound StoreHandler for wiring into the wire layer.
func (db *ContentDB) StoreHandlerFunc() StoreHandler { return db.Store }

// ContainsHandlerFunc returns a bound ContainsHandler for wiring into the wire layer.
func (db *ContentDB) ContainsHandlerFunc() ContainsHandler { return db.Contains }

// RadiusHandlerFunc returns a bound RadiusHandler for wiring into the wire layer.
func (db *ContentDB) RadiusHandlerFunc() RadiusHandler { return db.RadiusValue }
