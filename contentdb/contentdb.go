package contentdb

import (
	"fmt"

	"github.com/portalnetwork/contentdb/log"
	"github.com/portalnetwork/contentdb/metrics"
)

// ContentDB is the local content database backing one Portal History Network
// node: a content-addressed, radius-bounded key/value store. It prepares all
// statements eagerly at construction — opening is expensive and expected to
// happen once, at node boot — and is thread-compatible, not thread-safe,
// between Open and Close: callers must serialize mutations. Concurrent
// writers from other processes are unsupported. Open takes no lock; the
// maintenance CLI's exclusive lock file only keeps two CLI runs apart.
type ContentDB struct {
	kv     *KVBackend
	stats  *Statistics
	radius *RadiusController

	localId          LocalId
	capacity         uint64
	radiusCfg        RadiusConfig
	manualCheckpoint bool

	metricsRegistry     metrics.Registry
	pruningEvents       metrics.Counter
	pruningDeletedTotal metrics.Counter
}

// Open constructs a ContentDB per cfg: opens (or creates) the backing store,
// registers the distance scalar functions, prepares all statements, and
// determines the initial radius from configuration and database state.
func Open(cfg Config) (*ContentDB, error) {
	cfg.SetDefaults()

	kv, err := openKVBackend(cfg.Path, cfg.InMemory, cfg.ManualCheckpoint)
	if err != nil {
		return nil, err
	}
	stats, err := newStatistics(kv.db)
	if err != nil {
		kv.Close()
		return nil, err
	}

	initial := setInitialRadius(cfg.Radius, stats, cfg.LocalId, cfg.StorageCapacity)
	rc := newRadiusController(cfg.Radius.Mode, initial)

	protocolID := cfg.ProtocolID
	registry := metrics.NewRegistry()
	db := &ContentDB{
		kv:                  kv,
		stats:               stats,
		radius:              rc,
		localId:             cfg.LocalId,
		capacity:            cfg.StorageCapacity,
		radiusCfg:           cfg.Radius,
		manualCheckpoint:    cfg.ManualCheckpoint,
		metricsRegistry:     registry,
		pruningEvents:       metrics.NewRegisteredCounter(fmt.Sprintf("%s/portal_pruning_events_total", protocolID), registry),
		pruningDeletedTotal: metrics.NewRegisteredCounter(fmt.Sprintf("%s/portal_pruning_deleted_elements", protocolID), registry),
	}

	log.Info("contentdb: opened", "path", cfg.Path, "inMemory", cfg.InMemory,
		"radiusMode", cfg.Radius.Mode, "initialRadius", initial.Hex())
	return db, nil
}

// GetOrErr returns the value stored for contentId, or ErrNotFound if absent,
// for direct callers that prefer an error-based contract over GetHandler's
// bool (see KVBackend.GetOrErr).
func (db *ContentDB) GetOrErr(contentId ContentId) ([]byte, error) {
	return db.kv.GetOrErr(contentId)
}

// Radius returns the radius presently in effect.
func (db *ContentDB) Radius() *RadiusController { return db.radius }

// Statistics returns the read-only statistics queries for this database.
func (db *ContentDB) Statistics() *Statistics { return db.stats }

// MetricsRegistry exposes the registry the two named pruning metrics are
// registered under, for the surrounding process to read or export.
func (db *ContentDB) MetricsRegistry() metrics.Registry { return db.metricsRegistry }

// ForcePrune deletes everything outside the current radius and reclaims the
// freed space (including a WAL truncate when manualCheckpoint is
// configured). Open does not call it; within this module the maintenance
// CLI's force-prune command is its caller.
func (db *ContentDB) ForcePrune() {
	deleteContentOutOfRadius(db.kv.db, db.localId, db.radius.Current())
	reclaimAndTruncate(db.kv, db.manualCheckpoint)
}

// Vacuum repacks the backing file, releasing free pages back to the OS.
// Exposed for the maintenance CLI; ordinary node operation relies on
// ForcePrune's own reclaim step instead of calling this directly.
func (db *ContentDB) Vacuum() {
	db.kv.Vacuum()
}

// Close disposes prepared statements first, then the underlying handle.
func (db *ContentDB) Close() error {
	db.stats.close()
	return db.kv.Close()
}
