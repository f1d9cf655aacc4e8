package contentdb

import (
	"errors"

	"github.com/portalnetwork/contentdb/log"
)

// ErrNotFound is the one recoverable condition the database surfaces: a
// get/contains on an unknown id. It is never returned from the public
// Handlers, which signal absence via a bool instead; KVBackend.GetOrErr and
// ContentDB.GetOrErr return it for direct callers that prefer an
// error-based contract.
var ErrNotFound = errors.New("contentdb: content not found")

// fatal logs msg at Crit with ctx and aborts the process. I/O errors and
// corruption have no meaningful local recovery: propagating a
// half-broken store into the network layer risks silent data loss, which the
// Portal protocol cannot tolerate.
func fatal(msg string, ctx ...any) {
	log.Root().Crit("database broken or disk full: "+msg, ctx...)
}
