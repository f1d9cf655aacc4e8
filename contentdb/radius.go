package contentdb

import (
	"github.com/holiman/uint256"
	"github.com/portalnetwork/contentdb/log"
)

// RadiusController owns the current radius and its adjustment policy.
// It is not safe for concurrent mutation: the surrounding node is assumed
// single-threaded cooperative, so the in-memory radius is read and
// written without a lock.
type RadiusController struct {
	mode    RadiusMode
	current *uint256.Int
}

func newRadiusController(mode RadiusMode, initial *uint256.Int) *RadiusController {
	return &RadiusController{mode: mode, current: initial}
}

// Current returns the radius presently in effect.
func (rc *RadiusController) Current() *uint256.Int {
	return rc.current
}

// setInitialRadius picks the starting radius from configuration and database
// state: Static radius is fixed at construction; Dynamic radius starts at 0
// when capacity is 0, at the current largest stored distance when the
// database is already more than 95% full by used size, or at the maximum
// possible radius otherwise.
func setInitialRadius(cfg RadiusConfig, stats *Statistics, localId LocalId, capacity uint64) *uint256.Int {
	if cfg.Mode == RadiusStatic {
		return UInt256FromLogRadius(cfg.LogRadius)
	}
	if capacity == 0 {
		return new(uint256.Int)
	}
	used := stats.UsedSize()
	if float64(used) > dynamicFullThreshold*float64(capacity) {
		return stats.GetLargestDistance(localId)
	}
	return new(uint256.Int).SetAllOne()
}

// Adjust recomputes the radius after an eviction pass:
//
//  1. scaled = currentRadius / floor(1/deletedFraction)     (integer division)
//  2. newRadius = max(scaled, distanceOfFurthestRemainingElement)
//  3. current = newRadius
//
// The max guard prevents the radius from shrinking below the furthest
// element the node still holds, which would otherwise immediately reject
// content it is already serving. scaled <= currentRadius always, so the
// radius does not increase as long as the furthest remaining element lies
// within the current radius; when it lies outside (e.g. content stored while
// the radius was 0), the max guard raises the radius to that distance.
//
// When deletedFraction is 0 (nothing was freed — e.g. a single payload
// exceeded the target), Adjust logs the event and leaves the radius
// unchanged; it is a no-op in Static mode.
func (rc *RadiusController) Adjust(deletedFraction float64, furthestRemaining *uint256.Int) {
	if rc.mode != RadiusDynamic {
		return
	}
	if deletedFraction <= 0 {
		log.Info("contentdb: no content freed, radius unchanged")
		return
	}
	inverse := uint64(1 / deletedFraction)
	if inverse == 0 {
		inverse = 1
	}
	scaled := new(uint256.Int).Div(rc.current, uint256.NewInt(inverse))
	newRadius := scaled
	if furthestRemaining.Cmp(scaled) > 0 {
		newRadius = furthestRemaining
	}
	log.Info("contentdb: radius adjusted",
		"previous", rc.current.Hex(), "new", newRadius.Hex(), "deletedFraction", deletedFraction)
	rc.current = newRadius
}
