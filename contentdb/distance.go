package contentdb

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"modernc.org/sqlite"
)

// XorDistance computes the big-endian, byte-wise XOR distance between two
// 256-bit values. The result preserves big-endian ordering, so
// "ORDER BY xorDistance(origin, key) DESC" yields the furthest id first.
func XorDistance(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Xor(a, b)
}

// IsInRadius reports whether key lies within radius of origin:
// xor(origin, key) <= radius, using unsigned big-endian comparison.
func IsInRadius(origin, key, radius *uint256.Int) bool {
	return XorDistance(origin, key).Cmp(radius) <= 0
}

// UInt256FromLogRadius returns 2^n - 1 for n in [0,256], with n=256 (and
// above) returning the all-ones value. This is the helper behind Static
// radius configuration.
func UInt256FromLogRadius(n uint16) *uint256.Int {
	if n >= 256 {
		return new(uint256.Int).SetAllOne()
	}
	one := uint256.NewInt(1)
	shifted := new(uint256.Int).Lsh(one, uint(n))
	return new(uint256.Int).Sub(shifted, one)
}

// sqlXorDistance is the scalar function body registered as "xorDistance"
// with the sqlite driver. Arguments and the return value are the 32-byte
// big-endian blobs used as on-disk keys.
func sqlXorDistance(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	a, err := blobArg(args, 0)
	if err != nil {
		return nil, err
	}
	b, err := blobArg(args, 1)
	if err != nil {
		return nil, err
	}
	dist := XorDistance(new(uint256.Int).SetBytes32(a), new(uint256.Int).SetBytes32(b))
	return toBytes32(dist), nil
}

// sqlIsInRadius is the scalar function body registered as "isInRadius".
// Returns 1 iff key is within radius of origin, else 0, matching SQLite's
// convention of using integers as booleans in WHERE clauses.
func sqlIsInRadius(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	origin, err := blobArg(args, 0)
	if err != nil {
		return nil, err
	}
	key, err := blobArg(args, 1)
	if err != nil {
		return nil, err
	}
	radius, err := blobArg(args, 2)
	if err != nil {
		return nil, err
	}
	in := IsInRadius(
		new(uint256.Int).SetBytes32(origin),
		new(uint256.Int).SetBytes32(key),
		new(uint256.Int).SetBytes32(radius),
	)
	if in {
		return int64(1), nil
	}
	return int64(0), nil
}

func blobArg(args []driver.Value, i int) ([]byte, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("contentdb: missing scalar function argument %d", i)
	}
	b, ok := args[i].([]byte)
	if !ok {
		return nil, fmt.Errorf("contentdb: scalar function argument %d is %T, want []byte", i, args[i])
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("contentdb: scalar function argument %d has length %d, want 32", i, len(b))
	}
	return b, nil
}

var registerFunctionsOnce sync.Once

// registerDistanceFunctions registers xorDistance and isInRadius with the
// sqlite driver, once per process. Both are marked deterministic: they have
// no side effects and depend only on their arguments, so the engine is free
// to cache results and use them in ordered scans. Registration is a driver-
// level hook (applied to every new connection), which is the closest this
// driver gets to "per-connection and not persisted": the functions are never
// written into the database file itself.
func registerDistanceFunctions() {
	registerFunctionsOnce.Do(func() {
		sqlite.MustRegisterDeterministicScalarFunction("xorDistance", 2, sqlXorDistance)
		sqlite.MustRegisterDeterministicScalarFunction("isInRadius", 3, sqlIsInRadius)
	})
}
