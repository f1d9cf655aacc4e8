package contentdb

import (
	"testing"

	"github.com/holiman/uint256"
)

func openTestBackend(t *testing.T) *KVBackend {
	t.Helper()
	kv, err := openKVBackend("", true, false)
	if err != nil {
		t.Fatalf("openKVBackend: %v", err)
	}
	t.Cleanup(func() {
		if err := kv.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return kv
}

func TestDeleteContentFractionDeletesFurthestFirst(t *testing.T) {
	kv := openTestBackend(t)
	stats, err := newStatistics(kv.db)
	if err != nil {
		t.Fatalf("newStatistics: %v", err)
	}
	t.Cleanup(stats.close)

	target := localAt(0)
	const n = 100
	for i := uint64(1); i <= n; i++ {
		kv.Put(idAt(i), make([]byte, 100))
	}

	result, err := deleteContentFraction(kv.db, stats, target, 0.5)
	if err != nil {
		t.Fatalf("deleteContentFraction: %v", err)
	}

	// With equal-sized values and target = the zero id, half the bytes is
	// exactly the numerically largest half of the ids.
	if result.DeletedCount != n/2 {
		t.Fatalf("DeletedCount = %d, want %d", result.DeletedCount, n/2)
	}
	if result.DeletedBytes != n/2*100 {
		t.Fatalf("DeletedBytes = %d, want %d", result.DeletedBytes, n/2*100)
	}
	if result.TotalContentSize != n*100 {
		t.Fatalf("TotalContentSize = %d, want %d", result.TotalContentSize, n*100)
	}
	want := idAt(n / 2).Uint256()
	if result.FurthestRemainingDistance.Cmp(want) != 0 {
		t.Fatalf("FurthestRemainingDistance = %v, want %v (the nearest surviving boundary row)", result.FurthestRemainingDistance, want)
	}
	for i := uint64(1); i <= n; i++ {
		if got, want := kv.Contains(idAt(i)), i <= n/2; got != want {
			t.Fatalf("Contains(id %d) = %v, want %v after evicting the furthest half", i, got, want)
		}
	}
}

func TestDeleteContentFractionEmptyStore(t *testing.T) {
	kv := openTestBackend(t)
	stats, err := newStatistics(kv.db)
	if err != nil {
		t.Fatalf("newStatistics: %v", err)
	}
	t.Cleanup(stats.close)

	result, err := deleteContentFraction(kv.db, stats, localAt(0), 0.5)
	if err != nil {
		t.Fatalf("deleteContentFraction: %v", err)
	}
	if result.DeletedCount != 0 {
		t.Fatalf("DeletedCount = %d, want 0 on empty store", result.DeletedCount)
	}
}

func TestDeleteContentFractionRejectsBadFraction(t *testing.T) {
	kv := openTestBackend(t)
	stats, err := newStatistics(kv.db)
	if err != nil {
		t.Fatalf("newStatistics: %v", err)
	}
	t.Cleanup(stats.close)

	if _, err := deleteContentFraction(kv.db, stats, localAt(0), 0); err == nil {
		t.Fatalf("expected error for fraction=0")
	}
	if _, err := deleteContentFraction(kv.db, stats, localAt(0), 1); err == nil {
		t.Fatalf("expected error for fraction=1")
	}
}

func TestDeleteContentOutOfRadiusThenVacuumShrinksSize(t *testing.T) {
	kv := openTestBackend(t)
	stats, err := newStatistics(kv.db)
	if err != nil {
		t.Fatalf("newStatistics: %v", err)
	}
	t.Cleanup(stats.close)

	radius := UInt256FromLogRadius(128) // 2^128 - 1

	// Half the entries fit inside the low 128 bits, half sit above them.
	for i := uint64(1); i <= 500; i++ {
		kv.Put(idAt(i), make([]byte, 512))
		var far ContentId
		high := new(uint256.Int).Lsh(uint256.NewInt(i), 128)
		b := high.Bytes32()
		copy(far[:], b[:])
		kv.Put(far, make([]byte, 512))
	}
	before := stats.Size()

	deleteContentOutOfRadius(kv.db, localAt(0), radius)

	if got := stats.ContentCount(); got != 500 {
		t.Fatalf("ContentCount = %d, want 500 after deleting the out-of-radius half", got)
	}
	if max := stats.GetLargestDistance(localAt(0)); max.Cmp(radius) > 0 {
		t.Fatalf("largest remaining distance %v exceeds radius %v", max, radius)
	}

	kv.Vacuum()
	after := stats.Size()
	if after >= before {
		t.Fatalf("Size() = %d after vacuum, want shrunk below %d", after, before)
	}

	// Vacuum is observably idempotent except that Size never increases.
	kv.Vacuum()
	if again := stats.Size(); again > after {
		t.Fatalf("Size() grew from %d to %d on a second vacuum", after, again)
	}
}

func TestDeleteContentOutOfRadius(t *testing.T) {
	kv := openTestBackend(t)

	near := idAt(5)
	far := idAt(500)
	kv.Put(near, []byte("a"))
	kv.Put(far, []byte("b"))

	deleteContentOutOfRadius(kv.db, localAt(0), UInt256FromLogRadius(6)) // radius = 63

	if !kv.Contains(near) {
		t.Fatalf("in-radius content was deleted")
	}
	if kv.Contains(far) {
		t.Fatalf("out-of-radius content survived")
	}
}
