package contentdb

import "testing"

func TestKVBackendGetPutContainsDel(t *testing.T) {
	kv := openTestBackend(t)

	id := idAt(1)
	if _, ok := kv.Get(id); ok {
		t.Fatalf("Get on empty backend returned ok=true")
	}

	kv.Put(id, []byte("value"))
	if !kv.Contains(id) {
		t.Fatalf("Contains after Put returned false")
	}
	v, ok := kv.Get(id)
	if !ok || string(v) != "value" {
		t.Fatalf("Get = (%q, %v), want (\"value\", true)", v, ok)
	}

	kv.Del(id)
	if kv.Contains(id) {
		t.Fatalf("Contains after Del returned true")
	}
	if _, ok := kv.Get(id); ok {
		t.Fatalf("Get after Del returned ok=true")
	}
}

func TestKVBackendDelAbsentIsNoOp(t *testing.T) {
	kv := openTestBackend(t)
	kv.Del(idAt(1)) // must not panic or error
}

func TestKVBackendVacuumAndCheckpoint(t *testing.T) {
	kv, err := openKVBackend("", true, true)
	if err != nil {
		t.Fatalf("openKVBackend: %v", err)
	}
	t.Cleanup(func() { kv.Close() })

	for i := uint64(1); i <= 10; i++ {
		kv.Put(idAt(i), make([]byte, 256))
	}
	for i := uint64(1); i <= 5; i++ {
		kv.Del(idAt(i))
	}

	kv.Vacuum()
	kv.Checkpoint(true)
}

func TestOpenKVBackendSeparateInMemoryInstancesAreIndependent(t *testing.T) {
	a, err := openKVBackend("", true, false)
	if err != nil {
		t.Fatalf("openKVBackend a: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	b, err := openKVBackend("", true, false)
	if err != nil {
		t.Fatalf("openKVBackend b: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	a.Put(idAt(1), []byte("only in a"))
	if b.Contains(idAt(1)) {
		t.Fatalf("second in-memory backend sees first backend's content")
	}
}
