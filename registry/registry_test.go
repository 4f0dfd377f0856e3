package registry

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/onnwee/chat-relay/event"
)

func TestInsertAndLookupUserConnection(t *testing.T) {
	r := New()
	c1 := uuid.New()

	if _, ok := r.ConnectionsFor(1); ok {
		t.Fatal("expected no connections for unknown user")
	}

	r.InsertUserConnection(1, c1)
	ids, ok := r.ConnectionsFor(1)
	if !ok || len(ids) != 1 || ids[0] != c1 {
		t.Fatalf("ConnectionsFor(1) = %v, %v; want [%v], true", ids, ok, c1)
	}

	// Duplicate insert must not double-register.
	r.InsertUserConnection(1, c1)
	if ids, _ := r.ConnectionsFor(1); len(ids) != 1 {
		t.Fatalf("duplicate insert registered twice: %v", ids)
	}
}

func TestMultiDeviceConnections(t *testing.T) {
	r := New()
	c1, c2 := uuid.New(), uuid.New()
	r.InsertUserConnection(7, c1)
	r.InsertUserConnection(7, c2)

	ids, ok := r.ConnectionsFor(7)
	if !ok || len(ids) != 2 {
		t.Fatalf("ConnectionsFor(7) = %v, %v; want two connections", ids, ok)
	}

	// Removing one device must not affect the other.
	r.RemoveUserConnection(7, c1)
	ids, ok = r.ConnectionsFor(7)
	if !ok || len(ids) != 1 || ids[0] != c2 {
		t.Fatalf("after removal: %v, %v; want [%v], true", ids, ok, c2)
	}

	r.RemoveUserConnection(7, c2)
	if _, ok := r.ConnectionsFor(7); ok {
		t.Fatal("expected empty set to behave as no connections")
	}
}

func TestRemoveMissingConnectionIsSilent(t *testing.T) {
	r := New()
	r.RemoveUserConnection(1, uuid.New())
	r.RemoveConnectionChannel(uuid.New())
}

func TestChannelRegistration(t *testing.T) {
	r := New()
	c1 := uuid.New()
	ch := make(chan event.Message, 1)

	if _, ok := r.ChannelFor(c1); ok {
		t.Fatal("expected no channel before registration")
	}

	r.InsertConnectionChannel(c1, ch)
	got, ok := r.ChannelFor(c1)
	if !ok || got != ch {
		t.Fatal("ChannelFor did not return the registered channel")
	}

	r.RemoveConnectionChannel(c1)
	if _, ok := r.ChannelFor(c1); ok {
		t.Fatal("expected channel gone after removal")
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	r := New()
	c1, c2 := uuid.New(), uuid.New()
	r.InsertUserConnection(1, c1)
	r.InsertUserConnection(1, c2)

	ids, _ := r.ConnectionsFor(1)
	ids[0] = uuid.New()

	fresh, _ := r.ConnectionsFor(1)
	if fresh[0] != c1 {
		t.Fatal("ConnectionsFor must return a copy, not the internal slice")
	}
}

func TestConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := uuid.New()
				ch := make(chan event.Message)
				r.InsertUserConnection(uid, id)
				r.InsertConnectionChannel(id, ch)
				r.ConnectionsFor(uid)
				r.ChannelFor(id)
				r.RemoveConnectionChannel(id)
				r.RemoveUserConnection(uid, id)
			}
		}(uint64(i % 4))
	}
	wg.Wait()
	for uid := uint64(0); uid < 4; uid++ {
		if ids, ok := r.ConnectionsFor(uid); ok {
			t.Fatalf("user %d still has connections after cleanup: %v", uid, ids)
		}
	}
}
