package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRegistryRegisterSnapshot(t *testing.T) {
	reg := NewRegistry()
	channelID := uuid.New()

	a := newFakeConn("a")
	b := newFakeConn("b")

	assert.Empty(t, reg.SnapshotChannel(channelID))

	reg.RegisterChannel(channelID, a)
	reg.RegisterChannel(channelID, b)
	assert.Len(t, reg.SnapshotChannel(channelID), 2)

	// Registering the same handle twice must not duplicate delivery.
	reg.RegisterChannel(channelID, a)
	assert.Len(t, reg.SnapshotChannel(channelID), 2)

	reg.UnregisterChannel(channelID, a)
	snap := reg.SnapshotChannel(channelID)
	require.Len(t, snap, 1)
	assert.Same(t, b, snap[0].(*fakeConn))
}

func TestRegistryEmptyKeyRemoved(t *testing.T) {
	reg := NewRegistry()
	channelID := uuid.New()
	userID := uuid.New()
	conn := newFakeConn("a")

	reg.RegisterChannel(channelID, conn)
	reg.RegisterUser(userID, conn)
	reg.UnregisterChannel(channelID, conn)
	reg.UnregisterUser(userID, conn)

	reg.mu.RLock()
	defer reg.mu.RUnlock()
	assert.Empty(t, reg.channels, "empty channel route entries must be deleted")
	assert.Empty(t, reg.users, "empty user route entries must be deleted")
}

func TestRegistryNamespacesIndependent(t *testing.T) {
	reg := NewRegistry()
	id := uuid.New() // same key in both namespaces
	conn := newFakeConn("a")

	reg.RegisterChannel(id, conn)
	assert.Len(t, reg.SnapshotChannel(id), 1)
	assert.Empty(t, reg.SnapshotUser(id))

	reg.RegisterUser(id, conn)
	reg.UnregisterChannel(id, conn)
	assert.Empty(t, reg.SnapshotChannel(id))
	assert.Len(t, reg.SnapshotUser(id), 1)
}

func TestRegistryDrop(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn("a")
	other := newFakeConn("b")

	ch1, ch2, user := uuid.New(), uuid.New(), uuid.New()
	reg.RegisterChannel(ch1, conn)
	reg.RegisterChannel(ch2, conn)
	reg.RegisterChannel(ch2, other)
	reg.RegisterUser(user, conn)

	reg.Drop(conn)

	assert.Empty(t, reg.SnapshotChannel(ch1))
	assert.Len(t, reg.SnapshotChannel(ch2), 1)
	assert.Empty(t, reg.SnapshotUser(user))
}

func TestRegistryAll(t *testing.T) {
	reg := NewRegistry()
	conn := newFakeConn("a")
	other := newFakeConn("b")

	channelID, userID := uuid.New(), uuid.New()
	reg.RegisterChannel(channelID, conn)
	reg.RegisterUser(userID, conn) // same handle in both namespaces
	reg.RegisterUser(userID, other)

	all := reg.All()
	assert.Len(t, all, 2, "each handle counted once across namespaces")
}

// For any sequence of register/unregister on a key, the snapshot equals
// exactly the set of handles registered minus those unregistered.
func TestRegistrySequencesMatchModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reg := NewRegistry()
		key := uuid.New()

		pool := make([]*fakeConn, 6)
		for i := range pool {
			pool[i] = newFakeConn(fmt.Sprintf("conn-%d", i))
		}
		model := make(map[int]bool)

		numOps := rapid.IntRange(0, 60).Draw(t, "numOps")
		for i := 0; i < numOps; i++ {
			idx := rapid.IntRange(0, len(pool)-1).Draw(t, "conn")
			if rapid.Bool().Draw(t, "register") {
				reg.RegisterChannel(key, pool[idx])
				model[idx] = true
			} else {
				reg.UnregisterChannel(key, pool[idx])
				delete(model, idx)
			}
		}

		snap := reg.SnapshotChannel(key)
		if len(snap) != len(model) {
			t.Fatalf("snapshot has %d handles, model has %d", len(snap), len(model))
		}
		seen := make(map[Sender]bool)
		for _, conn := range snap {
			if seen[conn] {
				t.Fatalf("handle %v appears twice in snapshot", conn)
			}
			seen[conn] = true
		}
		for idx := range model {
			if !seen[pool[idx]] {
				t.Fatalf("handle conn-%d missing from snapshot", idx)
			}
		}
	})
}

// Concurrent registration and broadcasting must not lose updates or race.
// Run with -race.
func TestRegistryConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	channelID := uuid.New()

	const workers = 8
	const iterations = 200

	var wg sync.WaitGroup
	conns := make([]*fakeConn, workers)
	for i := 0; i < workers; i++ {
		conns[i] = newFakeConn(fmt.Sprintf("conn-%d", i))
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(conn *fakeConn) {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				reg.RegisterChannel(channelID, conn)
				reg.SnapshotChannel(channelID)
				reg.UnregisterChannel(channelID, conn)
			}
			reg.RegisterChannel(channelID, conn)
		}(conns[i])
	}

	// Broadcast-style readers interleaved with the writers.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				for _, conn := range reg.SnapshotChannel(channelID) {
					conn.Send([]byte("ping"))
				}
			}
		}()
	}

	wg.Wait()

	assert.Len(t, reg.SnapshotChannel(channelID), workers)
}
