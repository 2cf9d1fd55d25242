package registry_test

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/PlayConnect01/PlayConnect-sub002/pkg/registry"
)

// --- Test Suite Setup ---

func newTestLogger() *slog.Logger {
	// Discard logger output during tests by setting a high level
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeConn struct {
	mu      sync.Mutex
	closed  bool
	sent    [][]byte
	pingErr error
}

func (f *fakeConn) Send(message []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, message)
}

func (f *fakeConn) Close(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeConn) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// --- Registry Tests ---

func TestRegisterLookupRemove(t *testing.T) {
	r := registry.New(newTestLogger())
	conn := &fakeConn{}

	r.Register("user-1", conn)
	got, found := r.Lookup("user-1")
	if !found {
		t.Fatal("Lookup failed to find registered connection")
	}
	if got != registry.Conn(conn) {
		t.Error("Lookup returned a different connection than registered")
	}

	r.Remove("user-1")
	if _, found := r.Lookup("user-1"); found {
		t.Error("Found connection after it should have been removed")
	}

	// Removing an absent id must be a no-op.
	r.Remove("user-1")
}

func TestRegisterSupersedesPriorConnection(t *testing.T) {
	r := registry.New(newTestLogger())
	oldConn := &fakeConn{}
	newConn := &fakeConn{}

	r.Register("user-1", oldConn)
	r.Register("user-1", newConn)

	if !oldConn.isClosed() {
		t.Error("Superseded connection was not closed")
	}
	if newConn.isClosed() {
		t.Error("New connection must not be closed by superseding")
	}
	if r.Len() != 1 {
		t.Errorf("Expected exactly 1 entry after re-registration, got %d", r.Len())
	}
	got, _ := r.Lookup("user-1")
	if got != registry.Conn(newConn) {
		t.Error("Lookup should resolve to the superseding connection")
	}
}

func TestRemoveConnGuardsAgainstStaleClose(t *testing.T) {
	r := registry.New(newTestLogger())
	oldConn := &fakeConn{}
	newConn := &fakeConn{}

	r.Register("user-1", oldConn)
	r.Register("user-1", newConn)

	// A late close notification from the superseded connection must not
	// evict the entry that replaced it.
	if removed := r.RemoveConn("user-1", oldConn); removed {
		t.Error("RemoveConn removed an entry it no longer owns")
	}
	if _, found := r.Lookup("user-1"); !found {
		t.Fatal("Superseding connection was evicted by a stale close")
	}

	if removed := r.RemoveConn("user-1", newConn); !removed {
		t.Error("RemoveConn failed to remove its own entry")
	}
	if _, found := r.Lookup("user-1"); found {
		t.Error("Entry still resolvable after RemoveConn")
	}
}

func TestForEachIteratesSnapshot(t *testing.T) {
	r := registry.New(newTestLogger())
	for i := 0; i < 5; i++ {
		r.Register("user-"+strconv.Itoa(i), &fakeConn{})
	}

	seen := make(map[string]bool)
	r.ForEach(func(userID string, conn registry.Conn) {
		seen[userID] = true
		// Mutating from inside the callback must not deadlock.
		r.Remove(userID)
	})

	if len(seen) != 5 {
		t.Errorf("Expected to visit 5 entries, visited %d", len(seen))
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty registry after removals, got %d entries", r.Len())
	}
}

func TestConcurrentRegisterNeverLeaksDuplicates(t *testing.T) {
	r := registry.New(newTestLogger())
	const workers = 32

	var wg sync.WaitGroup
	conns := make([]*fakeConn, workers)
	for i := 0; i < workers; i++ {
		conns[i] = &fakeConn{}
		wg.Add(1)
		go func(c *fakeConn) {
			defer wg.Done()
			r.Register("user-1", c)
		}(conns[i])
	}
	wg.Wait()

	if r.Len() != 1 {
		t.Fatalf("Expected exactly 1 entry after concurrent registration, got %d", r.Len())
	}

	// Every connection except the winner must have been closed.
	winner, _ := r.Lookup("user-1")
	openCount := 0
	for _, c := range conns {
		if !c.isClosed() {
			openCount++
			if registry.Conn(c) != winner {
				t.Error("An open connection is not the registered one")
			}
		}
	}
	if openCount != 1 {
		t.Errorf("Expected exactly 1 surviving open connection, got %d", openCount)
	}
}
