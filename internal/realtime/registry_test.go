package realtime

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryConnectDisconnect(t *testing.T) {
	r := NewRegistry()
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	rec := r.Connect("a")
	assert.Equal(t, "a", rec.ClientID)
	assert.Equal(t, StatusConnected, rec.Status)
	assert.Equal(t, fixed, rec.ConnectedAt)
	assert.Equal(t, 1, r.Count())

	r.Disconnect("a")
	assert.Equal(t, 0, r.Count())
}

func TestRegistryDisconnectUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Connect("a")

	r.Disconnect("missing")
	r.Disconnect("missing")

	assert.Equal(t, 1, r.Count())
}

func TestRegistrySnapshotOrdered(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	r.Connect("c")
	r.Connect("a")
	r.Connect("b")

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{snap[0].ClientID, snap[1].ClientID, snap[2].ClientID})
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("client-%d", i)
			r.Connect(id)
			_ = r.Count()
			_ = r.Snapshot()
			if i%2 == 0 {
				r.Disconnect(id)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 25, r.Count())
}
