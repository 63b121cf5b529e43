package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/yoockh/yoavatar/internal/models"
)

const StatusConnected = "connected"

// Registry tracks live connections for diagnostics. It is never used to
// address events.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]models.ConnectionRecord
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]models.ConnectionRecord), now: time.Now}
}

func (r *Registry) Connect(clientID string) models.ConnectionRecord {
	rec := models.ConnectionRecord{
		ClientID:    clientID,
		ConnectedAt: r.now().UTC(),
		Status:      StatusConnected,
	}
	r.mu.Lock()
	r.conns[clientID] = rec
	r.mu.Unlock()
	return rec
}

// Disconnect is a no-op for unknown ids.
func (r *Registry) Disconnect(clientID string) {
	r.mu.Lock()
	delete(r.conns, clientID)
	r.mu.Unlock()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the records ordered by connect time.
func (r *Registry) Snapshot() []models.ConnectionRecord {
	r.mu.RLock()
	out := make([]models.ConnectionRecord, 0, len(r.conns))
	for _, rec := range r.conns {
		out = append(out, rec)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ClientID < out[j].ClientID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
