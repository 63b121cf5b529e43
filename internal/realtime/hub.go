package realtime

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/models"
)

// Hub routes events to connections attached to this process.
type Hub struct {
	mu    sync.RWMutex
	sinks map[string]Sink
	log   *logrus.Logger
}

func NewHub(l *logrus.Logger) *Hub {
	if l == nil {
		l = logrus.New()
	}
	return &Hub{sinks: make(map[string]Sink), log: l}
}

func (h *Hub) Attach(clientID string, s Sink) {
	h.mu.Lock()
	h.sinks[clientID] = s
	h.mu.Unlock()
}

// Detach removes the sink only if it is still the one attached under clientID.
func (h *Hub) Detach(clientID string, s Sink) {
	h.mu.Lock()
	if cur, ok := h.sinks[clientID]; ok && cur == s {
		delete(h.sinks, clientID)
	}
	h.mu.Unlock()
}

func (h *Hub) Emit(_ context.Context, clientID, event string, data any) {
	h.mu.RLock()
	s, ok := h.sinks[clientID]
	h.mu.RUnlock()

	log := h.log.WithFields(logrus.Fields{"client_id": clientID, "event": event})
	if !ok {
		log.Debug("client not connected, event dropped")
		return
	}
	if err := s.Send(models.Envelope{Type: event, Data: data}); err != nil {
		log.WithError(err).Debug("send failed, event dropped")
	}
}
