package realtime

import (
	"context"

	"github.com/yoockh/yoavatar/internal/models"
)

// Emitter delivers one event to one client. It never reports failure: a client
// that is gone simply misses the event.
type Emitter interface {
	Emit(ctx context.Context, clientID, event string, data any)
}

// Sink is the write side of a live client connection.
type Sink interface {
	Send(env models.Envelope) error
}

// ClientChannel is the pub/sub channel carrying events for one client.
func ClientChannel(clientID string) string {
	return "client:" + clientID + ":events"
}
