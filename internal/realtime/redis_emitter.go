package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/models"
)

// RedisEmitter publishes events on the client's pub/sub channel. The
// Subscription held by the process owning the socket forwards them.
type RedisEmitter struct {
	rdb *redis.Client
	log *logrus.Logger
}

func NewRedisEmitter(rdb *redis.Client, l *logrus.Logger) *RedisEmitter {
	if l == nil {
		l = logrus.New()
	}
	return &RedisEmitter{rdb: rdb, log: l}
}

func (e *RedisEmitter) Emit(ctx context.Context, clientID, event string, data any) {
	log := e.log.WithFields(logrus.Fields{"client_id": clientID, "event": event})

	payload, err := json.Marshal(models.Envelope{Type: event, Data: data})
	if err != nil {
		log.WithError(err).Warn("encode event")
		return
	}
	if err := e.rdb.Publish(ctx, ClientChannel(clientID), payload).Err(); err != nil {
		log.WithError(err).Warn("publish event")
	}
}

// Subscription is a live subscription to one client's event channel.
type Subscription struct {
	pubsub *redis.PubSub
}

// Subscribe returns once Redis has confirmed the subscription, so every event
// published afterwards for clientID is delivered to Forward.
func Subscribe(ctx context.Context, rdb *redis.Client, clientID string) (*Subscription, error) {
	pubsub := rdb.Subscribe(ctx, ClientChannel(clientID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return &Subscription{pubsub: pubsub}, nil
}

func (s *Subscription) Close() error { return s.pubsub.Close() }

// Forward relays events to sink until ctx is done, the subscription is closed
// or a send fails.
func (s *Subscription) Forward(ctx context.Context, sink Sink) error {
	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env rawEnvelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				continue
			}
			out := models.Envelope{Type: env.Type}
			if len(env.Data) > 0 {
				out.Data = env.Data
			}
			if err := sink.Send(out); err != nil {
				return err
			}
		}
	}
}

type rawEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}
