package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoavatar/internal/logger"
	"github.com/yoockh/yoavatar/internal/models"
)

type recordingSink struct {
	mu   sync.Mutex
	got  []models.Envelope
	fail bool
}

func (s *recordingSink) Send(env models.Envelope) error {
	if s.fail {
		return errors.New("closed")
	}
	s.mu.Lock()
	s.got = append(s.got, env)
	s.mu.Unlock()
	return nil
}

func TestHubEmitToAttachedClient(t *testing.T) {
	h := NewHub(logger.Discard())
	s := &recordingSink{}
	h.Attach("a", s)

	h.Emit(context.Background(), "a", models.EventStatus, models.NewProgress(models.StageTTS))

	require.Len(t, s.got, 1)
	assert.Equal(t, models.EventStatus, s.got[0].Type)
	assert.Equal(t, 50, s.got[0].Data.(models.ProgressEvent).Progress)
}

func TestHubEmitToAbsentClientIsDropped(t *testing.T) {
	h := NewHub(logger.Discard())
	other := &recordingSink{}
	h.Attach("b", other)

	assert.NotPanics(t, func() {
		h.Emit(context.Background(), "a", models.EventError, models.ErrorEvent{Message: "x"})
	})
	assert.Empty(t, other.got)
}

func TestHubSendFailureIsSwallowed(t *testing.T) {
	h := NewHub(logger.Discard())
	h.Attach("a", &recordingSink{fail: true})

	assert.NotPanics(t, func() {
		h.Emit(context.Background(), "a", models.EventPong, nil)
	})
}

func TestHubDetachKeepsNewerSink(t *testing.T) {
	h := NewHub(logger.Discard())
	old, fresh := &recordingSink{}, &recordingSink{}
	h.Attach("a", old)
	h.Attach("a", fresh)

	h.Detach("a", old)
	h.Emit(context.Background(), "a", models.EventPong, nil)

	assert.Empty(t, old.got)
	assert.Len(t, fresh.got, 1)

	h.Detach("a", fresh)
	h.Emit(context.Background(), "a", models.EventPong, nil)
	assert.Len(t, fresh.got, 1)
}
