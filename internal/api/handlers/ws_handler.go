package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/realtime"
	"github.com/yoockh/yoavatar/internal/services"
	"github.com/yoockh/yoavatar/internal/utils"
)

const (
	pingEvery     = 25 * time.Second
	readTimeout   = 60 * time.Second
	writeTimeout  = 10 * time.Second
	maxFrameBytes = 100 << 20
)

// VoiceCatalog lists the voices announced to new clients.
type VoiceCatalog interface {
	Catalog() models.VoiceCatalog
}

type WSHandler struct {
	registry *realtime.Registry
	hub      *realtime.Hub
	redis    *redis.Client
	chats    services.ChatService
	voices   VoiceCatalog
	log      *logrus.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewWSHandler wires the realtime channel. With a nil rdb events are routed
// through hub; otherwise each connection relays its Redis channel.
func NewWSHandler(registry *realtime.Registry, hub *realtime.Hub, rdb *redis.Client, chats services.ChatService, voices VoiceCatalog, l *logrus.Logger) *WSHandler {
	return &WSHandler{
		registry: registry,
		hub:      hub,
		redis:    rdb,
		chats:    chats,
		voices:   voices,
		log:      l,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin once the frontend host is fixed
		},
		now: time.Now,
	}
}

type wsClientMsg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) Send(env models.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	clientID := uuid.NewString()
	log := h.log.WithField("client_id", clientID)

	h.registry.Connect(clientID)
	log.WithField("connections", h.registry.Count()).Info("client connected")
	defer func() {
		h.registry.Disconnect(clientID)
		log.WithField("connections", h.registry.Count()).Info("client disconnected")
	}()

	if h.redis != nil {
		// subscribed before the client is announced, so no job event can precede it
		sub, err := realtime.Subscribe(ctx, h.redis, clientID)
		if err != nil {
			log.WithError(err).Warn("subscribe to client events")
			return
		}
		defer sub.Close()
		go func() {
			if err := sub.Forward(ctx, wc); err != nil && ctx.Err() == nil {
				log.WithError(err).Warn("event relay stopped")
				_ = conn.Close()
			}
		}()
	} else {
		h.hub.Attach(clientID, wc)
		defer h.hub.Detach(clientID, wc)
	}

	now := h.now()
	if err := wc.Send(models.Envelope{Type: models.EventConnected, Data: models.ConnectedEvent{
		ClientID:        clientID,
		Message:         "Connexion établie",
		Timestamp:       now.Format(time.RFC3339),
		AvailableVoices: h.voices.Catalog(),
		MuseTalkLocal:   true,
	}}); err != nil {
		return
	}

	go h.keepalive(ctx, wc)

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, rerr := conn.ReadMessage()
		if rerr != nil {
			if websocket.IsUnexpectedCloseError(rerr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(rerr).Debug("read failed")
			}
			return
		}
		h.handle(wc, clientID, data, log)
	}
}

func (h *WSHandler) handle(wc *wsConn, clientID string, data []byte, log *logrus.Entry) {
	const op = "WSHandler.handle"

	var msg wsClientMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		_ = wc.Send(models.Envelope{Type: models.EventError, Data: errorEvent(utils.K(utils.KindInvalidInput, op, "invalid json", nil))})
		return
	}

	switch msg.Type {
	case models.EventChatWithAvatar:
		var req models.ChatRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				_ = wc.Send(models.Envelope{Type: models.EventError, Data: errorEvent(utils.K(utils.KindInvalidInput, op, "invalid chat_with_avatar payload", err))})
				return
			}
		}
		jobID, accepted := h.chats.Submit(clientID, req)
		log.WithFields(logrus.Fields{"job_id": jobID, "accepted": accepted}).Info("chat request received")

	case models.EventPing:
		_ = wc.Send(models.Envelope{Type: models.EventPong, Data: gin.H{"timestamp": h.now().Format(time.RFC3339)}})

	default:
		_ = wc.Send(models.Envelope{Type: models.EventError, Data: errorEvent(utils.K(utils.KindInvalidInput, op, "unknown message type "+msg.Type, nil))})
	}
}

func (h *WSHandler) keepalive(ctx context.Context, wc *wsConn) {
	t := time.NewTicker(pingEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := wc.ping(); err != nil {
				return
			}
		}
	}
}
