package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoavatar/internal/logger"
	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/realtime"
	"github.com/yoockh/yoavatar/internal/utils"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeChats struct {
	mu      sync.Mutex
	clients []string
	reqs    []models.ChatRequest
	active  int
}

func (f *fakeChats) Submit(clientID string, req models.ChatRequest) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients = append(f.clients, clientID)
	f.reqs = append(f.reqs, req)
	return "job-1", true
}

func (f *fakeChats) ActiveJobs() int { return f.active }

func (f *fakeChats) submitted() []models.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ChatRequest(nil), f.reqs...)
}

type fakeVoices struct{}

func (fakeVoices) Catalog() models.VoiceCatalog {
	return models.VoiceCatalog{"openai": {{ID: "alloy", Name: "Alloy", Lang: "multi"}}}
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestMediaDownloadAndAudio(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tts_openai_x.mp3"), []byte("mp3"), 0o644))

	h := NewMediaHandler(dir)
	r := gin.New()
	r.GET("/api/download/:filename", h.Download)
	r.GET("/api/audio/:filename", h.Audio)

	w := serve(r, "/api/download/tts_openai_x.mp3")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "mp3", w.Body.String())

	w = serve(r, "/api/audio/tts_openai_x.mp3")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "mp3", w.Body.String())

	for _, p := range []string{"/api/download/missing.mp4", "/api/audio/missing.mp3"} {
		w = serve(r, p)
		assert.Equal(t, http.StatusNotFound, w.Code, p)
		assert.JSONEq(t, `{"error":"File not found","code":"NOT_FOUND"}`, w.Body.String())
	}
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{utils.K(utils.KindBusy, "op", "too many jobs", nil), http.StatusTooManyRequests, `{"error":"too many jobs","code":"RESOURCE_EXHAUSTED","kind":"BusyError"}`},
		{errors.New("boom"), http.StatusInternalServerError, `{"error":"Internal Server Error","code":"INTERNAL"}`},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeError(c, tc.err)
		assert.Equal(t, tc.status, w.Code)
		assert.JSONEq(t, tc.body, w.Body.String())
	}
}

func TestMediaResolveRejectsPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	h := NewMediaHandler(dir)

	for _, name := range []string{"", ".", "..", "../etc/passwd", `a\b`, "sub"} {
		_, err := h.resolve("test", name)
		assert.ErrorIs(t, err, utils.ErrNotFound, name)
	}
}

func TestHealthAndVoices(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "scripts", "inference.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(script), 0o755))
	require.NoError(t, os.WriteFile(script, nil, 0o644))

	reg := realtime.NewRegistry()
	reg.Connect("a")
	h := NewSystemHandler(reg, &fakeChats{active: 2}, fakeVoices{}, SystemInfo{
		MuseTalk: MuseTalkPaths{
			Dir:             dir,
			InferenceScript: script,
			ConfigDir:       filepath.Join(dir, "configs", "inference"),
		},
		Directories:  map[string]string{"outputs": "outputs"},
		APIKeys:      map[string]bool{"openai": true, "elevenlabs": false},
		DeliveryMode: "none",
	})
	r := gin.New()
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/api/voices", h.Voices)
	r.GET("/api/connections", h.Connections)

	assert.Equal(t, http.StatusOK, serve(r, "/").Code)

	w := serve(r, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		ActiveJobs  int    `json:"active_jobs"`
		MuseTalk    struct {
			InferenceExists bool `json:"inference_exists"`
			ConfigDirExists bool `json:"config_dir_exists"`
		} `json:"musetalk"`
		APIKeys      map[string]bool `json:"api_keys"`
		DeliveryMode string          `json:"delivery_mode"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Connections)
	assert.Equal(t, 2, health.ActiveJobs)
	assert.True(t, health.MuseTalk.InferenceExists)
	assert.False(t, health.MuseTalk.ConfigDirExists)
	assert.False(t, health.APIKeys["elevenlabs"])
	assert.Equal(t, "none", health.DeliveryMode)

	w = serve(r, "/api/voices")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"voices":{"openai":[{"id":"alloy","name":"Alloy","lang":"multi"}]}}`, w.Body.String())

	w = serve(r, "/api/connections")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"client_id":"a"`)
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

func TestWebSocketSession(t *testing.T) {
	reg := realtime.NewRegistry()
	hub := realtime.NewHub(logger.Discard())
	chats := &fakeChats{}
	h := NewWSHandler(reg, hub, nil, chats, fakeVoices{}, logger.Discard())

	r := gin.New()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn)
	require.Equal(t, models.EventConnected, f.Type)
	var hello models.ConnectedEvent
	require.NoError(t, json.Unmarshal(f.Data, &hello))
	assert.Len(t, hello.ClientID, 36)
	assert.True(t, hello.MuseTalkLocal)
	assert.Equal(t, "alloy", hello.AvailableVoices["openai"][0].ID)
	assert.Equal(t, 1, reg.Count())

	require.NoError(t, conn.WriteJSON(gin.H{"type": "ping"}))
	assert.Equal(t, models.EventPong, readFrame(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	f = readFrame(t, conn)
	require.Equal(t, models.EventError, f.Type)
	assert.Contains(t, string(f.Data), "InvalidInputError")

	require.NoError(t, conn.WriteJSON(gin.H{"type": "chat_with_avatar", "data": gin.H{
		"audio_data":     "aGVsbG8=",
		"avatar_url":     "https://cdn.example.com/a.mp4",
		"voice_provider": "openai",
		"bbox_shift":     3,
	}}))
	require.Eventually(t, func() bool { return len(chats.submitted()) == 1 }, 2*time.Second, 10*time.Millisecond)
	req := chats.submitted()[0]
	assert.Equal(t, "aGVsbG8=", req.AudioData)
	assert.Equal(t, "openai", req.VoiceProvider)
	assert.Equal(t, 3, req.BBoxShift)
	assert.Equal(t, hello.ClientID, chats.clients[0])

	// events addressed to the client reach its socket
	hub.Emit(context.Background(), hello.ClientID, models.EventStatus, models.NewProgress(models.StageTranscription))
	f = readFrame(t, conn)
	assert.Equal(t, models.EventStatus, f.Type)
	assert.Contains(t, string(f.Data), `"progress":20`)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return reg.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	// emitting to a gone client is silently dropped
	hub.Emit(context.Background(), hello.ClientID, models.EventStatus, nil)
}

func TestWebSocketUnknownType(t *testing.T) {
	h := NewWSHandler(realtime.NewRegistry(), realtime.NewHub(logger.Discard()), nil, &fakeChats{}, fakeVoices{}, logger.Discard())
	r := gin.New()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(gin.H{"type": "dance"}))
	f := readFrame(t, conn)
	assert.Equal(t, models.EventError, f.Type)
	assert.Contains(t, string(f.Data), "unknown message type dance")
}

// Needs a reachable Redis; set REDIS_ADDR to run.
func TestWebSocketRedisEventRightAfterConnected(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewWSHandler(realtime.NewRegistry(), nil, rdb, &fakeChats{}, fakeVoices{}, logger.Discard())
	r := gin.New()
	r.GET("/ws", h.Serve)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	f := readFrame(t, conn)
	require.Equal(t, models.EventConnected, f.Type)
	var hello models.ConnectedEvent
	require.NoError(t, json.Unmarshal(f.Data, &hello))

	// published once, as a job would right after the client's first message
	realtime.NewRedisEmitter(rdb, logger.Discard()).Emit(context.Background(), hello.ClientID, models.EventStatus, models.NewProgress(models.StageSavingAudio))

	f = readFrame(t, conn)
	assert.Equal(t, models.EventStatus, f.Type)
	assert.Contains(t, string(f.Data), `"progress":5`)
}
