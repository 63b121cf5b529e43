package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoavatar/internal/realtime"
	"github.com/yoockh/yoavatar/internal/services"
)

type MuseTalkPaths struct {
	Dir             string
	Results         string
	OutputDir       string
	InferenceScript string
	ConfigDir       string
}

// SystemInfo is the static part of the health report, fixed at start-up.
type SystemInfo struct {
	MuseTalk     MuseTalkPaths
	Directories  map[string]string
	APIKeys      map[string]bool
	DeliveryMode string
}

type SystemHandler struct {
	registry *realtime.Registry
	chats    services.ChatService
	voices   VoiceCatalog
	info     SystemInfo
	now      func() time.Time
}

func NewSystemHandler(registry *realtime.Registry, chats services.ChatService, voices VoiceCatalog, info SystemInfo) *SystemHandler {
	return &SystemHandler{registry: registry, chats: chats, voices: voices, info: info, now: time.Now}
}

func (h *SystemHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"message":    "avatar backend is running",
		"health_url": "/health",
	})
}

func (h *SystemHandler) Health(c *gin.Context) {
	mt := h.info.MuseTalk
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"timestamp":   h.now().Format(time.RFC3339),
		"connections": h.registry.Count(),
		"active_jobs": h.chats.ActiveJobs(),
		"musetalk": gin.H{
			"directory":         mt.Dir,
			"results":           mt.Results,
			"output_dir":        mt.OutputDir,
			"inference_script":  mt.InferenceScript,
			"inference_exists":  exists(mt.InferenceScript),
			"config_dir":        mt.ConfigDir,
			"config_dir_exists": exists(mt.ConfigDir),
		},
		"directories":   h.info.Directories,
		"api_keys":      h.info.APIKeys,
		"delivery_mode": h.info.DeliveryMode,
	})
}

func (h *SystemHandler) Voices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "voices": h.voices.Catalog()})
}

// Connections lists live realtime sessions.
func (h *SystemHandler) Connections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connections": h.registry.Snapshot()})
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
