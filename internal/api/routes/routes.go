package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoavatar/internal/api/handlers"
)

type Deps struct {
	System *handlers.SystemHandler
	Media  *handlers.MediaHandler
	WS     *handlers.WSHandler

	ResultsRoot string
	Metrics     http.Handler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", d.System.Root)
	r.GET("/health", d.System.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	api := r.Group("/api")
	api.GET("/voices", d.System.Voices)
	api.GET("/connections", d.System.Connections)
	api.GET("/download/:filename", d.Media.Download)
	api.GET("/audio/:filename", d.Media.Audio)

	// rendered videos, addressed by their path under the results root
	r.Static("/results", d.ResultsRoot)

	// WebSocket
	r.GET("/ws", d.WS.Serve)
}
