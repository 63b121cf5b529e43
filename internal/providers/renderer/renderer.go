package renderer

import (
	"context"
	"time"

	"github.com/yoockh/yoavatar/internal/models"
)

// RenderRequest is one lip-sync render: the avatar clip driven by the audio.
type RenderRequest struct {
	JobID      string
	AvatarPath string
	AudioPath  string
	BBoxShift  int
	Budget     time.Duration // zero means the renderer default
}

type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*models.RenderResult, error)
}
