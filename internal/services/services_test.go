package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoavatar/internal/logger"
	"github.com/yoockh/yoavatar/internal/models"
)

type captureDispatcher struct {
	jobs   []*models.Job
	accept bool
}

func (c *captureDispatcher) Dispatch(job *models.Job) bool {
	c.jobs = append(c.jobs, job)
	return c.accept
}

func (c *captureDispatcher) InFlight() int { return len(c.jobs) }

func TestChatServiceSubmit(t *testing.T) {
	d := &captureDispatcher{accept: true}
	s := NewChatService(d)

	id, ok := s.Submit("client-1", models.ChatRequest{AudioData: "x", AvatarURL: "https://a/b.mp4", BBoxShift: 4})
	require.True(t, ok)
	require.Len(t, d.jobs, 1)

	j := d.jobs[0]
	assert.Equal(t, id, j.ID)
	assert.Len(t, j.ID, 36)
	assert.Equal(t, "client-1", j.ClientID)
	assert.Equal(t, models.DefaultVoiceProvider, j.VoiceProvider)
	assert.Equal(t, 4, j.BBoxShift)
	assert.Equal(t, 1, s.ActiveJobs())

	d.accept = false
	_, ok = s.Submit("client-1", models.ChatRequest{})
	assert.False(t, ok)
}

func TestJanitorRunOnce(t *testing.T) {
	root := t.TempDir()
	outputs := filepath.Join(root, "outputs")
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(outputs, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(work, "jobs", "j1"), 0o755))

	old := time.Now().Add(-48 * time.Hour)
	stale := []string{filepath.Join(outputs, "tts_openai_x.mp3"), filepath.Join(work, "jobs", "j1", "speech.wav")}
	for _, p := range stale {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(p, old, old))
	}
	fresh := filepath.Join(outputs, "tts_openai_y.mp3")
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

	dirs := StagingDirs(outputs, filepath.Join(root, "uploads"), filepath.Join(root, "avatars"), filepath.Join(root, "audio"), work)
	j := NewJanitorService(dirs, 24*time.Hour, "@every 1h", logger.Discard())

	rep := j.RunOnce()
	assert.Equal(t, SweepReport{Removed: 2}, rep)
	for _, p := range stale {
		assert.NoFileExists(t, p)
	}
	assert.FileExists(t, fresh)

	assert.Equal(t, SweepReport{}, j.RunOnce())
}

func TestJanitorStartStop(t *testing.T) {
	j := NewJanitorService(nil, time.Hour, "@every 1h", logger.Discard())
	require.NoError(t, j.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	j.Stop(ctx)

	bad := NewJanitorService(nil, time.Hour, "not a schedule", logger.Discard())
	assert.Error(t, bad.Start())
}
