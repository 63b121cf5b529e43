package renderer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoavatar/config"
	"github.com/yoockh/yoavatar/internal/logger"
	"github.com/yoockh/yoavatar/internal/utils"
	"gopkg.in/yaml.v3"
)

func museConfig(t *testing.T, command string) config.MuseTalkConfig {
	dir := t.TempDir()
	return config.MuseTalkConfig{
		Dir:           dir,
		Command:       command,
		ResultsRoot:   filepath.Join(dir, "results"),
		OutputSubdir:  "output/v15",
		UNetModelPath: "models/musetalkV15/unet.pth",
		UNetConfig:    "models/musetalkV15/musetalk.json",
		Version:       "v15",
		FPS:           15,
		BatchSize:     2,
		Float16:       true,
		Timeout:       10 * time.Second,
		StaleAfter:    time.Hour,
	}
}

func request(jobID string) RenderRequest {
	return RenderRequest{JobID: jobID, AvatarPath: "avatar.mp4", AudioPath: "audio.wav", BBoxShift: -3}
}

// With `sh -c script` the renderer flags become $0..: $1 is the config path
// and $3 the result dir.
func TestRenderPicksProducedVideo(t *testing.T) {
	cfg := museConfig(t, `sh -c 'cp "$1" "$3/../seen.yaml"; mkdir -p "$3/v15" && echo x > "$3/v15/clip.mp4"'`)
	m, err := NewMuseTalk(cfg, "/usr/bin/ffmpeg", "https://avatar.example.com", logger.Discard())
	require.NoError(t, err)

	res, err := m.Render(context.Background(), request("job-1"))
	require.NoError(t, err)

	assert.Equal(t, "clip.mp4", res.Filename)
	assert.Equal(t, "output/v15/job-1/v15/clip.mp4", res.RelPath)
	assert.Equal(t, "https://avatar.example.com/results/output/v15/job-1/v15/clip.mp4", res.PublicURL)
	assert.FileExists(t, res.LocalPath)

	// inference config handed to the script, then removed
	raw, err := os.ReadFile(filepath.Join(m.OutputDir(), "seen.yaml"))
	require.NoError(t, err)
	var tasks map[string]inferenceTask
	require.NoError(t, yaml.Unmarshal(raw, &tasks))
	assert.Equal(t, -3, tasks["task_0"].BBoxShift)
	assert.True(t, filepath.IsAbs(tasks["task_0"].VideoPath))
	assert.NoFileExists(t, filepath.Join(m.ConfigDir(), "generated_job-1.yaml"))
}

func TestRenderRelativeURLWithoutPublicBase(t *testing.T) {
	cfg := museConfig(t, `sh -c 'echo x > "$3/out.mp4"'`)
	m, err := NewMuseTalk(cfg, "", "", logger.Discard())
	require.NoError(t, err)

	res, err := m.Render(context.Background(), request("j"))
	require.NoError(t, err)
	assert.Equal(t, "/results/output/v15/j/out.mp4", res.PublicURL)
}

func TestRenderTimeout(t *testing.T) {
	cfg := museConfig(t, `sh -c 'exec sleep 5'`)
	m, err := NewMuseTalk(cfg, "", "", logger.Discard())
	require.NoError(t, err)

	req := request("slow")
	req.Budget = 100 * time.Millisecond

	start := time.Now()
	res, err := m.Render(context.Background(), req)
	assert.Nil(t, res)
	assert.True(t, utils.IsKind(err, utils.KindRenderTimeout), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second, "process must be killed")
}

func TestRenderNonZeroExit(t *testing.T) {
	cfg := museConfig(t, `sh -c 'echo "CUDA out of memory" >&2; exit 3'`)
	m, err := NewMuseTalk(cfg, "", "", logger.Discard())
	require.NoError(t, err)

	_, err = m.Render(context.Background(), request("boom"))
	assert.True(t, utils.IsKind(err, utils.KindRender))
	assert.Contains(t, utils.ClientMessage(err), "CUDA out of memory")
}

func TestRenderNoOutput(t *testing.T) {
	cfg := museConfig(t, `sh -c 'true'`)
	m, err := NewMuseTalk(cfg, "", "", logger.Discard())
	require.NoError(t, err)

	_, err = m.Render(context.Background(), request("empty"))
	assert.True(t, utils.IsKind(err, utils.KindRenderOutputMissing))
	assert.NoDirExists(t, filepath.Join(m.OutputDir(), "empty"))
}

func TestRenderSweepsStaleOutputs(t *testing.T) {
	cfg := museConfig(t, `sh -c 'echo x > "$3/new.mp4"'`)
	m, err := NewMuseTalk(cfg, "", "", logger.Discard())
	require.NoError(t, err)

	stale := filepath.Join(m.OutputDir(), "old-job", "old.mp4")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	_, err = m.Render(context.Background(), request("fresh"))
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
	assert.NoDirExists(t, filepath.Dir(stale))
}

func TestSweepKeepsResultDirsOfRunningRenders(t *testing.T) {
	m, err := NewMuseTalk(museConfig(t, "true"), "", "", logger.Discard())
	require.NoError(t, err)

	running := filepath.Join(m.OutputDir(), "running")
	finished := filepath.Join(m.OutputDir(), "finished")
	require.NoError(t, os.MkdirAll(running, 0o755))
	require.NoError(t, os.MkdirAll(finished, 0o755))

	m.track("running", true)
	m.sweepStale(logger.Discard().WithField("job_id", "other"))
	assert.DirExists(t, running)
	assert.NoDirExists(t, finished)

	m.track("running", false)
	m.sweepStale(logger.Discard().WithField("job_id", "other"))
	assert.NoDirExists(t, running)
}

func TestFlags(t *testing.T) {
	m, err := NewMuseTalk(museConfig(t, "python3 -m scripts.inference"), "/usr/bin/ffmpeg", "", nil)
	require.NoError(t, err)

	got := strings.Join(m.flags("cfg.yaml", "out"), " ")
	assert.Equal(t, "--inference_config cfg.yaml --result_dir out"+
		" --unet_model_path models/musetalkV15/unet.pth --unet_config models/musetalkV15/musetalk.json"+
		" --version v15 --fps 15 --batch_size 2 --use_float16 --ffmpeg_path /usr/bin/ffmpeg", got)
	assert.Equal(t, []string{"python3", "-m", "scripts.inference"}, m.cmd)
}
