package renderer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/config"
	"github.com/yoockh/yoavatar/internal/media"
	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/utils"
	"gopkg.in/yaml.v3"
)

// MuseTalk runs the MuseTalk inference script as a child process.
type MuseTalk struct {
	cfg       config.MuseTalkConfig
	cmd       []string
	ffmpeg    string
	publicURL string
	log       *logrus.Logger
	now       func() time.Time

	mu     sync.Mutex
	active map[string]struct{} // job ids with a render in progress
}

func NewMuseTalk(cfg config.MuseTalkConfig, ffmpegPath, publicURL string, l *logrus.Logger) (*MuseTalk, error) {
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse render command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("render command empty")
	}
	if l == nil {
		l = logrus.New()
	}
	return &MuseTalk{
		cfg:       cfg,
		cmd:       args,
		ffmpeg:    ffmpegPath,
		publicURL: publicURL,
		log:       l,
		now:       time.Now,
		active:    make(map[string]struct{}),
	}, nil
}

type inferenceTask struct {
	VideoPath string `yaml:"video_path"`
	AudioPath string `yaml:"audio_path"`
	BBoxShift int    `yaml:"bbox_shift"`
}

func (m *MuseTalk) OutputDir() string { return filepath.Join(m.cfg.ResultsRoot, m.cfg.OutputSubdir) }

func (m *MuseTalk) ConfigDir() string { return filepath.Join(m.cfg.Dir, "configs", "inference") }

func (m *MuseTalk) InferenceScript() string {
	return filepath.Join(m.cfg.Dir, "scripts", "inference.py")
}

func (m *MuseTalk) Render(ctx context.Context, req RenderRequest) (*models.RenderResult, error) {
	const op = "MuseTalk.Render"
	log := m.log.WithField("job_id", req.JobID)

	m.track(req.JobID, true)
	defer m.track(req.JobID, false)

	m.sweepStale(log)

	resultDir := filepath.Join(m.OutputDir(), req.JobID)
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return nil, utils.K(utils.KindRender, op, "create result dir", err)
	}
	produced := false
	defer func() {
		if !produced {
			_ = os.Remove(resultDir) // only if the renderer left it empty
		}
	}()

	cfgPath, err := m.writeInferenceConfig(req)
	if err != nil {
		return nil, utils.K(utils.KindRender, op, "write inference config", err)
	}
	defer os.Remove(cfgPath)

	budget := req.Budget
	if budget <= 0 {
		budget = m.cfg.Timeout
	}
	rctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	args := append([]string{}, m.cmd[1:]...)
	args = append(args, m.flags(cfgPath, resultDir)...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(rctx, m.cmd[0], args...)
	cmd.Dir = m.cfg.Dir
	cmd.Stderr = &stderr
	cmd.WaitDelay = 5 * time.Second

	start := m.now()
	log.WithField("budget", budget.String()).Info("musetalk start")
	runErr := cmd.Run()
	elapsed := m.now().Sub(start)

	if runErr != nil {
		if errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, utils.K(utils.KindRenderTimeout, op, fmt.Sprintf("renderer exceeded %s", budget), nil)
		}
		if ctx.Err() != nil {
			return nil, utils.K(utils.KindRender, op, "render cancelled", ctx.Err())
		}
		log.WithField("stderr", media.Tail(stderr.String(), 2000)).Error("musetalk failed")
		return nil, utils.K(utils.KindRender, op, "renderer failed: "+media.Tail(stderr.String(), 400), runErr)
	}
	log.WithField("elapsed_ms", elapsed.Milliseconds()).Info("musetalk done")

	video, err := newestVideo(resultDir)
	if err != nil {
		return nil, utils.K(utils.KindRender, op, "scan result dir", err)
	}
	if video == "" {
		return nil, utils.K(utils.KindRenderOutputMissing, op, "renderer produced no video", nil)
	}
	produced = true
	return m.result(video)
}

func (m *MuseTalk) track(jobID string, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if running {
		m.active[jobID] = struct{}{}
	} else {
		delete(m.active, jobID)
	}
}

// rendering reports whether path lies in the result dir of a render in progress.
func (m *MuseTalk) rendering(path string) bool {
	rel, err := filepath.Rel(m.OutputDir(), path)
	if err != nil {
		return false
	}
	jobID := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[jobID]
	return ok
}

func (m *MuseTalk) flags(cfgPath, resultDir string) []string {
	f := []string{
		"--inference_config", cfgPath,
		"--result_dir", resultDir,
		"--unet_model_path", m.cfg.UNetModelPath,
		"--unet_config", m.cfg.UNetConfig,
		"--version", m.cfg.Version,
		"--fps", strconv.Itoa(m.cfg.FPS),
		"--batch_size", strconv.Itoa(m.cfg.BatchSize),
	}
	if m.cfg.Float16 {
		f = append(f, "--use_float16")
	}
	if m.ffmpeg != "" {
		f = append(f, "--ffmpeg_path", m.ffmpeg)
	}
	return f
}

func (m *MuseTalk) writeInferenceConfig(req RenderRequest) (string, error) {
	video, err := filepath.Abs(req.AvatarPath)
	if err != nil {
		return "", err
	}
	audio, err := filepath.Abs(req.AudioPath)
	if err != nil {
		return "", err
	}

	b, err := yaml.Marshal(map[string]inferenceTask{
		"task_0": {VideoPath: video, AudioPath: audio, BBoxShift: req.BBoxShift},
	})
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.ConfigDir(), 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(m.ConfigDir(), "generated_"+req.JobID+".yaml")
	return path, os.WriteFile(path, b, 0o644)
}

// result resolves the served location of a rendered file.
func (m *MuseTalk) result(video string) (*models.RenderResult, error) {
	rel, err := filepath.Rel(m.cfg.ResultsRoot, video)
	if err != nil {
		return nil, utils.K(utils.KindRender, "MuseTalk.result", "video outside results root", err)
	}
	rel = filepath.ToSlash(rel)
	return &models.RenderResult{
		LocalPath: video,
		RelPath:   rel,
		Filename:  filepath.Base(video),
		PublicURL: m.publicURL + "/results/" + rel,
	}, nil
}

func (m *MuseTalk) sweepStale(log *logrus.Entry) {
	res := media.Sweep(m.OutputDir(), media.HasExt(".mp4"), m.cfg.StaleAfter, m.now())
	for _, p := range res.Removed {
		log.WithField("path", p).Info("removed stale render")
	}
	for p, err := range res.Failed {
		log.WithError(err).WithField("path", p).Warn("could not remove stale render")
	}
	if pruned := media.PruneEmptyDirs(m.OutputDir(), m.rendering); len(pruned) > 0 {
		log.WithField("dirs", len(pruned)).Debug("removed empty result dirs")
	}
}

// newestVideo returns the most recently modified mp4 under dir, or "".
func newestVideo(dir string) (string, error) {
	var best string
	var bestMod time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != ".mp4" {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = path, info.ModTime()
		}
		return nil
	})
	return best, err
}
