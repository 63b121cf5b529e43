package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoavatar/config"
	"github.com/yoockh/yoavatar/internal/api/handlers"
	"github.com/yoockh/yoavatar/internal/api/middleware"
	"github.com/yoockh/yoavatar/internal/api/routes"
	"github.com/yoockh/yoavatar/internal/cache"
	"github.com/yoockh/yoavatar/internal/logger"
	"github.com/yoockh/yoavatar/internal/media"
	"github.com/yoockh/yoavatar/internal/metrics"
	"github.com/yoockh/yoavatar/internal/providers/llm"
	"github.com/yoockh/yoavatar/internal/providers/renderer"
	"github.com/yoockh/yoavatar/internal/providers/stt"
	"github.com/yoockh/yoavatar/internal/providers/tts"
	"github.com/yoockh/yoavatar/internal/realtime"
	"github.com/yoockh/yoavatar/internal/services"
	"github.com/yoockh/yoavatar/internal/storage"
	"github.com/yoockh/yoavatar/internal/workers"
)

const avatarCacheTTL = 6 * time.Hour

func main() {
	_ = godotenv.Load()

	log := logger.New()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Staging dirs
	for _, dir := range cfg.StagingDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.WithError(err).WithField("dir", dir).Fatal("create staging dir")
		}
	}

	render, err := renderer.NewMuseTalk(cfg.MuseTalk, cfg.Staging.FFmpeg, cfg.PublicURL, log)
	if err != nil {
		log.WithError(err).Fatal("renderer init")
	}
	if err := os.MkdirAll(render.ConfigDir(), 0o755); err != nil {
		log.WithError(err).Warn("create inference config dir")
	}
	banner(log, cfg, render)

	// Init Redis (optional)
	rdb, err := config.NewRedis(ctx, config.RedisAddr())
	if err != nil {
		log.WithError(err).Fatal("redis init")
	}

	var (
		events  realtime.Emitter
		hub     *realtime.Hub
		avatars cache.AvatarCache
	)
	if rdb != nil {
		defer rdb.Close()
		events = realtime.NewRedisEmitter(rdb, log)
		avatars = cache.NewRedisAvatarCache(rdb, avatarCacheTTL)
		log.Info("redis connected, events relayed through pub/sub")
	} else {
		hub = realtime.NewHub(log)
		events = hub
		avatars = cache.NewMemoryAvatarCache(avatarCacheTTL)
	}

	transcriber := newSTT(ctx, cfg, log)
	defer transcriber.Close()

	replier := newLLM(ctx, cfg, log)
	defer replier.Close()

	voices := tts.NewRegistry(
		tts.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.TTSModel),
		tts.NewElevenLabs(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.BaseURL, cfg.ElevenLabs.ModelID),
	)

	ffmpeg, err := media.NewFFmpeg(cfg.Staging.FFmpeg, log)
	if err != nil {
		log.WithError(err).Fatal("ffmpeg init")
	}

	m := metrics.New()

	registry := realtime.NewRegistry()
	m.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "yoavatar_ws_connections",
		Help: "Live realtime connections",
	}, func() float64 { return float64(registry.Count()) }))

	publisher := newPublisher(ctx, cfg, log)

	pipeline := &workers.AvatarPipeline{
		Stager: &media.Stager{
			AudioDir:   cfg.Staging.AudioDir,
			AvatarDir:  cfg.Staging.AvatarDir,
			OutputDir:  cfg.Staging.OutputDir,
			WorkDir:    cfg.Staging.WorkDir,
			Transcoder: ffmpeg,
			HTTP:       &http.Client{Timeout: 2 * time.Minute},
			Avatars:    avatars,
			Log:        log,
		},
		STT:      transcriber,
		LLM:      replier,
		Voices:   voices,
		Renderer: render,
		Events:   events,
		Metrics:  m,
		Log:      log,
		Cfg: workers.PipelineConfig{
			Language:     cfg.Language,
			SystemPrompt: cfg.Reply.SystemPrompt,
			MaxTokens:    cfg.Reply.MaxTokens,
			Temperature:  cfg.Reply.Temperature,
			HistoryLimit: cfg.Reply.HistoryLimit,
			RenderBudget: cfg.MuseTalk.Timeout,
			OutputDir:    cfg.Staging.OutputDir,
		},
	}
	if publisher.Mode() != "none" {
		pipeline.Publisher = publisher
	}

	// jobs outlive their connection but not the server
	jobsCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	dispatcher := workers.NewChatDispatcher(jobsCtx, pipeline, events, cfg.MaxConcurrentJobs, m, log)
	chats := services.NewChatService(dispatcher)

	janitor := services.NewJanitorService(
		services.StagingDirs(cfg.Staging.OutputDir, cfg.Staging.UploadDir, cfg.Staging.AvatarDir, cfg.Staging.AudioDir, cfg.Staging.WorkDir),
		cfg.Staging.Retention, cfg.Staging.Schedule, log,
	)
	if err := janitor.Start(); err != nil {
		log.WithError(err).Fatal("janitor init")
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log, m))
	routes.RegisterRoutes(r, routes.Deps{
		System: handlers.NewSystemHandler(registry, chats, voices, handlers.SystemInfo{
			MuseTalk: handlers.MuseTalkPaths{
				Dir:             cfg.MuseTalk.Dir,
				Results:         cfg.MuseTalk.ResultsRoot,
				OutputDir:       render.OutputDir(),
				InferenceScript: render.InferenceScript(),
				ConfigDir:       render.ConfigDir(),
			},
			Directories: map[string]string{
				"outputs": cfg.Staging.OutputDir,
				"uploads": cfg.Staging.UploadDir,
				"avatars": cfg.Staging.AvatarDir,
				"audio":   cfg.Staging.AudioDir,
				"work":    cfg.Staging.WorkDir,
			},
			APIKeys:      voices.Configured(),
			DeliveryMode: publisher.Mode(),
		}),
		Media:       handlers.NewMediaHandler(cfg.Staging.OutputDir),
		WS:          handlers.NewWSHandler(registry, hub, rdb, chats, voices, log),
		ResultsRoot: cfg.MuseTalk.ResultsRoot,
		Metrics:     m.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		log.WithField("in_flight", dispatcher.InFlight()).Warn("jobs still running, cancelling")
		cancelJobs()
	}
	janitor.Stop(shutdownCtx)
}

// newSTT and newLLM never fail start-up: a provider that cannot be built is
// replaced by one that fails each job with a ConfigurationError.
func newSTT(ctx context.Context, cfg config.Config, log *logrus.Logger) stt.Provider {
	if cfg.STTProvider != "google" {
		return stt.NewWhisper(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.STTModel)
	}
	g, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.WithError(err).Warn("google speech unavailable, transcription will fail")
		return stt.Unconfigured{Provider: "google", Cause: err}
	}
	return g
}

func newLLM(ctx context.Context, cfg config.Config, log *logrus.Logger) llm.Provider {
	if cfg.LLMProvider != "vertex" {
		return llm.NewOpenAIChat(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.ChatModel)
	}
	v, err := llm.NewVertexGemini(ctx, cfg.Google.ProjectID, cfg.Google.VertexLocation, cfg.Google.VertexModel)
	if err != nil {
		log.WithError(err).Warn("vertex unavailable, reply generation will fail")
		return llm.Unconfigured{Provider: "vertex", Cause: err}
	}
	return v
}

// newPublisher never fails start-up: a delivery target that cannot be set up
// leaves every render served locally.
func newPublisher(ctx context.Context, cfg config.Config, log *logrus.Logger) *storage.Publisher {
	d := cfg.Delivery
	var (
		up  storage.Uploader
		err error
	)
	switch d.Mode {
	case "scp":
		up, err = storage.NewSCPUploader(storage.SCPConfig{
			Host:           d.Host,
			Port:           d.Port,
			User:           d.User,
			KeyFile:        d.KeyFile,
			KnownHostsFile: d.KnownHostsFile,
			RemoteDir:      d.RemoteDir,
			PublicBaseURL:  d.PublicBaseURL,
			Timeout:        d.Timeout,
		})
	case "gcs":
		up, err = storage.NewGCSUploader(ctx, d.Bucket, "renders")
	case "none", "":
	default:
		log.WithField("mode", d.Mode).Warn("unknown delivery mode, serving locally")
	}
	if err != nil {
		log.WithError(err).WithField("mode", d.Mode).Warn("delivery disabled")
		up = nil
	}
	return storage.NewPublisher(up, d.Mode, log)
}

func banner(log *logrus.Logger, cfg config.Config, render *renderer.MuseTalk) {
	_, scriptErr := os.Stat(render.InferenceScript())
	log.WithFields(logrus.Fields{
		"openai_key":       cfg.OpenAI.APIKey != "",
		"elevenlabs_key":   cfg.ElevenLabs.APIKey != "",
		"stt_provider":     cfg.STTProvider,
		"llm_provider":     cfg.LLMProvider,
		"musetalk_dir":     cfg.MuseTalk.Dir,
		"results_dir":      filepath.Clean(render.OutputDir()),
		"inference_script": scriptErr == nil,
		"delivery_mode":    cfg.Delivery.Mode,
		"max_jobs":         cfg.MaxConcurrentJobs,
	}).Info("starting avatar backend")
}
