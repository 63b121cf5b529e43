package workers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/media"
	"github.com/yoockh/yoavatar/internal/metrics"
	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/providers/llm"
	"github.com/yoockh/yoavatar/internal/providers/renderer"
	"github.com/yoockh/yoavatar/internal/providers/stt"
	"github.com/yoockh/yoavatar/internal/providers/tts"
	"github.com/yoockh/yoavatar/internal/realtime"
	"github.com/yoockh/yoavatar/internal/utils"
)

// Publisher delivers a rendered file and returns its remote URL.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

type PipelineConfig struct {
	Language     string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	HistoryLimit int
	RenderBudget time.Duration
	OutputDir    string // download copies
}

// AvatarPipeline runs one chat job end to end: staging, transcription, reply,
// speech, render, delivery. Progress goes to the job's client as it happens.
type AvatarPipeline struct {
	Stager    *media.Stager
	STT       stt.Provider
	LLM       llm.Provider
	Voices    *tts.Registry
	Renderer  renderer.Renderer
	Publisher Publisher // nil: always serve locally
	Events    realtime.Emitter
	Metrics   *metrics.Metrics
	Log       *logrus.Logger
	Cfg       PipelineConfig
}

// Run never returns an error: the outcome is reported to the client, either as
// chat_result or as a single error event.
func (p *AvatarPipeline) Run(ctx context.Context, job *models.Job) {
	log := p.Log.WithFields(logrus.Fields{"job_id": job.ID, "client_id": job.ClientID})
	start := time.Now()
	outcome := "success"

	p.Metrics.JobStarted()
	defer func() {
		if r := recover(); r != nil {
			err := utils.K(utils.KindInternal, "AvatarPipeline.Run", fmt.Sprintf("panic: %v", r), nil)
			log.WithField("stack", string(debug.Stack())).Error("pipeline panic")
			p.fail(ctx, job, log, err)
			outcome = string(utils.KindInternal)
		}
		p.Metrics.JobFinished(outcome)
		log.WithFields(logrus.Fields{"outcome": outcome, "total_ms": time.Since(start).Milliseconds()}).Info("job finished")
	}()

	res, err := p.run(ctx, job, log)
	if err != nil {
		outcome = string(utils.KindOf(err))
		p.fail(ctx, job, log, err)
		return
	}
	p.emit(ctx, job, models.EventChatResult, res)
}

func (p *AvatarPipeline) run(ctx context.Context, job *models.Job, log *logrus.Entry) (*models.ChatResult, error) {
	const op = "AvatarPipeline.run"

	if err := validate(job); err != nil {
		return nil, err
	}

	tr := newStateTracker(log, p.Metrics)
	defer tr.fail()

	// staging
	p.status(ctx, job, models.StageSavingAudio)
	rawAudio, err := p.Stager.SaveUserAudio(job)
	if err != nil {
		return nil, err
	}
	userWav, err := p.Stager.Canonicalize(ctx, job, rawAudio)
	if err != nil {
		return nil, err
	}

	p.status(ctx, job, models.StageSavingAvatar)
	avatar, err := p.Stager.SaveAvatar(ctx, job)
	if err != nil {
		return nil, err
	}

	// transcribing
	if err := tr.advance(stateTranscribing); err != nil {
		return nil, err
	}
	p.status(ctx, job, models.StageTranscription)
	pcm, err := os.ReadFile(userWav.Path)
	if err != nil {
		return nil, utils.K(utils.KindTranscode, op, "read canonical audio", err)
	}
	userText, _, err := p.STT.Transcribe(ctx, pcm, p.Cfg.Language)
	if err != nil {
		return nil, withKind(err, utils.KindTranscription, op)
	}
	if userText == "" {
		log.Warn("empty transcript")
	}
	log.WithField("user_text", userText).Info("transcribed")
	p.emit(ctx, job, models.EventTranscription, models.TextEvent{Text: userText})

	// generating reply
	if err := tr.advance(stateGeneratingReply); err != nil {
		return nil, err
	}
	p.status(ctx, job, models.StageAIResponse)
	reply, err := p.LLM.Complete(ctx, llm.CompletionRequest{
		Messages:    llm.BuildMessages(p.Cfg.SystemPrompt, job.History, userText, p.Cfg.HistoryLimit),
		MaxTokens:   p.Cfg.MaxTokens,
		Temperature: p.Cfg.Temperature,
	})
	if err != nil {
		return nil, withKind(err, utils.KindReplyGeneration, op)
	}
	log.WithField("ai_response", reply).Info("reply generated")
	p.emit(ctx, job, models.EventAIResponse, models.TextEvent{Text: reply})

	// synthesizing speech
	if err := tr.advance(stateSynthesizingSpeech); err != nil {
		return nil, err
	}
	p.status(ctx, job, models.StageTTS)
	voice, err := p.Voices.Get(job.VoiceProvider)
	if err != nil {
		return nil, err
	}
	speech, err := voice.Synthesize(ctx, reply, job.VoiceID)
	if err != nil {
		return nil, withKind(err, utils.KindSpeechSynthesis, op)
	}
	speechMP3, err := p.Stager.SaveSpeech(job, voice.Name(), speech)
	if err != nil {
		return nil, err
	}
	speechWav, err := p.Stager.CanonicalizeSpeech(ctx, job, speechMP3)
	if err != nil {
		return nil, err
	}

	// rendering
	if err := tr.advance(stateRenderingVideo); err != nil {
		return nil, err
	}
	p.status(ctx, job, models.StageAvatarGeneration)
	work, err := p.Stager.PrepareWorkDir(job, avatar, speechWav)
	if err != nil {
		return nil, err
	}
	defer p.Stager.ReleaseWorkDir(job)

	rendered, err := p.Renderer.Render(ctx, renderer.RenderRequest{
		JobID:      job.ID,
		AvatarPath: work.Avatar,
		AudioPath:  work.Audio,
		BBoxShift:  job.BBoxShift,
		Budget:     p.Cfg.RenderBudget,
	})
	if err != nil {
		return nil, withKind(err, utils.KindRender, op)
	}

	// delivering
	if err := tr.advance(stateDelivering); err != nil {
		return nil, err
	}
	videoURL, delivered := p.deliver(ctx, rendered, log)
	p.keepDownloadCopy(rendered, log)

	if err := tr.advance(stateComplete); err != nil {
		return nil, err
	}
	p.status(ctx, job, models.StageComplete)

	return &models.ChatResult{
		Success:        true,
		UserText:       userText,
		AIResponse:     reply,
		AudioURL:       "/api/audio/" + filepath.Base(speechMP3.Path),
		VideoURL:       videoURL,
		LocalVideoPath: rendered.LocalPath,
		Filename:       rendered.Filename,
		DownloadURL:    "/api/download/" + rendered.Filename,
		Delivered:      delivered,
		Timestamp:      job.CreatedAt.Format("20060102_150405"),
	}, nil
}

// deliver pushes the video to the remote target. Any failure falls back to the
// URL the results route serves.
func (p *AvatarPipeline) deliver(ctx context.Context, r *models.RenderResult, log *logrus.Entry) (string, bool) {
	if p.Publisher != nil {
		url, err := p.Publisher.Publish(ctx, r.LocalPath)
		if err == nil && url != "" {
			return url, true
		}
		log.WithError(err).Warn("delivery failed, serving rendered video locally")
	}
	p.Metrics.DeliveryFallback()
	return r.PublicURL, false
}

func (p *AvatarPipeline) keepDownloadCopy(r *models.RenderResult, log *logrus.Entry) {
	if p.Cfg.OutputDir == "" {
		return
	}
	if err := media.CopyFile(r.LocalPath, filepath.Join(p.Cfg.OutputDir, r.Filename)); err != nil {
		log.WithError(err).Warn("could not copy video to output dir")
	}
}

func (p *AvatarPipeline) status(ctx context.Context, job *models.Job, s models.Stage) {
	p.emit(ctx, job, models.EventStatus, models.NewProgress(s))
}

func (p *AvatarPipeline) emit(ctx context.Context, job *models.Job, event string, data any) {
	p.Events.Emit(ctx, job.ClientID, event, data)
}

func (p *AvatarPipeline) fail(ctx context.Context, job *models.Job, log *logrus.Entry, err error) {
	kind := utils.KindOf(err)
	log.WithError(err).WithField("kind", kind).Error("job failed")
	p.emit(ctx, job, models.EventError, models.ErrorEvent{
		Message: utils.ClientMessage(err),
		Kind:    string(kind),
	})
}

func validate(job *models.Job) error {
	const op = "AvatarPipeline.validate"
	if job.AudioData == "" {
		return utils.K(utils.KindMissingInput, op, "audio_data is required", nil)
	}
	if job.Avatar.Empty() {
		return utils.K(utils.KindMissingInput, op, "no avatar supplied (avatar_data or avatar_url)", nil)
	}
	return nil
}

// withKind tags errors from collaborators that did not classify them.
func withKind(err error, kind utils.Kind, op string) error {
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Kind != "" {
		return err
	}
	return utils.K(kind, op, "", err)
}
