package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/cache"
	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/utils"
)

const maxAvatarBytes = 512 << 20

// Stager writes the files of a job. Every name carries the job stamp so two
// jobs never share a file.
type Stager struct {
	AudioDir  string
	AvatarDir string
	OutputDir string
	WorkDir   string

	Transcoder Transcoder
	HTTP       *http.Client
	Avatars    cache.AvatarCache // optional
	Log        *logrus.Logger
}

// WorkSet is the per-job render input directory.
type WorkSet struct {
	Dir    string
	Avatar string
	Audio  string
}

func (s *Stager) logger() *logrus.Logger {
	if s.Log == nil {
		s.Log = logrus.New()
	}
	return s.Log
}

func (s *Stager) SaveUserAudio(job *models.Job) (models.StagedArtifact, error) {
	const op = "Stager.SaveUserAudio"

	data, mime, err := DecodePayload(job.AudioData)
	if err != nil {
		return models.StagedArtifact{}, err
	}
	ext := AudioExt(mime)
	name := "user_" + job.Stamp() + ext
	if ext == ".wav" {
		// keep the canonical name free for the converted file
		name = "user_" + job.Stamp() + "_src.wav"
	}

	path := filepath.Join(s.AudioDir, name)
	if err := writeFile(path, data); err != nil {
		return models.StagedArtifact{}, utils.K(utils.KindInternal, op, "write user audio", err)
	}
	return artifact(path, models.ArtifactUserAudio), nil
}

// SaveAvatar stages inline avatar bytes, or downloads the avatar URL.
func (s *Stager) SaveAvatar(ctx context.Context, job *models.Job) (models.StagedArtifact, error) {
	const op = "Stager.SaveAvatar"

	switch {
	case job.Avatar.Data != "":
		data, _, err := DecodePayload(job.Avatar.Data)
		if err != nil {
			return models.StagedArtifact{}, err
		}
		path := filepath.Join(s.AvatarDir, "avatar_"+job.Stamp()+AvatarExt(job.Avatar.Filename))
		if err := writeFile(path, data); err != nil {
			return models.StagedArtifact{}, utils.K(utils.KindInternal, op, "write avatar", err)
		}
		return artifact(path, models.ArtifactAvatar), nil

	case job.Avatar.URL != "":
		path := filepath.Join(s.AvatarDir, "avatar_"+job.Stamp()+defaultAvatarExt)
		if err := s.fetchAvatar(ctx, job.Avatar.URL, path); err != nil {
			return models.StagedArtifact{}, err
		}
		return artifact(path, models.ArtifactAvatar), nil

	default:
		return models.StagedArtifact{}, utils.K(utils.KindMissingInput, op, "no avatar supplied (avatar_data or avatar_url)", nil)
	}
}

func (s *Stager) fetchAvatar(ctx context.Context, url, dst string) error {
	const op = "Stager.fetchAvatar"
	log := s.logger().WithField("avatar_url", url)

	if s.Avatars != nil {
		if e, ok := s.Avatars.Lookup(ctx, url); ok {
			if err := CopyFile(e.Path, dst); err == nil {
				log.Debug("avatar cache hit")
				return nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return utils.K(utils.KindMissingInput, op, "invalid avatar url", err)
	}
	client := s.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return utils.K(utils.KindMissingInput, op, "avatar download failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return utils.K(utils.KindMissingInput, op, fmt.Sprintf("avatar download returned status %d", resp.StatusCode), nil)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return utils.K(utils.KindInternal, op, "create avatar dir", err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return utils.K(utils.KindInternal, op, "create avatar file", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, maxAvatarBytes))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return utils.K(utils.KindMissingInput, op, "avatar download interrupted", err)
	}
	if n == 0 {
		_ = os.Remove(dst)
		return utils.K(utils.KindMissingInput, op, "avatar download is empty", nil)
	}

	if s.Avatars != nil {
		s.Avatars.Remember(ctx, url, cache.AvatarEntry{
			Path:        dst,
			ContentType: resp.Header.Get("Content-Type"),
			FetchedAt:   time.Now().UTC(),
		})
	}
	log.WithField("bytes", n).Debug("avatar downloaded")
	return nil
}

// Canonicalize converts the saved user recording to user_<stamp>.wav.
func (s *Stager) Canonicalize(ctx context.Context, job *models.Job, src models.StagedArtifact) (models.StagedArtifact, error) {
	dst := filepath.Join(s.AudioDir, "user_"+job.Stamp()+".wav")
	if err := s.Transcoder.ToCanonical(ctx, src.Path, dst, false); err != nil {
		return models.StagedArtifact{}, err
	}
	return artifact(dst, models.ArtifactUserAudio), nil
}

// SaveSpeech writes synthesized audio as tts_<provider>_<stamp>.mp3.
func (s *Stager) SaveSpeech(job *models.Job, provider string, data []byte) (models.StagedArtifact, error) {
	const op = "Stager.SaveSpeech"

	path := filepath.Join(s.OutputDir, "tts_"+provider+"_"+job.Stamp()+".mp3")
	if err := writeFile(path, data); err != nil {
		return models.StagedArtifact{}, utils.K(utils.KindInternal, op, "write speech", err)
	}
	return artifact(path, models.ArtifactTTSAudio), nil
}

// CanonicalizeSpeech converts synthesized speech to 16-bit PCM tts_<stamp>.wav.
func (s *Stager) CanonicalizeSpeech(ctx context.Context, job *models.Job, src models.StagedArtifact) (models.StagedArtifact, error) {
	dst := filepath.Join(s.OutputDir, "tts_"+job.Stamp()+".wav")
	if err := s.Transcoder.ToCanonical(ctx, src.Path, dst, true); err != nil {
		return models.StagedArtifact{}, err
	}
	return artifact(dst, models.ArtifactTTSAudio), nil
}

// PrepareWorkDir copies the render inputs into <work>/jobs/<job id>/. The
// renderer names its output after both inputs, so they carry the job stamp.
func (s *Stager) PrepareWorkDir(job *models.Job, avatar, speech models.StagedArtifact) (WorkSet, error) {
	const op = "Stager.PrepareWorkDir"

	dir := s.JobDir(job)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WorkSet{}, utils.K(utils.KindInternal, op, "create work dir", err)
	}
	ws := WorkSet{
		Dir:    dir,
		Avatar: filepath.Join(dir, "avatar_"+job.Stamp()+filepath.Ext(avatar.Path)),
		Audio:  filepath.Join(dir, "speech_"+job.Stamp()+".wav"),
	}
	if err := CopyFile(avatar.Path, ws.Avatar); err != nil {
		return WorkSet{}, utils.K(utils.KindInternal, op, "copy avatar", err)
	}
	if err := CopyFile(speech.Path, ws.Audio); err != nil {
		return WorkSet{}, utils.K(utils.KindInternal, op, "copy speech", err)
	}
	return ws, nil
}

func (s *Stager) JobDir(job *models.Job) string {
	return filepath.Join(s.WorkDir, "jobs", job.ID)
}

// ReleaseWorkDir removes the job's work dir.
func (s *Stager) ReleaseWorkDir(job *models.Job) {
	if err := os.RemoveAll(s.JobDir(job)); err != nil {
		s.logger().WithError(err).WithField("job_id", job.ID).Warn("remove work dir")
	}
}

// CopyFile copies src to dst, creating dst's directory.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func artifact(path string, role models.ArtifactRole) models.StagedArtifact {
	return models.StagedArtifact{Path: path, Role: role, CreatedAt: time.Now().UTC()}
}
