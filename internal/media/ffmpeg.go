package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoavatar/internal/utils"
)

// Transcoder converts any audio file into mono 16 kHz WAV. With pcm set the
// output is forced to 16-bit PCM, which the renderer requires.
type Transcoder interface {
	ToCanonical(ctx context.Context, src, dst string, pcm bool) error
}

type FFmpeg struct {
	cmd []string
	log *logrus.Logger
}

func NewFFmpeg(command string, l *logrus.Logger) (*FFmpeg, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse ffmpeg command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("ffmpeg command empty")
	}
	if l == nil {
		l = logrus.New()
	}
	return &FFmpeg{cmd: args, log: l}, nil
}

func (f *FFmpeg) ToCanonical(ctx context.Context, src, dst string, pcm bool) error {
	const op = "FFmpeg.ToCanonical"

	args := append([]string{}, f.cmd[1:]...)
	args = append(args, "-y", "-i", src, "-ar", "16000", "-ac", "1")
	if pcm {
		args = append(args, "-acodec", "pcm_s16le", "-threads", "2")
	}
	args = append(args, dst)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.cmd[0], args...)
	cmd.Stderr = &stderr

	f.log.WithFields(logrus.Fields{"src": src, "dst": dst}).Debug("ffmpeg")
	if err := cmd.Run(); err != nil {
		return utils.K(utils.KindTranscode, op, "conversion failed: "+Tail(stderr.String(), 400), err)
	}

	if pcm {
		if err := VerifyCanonicalWAV(dst); err != nil {
			return utils.K(utils.KindTranscode, op, "unexpected output format", err)
		}
	}
	return nil
}

// Tail keeps the last n bytes of s, trimmed.
func Tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n:]
}
