package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoavatar/internal/logger"
	"github.com/yoockh/yoavatar/internal/utils"
)

// fakeFFmpeg writes a script that copies fixture to its last argument and
// records its arguments in args.txt.
func fakeFFmpeg(t *testing.T, fixture string, exitCode int) (*FFmpeg, string) {
	t.Helper()
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "ffmpeg.sh")
	body := "#!/bin/sh\n" +
		"echo \"$@\" > '" + argsFile + "'\n" +
		"for last; do :; done\n"
	if exitCode != 0 {
		body += "echo 'Invalid data found when processing input' >&2\nexit 1\n"
	} else {
		body += "cp '" + fixture + "' \"$last\"\n"
	}
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	f, err := NewFFmpeg("sh "+script, logger.Discard())
	require.NoError(t, err)
	return f, argsFile
}

func TestFFmpegToCanonicalPCM(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.wav")
	writeWAV(t, fixture, 16000, 1)

	f, argsFile := fakeFFmpeg(t, fixture, 0)
	dst := filepath.Join(dir, "out.wav")
	require.NoError(t, f.ToCanonical(context.Background(), "in.mp3", dst, true))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	assert.Equal(t, "-y -i in.mp3 -ar 16000 -ac 1 -acodec pcm_s16le -threads 2 "+dst+"\n", string(args))
}

func TestFFmpegRejectsWrongFormat(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.wav")
	writeWAV(t, fixture, 44100, 2)

	f, _ := fakeFFmpeg(t, fixture, 0)
	err := f.ToCanonical(context.Background(), "in.mp3", filepath.Join(dir, "out.wav"), true)
	assert.True(t, utils.IsKind(err, utils.KindTranscode))
}

func TestFFmpegFailure(t *testing.T) {
	f, _ := fakeFFmpeg(t, "", 1)
	err := f.ToCanonical(context.Background(), "in.webm", filepath.Join(t.TempDir(), "out.wav"), false)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.KindTranscode))
	assert.Contains(t, utils.ClientMessage(err), "Invalid data found")
}

func TestNewFFmpegEmptyCommand(t *testing.T) {
	_, err := NewFFmpeg("  ", nil)
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", Tail("  abc \n", 10))
	assert.Equal(t, "…def", Tail("abcdef", 3))
}
