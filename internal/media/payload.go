package media

import (
	"encoding/base64"
	"path/filepath"
	"strings"

	"github.com/yoockh/yoavatar/internal/utils"
)

const (
	defaultAudioExt  = ".webm"
	defaultAvatarExt = ".mp4"
)

var mimeExt = map[string]string{
	"audio/webm":  ".webm",
	"video/webm":  ".webm",
	"audio/ogg":   ".ogg",
	"audio/wav":   ".wav",
	"audio/wave":  ".wav",
	"audio/x-wav": ".wav",
	"audio/mpeg":  ".mp3",
	"audio/mp3":   ".mp3",
	"audio/mp4":   ".m4a",
	"audio/aac":   ".aac",
	"video/mp4":   ".mp4",
	"image/png":   ".png",
	"image/jpeg":  ".jpg",
}

// DecodePayload decodes plain base64 or a data URL. The returned mime type is
// empty when the payload carried none.
func DecodePayload(s string) ([]byte, string, error) {
	const op = "media.DecodePayload"

	s = strings.TrimSpace(s)
	mime := ""
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, "", utils.K(utils.KindInvalidInput, op, "malformed data url", nil)
		}
		header := s[len("data:"):i]
		mime = strings.ToLower(strings.SplitN(header, ";", 2)[0])
		s = s[i+1:]
	}
	if s == "" {
		return nil, mime, utils.K(utils.KindMissingInput, op, "empty payload", nil)
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, mime, nil
		}
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return nil, mime, utils.K(utils.KindInvalidInput, op, "payload is not valid base64", err)
}

// AudioExt picks the extension of a saved user recording.
func AudioExt(mime string) string {
	if ext, ok := mimeExt[mime]; ok {
		return ext
	}
	return defaultAudioExt
}

// AvatarExt derives the extension from a client supplied filename.
func AvatarExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 6 {
		return defaultAvatarExt
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return defaultAvatarExt
		}
	}
	return ext
}
