package stt

import (
	"context"
	"strings"

	"github.com/yoockh/yoavatar/internal/utils"
)

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, language string) (text string, confidence float64, err error)
	Close() error
}

// Unconfigured stands in for a provider that could not be built at start-up.
// Every transcription fails with a ConfigurationError carrying the reason.
type Unconfigured struct {
	Provider string
	Cause    error
}

func (u Unconfigured) Transcribe(context.Context, []byte, string) (string, float64, error) {
	return "", 0, utils.K(utils.KindConfiguration, "stt.Unconfigured", u.Provider+" speech-to-text unavailable", u.Cause)
}

func (Unconfigured) Close() error { return nil }

// BCP47 expands a bare language hint into the region tagged form some
// recognizers require.
func BCP47(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "fr", "fr-fr":
		return "fr-FR"
	case "en", "en-us":
		return "en-US"
	case "id", "id-id":
		return "id-ID"
	default:
		return v
	}
}

// ISO639 reduces "fr-FR" to "fr".
func ISO639(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexAny(v, "-_"); i > 0 {
		v = v[:i]
	}
	return strings.ToLower(v)
}
