package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/utils"
)

// Provider synthesizes speech. Output is MP3 bytes.
type Provider interface {
	Name() string
	Configured() bool
	Voices() []models.Voice
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// Registry selects a provider by the name a client asked for.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Name()] = p
	}
	return r
}

// Get fails with a ConfigurationError for unknown providers and for providers
// missing their credential.
func (r *Registry) Get(name string) (Provider, error) {
	const op = "tts.Registry.Get"

	p, ok := r.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, utils.K(utils.KindConfiguration, op, fmt.Sprintf("unknown voice provider %q", name), nil)
	}
	if !p.Configured() {
		return nil, utils.K(utils.KindConfiguration, op, fmt.Sprintf("voice provider %q has no API key", p.Name()), nil)
	}
	return p, nil
}

// Catalog lists every known provider's voices, configured or not.
func (r *Registry) Catalog() models.VoiceCatalog {
	out := make(models.VoiceCatalog, len(r.providers))
	for name, p := range r.providers {
		out[name] = p.Voices()
	}
	return out
}

// Configured reports credential presence per provider name.
func (r *Registry) Configured() map[string]bool {
	out := make(map[string]bool, len(r.providers))
	for name, p := range r.providers {
		out[name] = p.Configured()
	}
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readAudio(op string, resp *http.Response) ([]byte, error) {
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, utils.K(utils.KindSpeechSynthesis, op, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), nil)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "read audio", err)
	}
	if len(b) == 0 {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "empty audio", nil)
	}
	return b, nil
}
