package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/utils"
)

const DefaultElevenLabsVoice = "EXAVITQu4vr4xnSDxMaL"

var elevenLabsVoices = []models.Voice{
	{ID: "EXAVITQu4vr4xnSDxMaL", Name: "Sarah (Femme)", Lang: "fr"},
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel (Femme)", Lang: "en"},
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam (Homme)", Lang: "en"},
	{ID: "yoZ06aMxZJJ28mfd3POQ", Name: "Sam (Homme)", Lang: "en"},
}

type ElevenLabs struct {
	apiKey  string
	baseURL string
	modelID string
	client  *http.Client

	Stability  float64
	Similarity float64
}

func NewElevenLabs(apiKey, baseURL, modelID string) *ElevenLabs {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &ElevenLabs{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		modelID:    modelID,
		client:     &http.Client{},
		Stability:  0.5,
		Similarity: 0.75,
	}
}

func (p *ElevenLabs) Name() string { return "elevenlabs" }
func (p *ElevenLabs) Configured() bool { return p.apiKey != "" }
func (p *ElevenLabs) Voices() []models.Voice { return append([]models.Voice(nil), elevenLabsVoices...) }

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenLabsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

func (p *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	const op = "ElevenLabsTTS.Synthesize"

	if !p.Configured() {
		return nil, utils.K(utils.KindConfiguration, op, "ELEVENLABS_API_KEY not configured", nil)
	}
	if voiceID = strings.TrimSpace(voiceID); voiceID == "" {
		voiceID = DefaultElevenLabsVoice
	}

	body, err := json.Marshal(elevenLabsRequest{
		Text:          text,
		ModelID:       p.modelID,
		VoiceSettings: voiceSettings{Stability: p.Stability, SimilarityBoost: p.Similarity},
	})
	if err != nil {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "encode request", err)
	}

	endpoint := p.baseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "build request", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "request failed", err)
	}
	defer resp.Body.Close()

	return readAudio(op, resp)
}
