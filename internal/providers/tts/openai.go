package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/utils"
)

const DefaultOpenAIVoice = "alloy"

var openAIVoices = []models.Voice{
	{ID: "alloy", Name: "Alloy", Lang: "multi"},
	{ID: "echo", Name: "Echo", Lang: "multi"},
	{ID: "fable", Name: "Fable", Lang: "multi"},
	{ID: "onyx", Name: "Onyx", Lang: "multi"},
	{ID: "nova", Name: "Nova", Lang: "multi"},
	{ID: "shimmer", Name: "Shimmer", Lang: "multi"},
}

type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "tts-1"
	}
	return &OpenAI{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), model: model, client: &http.Client{}}
}

func (p *OpenAI) Name() string { return "openai" }
func (p *OpenAI) Configured() bool { return p.apiKey != "" }
func (p *OpenAI) Voices() []models.Voice { return append([]models.Voice(nil), openAIVoices...) }

type openAISpeechRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

func (p *OpenAI) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	const op = "OpenAITTS.Synthesize"

	if !p.Configured() {
		return nil, utils.K(utils.KindConfiguration, op, "OPENAI_API_KEY not configured", nil)
	}

	body, err := json.Marshal(openAISpeechRequest{
		Model:          p.model,
		Input:          text,
		Voice:          p.mapVoice(voiceID),
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, utils.K(utils.KindSpeechSynthesis, op, "request failed", err)
	}
	defer resp.Body.Close()

	return readAudio(op, resp)
}

// mapVoice falls back to the default voice for ids OpenAI does not know, such
// as the ElevenLabs default a client may send along.
func (p *OpenAI) mapVoice(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, v := range openAIVoices {
		if v.ID == id {
			return id
		}
	}
	return DefaultOpenAIVoice
}
