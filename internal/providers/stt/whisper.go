package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/yoockh/yoavatar/internal/utils"
)

// Whisper calls the OpenAI transcription endpoint.
type Whisper struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewWhisper(apiKey, baseURL, model string) *Whisper {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "whisper-1"
	}
	return &Whisper{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), model: model, client: &http.Client{}}
}

func (w *Whisper) Close() error { return nil }

type whisperResponse struct {
	Text string `json:"text"`
}

func (w *Whisper) Transcribe(ctx context.Context, audio []byte, language string) (string, float64, error) {
	const op = "Whisper.Transcribe"

	if w.apiKey == "" {
		return "", 0, utils.K(utils.KindConfiguration, op, "OPENAI_API_KEY not configured", nil)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", 0, utils.K(utils.KindTranscription, op, "build request", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", 0, utils.K(utils.KindTranscription, op, "build request", err)
	}
	_ = mw.WriteField("model", w.model)
	_ = mw.WriteField("response_format", "json")
	if lang := ISO639(language); lang != "" {
		_ = mw.WriteField("language", lang)
	}
	if err := mw.Close(); err != nil {
		return "", 0, utils.K(utils.KindTranscription, op, "build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", 0, utils.K(utils.KindTranscription, op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return "", 0, utils.K(utils.KindTranscription, op, "request failed", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", 0, utils.K(utils.KindTranscription, op, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var out whisperResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", 0, utils.K(utils.KindTranscription, op, "decode response", err)
	}
	// whisper reports no confidence
	return strings.TrimSpace(out.Text), 1, nil
}
