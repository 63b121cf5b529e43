package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/utils"
)

type OpenAIChat struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIChat(apiKey, baseURL, model string) *OpenAIChat {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIChat{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), model: model, client: &http.Client{}}
}

func (o *OpenAIChat) Close() error { return nil }

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []models.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature float64              `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAIChat) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	const op = "OpenAIChat.Complete"

	if o.apiKey == "" {
		return "", utils.K(utils.KindConfiguration, op, "OPENAI_API_KEY not configured", nil)
	}

	body, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    in.Messages,
		MaxTokens:   in.MaxTokens,
		Temperature: in.Temperature,
	})
	if err != nil {
		return "", utils.K(utils.KindReplyGeneration, op, "encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", utils.K(utils.KindReplyGeneration, op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", utils.K(utils.KindReplyGeneration, op, "request failed", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	var out chatResponse
	decErr := json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decErr == nil && out.Error != nil {
			msg = out.Error.Message
		}
		return "", utils.K(utils.KindReplyGeneration, op, fmt.Sprintf("status %d: %s", resp.StatusCode, msg), nil)
	}
	if decErr != nil {
		return "", utils.K(utils.KindReplyGeneration, op, "decode response", decErr)
	}
	if len(out.Choices) == 0 {
		return "", utils.K(utils.KindReplyGeneration, op, "no choices returned", nil)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
