package llm

import (
	"context"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"github.com/yoockh/yoavatar/internal/utils"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client    *vertexgenai.Client
	modelName string
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	if projectID == "" {
		return nil, utils.K(utils.KindConfiguration, "llm.NewVertexGemini", "GOOGLE_PROJECT_ID not configured", nil)
	}
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, utils.K(utils.KindConfiguration, "llm.NewVertexGemini", "vertex client", err)
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &VertexGemini{client: c, modelName: modelName}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

// Complete maps the conversation onto a chat session: system turns become the
// system instruction, the last turn is sent, the rest is history.
func (v *VertexGemini) Complete(ctx context.Context, in CompletionRequest) (string, error) {
	const op = "VertexGemini.Complete"

	m := v.client.GenerativeModel(v.modelName)
	if in.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(in.MaxTokens))
	}
	m.SetTemperature(float32(in.Temperature))

	var system []vertexgenai.Part
	var turns []*vertexgenai.Content
	for _, msg := range in.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, vertexgenai.Text(msg.Content))
		case RoleAssistant:
			turns = append(turns, &vertexgenai.Content{Role: "model", Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)}})
		default:
			turns = append(turns, &vertexgenai.Content{Role: "user", Parts: []vertexgenai.Part{vertexgenai.Text(msg.Content)}})
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &vertexgenai.Content{Parts: system}
	}
	if len(turns) == 0 {
		return "", utils.K(utils.KindReplyGeneration, op, "empty conversation", nil)
	}

	cs := m.StartChat()
	cs.History = turns[:len(turns)-1]
	last := turns[len(turns)-1]

	full := strings.Builder{}
	it := cs.SendMessageStream(ctx, last.Parts...)
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", utils.K(utils.KindReplyGeneration, op, "generate", err)
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if t, ok := part.(vertexgenai.Text); ok {
					full.WriteString(string(t))
				}
			}
		}
	}
	return strings.TrimSpace(full.String()), nil
}
