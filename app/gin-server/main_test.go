package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoavatar/config"
	"github.com/yoockh/yoavatar/internal/logger"
	"github.com/yoockh/yoavatar/internal/providers/llm"
	"github.com/yoockh/yoavatar/internal/utils"
)

func TestNewLLMWithoutProjectDegradesToConfigurationError(t *testing.T) {
	var cfg config.Config
	cfg.LLMProvider = "vertex"

	p := newLLM(context.Background(), cfg, logger.Discard())
	require.IsType(t, llm.Unconfigured{}, p)

	_, err := p.Complete(context.Background(), llm.CompletionRequest{})
	assert.True(t, utils.IsKind(err, utils.KindConfiguration))
	assert.NoError(t, p.Close())
}

func TestNewLLMDefaultsToOpenAI(t *testing.T) {
	p := newLLM(context.Background(), config.Config{}, logger.Discard())
	assert.IsType(t, &llm.OpenAIChat{}, p)
}
