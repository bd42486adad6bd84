package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefbot"
	"chefbot/llm/mock"
)

func TestNewLLMClient(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		pc       chefbot.ProviderConfig
		wantErr  string
	}{
		{name: "mock", provider: "mock"},
		{name: "ollama", provider: "ollama", pc: chefbot.ProviderConfig{BaseOllamaEndpoint: "http://localhost:11434"}},
		{name: "groq without key", provider: "groq", wantErr: "GROQ_API_KEY"},
		{name: "anthropic without key", provider: "anthropic", wantErr: "ANTHROPIC_API_KEY"},
		{name: "unknown", provider: "openai", wantErr: `unknown provider "openai"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newLLMClient(context.Background(), chefbot.ModelConfig{Provider: tt.provider, ModelID: "m"}, tt.pc)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestArgOr(t *testing.T) {
	assert.Equal(t, "def", argOr(nil, 0, "def"))
	assert.Equal(t, "def", argOr([]string{"  "}, 0, "def"))
	assert.Equal(t, "x", argOr([]string{"x"}, 0, "def"))
}

func TestReadTurns(t *testing.T) {
	assert.Equal(t, []string{"bonjour", "l'addition"}, readTurns(strings.NewReader("bonjour\n\n  l'addition \n")))
	assert.Empty(t, readTurns(strings.NewReader("")))
}

func TestAskCommand(t *testing.T) {
	current = &app{client: mock.NewChef(), model: chefbot.ModelConfig{ModelID: "m"}}
	t.Cleanup(func() { current = nil })

	var out bytes.Buffer
	askCmd.SetOut(&out)
	askCmd.SetContext(context.Background())
	askTemperatures = []float64{0.1, 1.2}
	require.NoError(t, askCmd.RunE(askCmd, []string{"Une soupe ?"}))

	assert.Contains(t, out.String(), "--- temperature 0.1 ---")
	assert.Contains(t, out.String(), "--- temperature 1.2 ---")
	assert.Contains(t, out.String(), "Une soupe ?")
}
