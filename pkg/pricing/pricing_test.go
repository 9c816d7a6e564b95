package pricing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxflow/voxflow/pkg/models"
	"github.com/voxflow/voxflow/pkg/pricing"
)

func TestCalculate_TwoMinuteCall(t *testing.T) {
	usage := pricing.Usage{
		DurationSeconds: 120,
		CallingProvider: "twilio",
		TTSProvider:     "smallest_ai",
		TTSCharacters:   500,
		STTProvider:     "deepgram",
		STTModel:        "nova-2",
	}

	cost := pricing.Calculate(usage)
	require.NotNil(t, cost)

	assert.InDelta(t, 0.0914, cost.CallingProviderCost, 1e-9)
	assert.InDelta(t, 0.0250, cost.TTSCost, 1e-9)
	assert.InDelta(t, 0.0086, cost.STTCost, 1e-9)
	assert.InDelta(t, 0.0, cost.LLMCost, 1e-9)
	assert.InDelta(t, 0.1250, cost.TotalCost, 1e-9)
	assert.Equal(t, "USD", cost.Currency)
}

func TestCalculate_TotalIsSumOfRoundedComponents(t *testing.T) {
	usage := pricing.Usage{
		DurationSeconds: 37,
		CallingProvider: "voxsun",
		TTSProvider:     "eleven_labs",
		TTSModel:        "eleven_turbo_v2",
		TTSCharacters:   1234,
		STTProvider:     "openai",
		STTModel:        "whisper-1",
		LLMModel:        "gpt-4o-mini-2024-07-18",
		LLMInputTokens:  15000,
		LLMOutputTokens: 3000,
	}

	cost := pricing.Calculate(usage)

	sum := cost.CallingProviderCost + cost.TTSCost + cost.STTCost + cost.LLMCost
	assert.InDelta(t, pricing.Round4(sum), cost.TotalCost, 1e-12)
}

func TestCallingCost(t *testing.T) {
	tests := []struct {
		name     string
		minutes  float64
		provider string
		want     float64
	}{
		{"twilio one minute", 1, "twilio", 0.0457},
		{"voxsun two minutes", 2, "voxsun", 0.0914},
		{"unknown provider falls back", 1, "somecarrier", 0.0457},
		{"zero duration", 0, "twilio", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, pricing.CallingCost(tt.minutes, tt.provider), 1e-9)
		})
	}
}

func TestTTSCost(t *testing.T) {
	tests := []struct {
		name       string
		characters int
		provider   string
		model      string
		want       float64
	}{
		{"eleven labs default", 1000, "eleven_labs", "eleven_multilingual_v2", 0.20},
		{"eleven labs turbo", 1000, "eleven_labs", "eleven_turbo_v2", 0.15},
		{"smallest ai", 1000, "smallest_ai", "", 0.05},
		{"openai", 2000, "openai", "", 0.03},
		{"unknown provider uses eleven labs rate", 1000, "mystery", "", 0.20},
		{"no synthesis means no provider fallback", 0, "", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, pricing.TTSCost(tt.characters, tt.provider, tt.model), 1e-9)
		})
	}
}

func TestSTTCost(t *testing.T) {
	tests := []struct {
		name     string
		minutes  float64
		provider string
		model    string
		want     float64
	}{
		{"deepgram nova-2", 10, "deepgram", "nova-2", 0.043},
		{"deepgram nova", 10, "deepgram", "nova", 0.048},
		{"deepgram enhanced", 10, "deepgram", "enhanced", 0.055},
		{"openai transcribe", 10, "openai", "gpt-4o-transcribe", 0.06},
		{"unknown deepgram model falls back to nova-2", 10, "deepgram", "nova-3", 0.043},
		{"unknown provider falls back to nova-2", 10, "mystery", "", 0.043},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, pricing.STTCost(tt.minutes, tt.provider, tt.model), 1e-9)
		})
	}
}

func TestLLMCost(t *testing.T) {
	tests := []struct {
		name   string
		input  int
		output int
		model  string
		want   float64
	}{
		{"gpt-4o-mini", 1_000_000, 1_000_000, "gpt-4o-mini", 0.75},
		{"gpt-4o", 1_000_000, 0, "gpt-4o", 2.50},
		{"dated snapshot resolves to base model", 1_000_000, 0, "gpt-4o-2024-08-06", 2.50},
		{"gpt-4-turbo", 0, 1_000_000, "gpt-4-turbo", 30.00},
		{"mini matched before gpt-4o", 1_000_000, 0, "gpt-4o-mini-2024-07-18", 0.15},
		{"unknown model uses gpt-4o-mini rate", 1_000_000, 0, "claude-sonnet", 0.15},
		{"zero tokens skip the model lookup", 0, 0, "", 0},
		{"zero tokens with known model", 0, 0, "gpt-4o", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, pricing.LLMCost(tt.input, tt.output, tt.model), 1e-9)
		})
	}
}

func TestFromEndedFields(t *testing.T) {
	fields := models.EndedFields{
		DurationSeconds: 95,
		CallingProvider: "twilio",
		TTSProvider:     "eleven_labs",
		TTSModel:        "eleven_turbo_v2",
		TTSCharacters:   640,
		STTProvider:     "deepgram",
		STTModel:        "nova-2",
		LLMModel:        "gpt-4o-mini",
		LLMInputTokens:  1200,
		LLMOutputTokens: 400,
	}

	usage := pricing.FromEndedFields(fields)

	assert.Equal(t, 95, usage.DurationSeconds)
	assert.Equal(t, "twilio", usage.CallingProvider)
	assert.Equal(t, 640, usage.TTSCharacters)
	assert.Equal(t, "nova-2", usage.STTModel)
	assert.Equal(t, 1200, usage.LLMInputTokens)
}
