// Package pricing computes the four-component cost breakdown attached to a
// call when it ends: telephony minutes, TTS characters, STT minutes, and LLM
// tokens, each priced from a provider/model-keyed rate table.
package pricing

import (
	"log/slog"
	"math"
	"strings"

	"github.com/voxflow/voxflow/pkg/models"
)

// Calling provider rates, USD per minute.
var callingRates = map[string]float64{
	"twilio": 0.0457,
	"voxsun": 0.0457,
}

const defaultCallingRate = 0.0457

// TTS rates, USD per 1,000 characters.
var ttsRates = map[string]float64{
	"smallest_ai": 0.05,
	"openai":      0.015,
}

const (
	elevenLabsDefaultRate = 0.20
	elevenLabsTurboRate   = 0.15
)

// STT rates, USD per minute.
var sttRates = map[string]map[string]float64{
	"deepgram": {
		"nova-2":   0.0043,
		"nova":     0.0048,
		"enhanced": 0.0055,
	},
	"openai": {
		"gpt-4o-mini-transcribe": 0.003,
		"gpt-4o-transcribe":      0.006,
		"whisper-1":              0.006,
	},
}

// LLM rates, USD per 1M tokens, input/output.
type llmRate struct {
	input  float64
	output float64
}

var llmRates = map[string]llmRate{
	"gpt-4o-mini": {input: 0.150, output: 0.600},
	"gpt-4o":      {input: 2.50, output: 10.00},
	"gpt-4-turbo": {input: 10.00, output: 30.00},
}

// Usage is the metered consumption of one call, extracted from the ENDED
// webhook payload.
type Usage struct {
	DurationSeconds int
	CallingProvider string

	TTSProvider   string
	TTSModel      string
	TTSCharacters int

	STTProvider string
	STTModel    string

	LLMModel        string
	LLMInputTokens  int
	LLMOutputTokens int
}

// Round4 rounds to four decimal places, the resolution every cost component
// is reported at.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// CallingCost prices the telephony leg.
func CallingCost(durationMinutes float64, provider string) float64 {
	rate, ok := callingRates[strings.ToLower(provider)]
	if !ok {
		rate = defaultCallingRate
	}

	return durationMinutes * rate
}

// TTSCost prices text-to-speech by characters sent. Zero characters means
// the call never reached synthesis; that is not an unknown provider.
func TTSCost(characters int, provider, modelID string) float64 {
	if characters == 0 {
		return 0
	}

	var rate float64

	switch strings.ToLower(provider) {
	case "eleven_labs":
		if strings.Contains(strings.ToLower(modelID), "turbo") {
			rate = elevenLabsTurboRate
		} else {
			rate = elevenLabsDefaultRate
		}
	default:
		r, ok := ttsRates[strings.ToLower(provider)]
		if !ok {
			slog.Warn("Unknown TTS provider, using eleven_labs rate", "provider", provider)

			r = elevenLabsDefaultRate
		}

		rate = r
	}

	return float64(characters) / 1000.0 * rate
}

// STTCost prices speech-to-text by audio minutes.
func STTCost(durationMinutes float64, provider, model string) float64 {
	providerRates, ok := sttRates[strings.ToLower(provider)]
	if !ok {
		slog.Warn("Unknown STT provider, using deepgram nova-2 rate", "provider", provider)

		return durationMinutes * sttRates["deepgram"]["nova-2"]
	}

	rate, ok := providerRates[model]
	if !ok {
		for _, r := range []string{"nova-2", "gpt-4o-mini-transcribe"} {
			if fallback, exists := providerRates[r]; exists {
				rate = fallback

				break
			}
		}
	}

	return durationMinutes * rate
}

// LLMCost prices language-model usage by token counts. Model matching is by
// longest known prefix so dated snapshots resolve to their base model.
func LLMCost(inputTokens, outputTokens int, modelName string) float64 {
	// No tokens, no model lookup: most calls meter no LLM usage at all.
	if inputTokens == 0 && outputTokens == 0 {
		return 0
	}

	model := strings.ToLower(modelName)

	var rates llmRate

	switch {
	case strings.Contains(model, "gpt-4o-mini"):
		rates = llmRates["gpt-4o-mini"]
	case strings.Contains(model, "gpt-4o"):
		rates = llmRates["gpt-4o"]
	case strings.Contains(model, "gpt-4-turbo"), strings.Contains(model, "gpt-4-1106"):
		rates = llmRates["gpt-4-turbo"]
	default:
		slog.Warn("Unknown LLM model, using gpt-4o-mini rate", "model", modelName)

		rates = llmRates["gpt-4o-mini"]
	}

	inputCost := float64(inputTokens) / 1_000_000 * rates.input
	outputCost := float64(outputTokens) / 1_000_000 * rates.output

	return inputCost + outputCost
}

// Calculate builds the full breakdown for a call. Every component and the
// total are rounded to four decimals; the total is the sum of the rounded
// components so the invariant total == sum(components) holds exactly.
func Calculate(usage Usage) *models.CostBreakdown {
	durationMinutes := float64(usage.DurationSeconds) / 60.0

	calling := Round4(CallingCost(durationMinutes, usage.CallingProvider))
	tts := Round4(TTSCost(usage.TTSCharacters, usage.TTSProvider, usage.TTSModel))
	stt := Round4(STTCost(durationMinutes, usage.STTProvider, usage.STTModel))
	llm := Round4(LLMCost(usage.LLMInputTokens, usage.LLMOutputTokens, usage.LLMModel))

	return &models.CostBreakdown{
		CallingProviderCost: calling,
		TTSCost:             tts,
		STTCost:             stt,
		LLMCost:             llm,
		TotalCost:           Round4(calling + tts + stt + llm),
		Currency:            "USD",
	}
}

// FromEndedFields maps the typed ENDED payload onto a Usage.
func FromEndedFields(f models.EndedFields) Usage {
	return Usage{
		DurationSeconds: f.DurationSeconds,
		CallingProvider: f.CallingProvider,
		TTSProvider:     f.TTSProvider,
		TTSModel:        f.TTSModel,
		TTSCharacters:   f.TTSCharacters,
		STTProvider:     f.STTProvider,
		STTModel:        f.STTModel,
		LLMModel:        f.LLMModel,
		LLMInputTokens:  f.LLMInputTokens,
		LLMOutputTokens: f.LLMOutputTokens,
	}
}
