// Package settings holds the chat settings defaults, the clamp/normalize
// validator applied before every completion call, and the per-user settings
// service backed by the local store.
package settings

import (
	"math"
	"slices"

	"askai/internal/domain"
)

const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048

	MinTemperature = 0.0
	MaxTemperature = 1.0
	MinMaxTokens   = 100
	MaxMaxTokens   = 4000
)

// KnownModels lists the model identifiers accepted by Validate.
var KnownModels = []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-pro"}

// Defaults returns a fresh copy of the default settings.
func Defaults() domain.ChatSettings {
	return domain.ChatSettings{
		Model:          DefaultModel,
		Temperature:    DefaultTemperature,
		MaxTokens:      DefaultMaxTokens,
		SystemPrompt:   "",
		AutoSave:       true,
		SoundEnabled:   true,
		CompactMode:    false,
		ShowTimestamps: true,
		ShowTokenCount: false,
	}
}

// IsKnownModel reports whether model is one of KnownModels.
func IsKnownModel(model string) bool {
	return slices.Contains(KnownModels, model)
}

// Validate clamps the request parameters into range. It never fails and
// Validate(Validate(s)) == Validate(s).
//
// A NaN or infinite temperature falls back to the default. A zero token
// budget is treated as unset and falls back to the default.
func Validate(s domain.ChatSettings) domain.ChatSettings {
	out := s

	switch {
	case math.IsNaN(s.Temperature) || math.IsInf(s.Temperature, 0):
		out.Temperature = DefaultTemperature
	default:
		out.Temperature = min(max(s.Temperature, MinTemperature), MaxTemperature)
	}

	if s.MaxTokens == 0 {
		out.MaxTokens = DefaultMaxTokens
	} else {
		out.MaxTokens = min(max(s.MaxTokens, MinMaxTokens), MaxMaxTokens)
	}

	if !IsKnownModel(s.Model) {
		out.Model = DefaultModel
	}
	return out
}
