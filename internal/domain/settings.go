package domain

type ChatSettings struct {
	Model          string  `json:"model"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	SystemPrompt   string  `json:"systemPrompt"`
	AutoSave       bool    `json:"autoSave"`
	SoundEnabled   bool    `json:"soundEnabled"`
	CompactMode    bool    `json:"compactMode"`
	ShowTimestamps bool    `json:"showTimestamps"`
	ShowTokenCount bool    `json:"showTokenCount"`
}

// SettingsPatch is a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	Model          *string  `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxTokens      *int     `json:"maxTokens,omitempty"`
	SystemPrompt   *string  `json:"systemPrompt,omitempty"`
	AutoSave       *bool    `json:"autoSave,omitempty"`
	SoundEnabled   *bool    `json:"soundEnabled,omitempty"`
	CompactMode    *bool    `json:"compactMode,omitempty"`
	ShowTimestamps *bool    `json:"showTimestamps,omitempty"`
	ShowTokenCount *bool    `json:"showTokenCount,omitempty"`
}

func (p SettingsPatch) Apply(s *ChatSettings) {
	if p.Model != nil {
		s.Model = *p.Model
	}
	if p.Temperature != nil {
		s.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		s.MaxTokens = *p.MaxTokens
	}
	if p.SystemPrompt != nil {
		s.SystemPrompt = *p.SystemPrompt
	}
	if p.AutoSave != nil {
		s.AutoSave = *p.AutoSave
	}
	if p.SoundEnabled != nil {
		s.SoundEnabled = *p.SoundEnabled
	}
	if p.CompactMode != nil {
		s.CompactMode = *p.CompactMode
	}
	if p.ShowTimestamps != nil {
		s.ShowTimestamps = *p.ShowTimestamps
	}
	if p.ShowTokenCount != nil {
		s.ShowTokenCount = *p.ShowTokenCount
	}
}
