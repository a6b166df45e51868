package settings

import (
	"context"
	"io"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"askai/internal/domain"
	"askai/internal/logging"
	"askai/internal/store"
)

func TestValidateBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		in       domain.ChatSettings
		wantTemp float64
		wantMax  int
		wantMod  string
	}{
		{"temperature below range", domain.ChatSettings{Temperature: -1, MaxTokens: 2048, Model: "gemini-pro"}, 0, 2048, "gemini-pro"},
		{"temperature above range", domain.ChatSettings{Temperature: 5, MaxTokens: 2048, Model: "gemini-pro"}, 1, 2048, "gemini-pro"},
		{"temperature NaN", domain.ChatSettings{Temperature: math.NaN(), MaxTokens: 2048}, DefaultTemperature, 2048, DefaultModel},
		{"temperature Inf", domain.ChatSettings{Temperature: math.Inf(1), MaxTokens: 2048}, DefaultTemperature, 2048, DefaultModel},
		{"zero temperature is kept", domain.ChatSettings{Temperature: 0, MaxTokens: 2048, Model: "gemini-1.5-pro"}, 0, 2048, "gemini-1.5-pro"},
		{"maxTokens below range", domain.ChatSettings{Temperature: 0.5, MaxTokens: 50}, 0.5, 100, DefaultModel},
		{"maxTokens above range", domain.ChatSettings{Temperature: 0.5, MaxTokens: 100000}, 0.5, 4000, DefaultModel},
		{"maxTokens unset", domain.ChatSettings{Temperature: 0.5}, 0.5, DefaultMaxTokens, DefaultModel},
		{"negative maxTokens", domain.ChatSettings{Temperature: 0.5, MaxTokens: -10}, 0.5, 100, DefaultModel},
		{"unknown model", domain.ChatSettings{Temperature: 0.5, MaxTokens: 300, Model: "gpt-4"}, 0.5, 300, DefaultModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.in)
			if got.Temperature != tt.wantTemp {
				t.Errorf("Temperature = %v, want %v", got.Temperature, tt.wantTemp)
			}
			if got.MaxTokens != tt.wantMax {
				t.Errorf("MaxTokens = %v, want %v", got.MaxTokens, tt.wantMax)
			}
			if got.Model != tt.wantMod {
				t.Errorf("Model = %v, want %v", got.Model, tt.wantMod)
			}
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	inputs := []domain.ChatSettings{
		Defaults(),
		{Temperature: -3, MaxTokens: 1, Model: "x"},
		{Temperature: math.NaN(), MaxTokens: 0},
		{Temperature: 0.33, MaxTokens: 4001, Model: "gemini-pro", SystemPrompt: "hi", CompactMode: true},
	}
	for _, in := range inputs {
		once := Validate(in)
		twice := Validate(once)
		if diff := cmp.Diff(once, twice); diff != "" {
			t.Errorf("Validate not idempotent for %+v (-once +twice):\n%s", in, diff)
		}
	}
}

func TestValidateLeavesOtherFields(t *testing.T) {
	in := Defaults()
	in.SystemPrompt = "You are terse."
	in.ShowTokenCount = true
	got := Validate(in)
	if got.SystemPrompt != in.SystemPrompt || !got.ShowTokenCount || !got.AutoSave {
		t.Errorf("Validate changed unrelated fields: %+v", got)
	}
}

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "settings.db"), "")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(st, logging.NewLogger("settings", logging.DEBUG, io.Discard)), st
}

func TestServiceLifecycle(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	got, err := svc.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(Defaults(), got); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}

	updated, err := svc.Update(ctx, "u1", domain.SettingsPatch{Model: domain.Ptr("gemini-pro"), CompactMode: domain.Ptr(true)})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	want := Defaults()
	want.Model = "gemini-pro"
	want.CompactMode = true
	if diff := cmp.Diff(want, updated); diff != "" {
		t.Errorf("Update mismatch (-want +got):\n%s", diff)
	}

	reloaded, _ := svc.Load(ctx, "u1")
	if diff := cmp.Diff(want, reloaded); diff != "" {
		t.Errorf("Reload mismatch (-want +got):\n%s", diff)
	}

	t.Run("stored values merge over defaults", func(t *testing.T) {
		st.PutSettings(ctx, "u2", []byte(`{"systemPrompt":"Be kind."}`))
		got, _ := svc.Load(ctx, "u2")
		if got.SystemPrompt != "Be kind." || got.Model != DefaultModel || !got.ShowTimestamps {
			t.Errorf("Unexpected merged settings %+v", got)
		}
	})

	t.Run("corrupt record falls back to defaults", func(t *testing.T) {
		st.PutSettings(ctx, "u3", []byte(`{not json`))
		got, err := svc.Load(ctx, "u3")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if diff := cmp.Diff(Defaults(), got); diff != "" {
			t.Errorf("Expected defaults (-want +got):\n%s", diff)
		}
	})

	reset, err := svc.Reset(ctx, "u1")
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if diff := cmp.Diff(Defaults(), reset); diff != "" {
		t.Errorf("Reset mismatch (-want +got):\n%s", diff)
	}
	if data, _ := st.GetSettings(ctx, "u1"); data != nil {
		t.Errorf("Expected record to be removed, got %s", data)
	}
}
