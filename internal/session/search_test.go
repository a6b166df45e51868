package session

import (
	"testing"
	"time"

	"askai/internal/domain"

	"github.com/google/go-cmp/cmp"
)

func TestSearch(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.sessions = []domain.ChatSession{
		{ID: "today", Title: "Go channels", UpdatedAt: now.Add(-2 * time.Hour)},
		{ID: "yesterday", Title: "Recipes", UpdatedAt: now.Add(-20 * time.Hour),
			Messages: []domain.Message{{ID: "m1", Content: "How long to boil an EGG?"}}},
		{ID: "lastweek", Title: "Travel", UpdatedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: "old", Title: "Taxes", UpdatedAt: now.Add(-60 * 24 * time.Hour)},
		{ID: "archived", Title: "Go generics", UpdatedAt: now.Add(-time.Hour), IsArchived: true},
	}
	m := newTestManager(t, store, nil, WithClock(func() time.Time { return now }))
	if err := m.Load(t.Context()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"all active", Query{Period: PeriodAll}, []string{"today", "yesterday", "lastweek", "old"}},
		{"archived only", Query{Archived: true}, []string{"archived"}},
		{"today", Query{Period: PeriodToday}, []string{"today"}},
		{"week", Query{Period: PeriodWeek}, []string{"today", "yesterday"}},
		{"month", Query{Period: PeriodMonth}, []string{"today", "yesterday", "lastweek"}},
		{"title match is case insensitive", Query{Text: "go"}, []string{"today"}},
		{"message content match", Query{Text: "egg"}, []string{"yesterday"}},
		{"text ignores period", Query{Text: "taxes", Period: PeriodToday}, []string{"old"}},
		{"archived text match", Query{Text: "GENERICS", Archived: true}, []string{"archived"}},
		{"no match", Query{Text: "kubernetes"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sessionIDs(m.Search(tt.query))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Unexpected results (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePeriod(t *testing.T) {
	tests := map[string]Period{
		"today": PeriodToday,
		"WEEK":  PeriodWeek,
		"month": PeriodMonth,
		"":      PeriodAll,
		"year":  PeriodAll,
	}
	for in, want := range tests {
		if got := ParsePeriod(in); got != want {
			t.Errorf("ParsePeriod(%q): expected %q, got %q", in, want, got)
		}
	}
}
