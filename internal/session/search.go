package session

import (
	"strings"
	"time"

	"askai/internal/domain"
)

type Period string

const (
	PeriodAll   Period = "all"
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Query filters the session list. A non-empty Text takes precedence over
// Period.
type Query struct {
	Text     string
	Archived bool
	Period   Period
}

// ParsePeriod maps a user-supplied value to a Period, defaulting to all
func ParsePeriod(s string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodToday:
		return PeriodToday
	case PeriodWeek:
		return PeriodWeek
	case PeriodMonth:
		return PeriodMonth
	default:
		return PeriodAll
	}
}

// Search returns copies of the matching sessions, newest first
func (m *Manager) Search(q Query) []domain.ChatSession {
	now := m.now()
	text := strings.ToLower(strings.TrimSpace(q.Text))

	m.mu.Lock()
	defer m.mu.Unlock()

	out := []domain.ChatSession{}
	for _, cs := range m.sessions {
		if cs.IsArchived != q.Archived {
			continue
		}
		if text != "" {
			if !matchesText(cs, text) {
				continue
			}
		} else if !inPeriod(cs.UpdatedAt, now, q.Period) {
			continue
		}
		out = append(out, cs.Clone())
	}
	return out
}

func matchesText(cs domain.ChatSession, text string) bool {
	if strings.Contains(strings.ToLower(cs.Title), text) {
		return true
	}
	for _, msg := range cs.Messages {
		if strings.Contains(strings.ToLower(msg.Content), text) {
			return true
		}
	}
	return false
}

func inPeriod(updated, now time.Time, p Period) bool {
	switch p {
	case PeriodToday:
		y1, m1, d1 := updated.In(now.Location()).Date()
		y2, m2, d2 := now.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	case PeriodWeek:
		return now.Sub(updated) <= 7*24*time.Hour
	case PeriodMonth:
		return now.Sub(updated) <= 30*24*time.Hour
	default:
		return true
	}
}
