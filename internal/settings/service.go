package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"askai/internal/domain"
	"askai/internal/logging"
)

// Store persists the raw settings record of a user. GetSettings returns nil
// data and no error when nothing has been saved yet.
type Store interface {
	GetSettings(ctx context.Context, userID string) ([]byte, error)
	PutSettings(ctx context.Context, userID string, data []byte) error
	DeleteSettings(ctx context.Context, userID string) error
}

// Service loads, updates and resets per-user chat settings.
type Service struct {
	store  Store
	logger *logging.Logger
}

func NewService(store Store, logger *logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Load returns the saved settings merged over the defaults. A corrupt record
// is logged and the defaults are returned.
func (s *Service) Load(ctx context.Context, userID string) (domain.ChatSettings, error) {
	out := Defaults()

	data, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return out, fmt.Errorf("failed to load settings: %w", err)
	}
	if data == nil {
		return out, nil
	}

	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("ignoring unreadable settings record")
		return Defaults(), nil
	}
	return out, nil
}

// Update applies patch to the current settings and saves the result.
func (s *Service) Update(ctx context.Context, userID string, patch domain.SettingsPatch) (domain.ChatSettings, error) {
	current, err := s.Load(ctx, userID)
	if err != nil {
		return current, err
	}
	patch.Apply(&current)

	if err := s.save(ctx, userID, current); err != nil {
		return current, err
	}
	s.logger.WithContext("user_id", userID).Debug("settings updated")
	return current, nil
}

// Reset removes the saved record so the defaults apply again.
func (s *Service) Reset(ctx context.Context, userID string) (domain.ChatSettings, error) {
	if err := s.store.DeleteSettings(ctx, userID); err != nil {
		return Defaults(), fmt.Errorf("failed to reset settings: %w", err)
	}
	s.logger.WithContext("user_id", userID).Info("settings reset to defaults")
	return Defaults(), nil
}

// Forget drops the locally cached settings, used on logout.
func (s *Service) Forget(ctx context.Context, userID string) error {
	if err := s.store.DeleteSettings(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear cached settings: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, userID string, cs domain.ChatSettings) error {
	data, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.store.PutSettings(ctx, userID, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
