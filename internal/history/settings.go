package history

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/slipstream/gamearr/internal/database"
)

const settingsKey = "history_retention"

// RetentionSettings contains history retention configuration.
type RetentionSettings struct {
	Enabled       bool `json:"enabled"`
	RetentionDays int  `json:"retentionDays"`
}

// DefaultRetentionSettings returns default retention settings.
func DefaultRetentionSettings() RetentionSettings {
	return RetentionSettings{
		Enabled:       true,
		RetentionDays: 365,
	}
}

// SetDefaultRetentionDays changes the retention used until settings are
// saved. Zero or less disables cleanup.
func (s *Service) SetDefaultRetentionDays(days int) {
	s.retention = RetentionSettings{Enabled: days > 0, RetentionDays: days}
}

// GetRetentionSettings loads retention settings from the database.
func (s *Service) GetRetentionSettings(ctx context.Context) (RetentionSettings, error) {
	value, err := database.GetSetting(ctx, s.db, settingsKey)
	if err != nil {
		if errors.Is(err, database.ErrSettingNotFound) {
			return s.retention, nil
		}
		return RetentionSettings{}, err
	}

	var settings RetentionSettings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return s.retention, nil //nolint:nilerr // Invalid JSON, use defaults
	}
	return settings, nil
}

// SaveRetentionSettings saves retention settings to the database.
func (s *Service) SaveRetentionSettings(ctx context.Context, settings RetentionSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	return database.SetSetting(ctx, s.db, settingsKey, string(data))
}

// CleanupOldEntries deletes history entries older than the configured retention period.
func (s *Service) CleanupOldEntries(ctx context.Context) error {
	settings, err := s.GetRetentionSettings(ctx)
	if err != nil {
		return err
	}

	if !settings.Enabled || settings.RetentionDays <= 0 {
		return nil
	}

	removed, err := s.Trim(ctx, s.now().AddDate(0, 0, -settings.RetentionDays))
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info().Int64("removed", removed).Int("retentionDays", settings.RetentionDays).Msg("Cleaned up old history")
	}
	return nil
}
