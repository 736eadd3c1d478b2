package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"go.uber.org/zap"
)

const settingsColumns = `user_id, daily_message_limit, messages_used_today, usage_date, plan, preferences, created_at, updated_at`

// SettingsRepository implements the repositories.SettingsRepository interface
type SettingsRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB, logger *zap.Logger) repositories.SettingsRepository {
	return &SettingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetByUserID retrieves a user's settings
func (r *SettingsRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	return r.get(ctx, `SELECT `+settingsColumns+` FROM user_settings WHERE user_id = $1`, userID)
}

// GetForUpdate retrieves a user's settings and locks the row
func (r *SettingsRepository) GetForUpdate(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	return r.get(ctx, `SELECT `+settingsColumns+` FROM user_settings WHERE user_id = $1 FOR UPDATE`, userID)
}

func (r *SettingsRepository) get(ctx context.Context, query string, userID uuid.UUID) (*models.UserSettings, error) {
	executor := GetExecutor(ctx, r.db)
	s := &models.UserSettings{}
	var prefs []byte

	err := executor.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID,
		&s.DailyMessageLimit,
		&s.MessagesUsedToday,
		&s.UsageDate,
		&s.Plan,
		&prefs,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", translateError(err))
	}
	if len(prefs) == 0 {
		prefs = []byte("{}")
	}
	s.Preferences = json.RawMessage(prefs)

	return s, nil
}

// SetUsage writes the daily counter together with the day it belongs to
func (r *SettingsRepository) SetUsage(ctx context.Context, userID uuid.UUID, used int, day time.Time) error {
	query := `
		UPDATE user_settings
		SET messages_used_today = $2,
		    usage_date = $3
		WHERE user_id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, userID, used, models.UsageDay(day))
	if err != nil {
		return fmt.Errorf("failed to update usage: %w", err)
	}
	if err := requireRow(result); err != nil {
		return fmt.Errorf("failed to update usage for %s: %w", userID, err)
	}

	r.logger.Debug("usage updated",
		zap.String("user_id", userID.String()),
		zap.Int("messages_used_today", used))
	return nil
}

// UpdatePreferences replaces the preferences document
func (r *SettingsRepository) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs json.RawMessage) error {
	if len(prefs) == 0 {
		prefs = json.RawMessage("{}")
	}

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx,
		`UPDATE user_settings SET preferences = $2::jsonb WHERE user_id = $1`,
		userID, string(prefs))
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	return requireRow(result)
}
