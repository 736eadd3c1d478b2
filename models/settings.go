package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlanTier is the subscription plan attached to a user's settings
type PlanTier string

const (
	PlanFree PlanTier = "free"
	PlanPro  PlanTier = "pro"
)

// DefaultDailyMessageLimit mirrors the column default on user_settings
const DefaultDailyMessageLimit = 50

// UserSettings holds per-user quota and preference state.
// The row is created by a database trigger when the user row is inserted.
type UserSettings struct {
	UserID            uuid.UUID       `json:"user_id" db:"user_id"`
	DailyMessageLimit int             `json:"daily_message_limit" db:"daily_message_limit"`
	MessagesUsedToday int             `json:"messages_used_today" db:"messages_used_today"`
	UsageDate         time.Time       `json:"usage_date" db:"usage_date"`
	Plan              PlanTier        `json:"plan" db:"plan"`
	Preferences       json.RawMessage `json:"preferences" db:"preferences"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the UserSettings model
func (UserSettings) TableName() string {
	return "user_settings"
}

// IsUnlimited reports whether the plan bypasses the daily message limit
func (s *UserSettings) IsUnlimited() bool {
	return s.Plan == PlanPro
}

// EffectiveUsage returns the usage count as of day. A stored usage_date earlier
// than day means the counter has not been reset yet and reads as zero.
func (s *UserSettings) EffectiveUsage(day time.Time) int {
	if UsageDay(s.UsageDate).Before(UsageDay(day)) {
		return 0
	}
	return s.MessagesUsedToday
}

// Remaining returns how many messages the user can still send on day
func (s *UserSettings) Remaining(day time.Time) int {
	if s.IsUnlimited() {
		return -1
	}
	remaining := s.DailyMessageLimit - s.EffectiveUsage(day)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UsageDay truncates t to its UTC calendar day
func UsageDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextReset returns the instant the quota for day resets
func NextReset(day time.Time) time.Time {
	return UsageDay(day).AddDate(0, 0, 1)
}
