package quota

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vedaai/veda-backend/models"
	"github.com/vedaai/veda-backend/repositories"
	"github.com/vedaai/veda-backend/services"
	"go.uber.org/zap"
)

// Usage is a user's message quota as of a given day
type Usage struct {
	Plan      models.PlanTier `json:"plan"`
	Limit     int             `json:"daily_message_limit"`
	Used      int             `json:"messages_used_today"`
	Remaining int             `json:"remaining"` // -1 when unlimited
	Unlimited bool            `json:"unlimited"`
	ResetsAt  time.Time       `json:"resets_at"`
}

// QuotaService enforces the daily message limit stored on user_settings.
//
// The counter resets lazily: a usage_date older than today reads as zero and
// is rewritten on the next Consume. Consume and Refund lock the settings row,
// so they must run inside a transaction; the lock is held until it commits.
type QuotaService struct {
	settings repositories.SettingsRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewQuotaService creates a new QuotaService instance
func NewQuotaService(settings repositories.SettingsRepository, logger *zap.Logger) *QuotaService {
	return &QuotaService{
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (s *QuotaService) WithClock(now func() time.Time) *QuotaService {
	s.now = now
	return s
}

// Consume takes one message from the user's allowance for today.
// Returns services.ErrQuotaExceeded with limit, used and resets_at details when none is left.
func (s *QuotaService) Consume(ctx context.Context, userID uuid.UUID) (*Usage, error) {
	settings, err := s.settings.GetForUpdate(ctx, userID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrSettingsNotFound, nil, "failed to load quota")
	}

	day := models.UsageDay(s.now())
	used := settings.EffectiveUsage(day)

	if !settings.IsUnlimited() && used >= settings.DailyMessageLimit {
		s.logger.Info("daily message limit reached",
			zap.String("user_id", userID.String()),
			zap.Int("limit", settings.DailyMessageLimit))
		return nil, services.ErrQuotaExceeded.Wrap(nil).
			WithDetail("limit", settings.DailyMessageLimit).
			WithDetail("used", used).
			WithDetail("resets_at", models.NextReset(day))
	}

	if err := s.settings.SetUsage(ctx, userID, used+1, day); err != nil {
		return nil, services.WrapInternal("failed to record usage", err)
	}

	settings.MessagesUsedToday = used + 1
	settings.UsageDate = day
	return usageOf(settings, day), nil
}

// Refund returns one message to today's allowance. Usage from an earlier day
// has already been reset, so there is nothing to give back.
func (s *QuotaService) Refund(ctx context.Context, userID uuid.UUID) error {
	settings, err := s.settings.GetForUpdate(ctx, userID)
	if err != nil {
		return services.FromRepository(err, services.ErrSettingsNotFound, nil, "failed to load quota")
	}

	day := models.UsageDay(s.now())
	used := settings.EffectiveUsage(day)
	if used == 0 {
		return nil
	}

	if err := s.settings.SetUsage(ctx, userID, used-1, day); err != nil {
		return services.WrapInternal("failed to refund usage", err)
	}

	s.logger.Debug("quota refunded", zap.String("user_id", userID.String()))
	return nil
}

// Status reports the effective quota without writing anything
func (s *QuotaService) Status(ctx context.Context, userID uuid.UUID) (*Usage, error) {
	settings, err := s.settings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrSettingsNotFound, nil, "failed to load quota")
	}
	return usageOf(settings, models.UsageDay(s.now())), nil
}

// UsageOf computes the quota view of already loaded settings
func (s *QuotaService) UsageOf(settings *models.UserSettings) *Usage {
	return usageOf(settings, models.UsageDay(s.now()))
}

func usageOf(settings *models.UserSettings, day time.Time) *Usage {
	return &Usage{
		Plan:      settings.Plan,
		Limit:     settings.DailyMessageLimit,
		Used:      settings.EffectiveUsage(day),
		Remaining: settings.Remaining(day),
		Unlimited: settings.IsUnlimited(),
		ResetsAt:  models.NextReset(day),
	}
}
