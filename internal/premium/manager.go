package premium

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/repositories"
	"github.com/desertthunder/chordypi/internal/shared"
)

// DefaultDailyLimit is the number of analyses a user without unlimitedSongs may run per day.
const DefaultDailyLimit = 3

// UsageKey returns the counter key for analyses run on day.
func UsageKey(day time.Time) string {
	return "analysis_usage_" + day.Format(time.DateOnly)
}

// Usage reports a user's analysis count against the daily limit. Limit is -1 when unlimited.
type Usage struct {
	Date      string `json:"date"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
}

// Manager tracks unlocked features and daily analysis usage per user.
type Manager struct {
	repo       *repositories.PremiumRepository
	dailyLimit int
	logger     *log.Logger
}

// NewManager creates a [Manager]. A non-positive dailyLimit selects [DefaultDailyLimit].
func NewManager(repo *repositories.PremiumRepository, dailyLimit int, logger *log.Logger) *Manager {
	if dailyLimit <= 0 {
		dailyLimit = DefaultDailyLimit
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Manager{repo: repo, dailyLimit: dailyLimit, logger: logger}
}

// DailyLimit returns the configured per-day analysis limit.
func (m *Manager) DailyLimit() int { return m.dailyLimit }

// Features returns the feature set of userID.
func (m *Manager) Features(userID string) (models.PremiumFeatureSet, error) {
	return m.repo.Features(userID)
}

// Has reports whether userID may use f.
func (m *Manager) Has(userID string, f models.Feature) (bool, error) {
	set, err := m.repo.Features(userID)
	if err != nil {
		return false, err
	}
	return set.Has(f), nil
}

// Require returns [shared.ErrFeatureLocked] unless userID may use f.
func (m *Manager) Require(userID string, f models.Feature) error {
	ok, err := m.Has(userID, f)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrFeatureLocked, Name(f))
	}
	return nil
}

// Unlock grants f to userID. Repeated unlocks keep the first record.
func (m *Manager) Unlock(userID string, f models.Feature, paymentID string) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %q", shared.ErrUnknownFeature, f)
	}
	if userID == "" {
		return fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	inserted, err := m.repo.Unlock(userID, f, paymentID)
	if err != nil {
		return err
	}
	if inserted {
		m.logger.Info("feature unlocked", "user", userID, "feature", f, "payment", paymentID)
	}
	return nil
}

// Unlocks returns the unlock records of userID.
func (m *Manager) Unlocks(userID string) ([]models.FeatureUnlock, error) {
	return m.repo.Unlocks(userID)
}

// Status returns the premium summary of userID.
func (m *Manager) Status(userID string) (Status, error) {
	set, err := m.repo.Features(userID)
	if err != nil {
		return Status{}, err
	}
	return StatusOf(set), nil
}

// Usage returns the analysis usage of userID on day.
func (m *Manager) Usage(userID string, day time.Time) (Usage, error) {
	unlimited, err := m.Has(userID, models.UnlimitedSongs)
	if err != nil {
		return Usage{}, err
	}
	if unlimited {
		return unlimitedUsage(day), nil
	}

	used, err := m.repo.Usage(userID, UsageKey(day))
	if err != nil {
		return Usage{}, err
	}
	return m.limitedUsage(day, used), nil
}

// ReserveAnalysis claims one of userID's analyses on day before the work runs and returns the updated usage.
//
// Users with unlimitedSongs are not tracked. Returns [shared.ErrLimitReached], along with the current
// usage, once the limit is used up. A reservation whose analysis fails should be handed back with
// [Manager.ReleaseAnalysis].
func (m *Manager) ReserveAnalysis(userID string, day time.Time) (Usage, error) {
	unlimited, err := m.Has(userID, models.UnlimitedSongs)
	if err != nil {
		return Usage{}, err
	}
	if unlimited {
		return unlimitedUsage(day), nil
	}

	used, ok, err := m.repo.ReserveUsage(userID, UsageKey(day), m.dailyLimit)
	if err != nil {
		return Usage{}, err
	}
	u := m.limitedUsage(day, used)
	if !ok {
		return u, fmt.Errorf("%w: %d of %d used", shared.ErrLimitReached, u.Used, u.Limit)
	}
	return u, nil
}

// ReleaseAnalysis returns a slot taken by [Manager.ReserveAnalysis].
func (m *Manager) ReleaseAnalysis(userID string, day time.Time) error {
	return m.repo.ReleaseUsage(userID, UsageKey(day))
}

func unlimitedUsage(day time.Time) Usage {
	return Usage{Date: day.Format(time.DateOnly), Limit: -1, Remaining: -1, Unlimited: true}
}

func (m *Manager) limitedUsage(day time.Time, used int) Usage {
	return Usage{
		Date:      day.Format(time.DateOnly),
		Used:      used,
		Limit:     m.dailyLimit,
		Remaining: max(0, m.dailyLimit-used),
	}
}
