package premium

import (
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/repositories"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

type fakePi struct {
	payments  map[string]*services.PiPayment
	completed []string
	getErr    error
}

func (f *fakePi) GetPayment(_ context.Context, id string) (*services.PiPayment, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.payments[id]
	if !ok {
		return nil, shared.ErrPaymentNotFound
	}
	return p, nil
}

func (f *fakePi) CompletePayment(_ context.Context, id, txid string) (*services.PiPayment, error) {
	f.completed = append(f.completed, id+":"+txid)
	return f.payments[id], nil
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, shared.RunMigrations(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *log.Logger { return shared.NewLogger(io.Discard) }

type fixture struct {
	db      *sql.DB
	users   *repositories.UserRepository
	manager *Manager
	svc     *PaymentService
	pi      *fakePi
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupDB(t)
	pi := &fakePi{payments: map[string]*services.PiPayment{}}
	users := repositories.NewUserRepository(db)
	manager := NewManager(repositories.NewPremiumRepository(db), 0, quietLogger())
	svc := NewPaymentService(repositories.NewPaymentRepository(db), users, manager, pi, quietLogger())
	return &fixture{db: db, users: users, manager: manager, svc: svc, pi: pi}
}

func TestCatalog(t *testing.T) {
	t.Run("prices and names", func(t *testing.T) {
		want := map[models.Feature]float64{
			models.AdvancedAnalysis:   1.0,
			models.AdFree:             0.5,
			models.PremiumLibrary:     2.0,
			models.UnlimitedSongs:     1.5,
			models.OfflineMode:        1.0,
			models.AnnualSubscription: 1.0,
		}
		for f, price := range want {
			assert.Equal(t, price, Price(f), f)
		}
		assert.Len(t, Catalog(), 6)
		assert.Equal(t, models.AdvancedAnalysis, Catalog()[0].Feature)
		assert.Equal(t, 0.5, Prices()["adFree"])
	})

	t.Run("memo", func(t *testing.T) {
		assert.Equal(t, "ChordyPi - Ad-Free Experience", Memo(models.AdFree))
		assert.Equal(t, "ChordyPi - Annual Premium Subscription", Memo(models.AnnualSubscription))
		assert.Equal(t, "ChordyPi - bogus", Memo("bogus"))
	})

	t.Run("every item has benefits", func(t *testing.T) {
		for _, item := range Catalog() {
			assert.NotEmpty(t, item.Benefits, item.Feature)
			assert.NotEmpty(t, item.Name, item.Feature)
		}
	})
}

func TestStatus(t *testing.T) {
	t.Run("free user", func(t *testing.T) {
		s := StatusOf(models.NewPremiumFeatureSet())
		assert.False(t, s.IsPremium)
		assert.Equal(t, 0, s.Completion)
		assert.Equal(t, 6, s.Total)
		assert.True(t, s.ShowAds)
		assert.Equal(t, models.AdFree, s.NextRecommended)
		assert.Empty(t, s.Unlocked)
	})

	t.Run("completion is rounded", func(t *testing.T) {
		set := models.NewPremiumFeatureSet()
		set[models.AdFree] = true
		set[models.OfflineMode] = true
		s := StatusOf(set)
		assert.True(t, s.IsPremium)
		assert.Equal(t, 33, s.Completion)
		assert.False(t, s.ShowAds)
		assert.Equal(t, models.AdvancedAnalysis, s.NextRecommended)
	})

	t.Run("recommendation order", func(t *testing.T) {
		set := models.NewPremiumFeatureSet()
		order := []models.Feature{models.AdFree, models.AdvancedAnalysis, models.UnlimitedSongs, models.PremiumLibrary, models.OfflineMode}
		for _, f := range order {
			assert.Equal(t, f, NextRecommended(set))
			set[f] = true
		}
		assert.Equal(t, models.Feature(""), NextRecommended(set))
	})

	t.Run("annual grants everything", func(t *testing.T) {
		set := models.NewPremiumFeatureSet()
		set[models.AnnualSubscription] = true
		s := StatusOf(set)
		assert.False(t, s.ShowAds)
		assert.Equal(t, models.Feature(""), s.NextRecommended)
		assert.Equal(t, 17, s.Completion)
	})
}

func TestManager(t *testing.T) {
	day := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("usage key", func(t *testing.T) {
		assert.Equal(t, "analysis_usage_2025-06-01", UsageKey(day))
	})

	t.Run("unlock validates and is idempotent", func(t *testing.T) {
		f := newFixture(t)
		require.ErrorIs(t, f.manager.Unlock("u1", "bogus", ""), shared.ErrUnknownFeature)
		require.ErrorIs(t, f.manager.Unlock("", models.AdFree, ""), shared.ErrMissingArgument)

		require.NoError(t, f.manager.Unlock("u1", models.AdFree, "pay-1"))
		require.NoError(t, f.manager.Unlock("u1", models.AdFree, "pay-2"))

		unlocks, err := f.manager.Unlocks("u1")
		require.NoError(t, err)
		require.Len(t, unlocks, 1)
		assert.Equal(t, "pay-1", unlocks[0].PaymentID)

		ok, err := f.manager.Has("u1", models.AdFree)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.ErrorIs(t, f.manager.Require("u1", models.AdvancedAnalysis), shared.ErrFeatureLocked)
	})

	t.Run("daily limit", func(t *testing.T) {
		f := newFixture(t)
		for i := 1; i <= DefaultDailyLimit; i++ {
			u, err := f.manager.ReserveAnalysis("u1", day)
			require.NoError(t, err)
			assert.Equal(t, i, u.Used)
			assert.Equal(t, DefaultDailyLimit-i, u.Remaining)
		}

		u, err := f.manager.ReserveAnalysis("u1", day)
		assert.ErrorIs(t, err, shared.ErrLimitReached)
		assert.Equal(t, 0, u.Remaining)

		u, err = f.manager.Usage("u1", day.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, DefaultDailyLimit, u.Remaining, "counter resets the next day")
	})

	t.Run("released reservation is reusable", func(t *testing.T) {
		f := newFixture(t)
		for range DefaultDailyLimit {
			_, err := f.manager.ReserveAnalysis("u1", day)
			require.NoError(t, err)
		}
		require.NoError(t, f.manager.ReleaseAnalysis("u1", day))

		u, err := f.manager.Usage("u1", day)
		require.NoError(t, err)
		assert.Equal(t, 1, u.Remaining)

		_, err = f.manager.ReserveAnalysis("u1", day)
		assert.NoError(t, err)
	})

	t.Run("unlimited songs skips tracking", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.manager.Unlock("u1", models.UnlimitedSongs, "pay"))
		for range 5 {
			u, err := f.manager.ReserveAnalysis("u1", day)
			require.NoError(t, err)
			assert.True(t, u.Unlimited)
			assert.Equal(t, -1, u.Limit)
		}
	})

	t.Run("unlocks survive reopening", func(t *testing.T) {
		cfg := shared.DatabaseConfig{Path: filepath.Join(t.TempDir(), "premium.db")}

		db, err := shared.OpenMigrated(cfg)
		require.NoError(t, err)
		m := NewManager(repositories.NewPremiumRepository(db), 0, quietLogger())
		require.NoError(t, m.Unlock("u1", models.PremiumLibrary, "pay"))
		require.NoError(t, db.Close())

		db, err = shared.OpenMigrated(cfg)
		require.NoError(t, err)
		defer db.Close()
		m = NewManager(repositories.NewPremiumRepository(db), 0, quietLogger())
		set, err := m.Features("u1")
		require.NoError(t, err)
		assert.True(t, set[models.PremiumLibrary])
	})
}

func TestPaymentService(t *testing.T) {
	ctx := context.Background()

	t.Run("approve validates amount", func(t *testing.T) {
		f := newFixture(t)
		for _, amount := range []float64{0, -1, 10.01} {
			_, err := f.svc.Approve(ctx, ApproveRequest{PaymentID: "p", Amount: amount})
			assert.ErrorIs(t, err, shared.ErrInvalidAmount, "amount %v", amount)
		}
		_, err := f.svc.Approve(ctx, ApproveRequest{Amount: 1})
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})

	t.Run("approve stores pending and is idempotent", func(t *testing.T) {
		f := newFixture(t)
		req := ApproveRequest{
			PaymentID: "pay-1",
			Amount:    10,
			Memo:      Memo(models.AdFree),
			Metadata:  models.PaymentMetadata{"feature": "adFree"},
			UserUID:   "pi-uid-1",
			Username:  "pioneer",
		}
		first, err := f.svc.Approve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPending, first.Status)
		assert.Equal(t, "pi-uid-1", first.PiUserID)

		user, err := f.users.GetByPiUID("pi-uid-1")
		require.NoError(t, err)
		assert.Equal(t, user.ID(), first.UserID)

		second, err := f.svc.Approve(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, first.ID(), second.ID())
	})

	t.Run("complete unlocks feature", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Approve(ctx, ApproveRequest{
			PaymentID: "pay-1", Amount: 0.5,
			Metadata: models.PaymentMetadata{"feature": "adFree"},
			UserUID:  "pi-uid-1",
		})
		require.NoError(t, err)

		done, err := f.svc.Complete(ctx, "pay-1", "tx-1")
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, done.Status)
		assert.Equal(t, "tx-1", done.TxID)
		assert.NotNil(t, done.CompletedAt)

		set, err := f.manager.Features(p.UserID)
		require.NoError(t, err)
		assert.True(t, set[models.AdFree])

		_, err = f.svc.Complete(ctx, "missing", "tx")
		assert.ErrorIs(t, err, shared.ErrPaymentNotFound)
		_, err = f.svc.Complete(ctx, "", "tx")
		assert.ErrorIs(t, err, shared.ErrMissingArgument)
	})

	t.Run("anonymous payments unlock nothing", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Approve(ctx, ApproveRequest{
			PaymentID: "pay-1", Amount: 1,
			Metadata: models.PaymentMetadata{"feature": "offlineMode"},
		})
		require.NoError(t, err)
		_, err = f.svc.Complete(ctx, "pay-1", "tx")
		require.NoError(t, err)

		set, err := f.manager.Features(AnonymousUser)
		require.NoError(t, err)
		assert.False(t, set[models.OfflineMode])
	})

	t.Run("verify", func(t *testing.T) {
		f := newFixture(t)
		f.pi.payments["pay-1"] = &services.PiPayment{
			Identifier:  "pay-1",
			UserUID:     "pi-uid-1",
			Amount:      1.0,
			Status:      services.PiPaymentStatus{DeveloperApproved: true, TransactionVerified: true},
			Transaction: &services.PiTransaction{TxID: "chain-tx"},
		}
		req := VerifyRequest{
			UserID:    "user-1",
			PaymentID: "pay-1",
			Amount:    1.0,
			Memo:      Memo(models.AdvancedAnalysis),
			Metadata:  models.PaymentMetadata{"feature": "advancedAnalysis"},
		}

		res, err := f.svc.Verify(ctx, req)
		require.NoError(t, err)
		assert.False(t, res.AlreadyProcessed)
		assert.True(t, res.FeatureUnlocked)
		assert.Equal(t, models.PaymentCompleted, res.Payment.Status)
		assert.Equal(t, "chain-tx", res.Payment.TxID)
		assert.NotNil(t, res.Payment.VerifiedAt)
		assert.Equal(t, []string{"pay-1:chain-tx"}, f.pi.completed)

		ok, err := f.manager.Has("user-1", models.AdvancedAnalysis)
		require.NoError(t, err)
		assert.True(t, ok)

		again, err := f.svc.Verify(ctx, req)
		require.NoError(t, err)
		assert.True(t, again.AlreadyProcessed)
		assert.Len(t, f.pi.completed, 1)
	})

	t.Run("verify amount mismatch", func(t *testing.T) {
		f := newFixture(t)
		f.pi.payments["pay-2"] = &services.PiPayment{Identifier: "pay-2", Amount: 2.0}
		_, err := f.svc.Verify(ctx, VerifyRequest{UserID: "u", PaymentID: "pay-2", Amount: 1.0})
		assert.ErrorIs(t, err, shared.ErrAmountMismatch)

		_, err = f.svc.Verify(ctx, VerifyRequest{UserID: "u", PaymentID: "unknown", Amount: 1.0})
		assert.ErrorIs(t, err, shared.ErrPaymentNotFound)
	})

	t.Run("verify without pi client", func(t *testing.T) {
		db := setupDB(t)
		manager := NewManager(repositories.NewPremiumRepository(db), 0, quietLogger())
		svc := NewPaymentService(repositories.NewPaymentRepository(db), repositories.NewUserRepository(db), manager, nil, quietLogger())
		_, err := svc.Verify(ctx, VerifyRequest{UserID: "u", PaymentID: "p", Amount: 1})
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})

	t.Run("webhook", func(t *testing.T) {
		f := newFixture(t)
		p, err := f.svc.Approve(ctx, ApproveRequest{
			PaymentID: "pay-1", Amount: 1.5,
			Metadata: models.PaymentMetadata{"feature": "unlimitedSongs"},
			UserUID:  "pi-uid-1",
		})
		require.NoError(t, err)

		_, err = f.svc.Webhook(ctx, "unknown", models.PaymentCompleted)
		assert.ErrorIs(t, err, shared.ErrPaymentNotFound)
		_, err = f.svc.Webhook(ctx, "", models.PaymentCompleted)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		_, err = f.svc.Webhook(ctx, "pay-1", "weird")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		updated, err := f.svc.Webhook(ctx, "pay-1", models.PaymentCompleted)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentCompleted, updated.Status)
		assert.NotNil(t, updated.CompletedAt)

		ok, err := f.manager.Has(p.UserID, models.UnlimitedSongs)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("history and analytics", func(t *testing.T) {
		f := newFixture(t)
		features := []string{"adFree", "adFree", "offlineMode"}
		var userID string
		for i, feat := range features {
			id := "pay-" + string(rune('a'+i))
			p, err := f.svc.Approve(ctx, ApproveRequest{
				PaymentID: id, Amount: 1,
				Metadata: models.PaymentMetadata{"feature": feat},
				UserUID:  "pi-uid-1",
			})
			require.NoError(t, err)
			userID = p.UserID
			_, err = f.svc.Complete(ctx, id, "tx-"+id)
			require.NoError(t, err)
		}
		_, err := f.svc.Approve(ctx, ApproveRequest{PaymentID: "pay-pending", Amount: 2, UserUID: "pi-uid-1"})
		require.NoError(t, err)

		h, err := f.svc.History(userID, 1, 3)
		require.NoError(t, err)
		assert.Equal(t, 4, h.Total)
		assert.Equal(t, 2, h.Pages)
		assert.Equal(t, 1, h.CurrentPage)
		require.Len(t, h.Payments, 3)
		assert.Equal(t, "pay-pending", h.Payments[0].PaymentID)

		h, err = f.svc.History(userID, 2, 3)
		require.NoError(t, err)
		require.Len(t, h.Payments, 1)
		assert.Equal(t, "pay-a", h.Payments[0].PaymentID)

		h, err = f.svc.History(userID, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, h.Pages)
		assert.Equal(t, 1, h.CurrentPage)

		spent, err := f.svc.TotalSpent(userID)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, spent, 1e-9)

		a, err := f.svc.Analytics(userID)
		require.NoError(t, err)
		assert.Equal(t, 3, a.TotalPayments)
		assert.InDelta(t, 3.0, a.TotalSpent, 1e-9)
		assert.Equal(t, models.AdFree, a.MostUsedFeature)
		assert.Equal(t, []models.Feature{models.AdFree, models.OfflineMode}, a.UnlockedFeatures)
		require.NotNil(t, a.LastPayment)
		assert.Equal(t, "pay-c", a.LastPayment.PaymentID)
	})
}
