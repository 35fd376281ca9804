package premium

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/chordypi/internal/models"
	"github.com/desertthunder/chordypi/internal/repositories"
	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

// AnonymousUser owns payments approved without a Pi user attached.
const AnonymousUser = "anonymous"

// PiClient is the subset of the Pi Platform API used to verify and complete payments.
type PiClient interface {
	GetPayment(ctx context.Context, paymentID string) (*services.PiPayment, error)
	CompletePayment(ctx context.Context, paymentID, txid string) (*services.PiPayment, error)
}

// ApproveRequest is the payload the Pi platform sends before showing the payment dialog.
type ApproveRequest struct {
	PaymentID string
	Amount    float64
	Memo      string
	Metadata  models.PaymentMetadata
	UserUID   string
	Username  string
}

// VerifyRequest asks the server to check a payment against the Pi platform on behalf of UserID.
type VerifyRequest struct {
	UserID    string
	PaymentID string
	Amount    float64
	Memo      string
	Metadata  models.PaymentMetadata
	TxID      string
}

// VerifyResult is the outcome of [PaymentService.Verify].
type VerifyResult struct {
	Payment          *models.Payment
	AlreadyProcessed bool
	FeatureUnlocked  bool
}

// History is one page of a user's payments.
type History struct {
	Payments    []*models.Payment `json:"payments"`
	Total       int               `json:"total"`
	Pages       int               `json:"pages"`
	CurrentPage int               `json:"current_page"`
}

// Analytics aggregates a user's payment activity.
type Analytics struct {
	TotalPayments    int              `json:"totalPayments"`
	TotalSpent       float64          `json:"totalSpent"`
	UnlockedFeatures []models.Feature `json:"unlockedFeatures"`
	LastPayment      *models.Payment  `json:"lastPayment"`
	MostUsedFeature  models.Feature   `json:"mostUsedFeature,omitempty"`
}

// PaymentService runs the Pi payment lifecycle: approval, completion, verification and webhooks.
type PaymentService struct {
	payments *repositories.PaymentRepository
	users    *repositories.UserRepository
	manager  *Manager
	pi       PiClient
	logger   *log.Logger
	now      func() time.Time
}

// NewPaymentService creates a [PaymentService]. pi may be nil, in which case [PaymentService.Verify] is unavailable.
func NewPaymentService(
	payments *repositories.PaymentRepository,
	users *repositories.UserRepository,
	manager *Manager,
	pi PiClient,
	logger *log.Logger,
) *PaymentService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PaymentService{
		payments: payments,
		users:    users,
		manager:  manager,
		pi:       pi,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ValidateAmount accepts amounts in (0, [MaxPaymentAmount]].
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || amount <= 0 {
		return fmt.Errorf("%w: %v", shared.ErrInvalidAmount, amount)
	}
	if amount > MaxPaymentAmount {
		return fmt.Errorf("%w: amount exceeds maximum of %v Pi", shared.ErrInvalidAmount, MaxPaymentAmount)
	}
	return nil
}

// Approve validates the amount and stores the payment as pending. Approving a known payment id returns the stored payment.
func (s *PaymentService) Approve(ctx context.Context, req ApproveRequest) (*models.Payment, error) {
	if err := ValidateAmount(req.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, fmt.Errorf("%w: payment id", shared.ErrMissingArgument)
	}

	if existing, err := s.payments.GetByPaymentID(req.PaymentID); err == nil {
		return existing, nil
	} else if !errors.Is(err, shared.ErrPaymentNotFound) {
		return nil, err
	}

	userID := AnonymousUser
	if req.UserUID != "" {
		username := req.Username
		if username == "" {
			username = req.UserUID
		}
		user, err := s.users.Upsert(req.UserUID, username)
		if err != nil {
			return nil, err
		}
		userID = user.ID()
	}

	p := models.NewPayment(0, req.PaymentID, userID, req.Amount, req.Memo, req.Metadata)
	p.PiUserID = req.UserUID
	if err := s.payments.Create(p); err != nil {
		return nil, err
	}

	s.logger.Info("payment approved", "payment", p.PaymentID, "amount", p.Amount, "user", req.UserUID)
	return p, nil
}

// Complete marks a stored payment completed and unlocks the feature named in its metadata.
func (s *PaymentService) Complete(ctx context.Context, paymentID, txid string) (*models.Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, fmt.Errorf("%w: payment id", shared.ErrMissingArgument)
	}

	p, err := s.payments.GetByPaymentID(paymentID)
	if err != nil {
		return nil, err
	}

	p.Complete(txid, s.now())
	if err := s.payments.Update(p); err != nil {
		return nil, err
	}

	if _, err := s.unlockFor(p); err != nil {
		return nil, err
	}
	s.logger.Info("payment completed", "payment", paymentID, "txid", txid)
	return p, nil
}

// Verify checks a payment with the Pi platform, stores it and unlocks its feature.
//
// A payment that was already stored is returned unchanged. When the platform reports the payment completed,
// completion is acknowledged back to the platform.
func (s *PaymentService) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if strings.TrimSpace(req.PaymentID) == "" {
		return nil, fmt.Errorf("%w: payment_id", shared.ErrMissingArgument)
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	if existing, err := s.payments.GetByPaymentID(req.PaymentID); err == nil {
		return &VerifyResult{Payment: existing, AlreadyProcessed: true}, nil
	} else if !errors.Is(err, shared.ErrPaymentNotFound) {
		return nil, err
	}

	if s.pi == nil {
		return nil, fmt.Errorf("%w: pi platform client not configured", shared.ErrServiceUnavailable)
	}

	remote, err := s.pi.GetPayment(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("payment verification failed: %w", err)
	}
	if math.Abs(remote.Amount-req.Amount) > 1e-9 {
		return nil, fmt.Errorf("%w: expected %v, platform reports %v", shared.ErrAmountMismatch, req.Amount, remote.Amount)
	}

	now := s.now()
	p := models.NewPayment(0, req.PaymentID, req.UserID, req.Amount, req.Memo, req.Metadata)
	p.Status = models.PaymentStatus(remote.State())
	p.TxID = req.TxID
	p.PiUserID = remote.UserUID
	if p.PiUserID == "" {
		p.PiUserID = remote.FromAddress
	}
	p.VerifiedAt = &now
	if err := s.payments.Create(p); err != nil {
		return nil, err
	}

	unlocked, err := s.unlockFor(p)
	if err != nil {
		return nil, err
	}

	if p.Status == models.PaymentCompleted {
		txid := remote.TxID()
		if txid == "" {
			txid = req.TxID
		}
		if _, err := s.pi.CompletePayment(ctx, p.PaymentID, txid); err != nil {
			s.logger.Warn("failed to acknowledge completion", "payment", p.PaymentID, "error", err)
		} else {
			p.Complete(txid, s.now())
			if err := s.payments.Update(p); err != nil {
				return nil, err
			}
		}
	}

	return &VerifyResult{Payment: p, FeatureUnlocked: unlocked}, nil
}

// Webhook applies a status change pushed by the Pi platform. A first transition to completed unlocks the feature.
func (s *PaymentService) Webhook(ctx context.Context, identifier string, status models.PaymentStatus) (*models.Payment, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, fmt.Errorf("%w: invalid webhook data", shared.ErrInvalidInput)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: status %q", shared.ErrInvalidInput, status)
	}

	p, err := s.payments.GetByPaymentID(identifier)
	if err != nil {
		return nil, err
	}

	previous := p.Status
	p.Status = status
	if status == models.PaymentCompleted && previous != models.PaymentCompleted {
		now := s.now()
		p.CompletedAt = &now
		if _, err := s.unlockFor(p); err != nil {
			return nil, err
		}
	}

	if err := s.payments.Update(p); err != nil {
		return nil, err
	}
	s.logger.Info("payment status updated", "payment", identifier, "from", previous, "to", status)
	return p, nil
}

// History returns one page of userID's payments, newest first. page starts at 1.
func (s *PaymentService) History(userID string, page, limit int) (*History, error) {
	if limit <= 0 {
		limit = 10
	}
	limit = min(limit, 100)
	if page <= 0 {
		page = 1
	}

	items, total, err := s.payments.ListByUser(userID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}

	return &History{
		Payments:    items,
		Total:       total,
		Pages:       (total + limit - 1) / limit,
		CurrentPage: page,
	}, nil
}

// TotalSpent sums userID's completed payments.
func (s *PaymentService) TotalSpent(userID string) (float64, error) {
	return s.payments.TotalSpent(userID)
}

// Analytics summarizes userID's completed payments and unlocked features.
func (s *PaymentService) Analytics(userID string) (*Analytics, error) {
	completed, err := s.payments.List(map[string]any{"user_id": userID, "status": models.PaymentCompleted})
	if err != nil {
		return nil, err
	}

	set, err := s.manager.Features(userID)
	if err != nil {
		return nil, err
	}

	a := &Analytics{TotalPayments: len(completed), UnlockedFeatures: set.Unlocked()}
	if a.UnlockedFeatures == nil {
		a.UnlockedFeatures = []models.Feature{}
	}

	counts := map[models.Feature]int{}
	for _, p := range completed {
		a.TotalSpent += p.Amount
		if f := p.Metadata.Feature(); f.Valid() {
			counts[f]++
		}
	}
	if len(completed) > 0 {
		a.LastPayment = completed[0]
	}

	best := 0
	for _, f := range models.Features {
		if counts[f] > best {
			best = counts[f]
			a.MostUsedFeature = f
		}
	}
	return a, nil
}

// unlockFor unlocks the feature named in p's metadata. Unknown features and anonymous payments are skipped.
func (s *PaymentService) unlockFor(p *models.Payment) (bool, error) {
	f := p.Metadata.Feature()
	if f == "" {
		return false, nil
	}
	if !f.Valid() {
		s.logger.Warn("payment names unknown feature", "payment", p.PaymentID, "feature", f)
		return false, nil
	}
	if p.UserID == AnonymousUser {
		return false, nil
	}
	if err := s.manager.Unlock(p.UserID, f, p.PaymentID); err != nil {
		return false, err
	}
	return true, nil
}
