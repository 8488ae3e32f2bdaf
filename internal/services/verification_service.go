package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
	"partnerhub/internal/utils"
)

// SendPolicy decides what happens to earlier codes when a new one is requested.
type SendPolicy int

const (
	// ExclusiveSend deletes the contact's earlier records so only one code is live.
	ExclusiveSend SendPolicy = iota
	// AccumulatingSend keeps the history; confirmation looks at the newest record.
	AccumulatingSend
)

// ReverifyPolicy decides how confirming an already-verified record is answered.
type ReverifyPolicy int

const (
	// IdempotentReverify answers with a soft success and changes nothing.
	IdempotentReverify ReverifyPolicy = iota
	// RejectReverify fails with ErrAlreadyVerified.
	RejectReverify
)

type Policy struct {
	Channel  models.Channel
	Send     SendPolicy
	Reverify ReverifyPolicy
	Window   time.Duration

	// MaxSends codes per ThrottleWindow; 0 disables the throttle.
	MaxSends       int
	ThrottleWindow time.Duration
}

// Dispatcher delivers a message to a phone number or email address.
type Dispatcher interface {
	Send(ctx context.Context, destination, message string) error
}

// SendGuard vets a contact before a code is generated.
type SendGuard func(ctx context.Context, contact string) error

// ConfirmResult is the outcome of a successful ConfirmCode.
type ConfirmResult struct {
	Record          *models.VerificationRecord
	AlreadyVerified bool
}

// Registry owns the generate/store/expire/confirm lifecycle for one verification flow.
type Registry struct {
	repo       repositories.VerificationRepository
	dispatcher Dispatcher
	policy     Policy
	log        *zap.Logger

	guard   SendGuard
	compose func(code string) string
	now     func() time.Time
	newCode func() (string, error)
}

type RegistryOption func(*Registry)

func WithSendGuard(g SendGuard) RegistryOption {
	return func(r *Registry) { r.guard = g }
}

func WithMessage(compose func(code string) string) RegistryOption {
	return func(r *Registry) { r.compose = compose }
}

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithCodeGenerator(gen func() (string, error)) RegistryOption {
	return func(r *Registry) { r.newCode = gen }
}

func NewRegistry(repo repositories.VerificationRepository, dispatcher Dispatcher, policy Policy, log *zap.Logger, opts ...RegistryOption) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		repo:       repo,
		dispatcher: dispatcher,
		policy:     policy,
		log:        log.With(zap.String("channel", string(policy.Channel))),
		compose:    func(code string) string { return "Your verification code is " + code },
		now:        time.Now,
		newCode:    utils.NewSixDigitCode,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) Policy() Policy { return r.policy }

// RequestCode persists a fresh code for contact and dispatches it.
// The record is kept even when dispatch fails; the caller gets ErrDispatchFailed.
func (r *Registry) RequestCode(ctx context.Context, contact string) (*models.VerificationRecord, error) {
	if r.guard != nil {
		if err := r.guard(ctx, contact); err != nil {
			return nil, err
		}
	}

	if r.policy.MaxSends > 0 && r.policy.ThrottleWindow > 0 {
		n, err := r.repo.CountSince(ctx, r.policy.Channel, contact, r.now().Add(-r.policy.ThrottleWindow))
		if err != nil {
			return nil, err
		}
		if n >= r.policy.MaxSends {
			r.log.Warn("[verify][send] throttled", zap.String("contact", contact), zap.Int("sent", n))
			return nil, ErrResendThrottled
		}
	}

	code, err := r.newCode()
	if err != nil {
		return nil, err
	}

	if r.policy.Send == ExclusiveSend {
		if err := r.repo.DeleteByContact(ctx, r.policy.Channel, contact); err != nil {
			return nil, err
		}
	}

	rec := &models.VerificationRecord{
		Channel:   r.policy.Channel,
		Contact:   contact,
		Code:      code,
		CreatedAt: r.now(),
	}
	if err := r.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	if err := r.dispatcher.Send(ctx, contact, r.compose(code)); err != nil {
		r.log.Error("[verify][send] dispatch failed", zap.String("contact", contact), zap.Int64("record_id", rec.ID), zap.Error(err))
		return rec, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	r.log.Info("[verify][send] ok", zap.String("contact", contact), zap.Int64("record_id", rec.ID))
	return rec, nil
}

// ConfirmCode checks code against the contact's newest record.
func (r *Registry) ConfirmCode(ctx context.Context, contact, code string) (ConfirmResult, error) {
	rec, err := r.repo.Latest(ctx, r.policy.Channel, contact)
	if err != nil {
		return ConfirmResult{}, err
	}
	if rec == nil {
		return ConfirmResult{}, ErrNoSuchRequest
	}
	if rec.IsVerified {
		return r.reverify(rec)
	}

	now := r.now()
	if rec.ExpiredAt(now, r.policy.Window) {
		return ConfirmResult{}, ErrExpired
	}
	if !utils.CodesEqual(rec.Code, code) {
		return ConfirmResult{}, ErrCodeMismatch
	}

	ok, err := r.repo.MarkVerified(ctx, rec.ID, now)
	if err != nil {
		return ConfirmResult{}, err
	}
	if !ok {
		// a concurrent confirmation won
		if fresh, err := r.repo.Latest(ctx, r.policy.Channel, contact); err == nil && fresh != nil && fresh.ID == rec.ID {
			rec = fresh
		}
		return r.reverify(rec)
	}

	rec.IsVerified = true
	rec.VerifiedAt = &now
	r.log.Info("[verify][confirm] ok", zap.String("contact", contact), zap.Int64("record_id", rec.ID))
	return ConfirmResult{Record: rec}, nil
}

func (r *Registry) reverify(rec *models.VerificationRecord) (ConfirmResult, error) {
	if r.policy.Reverify == RejectReverify {
		return ConfirmResult{}, ErrAlreadyVerified
	}
	return ConfirmResult{Record: rec, AlreadyVerified: true}, nil
}

// VerifiedWithin reports whether the newest record is verified and was issued no longer than window ago.
func (r *Registry) VerifiedWithin(ctx context.Context, contact string, window time.Duration) (bool, error) {
	rec, err := r.repo.Latest(ctx, r.policy.Channel, contact)
	if err != nil {
		return false, err
	}
	if rec == nil || !rec.IsVerified {
		return false, nil
	}
	return r.now().Sub(rec.CreatedAt) <= window, nil
}

// Purge drops the contact's verification history.
func (r *Registry) Purge(ctx context.Context, contact string) error {
	return r.repo.DeleteByContact(ctx, r.policy.Channel, contact)
}

// IsVerificationFailure reports whether err is one of the user-facing verification outcomes.
func IsVerificationFailure(err error) bool {
	for _, target := range []error{ErrNoSuchRequest, ErrCodeMismatch, ErrExpired, ErrAlreadyVerified} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
