package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
	"partnerhub/internal/utils"
	"partnerhub/internal/validation"
)

type ResetConfirmInput struct {
	UID         int64  `json:"uid" validate:"required,gt=0"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=128"`
}

type PasswordResetService interface {
	RequestReset(ctx context.Context, email string) error
	Validate(ctx context.Context, uid int64, token string) error
	Confirm(ctx context.Context, in ResetConfirmInput) error
}

type passwordResetService struct {
	userRepo    repositories.UserRepository
	repo        repositories.PasswordResetRepository
	emails      EmailService
	auth        AuthService
	validate    *validation.Validator
	frontendURL string
	ttl         time.Duration
	log         *zap.Logger
	now         func() time.Time
}

func NewPasswordResetService(
	userRepo repositories.UserRepository,
	repo repositories.PasswordResetRepository,
	emails EmailService,
	auth AuthService,
	v *validation.Validator,
	frontendURL string,
	ttl time.Duration,
	log *zap.Logger,
) PasswordResetService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &passwordResetService{
		userRepo:    userRepo,
		repo:        repo,
		emails:      emails,
		auth:        auth,
		validate:    v,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		ttl:         ttl,
		log:         log,
		now:         time.Now,
	}
}

// RequestReset mails a reset link; unknown emails succeed silently.
func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	in := struct {
		Email string `json:"email" validate:"required,email"`
	}{email}
	if err := s.validate.Struct(in); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		// don't leak existence
		s.log.Info("[password-reset] request for unknown email", zap.String("email", email))
		return nil
	}

	token, err := utils.NewRefreshToken(32)
	if err != nil {
		return err
	}
	if _, err := s.repo.Create(ctx, user.ID, utils.HashToken(token), s.now().Add(s.ttl)); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password-confirm?uid=%d&token=%s", s.frontendURL, user.ID, url.QueryEscape(token))
	if err := s.emails.SendPasswordResetEmail(ctx, user.Email, link); err != nil {
		s.log.Error("[password-reset] send email failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return nil
}

func (s *passwordResetService) lookup(ctx context.Context, uid int64, token string) (*models.PasswordReset, error) {
	token = strings.TrimSpace(token)
	if uid <= 0 || token == "" {
		return nil, ErrInvalidResetToken
	}
	pr, err := s.repo.GetByTokenHash(ctx, utils.HashToken(token))
	if err != nil {
		return nil, err
	}
	if pr == nil || pr.UserID != uid {
		return nil, ErrInvalidResetToken
	}
	if pr.UsedAt != nil {
		return nil, ErrResetTokenUsed
	}
	if s.now().After(pr.ExpiresAt) {
		return nil, ErrResetTokenExpired
	}
	return pr, nil
}

func (s *passwordResetService) Validate(ctx context.Context, uid int64, token string) error {
	_, err := s.lookup(ctx, uid, token)
	return err
}

func (s *passwordResetService) Confirm(ctx context.Context, in ResetConfirmInput) error {
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	pr, err := s.lookup(ctx, in.UID, in.Token)
	if err != nil {
		return err
	}

	hash, err := s.auth.HashPassword(in.NewPassword)
	if err != nil {
		return err
	}
	// токен и пароль меняются вместе: при ошибке ссылка остаётся рабочей
	ok, err := s.repo.Consume(ctx, pr.ID, pr.UserID, hash, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrResetTokenUsed
	}
	s.log.Info("[password-reset] password changed", zap.Int64("user_id", pr.UserID))
	return nil
}
