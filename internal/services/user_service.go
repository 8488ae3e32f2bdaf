package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
	"partnerhub/internal/utils"
	"partnerhub/internal/validation"
)

const defaultRefreshTTL = 30 * 24 * time.Hour

type SignupInput struct {
	Username    string `json:"username" validate:"required,min=3,max=30"`
	Name        string `json:"name" validate:"required,max=50"`
	Email       string `json:"email" validate:"required,email,max=254"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	ImageURL    string `json:"image_url" validate:"required,url"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type EmailCodeInput struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"verification_code" validate:"required,len=6,numeric"`
}

type FindIDInput struct {
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

// LoginResult carries the token pair plus the profile bits the client shows right after login.
type LoginResult struct {
	Access     string `json:"access"`
	Refresh    string `json:"refresh"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
}

type AccountSettings struct {
	SignupWindow time.Duration
	RefreshTTL   time.Duration
}

type UserService interface {
	SendEmailCode(ctx context.Context, email string) error
	ConfirmEmailCode(ctx context.Context, in EmailCodeInput) error
	Signup(ctx context.Context, in SignupInput) (*models.User, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
	FindID(ctx context.Context, in FindIDInput) (string, error)
}

type userService struct {
	repo       repositories.UserRepository
	emailCodes *Registry
	auth       AuthService
	emails     EmailService
	validate   *validation.Validator
	settings   AccountSettings
	log        *zap.Logger
	now        func() time.Time
}

func NewUserService(
	repo repositories.UserRepository,
	emailCodes *Registry,
	auth AuthService,
	emails EmailService,
	v *validation.Validator,
	settings AccountSettings,
	log *zap.Logger,
) UserService {
	if settings.SignupWindow <= 0 {
		settings.SignupWindow = 10 * time.Minute
	}
	if settings.RefreshTTL <= 0 {
		settings.RefreshTTL = defaultRefreshTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &userService{
		repo:       repo,
		emailCodes: emailCodes,
		auth:       auth,
		emails:     emails,
		validate:   v,
		settings:   settings,
		log:        log,
		now:        time.Now,
	}
}

// EmailNotRegistered is the send guard for signup email verification.
func EmailNotRegistered(repo repositories.UserRepository) SendGuard {
	return func(ctx context.Context, email string) error {
		exists, err := repo.ExistsByEmail(ctx, email)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateContact
		}
		return nil
	}
}

func (s *userService) SendEmailCode(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	in := struct {
		Email string `json:"email" validate:"required,email"`
	}{email}
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	_, err := s.emailCodes.RequestCode(ctx, email)
	return err
}

func (s *userService) ConfirmEmailCode(ctx context.Context, in EmailCodeInput) error {
	in.Email = validation.NormalizeEmail(in.Email)
	in.Code = strings.TrimSpace(in.Code)
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	_, err := s.emailCodes.ConfirmCode(ctx, in.Email, in.Code)
	return err
}

func (s *userService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = validation.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	phone, err := validation.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, validation.Single("phone_number", "Invalid phone number")
	}

	verified, err := s.emailCodes.VerifiedWithin(ctx, in.Email, s.settings.SignupWindow)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, ErrContactNotVerified
	}

	taken, err := s.repo.TakenFields(ctx, in.Username, in.Email, phone)
	if err != nil {
		return nil, err
	}
	switch {
	case taken.Username:
		return nil, ErrDuplicateUsername
	case taken.Email:
		return nil, ErrDuplicateEmail
	case taken.Phone:
		return nil, ErrDuplicatePhone
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username:     in.Username,
		Name:         in.Name,
		Email:        in.Email,
		PhoneNumber:  phone,
		PasswordHash: hash,
		Role:         models.RoleUser,
		IsVerified:   true,
	}
	if err := s.repo.CreateWithImage(ctx, user, in.ImageURL); err != nil {
		if dup := duplicateAccountError(err); dup != nil {
			return nil, dup
		}
		return nil, err
	}

	if err := s.emailCodes.Purge(ctx, in.Email); err != nil {
		s.log.Warn("[auth][signup] purge verification history failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	if s.emails != nil {
		if err := s.emails.SendWelcomeEmail(ctx, user.Email, user.Name); err != nil {
			s.log.Warn("[auth][signup] welcome email failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}
	s.log.Info("[auth][signup] ok", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// duplicateAccountError maps a unique violation on users to its duplicate kind.
func duplicateAccountError(err error) error {
	constraint, ok := repositories.AsConflict(err)
	if !ok {
		return nil
	}
	switch constraint {
	case repositories.ConstraintUsername:
		return ErrDuplicateUsername
	case repositories.ConstraintEmail:
		return ErrDuplicateEmail
	case repositories.ConstraintPhone:
		return ErrDuplicatePhone
	}
	return fmt.Errorf("%w: %s", ErrDuplicateContact, constraint)
}

func (s *userService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.repo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.auth.CheckPassword(user.PasswordHash, in.Password) {
		s.log.Info("[auth][login] rejected", zap.String("username", in.Username))
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	rt, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRefresh(ctx, user.ID, rt, s.now().Add(s.settings.RefreshTTL)); err != nil {
		return nil, err
	}
	return s.loginResult(user, rt)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	old := strings.TrimSpace(refreshToken)
	if old == "" {
		return nil, validation.Single("refresh", "This field is required")
	}
	rt, err := utils.NewRefreshToken(32)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.RotateRefresh(ctx, old, rt, s.now().Add(s.settings.RefreshTTL))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}
	return s.loginResult(user, rt)
}

func (s *userService) loginResult(user *models.User, refresh string) (*LoginResult, error) {
	access, err := s.auth.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Access:     access,
		Refresh:    refresh,
		Username:   user.Username,
		Role:       user.Role,
		IsVerified: user.IsVerified,
	}, nil
}

func (s *userService) Me(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// FindID returns the masked username registered with both email and phone.
func (s *userService) FindID(ctx context.Context, in FindIDInput) (string, error) {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		return "", err
	}
	phone, err := validation.NormalizePhone(in.PhoneNumber)
	if err != nil {
		return "", validation.Single("phone_number", "Invalid phone number")
	}
	user, err := s.repo.GetByEmailAndPhone(ctx, in.Email, phone)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", ErrUserNotFound
	}
	return utils.MaskUsername(user.Username), nil
}
