package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/repositories"
	"partnerhub/internal/validation"
)

const defaultCouponValidity = 30 * 24 * time.Hour

type PhoneCodeInput struct {
	PhoneNumber      string `json:"phone_number" validate:"required,phone"`
	VerificationCode string `json:"verification_code" validate:"required,len=6,numeric"`
}

type RegisterQRInput struct {
	ImageURL string `json:"image_url" validate:"required,url"`
}

type IssueCouponInput struct {
	QRToken     string `json:"qr_token" validate:"required,uuid"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

type CouponSettings struct {
	// ValidFor is how long an issued coupon can be redeemed.
	ValidFor time.Duration
	// PhoneWindow bounds the age of the phone verification accepted at issuance.
	PhoneWindow time.Duration
}

type CouponService interface {
	SendPhoneCode(ctx context.Context, phone string) error
	// ConfirmPhoneCode reports true when the number had already been verified.
	ConfirmPhoneCode(ctx context.Context, in PhoneCodeInput) (bool, error)
	RegisterCouponQR(ctx context.Context, ownerID int64, in RegisterQRInput) (*models.CouponQR, error)
	IssueCoupon(ctx context.Context, in IssueCouponInput) (*models.Coupon, error)
	RedeemCoupon(ctx context.Context, ownerID int64, couponID uuid.UUID) (*models.Coupon, error)
	ListIssuedCoupons(ctx context.Context, ownerID int64) ([]models.Coupon, error)
}

type couponService struct {
	repo       repositories.CouponRepository
	stores     repositories.StoreRepository
	phoneCodes *Registry
	validate   *validation.Validator
	settings   CouponSettings
	log        *zap.Logger
	now        func() time.Time
}

func NewCouponService(
	repo repositories.CouponRepository,
	stores repositories.StoreRepository,
	phoneCodes *Registry,
	v *validation.Validator,
	settings CouponSettings,
	log *zap.Logger,
) CouponService {
	if settings.ValidFor <= 0 {
		settings.ValidFor = defaultCouponValidity
	}
	if settings.PhoneWindow <= 0 {
		settings.PhoneWindow = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &couponService{
		repo:       repo,
		stores:     stores,
		phoneCodes: phoneCodes,
		validate:   v,
		settings:   settings,
		log:        log,
		now:        time.Now,
	}
}

func (s *couponService) SendPhoneCode(ctx context.Context, phone string) error {
	in := struct {
		PhoneNumber string `json:"phone_number" validate:"required,phone"`
	}{strings.TrimSpace(phone)}
	if err := s.validate.Struct(in); err != nil {
		return err
	}
	normalized, _ := validation.NormalizePhone(in.PhoneNumber)
	_, err := s.phoneCodes.RequestCode(ctx, normalized)
	return err
}

func (s *couponService) ConfirmPhoneCode(ctx context.Context, in PhoneCodeInput) (bool, error) {
	in.VerificationCode = strings.TrimSpace(in.VerificationCode)
	if err := s.validate.Struct(in); err != nil {
		return false, err
	}
	phone, _ := validation.NormalizePhone(in.PhoneNumber)
	res, err := s.phoneCodes.ConfirmCode(ctx, phone, in.VerificationCode)
	if err != nil {
		return false, err
	}
	return res.AlreadyVerified, nil
}

func (s *couponService) ownerStore(ctx context.Context, ownerID int64) (*models.Store, error) {
	store, err := s.stores.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrStoreNotFound
	}
	return store, nil
}

// RegisterCouponQR creates the store's QR or rotates its token.
func (s *couponService) RegisterCouponQR(ctx context.Context, ownerID int64, in RegisterQRInput) (*models.CouponQR, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	store, err := s.ownerStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	qr := &models.CouponQR{
		StoreID:  store.ID,
		Token:    uuid.New(),
		ImageURL: in.ImageURL,
		IsActive: true,
	}
	if err := s.repo.UpsertQR(ctx, qr); err != nil {
		return nil, err
	}
	s.log.Info("[coupons][qr] registered", zap.Int64("store_id", store.ID), zap.String("token", qr.Token.String()))
	return qr, nil
}

func (s *couponService) IssueCoupon(ctx context.Context, in IssueCouponInput) (*models.Coupon, error) {
	in.QRToken = strings.TrimSpace(in.QRToken)
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}
	token, err := uuid.Parse(in.QRToken)
	if err != nil {
		return nil, validation.Single("qr_token", "Invalid UUID format")
	}
	phone, _ := validation.NormalizePhone(in.PhoneNumber)

	qr, err := s.repo.GetActiveQRByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if qr == nil {
		return nil, ErrQRNotFound
	}

	verified, err := s.phoneCodes.VerifiedWithin(ctx, phone, s.settings.PhoneWindow)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, ErrContactNotVerified
	}

	now := s.now()
	coupon := &models.Coupon{
		ID:            uuid.New(),
		IssuedBy:      qr.StoreID,
		IssuedToPhone: phone,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.settings.ValidFor),
	}
	issued, err := s.repo.IssueIfNone(ctx, coupon)
	if err != nil {
		return nil, err
	}
	if !issued {
		return nil, ErrCouponAlreadyIssued
	}
	s.log.Info("[coupons][issue] ok", zap.String("coupon_id", coupon.ID.String()), zap.Int64("store_id", qr.StoreID))
	return coupon, nil
}

// RedeemCoupon marks the coupon used at the owner's store.
func (s *couponService) RedeemCoupon(ctx context.Context, ownerID int64, couponID uuid.UUID) (*models.Coupon, error) {
	store, err := s.ownerStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	coupon, err := s.repo.Redeem(ctx, couponID, store.ID, now)
	if err != nil {
		return nil, err
	}
	if coupon != nil {
		s.log.Info("[coupons][redeem] ok", zap.String("coupon_id", couponID.String()), zap.Int64("store_id", store.ID))
		return coupon, nil
	}

	// апдейт не прошёл: выясняем почему
	existing, err := s.repo.GetByID(ctx, couponID)
	if err != nil {
		return nil, err
	}
	switch {
	case existing == nil:
		return nil, ErrCouponNotFound
	case existing.Used:
		return nil, ErrCouponUsed
	default:
		return nil, ErrCouponExpired
	}
}

func (s *couponService) ListIssuedCoupons(ctx context.Context, ownerID int64) ([]models.Coupon, error) {
	store, err := s.ownerStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListIssuedBy(ctx, store.ID)
}
