package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerhub/internal/models"
	"partnerhub/internal/testutil"
	"partnerhub/internal/validation"
)

const consumerPhone = "010-9876-5432"

type couponFixture struct {
	svc     CouponService
	repo    *testutil.CouponRepo
	stores  *testutil.StoreRepo
	vrepo   *testutil.VerificationRepo
	sms     *testutil.Dispatcher
	clock   *testutil.Clock
	ownerID int64
	storeID int64
}

func newCouponFixture(t *testing.T) *couponFixture {
	t.Helper()
	f := &couponFixture{
		repo:    testutil.NewCouponRepo(),
		stores:  testutil.NewStoreRepo(testutil.NewCategoryRepo()),
		vrepo:   testutil.NewVerificationRepo(),
		sms:     &testutil.Dispatcher{},
		clock:   testutil.NewClock(t0),
		ownerID: 10,
	}
	store := &models.Store{OwnerID: f.ownerID, Name: "Bean Brothers"}
	require.NoError(t, f.stores.Create(context.Background(), store, []int64{1}))
	f.storeID = store.ID

	reg := NewRegistry(f.vrepo, f.sms, phonePolicy, nil,
		WithClock(f.clock.Now),
		WithCodeGenerator(codes("123456")),
	)
	svc := NewCouponService(f.repo, f.stores, reg, validation.New(),
		CouponSettings{ValidFor: 30 * 24 * time.Hour, PhoneWindow: 10 * time.Minute}, nil)
	svc.(*couponService).now = f.clock.Now
	f.svc = svc
	return f
}

func (f *couponFixture) verifyPhone(t *testing.T, phone string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.SendPhoneCode(ctx, phone))
	already, err := f.svc.ConfirmPhoneCode(ctx, PhoneCodeInput{PhoneNumber: phone, VerificationCode: "123456"})
	require.NoError(t, err)
	assert.False(t, already)
}

func (f *couponFixture) qr(t *testing.T) *models.CouponQR {
	t.Helper()
	qr, err := f.svc.RegisterCouponQR(context.Background(), f.ownerID, RegisterQRInput{ImageURL: "https://cdn.partnerhub.test/qr.png"})
	require.NoError(t, err)
	return qr
}

func TestPhoneVerification_NormalisesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newCouponFixture(t)
	f.verifyPhone(t, consumerPhone)

	assert.Equal(t, "+821098765432", f.sms.Last().To)
	assert.Contains(t, f.sms.Last().Body, "123456")

	already, err := f.svc.ConfirmPhoneCode(ctx, PhoneCodeInput{PhoneNumber: "+82 10 9876 5432", VerificationCode: "123456"})
	require.NoError(t, err)
	assert.True(t, already)
}

func TestPhoneVerification_DispatchFailureKeepsRecord(t *testing.T) {
	f := newCouponFixture(t)
	f.sms.Err = errors.New("solapi: 503")

	err := f.svc.SendPhoneCode(context.Background(), consumerPhone)
	assert.ErrorIs(t, err, ErrDispatchFailed)
	assert.Len(t, f.vrepo.ForContact(models.ChannelPhone, "+821098765432"), 1)
}

func TestPhoneVerification_InvalidNumber(t *testing.T) {
	f := newCouponFixture(t)
	err := f.svc.SendPhoneCode(context.Background(), "12")
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs.Fields(), "phone_number")
	assert.Zero(t, f.sms.Count())
}

func TestRegisterCouponQR_RotatesToken(t *testing.T) {
	ctx := context.Background()
	f := newCouponFixture(t)

	first := f.qr(t)
	second := f.qr(t)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.Token, second.Token)

	got, err := f.repo.GetActiveQRByToken(ctx, first.Token)
	require.NoError(t, err)
	assert.Nil(t, got, "old token no longer resolves")

	_, err = f.svc.RegisterCouponQR(ctx, 999, RegisterQRInput{ImageURL: "https://cdn.partnerhub.test/qr.png"})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestIssueCoupon(t *testing.T) {
	ctx := context.Background()
	f := newCouponFixture(t)
	qr := f.qr(t)
	in := IssueCouponInput{QRToken: qr.Token.String(), PhoneNumber: consumerPhone}

	_, err := f.svc.IssueCoupon(ctx, in)
	assert.ErrorIs(t, err, ErrContactNotVerified)

	f.verifyPhone(t, consumerPhone)
	coupon, err := f.svc.IssueCoupon(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, f.storeID, coupon.IssuedBy)
	assert.Equal(t, "+821098765432", coupon.IssuedToPhone)
	assert.Equal(t, t0.Add(30*24*time.Hour), coupon.ExpiresAt)
	assert.False(t, coupon.Used)

	_, err = f.svc.IssueCoupon(ctx, in)
	assert.ErrorIs(t, err, ErrCouponAlreadyIssued)

	_, err = f.svc.IssueCoupon(ctx, IssueCouponInput{QRToken: uuid.NewString(), PhoneNumber: consumerPhone})
	assert.ErrorIs(t, err, ErrQRNotFound)
}

func TestIssueCoupon_ConcurrentIssuesCreateOneCoupon(t *testing.T) {
	ctx := context.Background()
	f := newCouponFixture(t)
	qr := f.qr(t)
	f.verifyPhone(t, consumerPhone)
	in := IssueCouponInput{QRToken: qr.Token.String(), PhoneNumber: consumerPhone}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.IssueCoupon(ctx, in)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrCouponAlreadyIssued)
	}
	assert.Equal(t, 1, ok)
	issued, err := f.svc.ListIssuedCoupons(ctx, f.ownerID)
	require.NoError(t, err)
	assert.Len(t, issued, 1)
}

func TestIssueCoupon_AfterExpiryIssuesAgain(t *testing.T) {
	ctx := context.Background()
	f := newCouponFixture(t)
	qr := f.qr(t)
	in := IssueCouponInput{QRToken: qr.Token.String(), PhoneNumber: consumerPhone}

	f.verifyPhone(t, consumerPhone)
	first, err := f.svc.IssueCoupon(ctx, in)
	require.NoError(t, err)

	f.clock.Advance(31 * 24 * time.Hour)
	f.verifyPhone(t, consumerPhone)
	second, err := f.svc.IssueCoupon(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestIssueCoupon_StaleVerification(t *testing.T) {
	f := newCouponFixture(t)
	qr := f.qr(t)
	f.verifyPhone(t, consumerPhone)

	f.clock.Advance(10*time.Minute + time.Second)
	_, err := f.svc.IssueCoupon(context.Background(), IssueCouponInput{QRToken: qr.Token.String(), PhoneNumber: consumerPhone})
	assert.ErrorIs(t, err, ErrContactNotVerified)
}

func TestRedeemCoupon(t *testing.T) {
	ctx := context.Background()
	f := newCouponFixture(t)
	qr := f.qr(t)
	f.verifyPhone(t, consumerPhone)
	coupon, err := f.svc.IssueCoupon(ctx, IssueCouponInput{QRToken: qr.Token.String(), PhoneNumber: consumerPhone})
	require.NoError(t, err)

	_, err = f.svc.RedeemCoupon(ctx, 999, coupon.ID)
	assert.ErrorIs(t, err, ErrStoreNotFound)
	_, err = f.svc.RedeemCoupon(ctx, f.ownerID, uuid.New())
	assert.ErrorIs(t, err, ErrCouponNotFound)

	f.clock.Advance(time.Hour)
	used, err := f.svc.RedeemCoupon(ctx, f.ownerID, coupon.ID)
	require.NoError(t, err)
	assert.True(t, used.Used)
	require.NotNil(t, used.UsedAt)
	assert.Equal(t, t0.Add(time.Hour), *used.UsedAt)
	require.NotNil(t, used.UsedAtStore)
	assert.Equal(t, f.storeID, *used.UsedAtStore)

	_, err = f.svc.RedeemCoupon(ctx, f.ownerID, coupon.ID)
	assert.ErrorIs(t, err, ErrCouponUsed)

	issued, err := f.svc.ListIssuedCoupons(ctx, f.ownerID)
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.True(t, issued[0].Used)
}

func TestRedeemCoupon_Expired(t *testing.T) {
	ctx := context.Background()
	f := newCouponFixture(t)
	qr := f.qr(t)
	f.verifyPhone(t, consumerPhone)
	coupon, err := f.svc.IssueCoupon(ctx, IssueCouponInput{QRToken: qr.Token.String(), PhoneNumber: consumerPhone})
	require.NoError(t, err)

	f.clock.Advance(31 * 24 * time.Hour)
	_, err = f.svc.RedeemCoupon(ctx, f.ownerID, coupon.ID)
	assert.ErrorIs(t, err, ErrCouponExpired)

	// an expired coupon no longer blocks a new one
	f.verifyPhone(t, consumerPhone)
	_, err = f.svc.IssueCoupon(ctx, IssueCouponInput{QRToken: qr.Token.String(), PhoneNumber: consumerPhone})
	assert.NoError(t, err)
}
