package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"partnerhub/internal/models"
	"partnerhub/internal/testutil"
)

const testPhone = "+821012345678"

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func codes(list ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := list[i%len(list)]
		i++
		return c, nil
	}
}

type registryFixture struct {
	reg   *Registry
	repo  *testutil.VerificationRepo
	disp  *testutil.Dispatcher
	clock *testutil.Clock
}

func newRegistry(policy Policy, gen func() (string, error), opts ...RegistryOption) registryFixture {
	f := registryFixture{
		repo:  testutil.NewVerificationRepo(),
		disp:  &testutil.Dispatcher{},
		clock: testutil.NewClock(t0),
	}
	opts = append([]RegistryOption{WithClock(f.clock.Now), WithCodeGenerator(gen)}, opts...)
	f.reg = NewRegistry(f.repo, f.disp, policy, zap.NewNop(), opts...)
	return f
}

var phonePolicy = Policy{
	Channel:  models.ChannelPhone,
	Send:     AccumulatingSend,
	Reverify: IdempotentReverify,
	Window:   5 * time.Minute,
}

var emailPolicy = Policy{
	Channel:  models.ChannelEmail,
	Send:     ExclusiveSend,
	Reverify: RejectReverify,
	Window:   3 * time.Minute,
}

func TestRegistry_RequestThenConfirm(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(phonePolicy, codes("482913"))

	rec, err := f.reg.RequestCode(ctx, testPhone)
	require.NoError(t, err)
	assert.False(t, rec.IsVerified)
	assert.Equal(t, "482913", rec.Code)
	assert.Equal(t, testPhone, f.disp.Last().To)
	assert.Contains(t, f.disp.Last().Body, "482913")

	f.clock.Advance(2 * time.Minute)
	res, err := f.reg.ConfirmCode(ctx, testPhone, "482913")
	require.NoError(t, err)
	assert.False(t, res.AlreadyVerified)
	assert.True(t, res.Record.IsVerified)
	firstVerifiedAt := *res.Record.VerifiedAt
	assert.Equal(t, t0.Add(2*time.Minute), firstVerifiedAt)

	f.clock.Advance(time.Minute)
	res, err = f.reg.ConfirmCode(ctx, testPhone, "482913")
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)

	stored := f.repo.ForContact(models.ChannelPhone, testPhone)
	require.Len(t, stored, 1)
	assert.Equal(t, firstVerifiedAt, *stored[0].VerifiedAt)
}

func TestRegistry_RejectReverify(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(emailPolicy, codes("111111"))

	_, err := f.reg.RequestCode(ctx, "a@b.com")
	require.NoError(t, err)
	_, err = f.reg.ConfirmCode(ctx, "a@b.com", "111111")
	require.NoError(t, err)

	_, err = f.reg.ConfirmCode(ctx, "a@b.com", "111111")
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestRegistry_WrongCodeNeverMutates(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(phonePolicy, codes("482913"))

	_, err := f.reg.RequestCode(ctx, testPhone)
	require.NoError(t, err)

	for _, wrong := range []string{"000000", "482914", "", "4829130"} {
		_, err := f.reg.ConfirmCode(ctx, testPhone, wrong)
		assert.ErrorIs(t, err, ErrCodeMismatch, wrong)
	}
	stored := f.repo.ForContact(models.ChannelPhone, testPhone)
	require.Len(t, stored, 1)
	assert.False(t, stored[0].IsVerified)
	assert.Nil(t, stored[0].VerifiedAt)
}

func TestRegistry_ExpiredEvenWithCorrectCode(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(phonePolicy, codes("482913"))

	_, err := f.reg.RequestCode(ctx, testPhone)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	res, err := f.reg.ConfirmCode(ctx, testPhone, "482913")
	require.NoError(t, err, "the boundary itself is still valid")
	assert.True(t, res.Record.IsVerified)

	f2 := newRegistry(phonePolicy, codes("482913"))
	_, err = f2.reg.RequestCode(ctx, testPhone)
	require.NoError(t, err)
	f2.clock.Advance(5*time.Minute + time.Second)
	_, err = f2.reg.ConfirmCode(ctx, testPhone, "482913")
	assert.ErrorIs(t, err, ErrExpired)
	assert.False(t, f2.repo.ForContact(models.ChannelPhone, testPhone)[0].IsVerified)
}

func TestRegistry_NoSuchRequest(t *testing.T) {
	f := newRegistry(phonePolicy, codes("482913"))
	_, err := f.reg.ConfirmCode(context.Background(), testPhone, "482913")
	assert.ErrorIs(t, err, ErrNoSuchRequest)
}

func TestRegistry_ExclusiveSendKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(emailPolicy, codes("111111", "222222"))

	_, err := f.reg.RequestCode(ctx, "a@b.com")
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.reg.RequestCode(ctx, "a@b.com")
	require.NoError(t, err)

	stored := f.repo.ForContact(models.ChannelEmail, "a@b.com")
	require.Len(t, stored, 1)
	assert.Equal(t, "222222", stored[0].Code)

	_, err = f.reg.ConfirmCode(ctx, "a@b.com", "111111")
	assert.ErrorIs(t, err, ErrCodeMismatch)
}

func TestRegistry_AccumulatingSendConfirmsNewest(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(phonePolicy, codes("111111", "222222"))

	_, err := f.reg.RequestCode(ctx, testPhone)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	_, err = f.reg.RequestCode(ctx, testPhone)
	require.NoError(t, err)

	require.Len(t, f.repo.ForContact(models.ChannelPhone, testPhone), 2)

	_, err = f.reg.ConfirmCode(ctx, testPhone, "111111")
	assert.ErrorIs(t, err, ErrCodeMismatch)

	res, err := f.reg.ConfirmCode(ctx, testPhone, "222222")
	require.NoError(t, err)
	assert.Equal(t, "222222", res.Record.Code)
}

func TestRegistry_DispatchFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(phonePolicy, codes("482913"))
	f.disp.Err = errors.New("smtp down")

	rec, err := f.reg.RequestCode(ctx, testPhone)
	assert.ErrorIs(t, err, ErrDispatchFailed)
	require.NotNil(t, rec)
	assert.Len(t, f.repo.ForContact(models.ChannelPhone, testPhone), 1)
}

func TestRegistry_GuardRejectsBeforePersisting(t *testing.T) {
	ctx := context.Background()
	guard := func(context.Context, string) error { return ErrDuplicateContact }
	f := newRegistry(emailPolicy, codes("111111"), WithSendGuard(guard))

	_, err := f.reg.RequestCode(ctx, "taken@b.com")
	assert.ErrorIs(t, err, ErrDuplicateContact)
	assert.Empty(t, f.repo.ForContact(models.ChannelEmail, "taken@b.com"))
	assert.Zero(t, f.disp.Count())
}

func TestRegistry_Throttle(t *testing.T) {
	ctx := context.Background()
	policy := phonePolicy
	policy.MaxSends = 2
	policy.ThrottleWindow = 10 * time.Minute
	f := newRegistry(policy, codes("111111"))

	for i := 0; i < 2; i++ {
		_, err := f.reg.RequestCode(ctx, testPhone)
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}
	_, err := f.reg.RequestCode(ctx, testPhone)
	assert.ErrorIs(t, err, ErrResendThrottled)

	f.clock.Advance(10 * time.Minute)
	_, err = f.reg.RequestCode(ctx, testPhone)
	assert.NoError(t, err)
}

func TestRegistry_ConcurrentConfirmVerifiesOnce(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(phonePolicy, codes("482913"))
	_, err := f.reg.RequestCode(ctx, testPhone)
	require.NoError(t, err)

	const n = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
		soft  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.reg.ConfirmCode(ctx, testPhone, "482913")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.AlreadyVerified {
				soft++
			} else {
				fresh++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)
	assert.Equal(t, n-1, soft)
}

func TestRegistry_VerifiedWithinAndPurge(t *testing.T) {
	ctx := context.Background()
	f := newRegistry(emailPolicy, codes("111111"))

	ok, err := f.reg.VerifiedWithin(ctx, "a@b.com", 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.reg.RequestCode(ctx, "a@b.com")
	require.NoError(t, err)
	ok, _ = f.reg.VerifiedWithin(ctx, "a@b.com", 10*time.Minute)
	assert.False(t, ok, "unverified record")

	_, err = f.reg.ConfirmCode(ctx, "a@b.com", "111111")
	require.NoError(t, err)
	ok, _ = f.reg.VerifiedWithin(ctx, "a@b.com", 10*time.Minute)
	assert.True(t, ok)

	f.clock.Advance(10*time.Minute + time.Second)
	ok, _ = f.reg.VerifiedWithin(ctx, "a@b.com", 10*time.Minute)
	assert.False(t, ok, "verified too long ago")

	require.NoError(t, f.reg.Purge(ctx, "a@b.com"))
	assert.Empty(t, f.repo.ForContact(models.ChannelEmail, "a@b.com"))
}

func TestIsVerificationFailure(t *testing.T) {
	assert.True(t, IsVerificationFailure(ErrExpired))
	assert.True(t, IsVerificationFailure(ErrCodeMismatch))
	assert.False(t, IsVerificationFailure(ErrDispatchFailed))
}
