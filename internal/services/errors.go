package services

import "errors"

// Verification flow.
var (
	ErrDuplicateContact   = errors.New("this contact is already registered")
	ErrNoSuchRequest      = errors.New("no verification code was requested for this contact")
	ErrCodeMismatch       = errors.New("invalid verification code")
	ErrExpired            = errors.New("verification code has expired")
	ErrAlreadyVerified    = errors.New("this contact is already verified")
	ErrDispatchFailed     = errors.New("failed to deliver the verification code")
	ErrResendThrottled    = errors.New("too many verification codes requested, try again later")
	ErrContactNotVerified = errors.New("contact has not been verified")
)

// Accounts.
var (
	ErrDuplicateUsername   = errors.New("username is already taken")
	ErrDuplicateEmail      = errors.New("email is already registered")
	ErrDuplicatePhone      = errors.New("phone number is already registered")
	ErrInvalidCredentials  = errors.New("invalid username or password")
	ErrInactiveAccount     = errors.New("account is disabled")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrInvalidToken        = errors.New("invalid or expired token")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidResetToken   = errors.New("invalid password reset link")
	ErrResetTokenExpired   = errors.New("password reset link has expired")
	ErrResetTokenUsed      = errors.New("password reset link was already used")
)

// Stores, posts, partnerships.
var (
	ErrStoreAlreadyExists   = errors.New("you already have a store")
	ErrStoreNotFound        = errors.New("store not found")
	ErrPostNotFound         = errors.New("post not found")
	ErrDuplicateRequest     = errors.New("partnership request already sent")
	ErrOwnPost              = errors.New("cannot send a partnership request to your own post")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrStorageUnavailable   = errors.New("image storage is not configured")
)

// Coupons.
var (
	ErrQRNotFound          = errors.New("coupon QR code not found")
	ErrCouponAlreadyIssued = errors.New("an unused coupon from this store was already issued to this phone")
	ErrCouponNotFound      = errors.New("coupon not found")
	ErrCouponUsed          = errors.New("coupon was already used")
	ErrCouponExpired       = errors.New("coupon has expired")
)
