package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"partnerhub/internal/models"
)

const (
	defaultAccessTTL = 15 * time.Minute
	tokenLeeway      = 30 * time.Second
)

// Claims is the access-token payload.
type Claims struct {
	UserID     int64  `json:"user_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	IsVerified bool   `json:"is_verified"`
	jwt.RegisteredClaims
}

type AuthService interface {
	HashPassword(password string) (string, error)
	CheckPassword(hash, password string) bool
	IssueAccessToken(user *models.User) (string, error)
	ParseAccessToken(token string) (*Claims, error)
}

type authService struct {
	key       []byte
	accessTTL time.Duration
	cost      int
	now       func() time.Time
}

// NewAuthService signs HS256 tokens with secret; the key never leaves this struct.
func NewAuthService(secret string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	return &authService{key: []byte(secret), accessTTL: accessTTL, cost: bcrypt.DefaultCost, now: time.Now}
}

func (s *authService) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *authService) CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *authService) IssueAccessToken(u *models.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:     u.ID,
		Username:   u.Username,
		Role:       u.Role,
		IsVerified: u.IsVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(u.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

func (s *authService) ParseAccessToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		// принимаем только HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.key, nil
	},
		jwt.WithLeeway(tokenLeeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}
