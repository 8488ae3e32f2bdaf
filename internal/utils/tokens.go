package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// NewRefreshToken returns nBytes of crypto randomness as hex.
func NewRefreshToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = 32 // 256 бит по умолчанию
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken is the storage form of a bearer secret such as a password-reset token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NewSixDigitCode returns a uniform code in [100000, 999999].
func NewSixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// CodesEqual compares two codes in constant time.
func CodesEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// MaskUsername keeps the first two characters and stars the rest; at least one character is always masked.
func MaskUsername(username string) string {
	r := []rune(username)
	keep := 2
	if len(r)-keep < 1 {
		keep = len(r) - 1
	}
	if keep < 0 {
		return ""
	}
	return string(r[:keep]) + strings.Repeat("*", len(r)-keep)
}
