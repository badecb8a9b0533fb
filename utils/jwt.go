package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// API 呼叫端角色
const (
	RoleAdmin    = "admin"
	RoleFormHost = "form_host"
)

// Claims 服務簽發的 token 內容
type Claims struct {
	Role     string `json:"role,omitempty"`
	Kind     string `json:"kind,omitempty"`
	UserID   uint64 `json:"user_id,omitempty"`
	MemberID int    `json:"member_id,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken 以 HS256 簽發 token
func GenerateToken(secret []byte, claims Claims, ttl time.Duration) (string, time.Time, error) {
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is empty")
	}

	now := time.Now()
	expiresAt := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(expiresAt)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken 驗證 token 簽章與過期時間
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
