package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	passwordSpecial = "!@#$%^&*()"

	// DefaultPasswordLength 自動產生密碼的預設長度
	DefaultPasswordLength = 16

	// MaxPasswordBytes bcrypt 可接受的密碼長度上限
	MaxPasswordBytes = 72
)

// HashPassword 使用 bcrypt 哈希密碼
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash 驗證密碼是否與哈希匹配
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsPasswordHash 判斷字串是否已是 bcrypt 哈希
func IsPasswordHash(value string) bool {
	if len(value) != 60 {
		return false
	}
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// GeneratePassword 以 crypto/rand 產生隨機密碼，包含英數字與特殊字元
func GeneratePassword(length int, special bool) (string, error) {
	if length <= 0 {
		length = DefaultPasswordLength
	}

	charset := passwordLetters
	if special {
		charset += passwordSpecial
	}

	max := big.NewInt(int64(len(charset)))
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		b.WriteByte(charset[n.Int64()])
	}
	return b.String(), nil
}
