package utils

import (
	"net/url"
	"regexp"
	"strings"
)

// 電子郵件驗證 regex
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// 使用者名稱僅允許英數字、空白與 _ . - @
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9 _.\-@]+$`)

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
	keyRegex        = regexp.MustCompile(`[^a-z0-9_\-]`)
	emailCharsRegex = regexp.MustCompile(`[^a-zA-Z0-9.!#$%&'*+/=?^_{|}~@-]`)
)

// IsEmail 檢查電子郵件格式
func IsEmail(email string) bool {
	return email != "" && len(email) <= 100 && emailRegex.MatchString(email)
}

// IsValidUsername 使用者名稱需非空、無前後空白且字元合法
func IsValidUsername(username string) bool {
	if username == "" || strings.TrimSpace(username) != username {
		return false
	}
	if len(username) > 60 || strings.Contains(username, "  ") {
		return false
	}
	return usernameRegex.MatchString(username)
}

// SanitizeText 移除標籤、換行與多餘空白
func SanitizeText(value string) string {
	value = tagRegex.ReplaceAllString(value, "")
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// SanitizeEmail 去除電子郵件中的非法字元
func SanitizeEmail(email string) string {
	return emailCharsRegex.ReplaceAllString(strings.TrimSpace(email), "")
}

// SanitizeUsername 去除標籤並收斂空白
func SanitizeUsername(username string) string {
	return SanitizeText(username)
}

// SanitizeKey 轉小寫並只保留 a-z0-9_-
func SanitizeKey(key string) string {
	return keyRegex.ReplaceAllString(strings.ToLower(key), "")
}

// SanitizeURL 只接受 http/https 的絕對網址，其餘回傳空字串
func SanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}
