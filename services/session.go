package services

import (
	"context"
	"fmt"
	"time"

	"swpmbridge/utils"
)

// Session 種類與對應的 cookie 名稱
const (
	SessionKindAccount = "account"
	SessionKindMember  = "member"

	AccountCookieName = "wordpress_logged_in"
	MemberCookieName  = "swpm_session"
)

// Session 登入後簽發的 token
type Session struct {
	Kind       string    `json:"kind"`
	CookieName string    `json:"cookie_name"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SessionService 簽發帳號與會員系統的登入 token
type SessionService struct {
	secret   []byte
	ttl      time.Duration
	accounts *AccountService
	members  MemberLookup
}

func NewSessionService(secret string, ttl time.Duration, accounts *AccountService, members MemberLookup) *SessionService {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &SessionService{secret: []byte(secret), ttl: ttl, accounts: accounts, members: members}
}

// LoginAccount 為已存在的帳號建立登入 session
func (s *SessionService) LoginAccount(ctx context.Context, userID uint64) (*Session, error) {
	user, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("account %d not found", userID)
	}

	token, expiresAt, err := utils.GenerateToken(s.secret, utils.Claims{
		Kind:   SessionKindAccount,
		UserID: user.ID,
	}, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{Kind: SessionKindAccount, CookieName: AccountCookieName, Token: token, ExpiresAt: expiresAt}, nil
}

// LoginMember 以使用者名稱與密碼登入會員系統
func (s *SessionService) LoginMember(ctx context.Context, username, password string) (*Session, error) {
	member, err := s.members.GetMemberByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if member == nil || !utils.CheckPasswordHash(password, member.Password) {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := utils.GenerateToken(s.secret, utils.Claims{
		Kind:     SessionKindMember,
		MemberID: member.MemberID,
	}, s.ttl)
	if err != nil {
		return nil, err
	}
	return &Session{Kind: SessionKindMember, CookieName: MemberCookieName, Token: token, ExpiresAt: expiresAt}, nil
}
