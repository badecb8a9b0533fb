package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"swpmbridge/config"
	"swpmbridge/utils"
)

// Mailer 寄送純文字郵件
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer 透過 SMTP 寄信
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	msg := "From: " + m.from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" + body

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogMailer 未設定 SMTP 時使用，只記錄不寄送
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.logger.Info("Email not sent, smtp is not configured", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NewMailer SMTP 有設定時寄信，否則只記錄
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg)
}

// PasswordEmailContext 密碼信的附加資訊
type PasswordEmailContext struct {
	Username string
	Password string
	LoginURL string
	SiteName string
}

// PasswordService 產生隨機密碼並寄送帳號資訊
type PasswordService struct {
	mailer   Mailer
	hooks    *Hooks
	activity *ActivityLogger
	siteName string
	loginURL string
}

func NewPasswordService(mailer Mailer, hooks *Hooks, activity *ActivityLogger, siteName, loginURL string) *PasswordService {
	return &PasswordService{
		mailer:   mailer,
		hooks:    hooks,
		activity: activity,
		siteName: siteName,
		loginURL: loginURL,
	}
}

// Generate 產生含特殊字元的隨機密碼
func (s *PasswordService) Generate(length int) (string, error) {
	if length <= 0 {
		length = utils.DefaultPasswordLength
	}
	return utils.GeneratePassword(length, true)
}

// SendPasswordEmail 寄出帳號與密碼，回傳是否寄送成功
func (s *PasswordService) SendPasswordEmail(ctx context.Context, email, password, username string) bool {
	info := PasswordEmailContext{
		Username: username,
		Password: password,
		LoginURL: s.loginURL,
		SiteName: s.siteName,
	}

	subject := fmt.Sprintf("Your account details for %s", s.siteName)
	var body strings.Builder
	body.WriteString("Hello,\n\nYour membership account has been created.\n\n")
	fmt.Fprintf(&body, "Username: %s\n", username)
	fmt.Fprintf(&body, "Password: %s\n\n", password)
	fmt.Fprintf(&body, "Login here: %s\n\n", s.loginURL)
	body.WriteString("We recommend changing your password after logging in.\n\n")
	fmt.Fprintf(&body, "Thanks,\n%s", s.siteName)

	subjectOut, bodyOut := s.hooks.filterPasswordEmail(subject, body.String(), email, info)

	if s.mailer == nil {
		s.activity.Error(ctx, "Failed to send password email", LogContext{"email": email, "error": "no mailer configured"})
		return false
	}
	if err := s.mailer.Send(ctx, email, subjectOut, bodyOut); err != nil {
		s.activity.Error(ctx, "Failed to send password email", LogContext{"email": email, "error": err.Error()})
		return false
	}

	s.activity.Info(ctx, "Password email sent", LogContext{"email": email})
	s.hooks.passwordGenerated(ctx, email, info)
	return true
}
