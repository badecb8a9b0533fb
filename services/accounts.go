package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"swpmbridge/models"
	"swpmbridge/utils"
)

// AccountProfile 要同步到帳號的欄位；nil 表示不變更
type AccountProfile struct {
	FirstName   *string
	LastName    *string
	DisplayName *string
	Nickname    *string
	Description *string
	UserURL     *string
}

func profileFromRecord(record *models.MemberData) AccountProfile {
	return AccountProfile{
		FirstName:   record.FirstName,
		LastName:    record.LastName,
		DisplayName: record.DisplayName,
		Nickname:    record.Nickname,
		Description: record.Description,
		UserURL:     record.UserURL,
	}
}

// Empty 是否沒有任何要更新的欄位
func (p AccountProfile) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.DisplayName == nil &&
		p.Nickname == nil && p.Description == nil && p.UserURL == nil
}

// AccountService 宿主系統的使用者帳號
type AccountService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{db: db, now: time.Now}
}

// CreateAccount 建立帳號，密碼以 bcrypt 儲存
func (s *AccountService) CreateAccount(ctx context.Context, username, password, email string) (*models.WPUser, error) {
	hashed, err := hashIfPlain(password)
	if err != nil {
		return nil, err
	}

	user := &models.WPUser{
		UserLogin:      username,
		UserPass:       hashed,
		UserNicename:   nicename(username),
		UserEmail:      email,
		UserRegistered: s.now().UTC(),
		DisplayName:    username,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create account %s: %w", username, err)
	}
	return user, nil
}

// GetAccount 依 ID 查詢帳號，不存在時回傳 nil
func (s *AccountService) GetAccount(ctx context.Context, id uint64) (*models.WPUser, error) {
	var user models.WPUser
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return &user, nil
}

// UpdateProfile 更新帳號欄位與 meta，只處理非 nil 的欄位
func (s *AccountService) UpdateProfile(ctx context.Context, userID uint64, profile AccountProfile) error {
	if profile.Empty() {
		return nil
	}

	updates := map[string]any{}
	if profile.DisplayName != nil {
		updates["display_name"] = *profile.DisplayName
	}
	if profile.UserURL != nil {
		updates["user_url"] = utils.SanitizeURL(*profile.UserURL)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.WPUser{}).Where("ID = ?", userID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update account %d: %w", userID, err)
		}
	}

	meta := map[string]*string{
		models.UserMetaFirstName:   profile.FirstName,
		models.UserMetaLastName:    profile.LastName,
		models.UserMetaNickname:    profile.Nickname,
		models.UserMetaDescription: profile.Description,
	}
	for _, key := range models.SortedKeys(meta) {
		if meta[key] == nil {
			continue
		}
		if err := s.SetMeta(ctx, userID, key, *meta[key]); err != nil {
			return err
		}
	}
	return nil
}

// SetAvatar 儲存頭像網址
func (s *AccountService) SetAvatar(ctx context.Context, userID uint64, avatarURL string) error {
	return s.SetMeta(ctx, userID, models.UserMetaAvatar, avatarURL)
}

// SetMeta 寫入或覆蓋帳號 meta
func (s *AccountService) SetMeta(ctx context.Context, userID uint64, key, value string) error {
	row := models.WPUserMeta{UserID: userID, MetaKey: key, MetaValue: value}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to set meta %s for account %d: %w", key, userID, err)
	}
	return nil
}

// GetMeta 讀取帳號 meta，不存在時回傳空字串
func (s *AccountService) GetMeta(ctx context.Context, userID uint64, key string) (string, error) {
	var row models.WPUserMeta
	err := s.db.WithContext(ctx).Where("user_id = ? AND meta_key = ?", userID, key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s for account %d: %w", key, userID, err)
	}
	return row.MetaValue, nil
}

// hashIfPlain 已是 bcrypt 雜湊時直接沿用
func hashIfPlain(password string) (string, error) {
	if utils.IsPasswordHash(password) {
		return password, nil
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return hashed, nil
}

func nicename(username string) string {
	n := strings.ToLower(strings.TrimSpace(username))
	n = strings.ReplaceAll(n, " ", "-")
	n = strings.ReplaceAll(n, "@", "")
	if len(n) > 50 {
		n = n[:50]
	}
	return n
}
