package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"swpmbridge/config"
	"swpmbridge/models"
	"swpmbridge/utils"
)

// MemberStore 會員系統資料的唯一讀寫入口
type MemberStore interface {
	RegisterMember(ctx context.Context, record *models.MemberData) (int, error)
	UpdateMember(ctx context.Context, memberID int, record *models.MemberData) error
	ChangeLevel(ctx context.Context, memberID int, level string) error
	GetMemberByEmail(ctx context.Context, email string) (*models.Member, error)
	GetMemberByUsername(ctx context.Context, username string) (*models.Member, error)
	GetMemberByID(ctx context.Context, memberID int) (*models.Member, error)
	GetMembershipLevels(ctx context.Context) ([]models.LevelOption, error)
	LevelExists(ctx context.Context, level string) (bool, error)
}

// MembershipStore 以 GORM 操作會員資料表
type MembershipStore struct {
	db       *gorm.DB
	accounts *AccountService
	hooks    *Hooks
	activity *ActivityLogger
	settings config.Settings
	now      func() time.Time
}

func NewMembershipStore(db *gorm.DB, accounts *AccountService, hooks *Hooks, activity *ActivityLogger, settings config.Settings) *MembershipStore {
	return &MembershipStore{
		db:       db,
		accounts: accounts,
		hooks:    hooks,
		activity: activity,
		settings: settings,
		now:      time.Now,
	}
}

// RegisterMember 註冊會員，回傳新會員 ID
func (s *MembershipStore) RegisterMember(ctx context.Context, record *models.MemberData) (memberID int, err error) {
	lc := LogContext{"email": record.Email}
	defer s.recoverMutation(ctx, "registering member", lc, &err)

	if s.db == nil {
		return 0, &StoreError{Op: "register member", Msg: "Membership system not available", Err: ErrStoreUnavailable}
	}

	// 再次檢查重複，呼叫端應已檢查過
	existing, err := s.GetMemberByEmail(ctx, record.Email)
	if err != nil {
		return 0, &StoreError{Op: "check duplicate email", Msg: "Database error creating member", Err: err}
	}
	if existing != nil {
		return 0, &DuplicateError{Field: "email"}
	}
	existing, err = s.GetMemberByUsername(ctx, record.Username)
	if err != nil {
		return 0, &StoreError{Op: "check duplicate username", Msg: "Database error creating member", Err: err}
	}
	if existing != nil {
		return 0, &DuplicateError{Field: "username"}
	}

	hashed, err := utils.HashPassword(record.Password)
	if err != nil {
		return 0, &StoreError{Op: "hash password", Msg: "Database error creating member", Err: err}
	}

	levelID, _ := strconv.Atoi(strings.TrimSpace(record.MembershipLevel))
	today := models.TruncateDate(s.now())
	member := &models.Member{
		UserName:           utils.SanitizeUsername(record.Username),
		Email:              utils.SanitizeEmail(record.Email),
		Password:           hashed,
		MembershipLevel:    levelID,
		FirstName:          utils.SanitizeText(derefString(record.FirstName)),
		LastName:           utils.SanitizeText(derefString(record.LastName)),
		MemberSince:        today,
		SubscriptionStarts: today,
		AccountState:       models.AccountStateActive,
	}
	applyExtendedFields(member, record)

	start, end, err := s.subscriptionWindow(ctx, levelID)
	if err != nil {
		s.activity.Warning(ctx, "Could not compute subscription dates", LogContext{"membership_level": levelID, "error": err.Error()})
	} else {
		member.SubscriptionStarts = start
		member.SubscriptionEnds = end
	}

	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		s.activity.Error(ctx, "Failed to insert member", LogContext{"email": record.Email, "error": err.Error()})
		return 0, newStoreError("insert member", "Database error creating member", err)
	}

	s.maybeCreateAccount(ctx, member, record)

	if len(record.CustomMeta) > 0 {
		if err := s.saveCustomMeta(ctx, member.MemberID, record.CustomMeta); err != nil {
			s.activity.Warning(ctx, "Failed to save custom meta", LogContext{"member_id": member.MemberID, "error": err.Error()})
		}
	}

	s.activity.Info(ctx, "Member registered", LogContext{"member_id": member.MemberID, "email": member.Email})
	s.hooks.afterAction(ctx, models.ActionRegister, member.MemberID, record)

	return member.MemberID, nil
}

// UpdateMember 只更新有提供的欄位，未提供的欄位保持原值
func (s *MembershipStore) UpdateMember(ctx context.Context, memberID int, record *models.MemberData) (err error) {
	lc := LogContext{"member_id": memberID}
	defer s.recoverMutation(ctx, "updating member", lc, &err)

	if s.db == nil {
		return &StoreError{Op: "update member", Msg: "Membership system not available", Err: ErrStoreUnavailable}
	}

	member, err := s.GetMemberByID(ctx, memberID)
	if err != nil {
		return &StoreError{Op: "load member", Msg: "Database error updating member", Err: err}
	}
	if member == nil {
		return &NotFoundError{}
	}

	updates := map[string]any{}
	if record.Email != "" {
		updates["email"] = utils.SanitizeEmail(record.Email)
	}
	if v := derefString(record.FirstName); v != "" {
		updates["first_name"] = utils.SanitizeText(v)
	}
	if v := derefString(record.LastName); v != "" {
		updates["last_name"] = utils.SanitizeText(v)
	}
	if record.HasPassword() && !utils.CheckPasswordHash(record.Password, member.Password) {
		hashed, err := utils.HashPassword(record.Password)
		if err != nil {
			return &StoreError{Op: "hash password", Msg: "Database error updating member", Err: err}
		}
		updates["password"] = hashed
	}
	for column, value := range extendedFieldUpdates(record) {
		updates[column] = value
	}

	if len(updates) == 0 && len(record.CustomMeta) == 0 && !record.HasAccountFields() {
		return nil
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Member{}).Where("member_id = ?", memberID).Updates(updates).Error; err != nil {
			s.activity.Error(ctx, "Failed to update member", LogContext{"member_id": memberID, "error": err.Error()})
			return newStoreError("update member", "Database error updating member", err)
		}
	}

	if len(record.CustomMeta) > 0 {
		if err := s.saveCustomMeta(ctx, memberID, record.CustomMeta); err != nil {
			s.activity.Warning(ctx, "Failed to save custom meta", LogContext{"member_id": memberID, "error": err.Error()})
		}
	}

	s.maybeUpdateAccount(ctx, member, record)

	s.activity.Info(ctx, "Member updated", lc)
	s.hooks.afterAction(ctx, models.ActionUpdate, memberID, record)
	return nil
}

// ChangeLevel 變更會員等級並重新計算訂閱期間
func (s *MembershipStore) ChangeLevel(ctx context.Context, memberID int, level string) (err error) {
	lc := LogContext{"member_id": memberID, "new_level": level}
	defer s.recoverMutation(ctx, "changing level", lc, &err)

	if s.db == nil {
		return &StoreError{Op: "change level", Msg: "Membership system not available", Err: ErrStoreUnavailable}
	}

	levelID, convErr := strconv.Atoi(strings.TrimSpace(level))
	if convErr != nil {
		return &ValidationError{Errors: map[string]string{models.AttrMembershipLevel: "Invalid membership level"}}
	}
	info, err := s.getLevel(ctx, levelID)
	if err != nil {
		return &StoreError{Op: "load level", Msg: "Database error changing level", Err: err}
	}
	if info == nil {
		return &ValidationError{Errors: map[string]string{models.AttrMembershipLevel: "Invalid membership level"}}
	}

	member, err := s.GetMemberByID(ctx, memberID)
	if err != nil {
		return &StoreError{Op: "load member", Msg: "Database error changing level", Err: err}
	}
	if member == nil {
		return &NotFoundError{}
	}

	updates := map[string]any{"membership_level": levelID}
	start, end, windowErr := info.SubscriptionWindow(s.now())
	if windowErr != nil {
		s.activity.Warning(ctx, "Could not compute subscription dates", LogContext{"membership_level": levelID, "error": windowErr.Error()})
	} else {
		updates["subscription_starts"] = start
		updates["subscription_ends"] = end
	}

	if err := s.db.WithContext(ctx).Model(&models.Member{}).Where("member_id = ?", memberID).Updates(updates).Error; err != nil {
		s.activity.Error(ctx, "Failed to change level", LogContext{"member_id": memberID, "error": err.Error()})
		return newStoreError("change level", "Database error changing level", err)
	}

	s.activity.Info(ctx, "Member level changed", lc)
	s.hooks.afterAction(ctx, models.ActionChangeLevel, memberID, &models.MemberData{MembershipLevel: level})
	return nil
}

// GetMemberByEmail 依 email 查詢，不存在時回傳 nil
func (s *MembershipStore) GetMemberByEmail(ctx context.Context, email string) (*models.Member, error) {
	if email == "" {
		return nil, nil
	}
	return s.findMember(ctx, "email = ?", email)
}

// GetMemberByUsername 依使用者名稱查詢，不存在時回傳 nil
func (s *MembershipStore) GetMemberByUsername(ctx context.Context, username string) (*models.Member, error) {
	if username == "" {
		return nil, nil
	}
	return s.findMember(ctx, "user_name = ?", username)
}

// GetMemberByID 依會員 ID 查詢，不存在時回傳 nil
func (s *MembershipStore) GetMemberByID(ctx context.Context, memberID int) (*models.Member, error) {
	return s.findMember(ctx, "member_id = ?", memberID)
}

func (s *MembershipStore) findMember(ctx context.Context, query string, arg any) (*models.Member, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var member models.Member
	if err := s.db.WithContext(ctx).Where(query, arg).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query member: %w", err)
	}
	return &member, nil
}

// GetMemberMeta 取得會員的自訂欄位
func (s *MembershipStore) GetMemberMeta(ctx context.Context, memberID int) (models.MetaValues, error) {
	var rows []models.MemberMeta
	if err := s.db.WithContext(ctx).Where("member_id = ?", memberID).Order("meta_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get meta for member %d: %w", memberID, err)
	}
	meta := make(models.MetaValues, len(rows))
	for _, row := range rows {
		meta[row.MetaKey] = row.MetaValue
	}
	return meta, nil
}

// GetMembershipLevels 依 ID 排序的等級清單
func (s *MembershipStore) GetMembershipLevels(ctx context.Context) ([]models.LevelOption, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var levels []models.MembershipLevel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&levels).Error; err != nil {
		return nil, fmt.Errorf("failed to get membership levels: %w", err)
	}

	options := make([]models.LevelOption, 0, len(levels))
	for _, l := range levels {
		options = append(options, models.LevelOption{ID: l.ID, Name: l.Alias})
	}
	return options, nil
}

// LevelExists 等級是否存在；非數字的等級視為不存在
func (s *MembershipStore) LevelExists(ctx context.Context, level string) (bool, error) {
	if s.db == nil {
		return false, ErrStoreUnavailable
	}
	levelID, err := strconv.Atoi(strings.TrimSpace(level))
	if err != nil {
		return false, nil
	}
	info, err := s.getLevel(ctx, levelID)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

func (s *MembershipStore) getLevel(ctx context.Context, levelID int) (*models.MembershipLevel, error) {
	var level models.MembershipLevel
	if err := s.db.WithContext(ctx).First(&level, levelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership level %d: %w", levelID, err)
	}
	return &level, nil
}

// subscriptionWindow 等級不存在時只設定起始日
func (s *MembershipStore) subscriptionWindow(ctx context.Context, levelID int) (time.Time, *time.Time, error) {
	today := models.TruncateDate(s.now())
	level, err := s.getLevel(ctx, levelID)
	if err != nil {
		return today, nil, err
	}
	if level == nil {
		return today, nil, nil
	}
	return level.SubscriptionWindow(s.now())
}

// saveCustomMeta 逐筆寫入自訂欄位，已存在的 key 直接覆蓋
func (s *MembershipStore) saveCustomMeta(ctx context.Context, memberID int, meta map[string]string) error {
	rows := make([]models.MemberMeta, 0, len(meta))
	for _, key := range models.SortedKeys(meta) {
		rows = append(rows, models.MemberMeta{MemberID: memberID, MetaKey: key, MetaValue: meta[key]})
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
	}).Create(&rows).Error
}

// maybeCreateAccount 設定要求時為新會員建立帳號；失敗只記錄警告
func (s *MembershipStore) maybeCreateAccount(ctx context.Context, member *models.Member, record *models.MemberData) {
	if !s.settings.AutoCreateWPUser || s.accounts == nil {
		return
	}

	user, err := s.accounts.CreateAccount(ctx, member.UserName, record.Password, member.Email)
	if err != nil {
		s.activity.Warning(ctx, "Failed to create WP user", LogContext{"member_id": member.MemberID, "error": err.Error()})
		return
	}

	if err := s.db.WithContext(ctx).Model(&models.Member{}).Where("member_id = ?", member.MemberID).Update("wp_user_id", user.ID).Error; err != nil {
		s.activity.Warning(ctx, "Failed to link WP user", LogContext{"member_id": member.MemberID, "wp_user_id": user.ID, "error": err.Error()})
		return
	}
	member.WPUserID = &user.ID

	profile := profileFromRecord(record)
	displayName := record.FullName()
	if record.DisplayName != nil {
		displayName = *record.DisplayName
	}
	profile.DisplayName = &displayName

	if err := s.accounts.UpdateProfile(ctx, user.ID, profile); err != nil {
		s.activity.Warning(ctx, "Failed to update WP user profile", LogContext{"wp_user_id": user.ID, "error": err.Error()})
	}
	s.setAvatar(ctx, user.ID, record.Avatar)
}

// maybeUpdateAccount 會員已連結帳號時同步個人資料
func (s *MembershipStore) maybeUpdateAccount(ctx context.Context, member *models.Member, record *models.MemberData) {
	if s.accounts == nil || member.WPUserID == nil {
		return
	}
	profile := profileFromRecord(record)
	if profile.Empty() && record.Avatar == nil {
		return
	}

	if err := s.accounts.UpdateProfile(ctx, *member.WPUserID, profile); err != nil {
		s.activity.Warning(ctx, "Failed to update WP user profile", LogContext{"wp_user_id": *member.WPUserID, "error": err.Error()})
	}
	s.setAvatar(ctx, *member.WPUserID, record.Avatar)
}

func (s *MembershipStore) setAvatar(ctx context.Context, userID uint64, avatar *string) {
	if avatar == nil {
		return
	}
	if err := s.accounts.SetAvatar(ctx, userID, *avatar); err != nil {
		s.activity.Warning(ctx, "Failed to set avatar", LogContext{"wp_user_id": userID, "error": err.Error()})
		return
	}
	s.activity.Debug(ctx, "User avatar set", LogContext{"wp_user_id": userID, "avatar_url": *avatar})
}

// recoverMutation 將寫入過程中的 panic 轉為錯誤
func (s *MembershipStore) recoverMutation(ctx context.Context, op string, lc LogContext, err *error) {
	r := recover()
	if r == nil {
		return
	}
	fields := LogContext{"error": fmt.Sprint(r)}
	for k, v := range lc {
		fields[k] = v
	}
	s.activity.Error(ctx, "Exception "+op, fields)
	*err = &UnexpectedError{Cause: r}
}

func applyExtendedFields(member *models.Member, record *models.MemberData) {
	for column, value := range extendedFieldUpdates(record) {
		switch column {
		case "phone":
			member.Phone = value
		case "address_street":
			member.AddressStreet = value
		case "address_city":
			member.AddressCity = value
		case "address_state":
			member.AddressState = value
		case "address_zipcode":
			member.AddressZipcode = value
		case "country":
			member.Country = value
		case "company_name":
			member.CompanyName = value
		case "gender":
			member.Gender = value
		}
	}
}

// extendedFieldUpdates 有提供的延伸欄位（欄位名 → 值）
func extendedFieldUpdates(record *models.MemberData) map[string]string {
	fields := map[string]*string{
		"phone":           record.Phone,
		"address_street":  record.AddressStreet,
		"address_city":    record.AddressCity,
		"address_state":   record.AddressState,
		"address_zipcode": record.AddressZipcode,
		"country":         record.Country,
		"company_name":    record.Company,
		"gender":          record.Gender,
	}
	updates := map[string]string{}
	for column, value := range fields {
		if value != nil {
			updates[column] = utils.SanitizeText(*value)
		}
	}
	return updates
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
