package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"swpmbridge/models"
	"swpmbridge/utils"
)

// 不接受輸入的欄位類型
var nonInputFieldTypes = map[string]bool{
	"pagebreak": true,
	"divider":   true,
	"html":      true,
	"content":   true,
}

// MappingOption 欄位對應選單的一個項目
type MappingOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Group string `json:"group,omitempty"`
}

// FormService 表單與其整合設定
type FormService struct {
	db *gorm.DB
}

func NewFormService(db *gorm.DB) *FormService {
	return &FormService{db: db}
}

// GetForm 不存在時回傳 nil
func (s *FormService) GetForm(ctx context.Context, formID int) (*models.Form, error) {
	var form models.Form
	if err := s.db.WithContext(ctx).First(&form, formID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get form %d: %w", formID, err)
	}
	return &form, nil
}

// GetConfig 表單不存在或未設定時回傳預設（關閉）設定
func (s *FormService) GetConfig(ctx context.Context, formID int) (models.IntegrationConfig, error) {
	form, err := s.GetForm(ctx, formID)
	if err != nil {
		return models.DefaultIntegrationConfig(), err
	}
	return form.Integration(), nil
}

// SaveForm 儲存表單，並把自訂 meta 對應合併進 field_map
func (s *FormService) SaveForm(ctx context.Context, form *models.Form) error {
	cfg := form.Integration()
	cfg.FieldMap = MergeCustomMappings(cfg.FieldMap, cfg.FieldMapCustom)
	cfg.FieldMapCustom = nil
	if cfg.Options.RedirectURL != "" {
		cfg.Options.RedirectURL = utils.SanitizeURL(cfg.Options.RedirectURL)
	}
	form.Settings = datatypes.NewJSONType(cfg)

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "form_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "fields", "settings", "updated_at"}),
	}).Create(form).Error; err != nil {
		return fmt.Errorf("failed to save form %d: %w", form.FormID, err)
	}
	return nil
}

// MergeCustomMappings 將 "custom_" 對應與自訂 key 合併為 "custom_<key>"
func MergeCustomMappings(fieldMap, custom models.FieldMap) models.FieldMap {
	merged := make(models.FieldMap, len(fieldMap))
	for fieldID, target := range fieldMap {
		if target == models.CustomFieldPrefix {
			key := utils.SanitizeKey(custom[fieldID])
			if key == "" {
				continue
			}
			target = models.CustomFieldPrefix + key
		}
		merged[fieldID] = target
	}
	return merged
}

// MappableFields 表單中可對應的欄位；姓名與地址欄位拆成子欄位
func MappableFields(form *models.Form) []MappingOption {
	if form == nil {
		return nil
	}

	var options []MappingOption
	for _, f := range form.Fields {
		if nonInputFieldTypes[f.Type] {
			continue
		}
		label := f.Label
		if label == "" {
			label = "Field " + f.ID
		}

		switch f.Type {
		case "name":
			format := f.Format
			if format == "" {
				format = "first-last"
			}
			if format == "first-last" || format == "first-middle-last" {
				options = append(options,
					MappingOption{Key: f.ID + "_first", Label: label + " (First)"},
					MappingOption{Key: f.ID + "_last", Label: label + " (Last)"},
				)
				continue
			}
			options = append(options, MappingOption{Key: f.ID, Label: label})
		case "address":
			for _, part := range []struct{ key, label string }{
				{"address1", "Address 1"},
				{"address2", "Address 2"},
				{"city", "City"},
				{"state", "State"},
				{"postal", "Zip/Postal"},
				{"country", "Country"},
			} {
				options = append(options, MappingOption{Key: f.ID + "_" + part.key, Label: label + " (" + part.label + ")"})
			}
		default:
			options = append(options, MappingOption{Key: f.ID, Label: label})
		}
	}
	return options
}

// MappingTargets 可對應的會員屬性，包含既有的自訂 meta key
func (s *FormService) MappingTargets(ctx context.Context) ([]MappingOption, error) {
	targets := []MappingOption{
		{Key: models.AttrEmail, Label: "Email", Group: "SWPM Core Fields"},
		{Key: models.AttrUsername, Label: "Username", Group: "SWPM Core Fields"},
		{Key: models.AttrPassword, Label: "Password", Group: "SWPM Core Fields"},
		{Key: models.AttrFirstName, Label: "First Name", Group: "SWPM Core Fields"},
		{Key: models.AttrLastName, Label: "Last Name", Group: "SWPM Core Fields"},
		{Key: models.AttrMembershipLevel, Label: "Membership Level", Group: "SWPM Core Fields"},
		{Key: models.AttrPhone, Label: "Phone", Group: "SWPM Core Fields"},
		{Key: models.AttrAddressStreet, Label: "Address (Street)", Group: "SWPM Core Fields"},
		{Key: models.AttrAddressCity, Label: "Address (City)", Group: "SWPM Core Fields"},
		{Key: models.AttrAddressState, Label: "Address (State)", Group: "SWPM Core Fields"},
		{Key: models.AttrAddressZipcode, Label: "Address (Zip)", Group: "SWPM Core Fields"},
		{Key: models.AttrCountry, Label: "Country", Group: "SWPM Core Fields"},
		{Key: models.AttrCompany, Label: "Company", Group: "SWPM Core Fields"},
		{Key: models.AttrGender, Label: "Gender", Group: "SWPM Core Fields"},
		{Key: models.AttrDisplayName, Label: "Display Name", Group: "WordPress User Fields"},
		{Key: models.AttrNickname, Label: "Nickname", Group: "WordPress User Fields"},
		{Key: models.AttrDescription, Label: "Bio / Description", Group: "WordPress User Fields"},
		{Key: models.AttrUserURL, Label: "Website URL", Group: "WordPress User Fields"},
		{Key: models.AttrAvatar, Label: "Profile Picture", Group: "WordPress User Fields"},
		{Key: models.CustomFieldPrefix, Label: "Custom Meta Field", Group: "Custom"},
	}

	var keys []string
	if err := s.db.WithContext(ctx).Model(&models.MemberMeta{}).
		Distinct("meta_key").
		Order("meta_key").
		Limit(50).
		Pluck("meta_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("failed to list custom meta keys: %w", err)
	}
	for _, key := range keys {
		if strings.TrimSpace(key) == "" {
			continue
		}
		targets = append(targets, MappingOption{Key: models.SwpmFieldPrefix + key, Label: key, Group: "SWPM Custom Fields"})
	}
	return targets, nil
}
