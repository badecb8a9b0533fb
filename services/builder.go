package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"swpmbridge/models"
)

// compositeKeyRegex 組合欄位的子欄位對應，例如 "3_first"、"5_postal"
var compositeKeyRegex = regexp.MustCompile(`^(\d+)_(first|last|address1|address2|city|state|postal|country)$`)

// RecordBuilder 依欄位對應把送出的值組成會員資料
type RecordBuilder struct {
	passwords    *PasswordService
	defaultLevel string
}

func NewRecordBuilder(passwords *PasswordService, defaultLevel string) *RecordBuilder {
	return &RecordBuilder{passwords: passwords, defaultLevel: defaultLevel}
}

// Build 組成會員資料；generatePassword 為 true 且設定為自動產生時會產生密碼並寄信
func (b *RecordBuilder) Build(ctx context.Context, fields models.FieldValues, cfg models.IntegrationConfig, generatePassword bool) (*models.MemberData, error) {
	data := MapFields(fields, cfg.FieldMap)

	// 等級：表單固定等級 > 欄位值 > 全域預設
	if cfg.MembershipLevel != "" {
		data[models.AttrMembershipLevel] = cfg.MembershipLevel
	} else if data[models.AttrMembershipLevel] == "" && b.defaultLevel != "" {
		data[models.AttrMembershipLevel] = b.defaultLevel
	}

	if generatePassword && cfg.Options.PasswordModeOrDefault() == models.PasswordAutoGenerate && data[models.AttrPassword] == "" {
		if b.passwords == nil {
			return nil, fmt.Errorf("password generation is not available")
		}
		password, err := b.passwords.Generate(0)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		data[models.AttrPassword] = password
		b.passwords.SendPasswordEmail(ctx, data[models.AttrEmail], password, data[models.AttrUsername])
	}

	return models.NewMemberData(data), nil
}

// MapFields 依欄位對應取值，回傳會員屬性名稱 → 值
func MapFields(fields models.FieldValues, fieldMap models.FieldMap) map[string]string {
	data := map[string]string{}

	for _, key := range models.SortedKeys(fieldMap) {
		attr := strings.TrimSpace(fieldMap[key])
		if attr == "" {
			continue
		}

		if m := compositeKeyRegex.FindStringSubmatch(key); m != nil {
			field, ok := fields[m[1]]
			if !ok {
				continue
			}
			if v, ok := field.Part(m[2]); ok {
				data[attr] = v
			}
			continue
		}

		field, ok := fields[key]
		if !ok {
			continue
		}

		// 上傳的頭像取檔案網址
		if field.Type == models.FieldTypeFileUpload && attr == models.AttrAvatar {
			if field.Value != "" {
				data[attr] = field.Value
			}
			continue
		}

		data[attr] = field.Value
	}

	return data
}

// FieldIDForAttribute 找出對應到某會員屬性的表單欄位 ID；組合欄位回傳主欄位 ID
func FieldIDForAttribute(fieldMap models.FieldMap, attr string) (string, bool) {
	for _, key := range models.SortedKeys(fieldMap) {
		if fieldMap[key] != attr {
			continue
		}
		if m := compositeKeyRegex.FindStringSubmatch(key); m != nil {
			return m[1], true
		}
		return key, true
	}
	return "", false
}
