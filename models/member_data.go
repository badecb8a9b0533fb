package models

import "strings"

// 自訂欄位屬性前綴
const (
	CustomFieldPrefix = "custom_"
	SwpmFieldPrefix   = "swpm_"
)

// 會員屬性名稱（欄位對應的目標）
const (
	AttrEmail           = "email"
	AttrUsername        = "username"
	AttrPassword        = "password"
	AttrMembershipLevel = "membership_level"
	AttrFirstName       = "first_name"
	AttrLastName        = "last_name"
	AttrPhone           = "phone"
	AttrAddressStreet   = "address_street"
	AttrAddressCity     = "address_city"
	AttrAddressState    = "address_state"
	AttrAddressZipcode  = "address_zipcode"
	AttrCountry         = "country"
	AttrCompany         = "company"
	AttrGender          = "gender"
	AttrDisplayName     = "wp_display_name"
	AttrNickname        = "wp_nickname"
	AttrDescription     = "wp_description"
	AttrUserURL         = "wp_user_url"
	AttrAvatar          = "wp_avatar"
)

// MemberData 由表單值組成的會員資料；指標欄位為 nil 表示表單未提供
type MemberData struct {
	Email           string
	Username        string
	Password        string
	MembershipLevel string
	FirstName       *string
	LastName        *string

	Phone          *string
	AddressStreet  *string
	AddressCity    *string
	AddressState   *string
	AddressZipcode *string
	Country        *string
	Company        *string
	Gender         *string

	DisplayName *string
	Nickname    *string
	Description *string
	UserURL     *string
	Avatar      *string

	CustomMeta map[string]string
}

// NewMemberData 由屬性名稱 → 值建立會員資料
func NewMemberData(values map[string]string) *MemberData {
	d := &MemberData{CustomMeta: map[string]string{}}

	for _, key := range SortedKeys(values) {
		value := values[key]
		switch {
		case key == AttrEmail:
			d.Email = value
		case key == AttrUsername:
			d.Username = value
		case key == AttrPassword:
			d.Password = value
		case key == AttrMembershipLevel:
			d.MembershipLevel = value
		case key == AttrFirstName:
			d.FirstName = ptr(value)
		case key == AttrLastName:
			d.LastName = ptr(value)
		case key == AttrPhone:
			d.Phone = ptr(value)
		case key == AttrAddressStreet:
			d.AddressStreet = ptr(value)
		case key == AttrAddressCity:
			d.AddressCity = ptr(value)
		case key == AttrAddressState:
			d.AddressState = ptr(value)
		case key == AttrAddressZipcode:
			d.AddressZipcode = ptr(value)
		case key == AttrCountry:
			d.Country = ptr(value)
		case key == AttrCompany:
			d.Company = ptr(value)
		case key == AttrGender:
			d.Gender = ptr(value)
		case key == AttrDisplayName:
			d.DisplayName = ptr(value)
		case key == AttrNickname:
			d.Nickname = ptr(value)
		case key == AttrDescription:
			d.Description = ptr(value)
		case key == AttrUserURL:
			d.UserURL = ptr(value)
		case key == AttrAvatar:
			d.Avatar = ptr(value)
		case strings.HasPrefix(key, CustomFieldPrefix):
			if metaKey := strings.TrimPrefix(key, CustomFieldPrefix); metaKey != "" {
				d.CustomMeta[metaKey] = value
			}
		case strings.HasPrefix(key, SwpmFieldPrefix):
			if metaKey := strings.TrimPrefix(key, SwpmFieldPrefix); metaKey != "" {
				d.CustomMeta[metaKey] = value
			}
		}
	}

	return d
}

func ptr(s string) *string { return &s }

// HasPassword 是否提供密碼
func (d *MemberData) HasPassword() bool {
	return d.Password != ""
}

// HasIdentifier 是否有 email 或使用者名稱可供查詢
func (d *MemberData) HasIdentifier() bool {
	return d.Email != "" || d.Username != ""
}

// FullName 名與姓組合，皆空時使用使用者名稱
func (d *MemberData) FullName() string {
	name := strings.TrimSpace(deref(d.FirstName) + " " + deref(d.LastName))
	if name == "" {
		return d.Username
	}
	return name
}

// HasAccountFields 是否有要同步到帳號的欄位
func (d *MemberData) HasAccountFields() bool {
	return d.DisplayName != nil || d.Nickname != nil || d.Description != nil || d.UserURL != nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
