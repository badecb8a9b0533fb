package models

import (
	"time"

	"gorm.io/gorm/schema"
)

// 會員帳號狀態
const (
	AccountStateActive   = "active"
	AccountStateInactive = "inactive"
	AccountStateExpired  = "expired"
	AccountStatePending  = "pending"
)

// Member 會員系統的會員資料表（swpm_members_tbl）
type Member struct {
	MemberID           int        `json:"member_id" gorm:"column:member_id;primaryKey;autoIncrement"`
	UserName           string     `json:"user_name" gorm:"column:user_name;type:varchar(255);not null;uniqueIndex"`
	FirstName          string     `json:"first_name" gorm:"column:first_name;type:varchar(64);not null;default:''"`
	LastName           string     `json:"last_name" gorm:"column:last_name;type:varchar(64);not null;default:''"`
	Password           string     `json:"-" gorm:"column:password;type:varchar(255);not null"`
	MemberSince        time.Time  `json:"member_since" gorm:"column:member_since;type:date;not null"`
	MembershipLevel    int        `json:"membership_level" gorm:"column:membership_level;not null;index"`
	AccountState       string     `json:"account_state" gorm:"column:account_state;type:varchar(20);not null;default:'active'"`
	LastAccessed       *time.Time `json:"last_accessed" gorm:"column:last_accessed"`
	SubscriptionStarts time.Time  `json:"subscription_starts" gorm:"column:subscription_starts;type:date"`
	SubscriptionEnds   *time.Time `json:"subscription_ends" gorm:"column:subscription_ends;type:date"`
	Email              string     `json:"email" gorm:"column:email;type:varchar(255);not null;uniqueIndex"`
	Phone              string     `json:"phone" gorm:"column:phone;type:varchar(64)"`
	AddressStreet      string     `json:"address_street" gorm:"column:address_street;type:varchar(255)"`
	AddressCity        string     `json:"address_city" gorm:"column:address_city;type:varchar(255)"`
	AddressState       string     `json:"address_state" gorm:"column:address_state;type:varchar(255)"`
	AddressZipcode     string     `json:"address_zipcode" gorm:"column:address_zipcode;type:varchar(255)"`
	Country            string     `json:"country" gorm:"column:country;type:varchar(255)"`
	CompanyName        string     `json:"company_name" gorm:"column:company_name;type:varchar(255)"`
	Gender             string     `json:"gender" gorm:"column:gender;type:varchar(32)"`
	WPUserID           *uint64    `json:"wp_user_id" gorm:"column:wp_user_id;index"`
}

// TableName 表名套用設定的資料表前綴
func (Member) TableName(namer schema.Namer) string {
	return namer.TableName("swpm_members_tbl")
}

type MemberResponse struct {
	MemberID           int        `json:"member_id"`
	UserName           string     `json:"user_name"`
	Email              string     `json:"email"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	MembershipLevel    int        `json:"membership_level"`
	AccountState       string     `json:"account_state"`
	MemberSince        string     `json:"member_since"`
	SubscriptionStarts string     `json:"subscription_starts"`
	SubscriptionEnds   *string    `json:"subscription_ends"`
	Phone              string     `json:"phone,omitempty"`
	AddressStreet      string     `json:"address_street,omitempty"`
	AddressCity        string     `json:"address_city,omitempty"`
	AddressState       string     `json:"address_state,omitempty"`
	AddressZipcode     string     `json:"address_zipcode,omitempty"`
	Country            string     `json:"country,omitempty"`
	CompanyName        string     `json:"company_name,omitempty"`
	Gender             string     `json:"gender,omitempty"`
	WPUserID           *uint64    `json:"wp_user_id,omitempty"`
	CustomMeta         MetaValues `json:"custom_meta,omitempty"`
}

// MetaValues 自訂欄位鍵值
type MetaValues map[string]string

func (m *Member) ToResponse(meta MetaValues) MemberResponse {
	var ends *string
	if m.SubscriptionEnds != nil {
		s := m.SubscriptionEnds.Format(DateLayout)
		ends = &s
	}

	return MemberResponse{
		MemberID:           m.MemberID,
		UserName:           m.UserName,
		Email:              m.Email,
		FirstName:          m.FirstName,
		LastName:           m.LastName,
		MembershipLevel:    m.MembershipLevel,
		AccountState:       m.AccountState,
		MemberSince:        m.MemberSince.Format(DateLayout),
		SubscriptionStarts: m.SubscriptionStarts.Format(DateLayout),
		SubscriptionEnds:   ends,
		Phone:              m.Phone,
		AddressStreet:      m.AddressStreet,
		AddressCity:        m.AddressCity,
		AddressState:       m.AddressState,
		AddressZipcode:     m.AddressZipcode,
		Country:            m.Country,
		CompanyName:        m.CompanyName,
		Gender:             m.Gender,
		WPUserID:           m.WPUserID,
		CustomMeta:         meta,
	}
}

// MemberMeta 會員自訂欄位（每位會員每個 key 一筆）
type MemberMeta struct {
	ID        int    `json:"id" gorm:"column:meta_id;primaryKey;autoIncrement"`
	MemberID  int    `json:"member_id" gorm:"column:member_id;not null;uniqueIndex:idx_member_meta_key"`
	MetaKey   string `json:"meta_key" gorm:"column:meta_key;type:varchar(191);not null;uniqueIndex:idx_member_meta_key"`
	MetaValue string `json:"meta_value" gorm:"column:meta_value;type:text"`
}

func (MemberMeta) TableName(namer schema.Namer) string {
	return namer.TableName("swpm_wpforms_member_meta")
}
