package models

import (
	"time"

	"gorm.io/gorm/schema"
)

// 帳號 meta key
const (
	UserMetaFirstName   = "first_name"
	UserMetaLastName    = "last_name"
	UserMetaNickname    = "nickname"
	UserMetaDescription = "description"
	UserMetaAvatar      = "swpm_wpforms_avatar"
)

// WPUser 宿主系統的使用者帳號（users 表）
type WPUser struct {
	ID             uint64    `json:"id" gorm:"column:ID;primaryKey;autoIncrement"`
	UserLogin      string    `json:"user_login" gorm:"column:user_login;type:varchar(60);not null;uniqueIndex"`
	UserPass       string    `json:"-" gorm:"column:user_pass;type:varchar(255);not null"`
	UserNicename   string    `json:"user_nicename" gorm:"column:user_nicename;type:varchar(50);not null;default:''"`
	UserEmail      string    `json:"user_email" gorm:"column:user_email;type:varchar(100);not null;uniqueIndex"`
	UserURL        string    `json:"user_url" gorm:"column:user_url;type:varchar(100);not null;default:''"`
	UserRegistered time.Time `json:"user_registered" gorm:"column:user_registered;not null"`
	DisplayName    string    `json:"display_name" gorm:"column:display_name;type:varchar(250);not null;default:''"`
}

func (WPUser) TableName(namer schema.Namer) string {
	return namer.TableName("users")
}

// WPUserMeta 使用者帳號的 meta（usermeta 表）
type WPUserMeta struct {
	UmetaID   uint64 `json:"umeta_id" gorm:"column:umeta_id;primaryKey;autoIncrement"`
	UserID    uint64 `json:"user_id" gorm:"column:user_id;not null;uniqueIndex:idx_user_meta_key"`
	MetaKey   string `json:"meta_key" gorm:"column:meta_key;type:varchar(191);not null;uniqueIndex:idx_user_meta_key"`
	MetaValue string `json:"meta_value" gorm:"column:meta_value;type:text"`
}

func (WPUserMeta) TableName(namer schema.Namer) string {
	return namer.TableName("usermeta")
}
