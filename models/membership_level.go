package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm/schema"
)

// DateLayout 會員系統使用的日期格式
const DateLayout = "2006-01-02"

// DurationType 會員等級的訂閱期限類型
type DurationType int

const (
	DurationNoExpiry DurationType = iota
	DurationDays
	DurationWeeks
	DurationMonths
	DurationYears
	DurationFixedDate
)

// MembershipLevel 會員等級定義（swpm_membership_tbl）
type MembershipLevel struct {
	ID                       int          `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Alias                    string       `json:"alias" gorm:"column:alias;type:varchar(255);not null"`
	Role                     string       `json:"role" gorm:"column:role;type:varchar(255);not null;default:'subscriber'"`
	SubscriptionPeriod       string       `json:"subscription_period" gorm:"column:subscription_period;type:varchar(11)"`
	SubscriptionDurationType DurationType `json:"subscription_duration_type" gorm:"column:subscription_duration_type;not null;default:0"`
}

func (MembershipLevel) TableName(namer schema.Namer) string {
	return namer.TableName("swpm_membership_tbl")
}

// LevelOption 等級選單項目（依 ID 排序）
type LevelOption struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// SubscriptionWindow 依等級期限類型計算訂閱起訖日，end 為 nil 表示不過期
func (l *MembershipLevel) SubscriptionWindow(now time.Time) (time.Time, *time.Time, error) {
	start := TruncateDate(now)

	switch l.SubscriptionDurationType {
	case DurationNoExpiry:
		return start, nil, nil
	case DurationFixedDate:
		end, err := time.ParseInLocation(DateLayout, strings.TrimSpace(l.SubscriptionPeriod), time.UTC)
		if err != nil {
			return start, nil, fmt.Errorf("invalid fixed date %q for level %d: %w", l.SubscriptionPeriod, l.ID, err)
		}
		return start, &end, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(l.SubscriptionPeriod))
	if err != nil || n < 0 {
		return start, nil, fmt.Errorf("invalid subscription period %q for level %d", l.SubscriptionPeriod, l.ID)
	}

	var end time.Time
	switch l.SubscriptionDurationType {
	case DurationDays:
		end = start.AddDate(0, 0, n)
	case DurationWeeks:
		end = start.AddDate(0, 0, 7*n)
	case DurationMonths:
		end = start.AddDate(0, n, 0)
	case DurationYears:
		end = start.AddDate(n, 0, 0)
	default:
		return start, nil, fmt.Errorf("unknown duration type %d for level %d", l.SubscriptionDurationType, l.ID)
	}
	return start, &end, nil
}

// TruncateDate 取 UTC 當天零時
func TruncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
