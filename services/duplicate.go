package services

import (
	"context"
	"fmt"

	"swpmbridge/models"
)

// Resolution 重複會員的處理結果
type Resolution string

const (
	ResolutionCreate Resolution = "create"
	ResolutionUpdate Resolution = "update"
	ResolutionSkip   Resolution = "skip"
	ResolutionReject Resolution = "reject"
)

// DuplicateCheck 重複檢查結果
type DuplicateCheck struct {
	Duplicate bool
	Field     string
	Existing  *models.Member
}

// DuplicateResolution 依政策決定的處理方式
type DuplicateResolution struct {
	Action   Resolution
	MemberID int
	Err      error
}

// MemberLookup 以 email 或使用者名稱查詢會員
type MemberLookup interface {
	GetMemberByEmail(ctx context.Context, email string) (*models.Member, error)
	GetMemberByUsername(ctx context.Context, username string) (*models.Member, error)
}

// DuplicateResolver 檢查 email / 使用者名稱是否已被使用
type DuplicateResolver struct {
	members MemberLookup
}

func NewDuplicateResolver(members MemberLookup) *DuplicateResolver {
	return &DuplicateResolver{members: members}
}

// Check 先比對 email，再比對使用者名稱
func (d *DuplicateResolver) Check(ctx context.Context, record *models.MemberData) (DuplicateCheck, error) {
	if record.Email != "" {
		existing, err := d.members.GetMemberByEmail(ctx, record.Email)
		if err != nil {
			return DuplicateCheck{}, fmt.Errorf("failed to check duplicate email: %w", err)
		}
		if existing != nil {
			return DuplicateCheck{Duplicate: true, Field: models.AttrEmail, Existing: existing}, nil
		}
	}

	if record.Username != "" {
		existing, err := d.members.GetMemberByUsername(ctx, record.Username)
		if err != nil {
			return DuplicateCheck{}, fmt.Errorf("failed to check duplicate username: %w", err)
		}
		if existing != nil {
			return DuplicateCheck{Duplicate: true, Field: models.AttrUsername, Existing: existing}, nil
		}
	}

	return DuplicateCheck{}, nil
}

// Resolve 依重複處理政策決定動作
func (d *DuplicateResolver) Resolve(check DuplicateCheck, policy models.DuplicatePolicy) DuplicateResolution {
	if !check.Duplicate {
		return DuplicateResolution{Action: ResolutionCreate}
	}

	var memberID int
	if check.Existing != nil {
		memberID = check.Existing.MemberID
	}

	switch policy {
	case models.DuplicateUpdate:
		return DuplicateResolution{Action: ResolutionUpdate, MemberID: memberID}
	case models.DuplicateSkip:
		return DuplicateResolution{Action: ResolutionSkip, MemberID: memberID}
	}

	field := check.Field
	if field == "" {
		field = models.AttrEmail
	}
	return DuplicateResolution{Action: ResolutionReject, Err: &DuplicateError{Field: field}}
}
