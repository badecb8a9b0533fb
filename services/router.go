package services

import (
	"context"
	"fmt"

	"swpmbridge/models"
)

// RouteResult 動作執行結果；成功時 MemberID 為受影響的會員
type RouteResult struct {
	Success  bool
	MemberID int
	Skipped  bool
	Err      error
}

// Message 對使用者顯示的錯誤訊息
func (r RouteResult) Message() string {
	return UserMessage(r.Err)
}

func failed(err error) RouteResult {
	return RouteResult{Success: false, Err: err}
}

func succeeded(memberID int) RouteResult {
	return RouteResult{Success: true, MemberID: memberID}
}

// ActionRouter 依表單設定的動作類型呼叫對應的會員操作
type ActionRouter struct {
	store      MemberStore
	duplicates *DuplicateResolver
}

func NewActionRouter(store MemberStore, duplicates *DuplicateResolver) *ActionRouter {
	if duplicates == nil {
		duplicates = NewDuplicateResolver(store)
	}
	return &ActionRouter{store: store, duplicates: duplicates}
}

// Route 執行表單設定的動作
func (r *ActionRouter) Route(ctx context.Context, record *models.MemberData, cfg models.IntegrationConfig) RouteResult {
	switch cfg.ActionType {
	case models.ActionRegister:
		return r.register(ctx, record, cfg.Options)
	case models.ActionUpdate:
		return r.update(ctx, record)
	case models.ActionChangeLevel:
		return r.changeLevel(ctx, record)
	}
	return failed(fmt.Errorf("Unknown action type: %s", cfg.ActionType))
}

func (r *ActionRouter) register(ctx context.Context, record *models.MemberData, opts models.Options) RouteResult {
	check, err := r.duplicates.Check(ctx, record)
	if err != nil {
		return failed(&StoreError{Op: "duplicate check", Msg: GenericFailureMessage, Err: err})
	}
	resolution := r.duplicates.Resolve(check, opts.DuplicatePolicyOrDefault())

	switch resolution.Action {
	case ResolutionReject:
		return failed(resolution.Err)
	case ResolutionUpdate:
		if err := r.store.UpdateMember(ctx, resolution.MemberID, record); err != nil {
			return failed(err)
		}
		return succeeded(resolution.MemberID)
	case ResolutionSkip:
		return RouteResult{Success: true, MemberID: resolution.MemberID, Skipped: true}
	}

	memberID, err := r.store.RegisterMember(ctx, record)
	if err != nil {
		return failed(err)
	}
	return succeeded(memberID)
}

func (r *ActionRouter) update(ctx context.Context, record *models.MemberData) RouteResult {
	member, err := r.findExisting(ctx, record)
	if err != nil {
		return failed(err)
	}
	if member == nil {
		return failed(&NotFoundError{})
	}

	if err := r.store.UpdateMember(ctx, member.MemberID, record); err != nil {
		return failed(err)
	}
	return succeeded(member.MemberID)
}

func (r *ActionRouter) changeLevel(ctx context.Context, record *models.MemberData) RouteResult {
	member, err := r.findExisting(ctx, record)
	if err != nil {
		return failed(err)
	}
	if member == nil {
		return failed(&NotFoundError{})
	}
	if record.MembershipLevel == "" {
		return failed(&ValidationError{Errors: map[string]string{models.AttrMembershipLevel: "New membership level is required"}})
	}

	if err := r.store.ChangeLevel(ctx, member.MemberID, record.MembershipLevel); err != nil {
		return failed(err)
	}
	return succeeded(member.MemberID)
}

// findExisting 先以 email、再以使用者名稱尋找會員
func (r *ActionRouter) findExisting(ctx context.Context, record *models.MemberData) (*models.Member, error) {
	if record.Email != "" {
		member, err := r.store.GetMemberByEmail(ctx, record.Email)
		if err != nil {
			return nil, &StoreError{Op: "find member by email", Msg: GenericFailureMessage, Err: err}
		}
		if member != nil {
			return member, nil
		}
	}
	if record.Username != "" {
		member, err := r.store.GetMemberByUsername(ctx, record.Username)
		if err != nil {
			return nil, &StoreError{Op: "find member by username", Msg: GenericFailureMessage, Err: err}
		}
		if member != nil {
			return member, nil
		}
	}
	return nil, nil
}
