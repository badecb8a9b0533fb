package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"swpmbridge/config"
	"swpmbridge/models"
	"swpmbridge/utils"
)

const signupFormID = 12

var signupFieldMap = models.FieldMap{
	"1_first": models.AttrFirstName,
	"1_last":  models.AttrLastName,
	"2":       models.AttrEmail,
	"3":       models.AttrUsername,
	"4":       models.AttrPassword,
}

func enabledSettings() config.Settings {
	s := config.DefaultSettings()
	s.LogLevel = models.LogLevelDebug
	return s
}

func (e *testEnv) saveForm(t *testing.T, cfg models.IntegrationConfig) *models.Form {
	t.Helper()
	form := &models.Form{FormID: signupFormID, Title: "Signup", Settings: datatypes.NewJSONType(cfg)}
	require.NoError(t, e.forms.SaveForm(context.Background(), form))

	saved, err := e.forms.GetForm(context.Background(), signupFormID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	return saved
}

func signupConfig(opts models.Options) models.IntegrationConfig {
	return models.IntegrationConfig{
		Enabled:         true,
		ActionType:      models.ActionRegister,
		FieldMap:        signupFieldMap,
		MembershipLevel: "2",
		Options:         opts,
	}
}

func signupFields(first, email, username, password string) models.FieldValues {
	return models.FieldValues{
		"1": {ID: "1", Format: "first-last", Value: first + " Lee", Parts: map[string]string{"first": first, "last": "Lee"}},
		"2": {ID: "2", Value: email},
		"3": {ID: "3", Value: username},
		"4": {ID: "4", Value: password},
	}
}

func (e *testEnv) popError(t *testing.T) (string, bool) {
	t.Helper()
	msg, ok, err := e.submission.PopError(context.Background(), signupFormID)
	require.NoError(t, err)
	return msg, ok
}

func TestHandleSubmission_Disabled(t *testing.T) {
	ctx := context.Background()
	fields := signupFields("Ann", "ann@example.com", "ann", "Secret123!")

	t.Run("globally", func(t *testing.T) {
		settings := enabledSettings()
		settings.Enabled = false
		env := newTestEnv(t, settings)
		form := env.saveForm(t, signupConfig(models.Options{}))

		out := env.submission.HandleSubmission(ctx, fields, 1, form)

		assert.False(t, out.Processed)
		assert.Zero(t, env.countMembers(t))
		_, ok := env.popError(t)
		assert.False(t, ok)
		assert.Empty(t, env.submission.ValidateSubmission(ctx, nil, form, map[string]any{"2": "bad"}))
	})

	t.Run("per form", func(t *testing.T) {
		env := newTestEnv(t, enabledSettings())
		cfg := signupConfig(models.Options{})
		cfg.Enabled = false
		form := env.saveForm(t, cfg)

		out := env.submission.HandleSubmission(ctx, fields, 1, form)

		assert.False(t, out.Processed)
		assert.Zero(t, env.countMembers(t))
		_, ok := env.popError(t)
		assert.False(t, ok)
	})

	t.Run("unknown form", func(t *testing.T) {
		env := newTestEnv(t, enabledSettings())
		out := env.submission.HandleSubmission(ctx, fields, 1, nil)
		assert.False(t, out.Processed)
	})
}

func TestHandleSubmission_Register(t *testing.T) {
	env := newTestEnv(t, enabledSettings())
	form := env.saveForm(t, signupConfig(models.Options{RedirectURL: "https://example.com/welcome"}))
	var after []models.ActionType
	env.hooks.OnAfterAction(func(ctx context.Context, action models.ActionType, memberID int, record *models.MemberData) {
		after = append(after, action)
	})

	out := env.submission.HandleSubmission(context.Background(), signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 55, form)

	require.True(t, out.Success, out.Error)
	assert.True(t, out.Processed)
	assert.Equal(t, models.ActionRegister, out.Action)
	assert.NotEmpty(t, out.TraceID)
	assert.Equal(t, "https://example.com/welcome", out.RedirectURL)
	assert.Empty(t, out.Sessions)
	assert.Equal(t, []models.ActionType{models.ActionRegister}, after)

	member, err := env.store.GetMemberByID(context.Background(), out.MemberID)
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, "ann", member.UserName)
	assert.Equal(t, "ann@example.com", member.Email)
	assert.Equal(t, "Ann", member.FirstName)
	assert.Equal(t, "Lee", member.LastName)
	assert.Equal(t, 2, member.MembershipLevel)
	assert.True(t, utils.CheckPasswordHash("Secret123!", member.Password))

	logs, err := env.activity.GetLogs(context.Background(), LogFilter{Level: models.LogLevelInfo, FormID: signupFormID})
	require.NoError(t, err)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "SWPM action completed")
}

func TestHandleSubmission_DuplicatePolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("reject", func(t *testing.T) {
		env := newTestEnv(t, enabledSettings())
		form := env.saveForm(t, signupConfig(models.Options{OnDuplicate: models.DuplicateReject}))
		first := env.submission.HandleSubmission(ctx, signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 1, form)
		require.True(t, first.Success)

		out := env.submission.HandleSubmission(ctx, signupFields("Annie", "ann@example.com", "annie", "Other123!"), 2, form)

		assert.True(t, out.Processed)
		assert.False(t, out.Success)
		assert.Zero(t, out.MemberID)
		assert.Equal(t, "A member with this email already exists.", out.Error)
		assert.EqualValues(t, 1, env.countMembers(t))

		msg, ok := env.popError(t)
		assert.True(t, ok)
		assert.Equal(t, "A member with this email already exists.", msg)
		_, ok = env.popError(t)
		assert.False(t, ok)

		errs := env.submission.ValidateSubmission(ctx, nil, form, map[string]any{
			"1": map[string]any{"first": "Annie", "last": "Lee"},
			"2": "ann@example.com",
			"3": "annie",
			"4": "Other123!",
		})
		assert.Equal(t, models.FormErrors{signupFormID: {models.FormErrorHeader: "A member with this email already exists."}}, errs)
	})

	t.Run("update", func(t *testing.T) {
		env := newTestEnv(t, enabledSettings())
		form := env.saveForm(t, signupConfig(models.Options{OnDuplicate: models.DuplicateUpdate}))
		first := env.submission.HandleSubmission(ctx, signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 1, form)
		require.True(t, first.Success)

		out := env.submission.HandleSubmission(ctx, signupFields("Annie", "ann@example.com", "ann", "Secret123!"), 2, form)

		require.True(t, out.Success, out.Error)
		assert.Equal(t, first.MemberID, out.MemberID)
		assert.False(t, out.Skipped)
		assert.EqualValues(t, 1, env.countMembers(t))

		member, err := env.store.GetMemberByID(ctx, first.MemberID)
		require.NoError(t, err)
		assert.Equal(t, "Annie", member.FirstName)
	})

	t.Run("skip", func(t *testing.T) {
		env := newTestEnv(t, enabledSettings())
		form := env.saveForm(t, signupConfig(models.Options{OnDuplicate: models.DuplicateSkip}))
		first := env.submission.HandleSubmission(ctx, signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 1, form)
		require.True(t, first.Success)

		out := env.submission.HandleSubmission(ctx, signupFields("Annie", "other@example.com", "ann", "Other123!"), 2, form)

		require.True(t, out.Success)
		assert.True(t, out.Skipped)
		assert.Equal(t, first.MemberID, out.MemberID)

		member, err := env.store.GetMemberByID(ctx, first.MemberID)
		require.NoError(t, err)
		assert.Equal(t, "Ann", member.FirstName)
		assert.True(t, utils.CheckPasswordHash("Secret123!", member.Password))
	})
}

func TestHandleSubmission_ChangeLevel(t *testing.T) {
	env := newTestEnv(t, enabledSettings())
	memberID := env.registerMember(t, map[string]string{
		"email": "ann@example.com", "username": "ann", "password": "Secret123!", "membership_level": "2",
	})
	form := env.saveForm(t, models.IntegrationConfig{
		Enabled:         true,
		ActionType:      models.ActionChangeLevel,
		FieldMap:        models.FieldMap{"2": models.AttrEmail},
		MembershipLevel: "3",
	})

	out := env.submission.HandleSubmission(context.Background(), models.FieldValues{"2": {ID: "2", Value: "ann@example.com"}}, 9, form)

	require.True(t, out.Success, out.Error)
	assert.Equal(t, memberID, out.MemberID)

	member, err := env.store.GetMemberByID(context.Background(), memberID)
	require.NoError(t, err)
	assert.Equal(t, 3, member.MembershipLevel)
	require.NotNil(t, member.SubscriptionEnds)
	assert.Equal(t, dateOf(2025, 4, 10), member.SubscriptionEnds.UTC())
}

func TestHandleSubmission_ValidationFailure(t *testing.T) {
	env := newTestEnv(t, enabledSettings())
	form := env.saveForm(t, signupConfig(models.Options{}))

	out := env.submission.HandleSubmission(context.Background(), signupFields("Ann", "", "ann", "Secret123!"), 3, form)

	assert.False(t, out.Success)
	assert.Equal(t, "Email is required", out.Error)
	assert.Zero(t, env.countMembers(t))
	msg, ok := env.popError(t)
	assert.True(t, ok)
	assert.Equal(t, "Email is required", msg)
}

func TestSubmission_OverlongPasswordRejectedOnBothPaths(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, enabledSettings())
	form := env.saveForm(t, signupConfig(models.Options{}))
	password := strings.Repeat("x", 87)
	require.Len(t, password, 87)

	errs := env.submission.ValidateSubmission(ctx, nil, form, map[string]any{
		"1": map[string]any{"first": "Ann", "last": "Lee"},
		"2": "ann@example.com",
		"3": "ann",
		"4": password,
	})
	assert.Equal(t, models.FormErrors{signupFormID: {"4": "Password is too long"}}, errs)

	out := env.submission.HandleSubmission(ctx, signupFields("Ann", "ann@example.com", "ann", password), 6, form)

	assert.False(t, out.Success)
	assert.Equal(t, "Password is too long", out.Error)
	assert.Zero(t, env.countMembers(t))
	msg, ok := env.popError(t)
	assert.True(t, ok)
	assert.Equal(t, "Password is too long", msg)
}

func TestHandleSubmission_AutoLogin(t *testing.T) {
	settings := enabledSettings()
	settings.AutoCreateWPUser = true
	env := newTestEnv(t, settings)
	form := env.saveForm(t, signupConfig(models.Options{AutoLogin: true}))

	out := env.submission.HandleSubmission(context.Background(), signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 4, form)

	require.True(t, out.Success, out.Error)
	require.Len(t, out.Sessions, 2)
	assert.Equal(t, SessionKindAccount, out.Sessions[0].Kind)
	assert.Equal(t, AccountCookieName, out.Sessions[0].CookieName)
	assert.Equal(t, SessionKindMember, out.Sessions[1].Kind)
	assert.Equal(t, MemberCookieName, out.Sessions[1].CookieName)

	claims, err := utils.ParseToken([]byte("test-secret"), out.Sessions[1].Token)
	require.NoError(t, err)
	assert.Equal(t, out.MemberID, claims.MemberID)

	member, err := env.store.GetMemberByID(context.Background(), out.MemberID)
	require.NoError(t, err)
	require.NotNil(t, member.WPUserID)
	claims, err = utils.ParseToken([]byte("test-secret"), out.Sessions[0].Token)
	require.NoError(t, err)
	assert.Equal(t, *member.WPUserID, claims.UserID)
}

func TestHandleSubmission_AutoLoginSkippedDuplicate(t *testing.T) {
	settings := enabledSettings()
	settings.AutoCreateWPUser = true
	env := newTestEnv(t, settings)
	form := env.saveForm(t, signupConfig(models.Options{AutoLogin: true, OnDuplicate: models.DuplicateSkip}))
	ctx := context.Background()

	first := env.submission.HandleSubmission(ctx, signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 4, form)
	require.True(t, first.Success, first.Error)
	require.Len(t, first.Sessions, 2)

	out := env.submission.HandleSubmission(ctx, signupFields("Eve", "ann@example.com", "eve", "Guess123!"), 5, form)

	require.True(t, out.Success, out.Error)
	assert.True(t, out.Skipped)
	assert.Equal(t, first.MemberID, out.MemberID)
	assert.Empty(t, out.Sessions)
}

func TestHandleSubmission_AutoLoginWithoutAccount(t *testing.T) {
	env := newTestEnv(t, enabledSettings())
	form := env.saveForm(t, signupConfig(models.Options{AutoLogin: true}))

	out := env.submission.HandleSubmission(context.Background(), signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 4, form)

	require.True(t, out.Success, out.Error)
	assert.Empty(t, out.Sessions)
}

func TestHandleSubmission_RecoversPanics(t *testing.T) {
	env := newTestEnv(t, enabledSettings())
	form := env.saveForm(t, signupConfig(models.Options{}))
	env.hooks.OnBeforeAction(func(ctx context.Context, action models.ActionType, record *models.MemberData, cfg *models.IntegrationConfig) {
		panic("listener exploded")
	})

	out := env.submission.HandleSubmission(context.Background(), signupFields("Ann", "ann@example.com", "ann", "Secret123!"), 5, form)

	assert.True(t, out.Processed)
	assert.False(t, out.Success)
	assert.Equal(t, GenericFailureMessage, out.Error)
	assert.Zero(t, env.countMembers(t))
	msg, ok := env.popError(t)
	assert.True(t, ok)
	assert.Equal(t, GenericFailureMessage, msg)
}

func TestValidateSubmission_MapsErrorsToFields(t *testing.T) {
	env := newTestEnv(t, enabledSettings())
	cfg := signupConfig(models.Options{})
	cfg.MembershipLevel = ""
	form := env.saveForm(t, cfg)

	errs := env.submission.ValidateSubmission(context.Background(), models.FormErrors{}, form, map[string]any{
		"1": map[string]any{"first": "Ann"},
		"3": "bad user!",
	})

	assert.Equal(t, models.FormErrors{signupFormID: {
		"2":                    "Email is required",
		"3":                    "Invalid username",
		"4":                    "Password is required",
		models.FormErrorHeader: "Membership level is required",
	}}, errs)
}

func TestValidateSubmission_AutoGenerateSkipsPassword(t *testing.T) {
	env := newTestEnv(t, enabledSettings())
	form := env.saveForm(t, signupConfig(models.Options{PasswordMode: models.PasswordAutoGenerate}))

	errs := env.submission.ValidateSubmission(context.Background(), nil, form, map[string]any{
		"2": "ann@example.com",
		"3": "ann",
	})

	assert.False(t, errs.Has(signupFormID))
	assert.Empty(t, env.mailer.sent)
}
