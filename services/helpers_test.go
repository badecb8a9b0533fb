package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"swpmbridge/config"
	"swpmbridge/database"
	"swpmbridge/models"
)

var testNow = time.Date(2025, time.March, 10, 15, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig("wp_", "release"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func seedLevels(t *testing.T, db *gorm.DB) {
	t.Helper()
	levels := []models.MembershipLevel{
		{ID: 1, Alias: "Content Protection", SubscriptionDurationType: models.DurationNoExpiry},
		{ID: 2, Alias: "Silver", SubscriptionPeriod: "30", SubscriptionDurationType: models.DurationDays},
		{ID: 3, Alias: "Gold", SubscriptionPeriod: "1", SubscriptionDurationType: models.DurationMonths},
		{ID: 4, Alias: "Event", SubscriptionPeriod: "2025-12-31", SubscriptionDurationType: models.DurationFixedDate},
	}
	require.NoError(t, db.Create(&levels).Error)
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

// testEnv 以 SQLite 組好整條處理流程
type testEnv struct {
	db         *gorm.DB
	hooks      *Hooks
	activity   *ActivityLogger
	accounts   *AccountService
	store      *MembershipStore
	mailer     *fakeMailer
	passwords  *PasswordService
	validator  *Validator
	duplicates *DuplicateResolver
	router     *ActionRouter
	forms      *FormService
	stash      *ErrorStash
	sessions   *SessionService
	submission *SubmissionHandler
}

func newTestEnv(t *testing.T, settings config.Settings) *testEnv {
	t.Helper()

	db := newTestDB(t)
	seedLevels(t, db)

	env := &testEnv{db: db, hooks: NewHooks(), mailer: &fakeMailer{}}
	env.activity = NewActivityLogger(db, nil, models.LogLevelDebug)
	env.activity.now = fixedClock
	env.accounts = NewAccountService(db)
	env.store = NewMembershipStore(db, env.accounts, env.hooks, env.activity, settings)
	env.store.now = fixedClock
	env.passwords = NewPasswordService(env.mailer, env.hooks, env.activity, "Test Site", "https://example.com/login")
	env.validator = NewValidator(env.store, env.hooks)
	env.duplicates = NewDuplicateResolver(env.store)
	env.router = NewActionRouter(env.store, env.duplicates)
	env.forms = NewFormService(db)
	transients := NewTransientStore(db)
	transients.now = fixedClock
	env.stash = NewErrorStash(transients)
	env.sessions = NewSessionService("test-secret", time.Hour, env.accounts, env.store)
	env.submission = NewSubmissionHandler(SubmissionDeps{
		Settings:   settings,
		Builder:    NewRecordBuilder(env.passwords, settings.DefaultMembershipLevel),
		Validator:  env.validator,
		Duplicates: env.duplicates,
		Router:     env.router,
		Store:      env.store,
		Sessions:   env.sessions,
		Stash:      env.stash,
		Hooks:      env.hooks,
		Activity:   env.activity,
	})
	return env
}

func (e *testEnv) countMembers(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Member{}).Count(&n).Error)
	return n
}

func (e *testEnv) registerMember(t *testing.T, values map[string]string) int {
	t.Helper()
	id, err := e.store.RegisterMember(context.Background(), models.NewMemberData(values))
	require.NoError(t, err)
	return id
}

func strPtr(s string) *string { return &s }

func dateOf(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
