package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"swpmbridge/config"
	"swpmbridge/database"
	"swpmbridge/models"
	"swpmbridge/services"
)

type testServer struct {
	db      *gorm.DB
	store   *services.MembershipStore
	handler *Handler
	router  *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig("wp_", "release"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, db.Create(&[]models.MembershipLevel{
		{ID: 1, Alias: "Free", SubscriptionDurationType: models.DurationNoExpiry},
		{ID: 2, Alias: "Silver", SubscriptionPeriod: "30", SubscriptionDurationType: models.DurationDays},
	}).Error)

	settings := config.DefaultSettings()
	settings.AutoCreateWPUser = true
	hooks := services.NewHooks()
	activity := services.NewActivityLogger(db, nil, models.LogLevelInfo)
	accounts := services.NewAccountService(db)
	store := services.NewMembershipStore(db, accounts, hooks, activity, settings)
	duplicates := services.NewDuplicateResolver(store)
	submissions := services.NewSubmissionHandler(services.SubmissionDeps{
		Settings:   settings,
		Builder:    services.NewRecordBuilder(nil, ""),
		Validator:  services.NewValidator(store, hooks),
		Duplicates: duplicates,
		Router:     services.NewActionRouter(store, duplicates),
		Store:      store,
		Sessions:   services.NewSessionService("test-secret", time.Hour, accounts, store),
		Stash:      services.NewErrorStash(services.NewTransientStore(db)),
		Hooks:      hooks,
		Activity:   activity,
	})

	h := New(Deps{
		Forms:       services.NewFormService(db),
		Submissions: submissions,
		Store:       store,
		Activity:    activity,
	})

	r := gin.New()
	r.POST("/forms/:id/submissions", h.SubmitForm)
	r.POST("/forms/:id/validate", h.ValidateForm)
	r.GET("/forms/:id/error", h.PopFormError)
	r.GET("/forms/:id", h.GetForm)
	r.PUT("/forms/:id", h.SaveForm)
	r.GET("/forms/:id/mappings", h.GetFormMappings)
	r.GET("/levels", h.GetMembershipLevels)
	r.GET("/members/:id", h.GetMember)
	r.GET("/logs", h.GetLogs)

	return &testServer{db: db, store: store, handler: h, router: r}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func (s *testServer) saveSignupForm(t *testing.T, opts models.Options) {
	t.Helper()
	w, _ := s.do(t, http.MethodPut, "/forms/7", map[string]any{
		"title": "Signup",
		"fields": []map[string]any{
			{"id": "1", "type": "name", "label": "Name"},
			{"id": "2", "type": "email", "label": "Email"},
			{"id": "3", "type": "text", "label": "Username"},
			{"id": "4", "type": "password", "label": "Password"},
		},
		"settings": models.IntegrationConfig{
			Enabled:    true,
			ActionType: models.ActionRegister,
			FieldMap: models.FieldMap{
				"1_first": models.AttrFirstName,
				"1_last":  models.AttrLastName,
				"2":       models.AttrEmail,
				"3":       models.AttrUsername,
				"4":       models.AttrPassword,
			},
			MembershipLevel: "2",
			Options:         opts,
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
}

var signupPayload = map[string]any{
	"entry_id": 31,
	"fields": map[string]any{
		"1": map[string]any{"id": "1", "type": "name", "value": "Ann Lee", "first": "Ann", "last": "Lee"},
		"2": map[string]any{"value": "ann@example.com"},
		"3": map[string]any{"value": "ann"},
		"4": map[string]any{"value": "Secret123!"},
	},
}

func TestSubmitForm_RegistersAndSetsCookies(t *testing.T) {
	s := newTestServer(t)
	s.saveSignupForm(t, models.Options{AutoLogin: true, RedirectURL: "https://example.com/welcome"})

	w, resp := s.do(t, http.MethodPost, "/forms/7/submissions", signupPayload)

	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "https://example.com/welcome", data["redirect_url"])
	assert.NotZero(t, data["member_id"])

	var names []string
	for _, cookie := range w.Result().Cookies() {
		names = append(names, cookie.Name)
		assert.True(t, cookie.HttpOnly)
	}
	assert.ElementsMatch(t, []string{services.AccountCookieName, services.MemberCookieName}, names)

	member, err := s.store.GetMemberByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	require.NotNil(t, member)
	assert.Equal(t, "Ann", member.FirstName)
}

func TestSubmitForm_DuplicateIsStashed(t *testing.T) {
	s := newTestServer(t)
	s.saveSignupForm(t, models.Options{})

	_, first := s.do(t, http.MethodPost, "/forms/7/submissions", signupPayload)
	require.Equal(t, true, first["data"].(map[string]any)["success"])

	w, resp := s.do(t, http.MethodPost, "/forms/7/submissions", signupPayload)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, false, data["success"])
	assert.Equal(t, "A member with this email already exists.", data["error"])

	_, popped := s.do(t, http.MethodGet, "/forms/7/error", nil)
	assert.Equal(t, map[string]any{"found": true, "message": "A member with this email already exists."}, popped["data"])

	_, again := s.do(t, http.MethodGet, "/forms/7/error", nil)
	assert.Equal(t, false, again["data"].(map[string]any)["found"])
}

func TestSubmitForm_UnconfiguredFormIsIgnored(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/forms/99/submissions", signupPayload)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, resp["data"].(map[string]any)["processed"])
}

func TestSubmitForm_BadRequest(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/forms/abc/submissions", signupPayload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidID, resp["code"])

	w, resp = s.do(t, http.MethodPost, "/forms/7/submissions", []string{"not", "an", "object"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidInput, resp["code"])

	w, resp = s.do(t, http.MethodPost, "/forms/7/submissions", map[string]any{"entry_id": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidInput, resp["code"])
}

func TestValidateForm(t *testing.T) {
	s := newTestServer(t)
	s.saveSignupForm(t, models.Options{})

	w, resp := s.do(t, http.MethodPost, "/forms/7/validate", map[string]any{
		"errors": map[string]any{"7": map[string]string{"9": "existing error"}},
		"fields": map[string]any{
			"1": map[string]any{"first": "Ann", "last": "Lee"},
			"2": "not-an-email",
			"3": "ann",
			"4": "Secret123!",
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	data := resp["data"].(map[string]any)
	assert.Equal(t, true, data["has_error"])
	assert.Equal(t, map[string]any{"7": map[string]any{
		"9": "existing error",
		"2": "Invalid email address",
	}}, data["errors"])
}

func TestGetAndSaveForm(t *testing.T) {
	s := newTestServer(t)

	_, resp := s.do(t, http.MethodGet, "/forms/7", nil)
	data := resp["data"].(map[string]any)
	settings := data["settings"].(map[string]any)
	assert.Equal(t, false, settings["enabled"])
	assert.Equal(t, string(models.ActionRegister), settings["action_type"])

	w, resp := s.do(t, http.MethodPut, "/forms/7", map[string]any{
		"title":    "Profile",
		"settings": map[string]any{"enabled": true, "action_type": "delete_member"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidInput, resp["code"])

	w, resp = s.do(t, http.MethodPut, "/forms/7", map[string]any{
		"settings": map[string]any{"enabled": true, "options": map[string]any{"on_duplicate": "overwrite"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidInput, resp["code"])

	w, resp = s.do(t, http.MethodPut, "/forms/7", map[string]any{
		"title": "Profile",
		"settings": map[string]any{
			"enabled":          true,
			"action_type":      "update_member",
			"field_map":        map[string]string{"2": "email", "5": "custom_"},
			"field_map_custom": map[string]string{"5": "Shoe Size"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	settings = resp["data"].(map[string]any)["settings"].(map[string]any)
	assert.Equal(t, map[string]any{"2": "email", "5": "custom_shoesize"}, settings["field_map"])
}

func TestGetFormMappings(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/forms/7/mappings", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.saveSignupForm(t, models.Options{})
	w, resp := s.do(t, http.MethodGet, "/forms/7/mappings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	fields := resp["data"].(map[string]any)["fields"].([]any)
	assert.Equal(t, "1_first", fields[0].(map[string]any)["key"])
	assert.Len(t, fields, 5)
	assert.NotEmpty(t, resp["data"].(map[string]any)["targets"])
}

func TestGetMemberAndLevels(t *testing.T) {
	s := newTestServer(t)
	s.saveSignupForm(t, models.Options{})
	_, first := s.do(t, http.MethodPost, "/forms/7/submissions", signupPayload)
	memberID := int(first["data"].(map[string]any)["member_id"].(float64))

	_, resp := s.do(t, http.MethodGet, "/members/"+strconv.Itoa(memberID), nil)
	data := resp["data"].(map[string]any)
	assert.Equal(t, "ann", data["user_name"])
	assert.NotContains(t, data, "password")

	w, resp := s.do(t, http.MethodGet, "/members/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, resp["code"])

	_, resp = s.do(t, http.MethodGet, "/levels", nil)
	assert.Equal(t, []any{
		map[string]any{"id": float64(1), "name": "Free"},
		map[string]any{"id": float64(2), "name": "Silver"},
	}, resp["data"])
}

func TestGetLogs(t *testing.T) {
	s := newTestServer(t)
	s.saveSignupForm(t, models.Options{})
	s.do(t, http.MethodPost, "/forms/7/submissions", signupPayload)

	w, resp := s.do(t, http.MethodGet, "/logs?form_id=7&level=info&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	logs := resp["data"].([]any)
	require.NotEmpty(t, logs)
	assert.Equal(t, "SWPM action completed", logs[0].(map[string]any)["message"])

	w, resp = s.do(t, http.MethodGet, "/logs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeInvalidInput, resp["code"])
}
