package handlers

import (
	"go.uber.org/zap"

	"swpmbridge/services"
)

// Handler 持有 API 需要的服務
type Handler struct {
	forms        *services.FormService
	submissions  *services.SubmissionHandler
	store        *services.MembershipStore
	activity     *services.ActivityLogger
	logger       *zap.Logger
	secureCookie bool
}

// Deps 建立 Handler 所需的服務
type Deps struct {
	Forms        *services.FormService
	Submissions  *services.SubmissionHandler
	Store        *services.MembershipStore
	Activity     *services.ActivityLogger
	Logger       *zap.Logger
	SecureCookie bool
}

func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		forms:        deps.Forms,
		submissions:  deps.Submissions,
		store:        deps.Store,
		activity:     deps.Activity,
		logger:       logger,
		secureCookie: deps.SecureCookie,
	}
}
