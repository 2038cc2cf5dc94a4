package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/learning-profile/internal/auth"
	apperrors "github.com/ZanzyTHEbar/learning-profile/internal/errors"
	"github.com/ZanzyTHEbar/learning-profile/internal/middleware"
	"github.com/ZanzyTHEbar/learning-profile/internal/profile"
	"github.com/ZanzyTHEbar/learning-profile/internal/resilience"
	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

// Handler serves the HTTP endpoints.
type Handler struct {
	deps        Dependencies
	compression *middleware.CompressionMiddleware
}

// ConsolidateRequest carries caller-weighted sources.
type ConsolidateRequest struct {
	Sources []scoring.Source `json:"sources"`
}

// InvitationRequest asks for a respondent token. TTL is a Go duration
// string and defaults to the configured invitation lifetime.
type InvitationRequest struct {
	auth.Invitation
	TTL string `json:"ttl,omitempty"`
}

// InvitationResponse is a signed invitation.
type InvitationResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// bind decodes a JSON body. Oversized bodies are 413, anything else 400.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			builder := errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("Request body too large").
				WithCause(err)
			apperrors.Abort(c, apperrors.NewAppError(builder, apperrors.CategoryValidation, http.StatusRequestEntityTooLarge))
			return false
		}
		apperrors.Abort(c, apperrors.NewValidationError("Invalid JSON body", err.Error()))
		return false
	}
	return true
}

// health godoc
//
//	@Summary	Service and dependency health
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Failure	503	{object}	map[string]interface{}
//	@Router		/health [get]
func (h *Handler) health(c *gin.Context) {
	report := h.deps.Health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == resilience.StatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":     report.Status,
		"version":    Version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": report.Components,
	})
}

// stats godoc
//
//	@Summary	Request, cache, store and rate limit statistics
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/v1/stats [get]
func (h *Handler) stats(c *gin.Context) {
	body := gin.H{
		"requests":    h.deps.Metrics.GetStats(),
		"rate_limit":  h.deps.Limiter.GetStats(),
		"compression": h.compression.GetStats(),
	}
	if h.deps.Cache != nil {
		body["cache"] = h.deps.Cache.Stats()
	}
	if h.deps.DB != nil {
		body["database_pool"] = h.deps.DB.GetPoolStats()
	}
	if h.deps.Store != nil {
		st, err := h.deps.Store.Stats(c.Request.Context())
		if err != nil {
			apperrors.Abort(c, apperrors.NewInternalError("failed to read store stats", err))
			return
		}
		body["store"] = st
	}
	c.JSON(http.StatusOK, body)
}

// privacyInfo godoc
//
//	@Summary	Data retention policy
//	@Tags		privacy
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/v1/privacy [get]
func (h *Handler) privacyInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Privacy.GetDataRetentionInfo())
}

// score godoc
//
//	@Summary	Score one assessment without storing it
//	@Tags		scoring
//	@Accept		json
//	@Produce	json
//	@Param		request	body		profile.ScoreRequest	true	"Responses keyed by question id"
//	@Success	200		{object}	profile.ScoredAssessment
//	@Failure	400		{object}	map[string]interface{}
//	@Router		/v1/score [post]
func (h *Handler) score(c *gin.Context) {
	var req profile.ScoreRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.deps.Service.Score(c.Request.Context(), req)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// consolidate godoc
//
//	@Summary	Consolidate caller-weighted score vectors
//	@Tags		scoring
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ConsolidateRequest	true	"Weighted sources"
//	@Success	200		{object}	profile.ConsolidatedProfile
//	@Failure	400		{object}	map[string]interface{}
//	@Router		/v1/consolidate [post]
func (h *Handler) consolidate(c *gin.Context) {
	var req ConsolidateRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.deps.Service.Consolidate(c.Request.Context(), req.Sources)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// createInvitation godoc
//
//	@Summary	Issue a respondent invitation token
//	@Tags		invitations
//	@Accept		json
//	@Produce	json
//	@Param		request			body		InvitationRequest	true	"Invitation"
//	@Param		X-Admin-Token	header		string				false	"Admin token, when the server sets one"
//	@Success	201				{object}	InvitationResponse
//	@Failure	400				{object}	map[string]interface{}
//	@Failure	401				{object}	map[string]interface{}
//	@Router		/v1/invitations [post]
func (h *Handler) createInvitation(c *gin.Context) {
	var req InvitationRequest
	if !bind(c, &req) {
		return
	}

	ttl := h.deps.InvitationTTL
	if req.TTL != "" {
		d, err := time.ParseDuration(req.TTL)
		if err != nil || d <= 0 {
			apperrors.Abort(c, apperrors.NewValidationErrorWithMap(map[string]string{"ttl": "must be a positive duration such as 72h"}))
			return
		}
		ttl = d
	}

	token, expiresAt, err := h.deps.Issuer.Issue(req.Invitation, ttl)
	if err != nil {
		apperrors.Abort(c, apperrors.NewValidationError("Invalid invitation", err.Error()))
		return
	}
	c.JSON(http.StatusCreated, InvitationResponse{Token: token, ExpiresAt: expiresAt})
}

// submitAssessment godoc
//
//	@Summary	Score and store an assessment for a child
//	@Tags		children
//	@Accept		json
//	@Produce	json
//	@Param		childID			path		string				true	"Child id"
//	@Param		Authorization	header		string				false	"Bearer invitation token"
//	@Param		request			body		profile.Submission	true	"Submission"
//	@Success	201				{object}	database.Assessment
//	@Failure	400				{object}	map[string]interface{}
//	@Failure	401				{object}	map[string]interface{}
//	@Failure	429				{object}	map[string]interface{}
//	@Router		/v1/children/{childID}/assessments [post]
func (h *Handler) submitAssessment(c *gin.Context) {
	childID := c.Param("childID")

	var sub profile.Submission
	if !bind(c, &sub) {
		return
	}

	// An invitation pins who is answering and for which child.
	if inv, ok := auth.FromContext(c); ok {
		if inv.ChildID != childID {
			apperrors.Abort(c, apperrors.NewUnauthorizedError("invitation was issued for a different child", nil))
			return
		}
		if inv.RespondentID != "" {
			sub.RespondentID = inv.RespondentID
		}
		if inv.RespondentType != "" {
			sub.RespondentType = inv.RespondentType
		}
		if inv.QuizType != "" {
			sub.QuizType = inv.QuizType
		}
	}

	a, err := h.deps.Service.SubmitAssessment(c.Request.Context(), childID, sub)
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// getProfile godoc
//
//	@Summary	Build (or return the cached) consolidated profile of a child
//	@Tags		children
//	@Produce	json
//	@Param		childID	path		string	true	"Child id"
//	@Success	200		{object}	profile.Profile
//	@Failure	404		{object}	map[string]interface{}
//	@Router		/v1/children/{childID}/profile [get]
func (h *Handler) getProfile(c *gin.Context) {
	p, err := h.deps.Service.BuildProfile(c.Request.Context(), c.Param("childID"))
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// getLatestSnapshot godoc
//
//	@Summary	Last stored profile snapshot of a child
//	@Tags		children
//	@Produce	json
//	@Param		childID	path		string	true	"Child id"
//	@Success	200		{object}	database.ProfileSnapshot
//	@Failure	404		{object}	map[string]interface{}
//	@Router		/v1/children/{childID}/profile/latest [get]
func (h *Handler) getLatestSnapshot(c *gin.Context) {
	snap, err := h.deps.Service.LatestSnapshot(c.Request.Context(), c.Param("childID"))
	if err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// deleteChild godoc
//
//	@Summary	Erase every assessment and snapshot of a child
//	@Tags		privacy
//	@Param		childID	path	string	true	"Child id"
//	@Success	204
//	@Router		/v1/children/{childID} [delete]
func (h *Handler) deleteChild(c *gin.Context) {
	if _, err := h.deps.Privacy.EraseChild(c.Request.Context(), c.Param("childID")); err != nil {
		apperrors.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
