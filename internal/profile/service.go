// Package profile turns scored assessments into consolidated learning
// profiles: it scores submissions, stores them, weights a child's history
// and consolidates it into one profile with an agreement report.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/learning-profile/internal/database"
	apperrors "github.com/ZanzyTHEbar/learning-profile/internal/errors"
	"github.com/ZanzyTHEbar/learning-profile/internal/monitoring"
	"github.com/ZanzyTHEbar/learning-profile/internal/resilience"
	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

// Store persists assessments and profile snapshots.
type Store interface {
	SaveAssessment(ctx context.Context, a *database.Assessment) error
	ListAssessments(ctx context.Context, childID string) ([]database.Assessment, error)
	SaveSnapshot(ctx context.Context, s *database.ProfileSnapshot) error
	LatestSnapshot(ctx context.Context, childID string) (*database.ProfileSnapshot, error)
	DeleteChild(ctx context.Context, childID string) (int64, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProfileCache holds encoded profiles keyed by child.
type ProfileCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, data []byte)
	Delete(key string)
}

// Observer receives timing and outcome signals from the service.
type Observer interface {
	ObserveScoring(quizType string, duration time.Duration)
	ObserveConsolidation(sources int, confidence float64, requiresReview bool, duration time.Duration)
	ObserveOperation(op string, duration time.Duration, err error)
}

// Counters is the subset of in-process metrics the service bumps.
type Counters interface {
	IncrementScored()
	IncrementProfileBuilt()
	IncrementReviewFlagged()
}

var (
	_ Observer = (*monitoring.PrometheusObserver)(nil)
	_ Counters = (*monitoring.Metrics)(nil)
	_ Store    = (*database.Repository)(nil)
)

type nopObserver struct{}

func (nopObserver) ObserveScoring(string, time.Duration)                   {}
func (nopObserver) ObserveConsolidation(int, float64, bool, time.Duration) {}
func (nopObserver) ObserveOperation(string, time.Duration, error)          {}

type nopCounters struct{}

func (nopCounters) IncrementScored()        {}
func (nopCounters) IncrementProfileBuilt()  {}
func (nopCounters) IncrementReviewFlagged() {}

// ScoreRequest is one assessment to score without storing it.
type ScoreRequest struct {
	Responses scoring.Responses `json:"responses"`
	QuizType  scoring.QuizType  `json:"quizType,omitempty"`
	AgeGroup  scoring.AgeGroup  `json:"ageGroup,omitempty"`
}

// ScoredAssessment is a score vector with its derived insights.
type ScoredAssessment struct {
	Scores scoring.ScoreVector `json:"scores"`
	scoring.Insights
}

// ConsolidatedProfile is a consolidated vector, its insights and the
// agreement between the sources that produced it.
type ConsolidatedProfile struct {
	Scores scoring.ScoreVector `json:"scores"`
	scoring.Insights
	scoring.AgreementReport
}

// Profile is a child's consolidated profile as built from storage.
type Profile struct {
	ChildID string `json:"childId"`
	ConsolidatedProfile
	AssessmentCount int       `json:"assessmentCount"`
	SnapshotID      string    `json:"snapshotId"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// Submission is an assessment offered for a child.
type Submission struct {
	RespondentID   string                 `json:"respondentId,omitempty"`
	RespondentType scoring.RespondentType `json:"respondentType,omitempty"`
	QuizType       scoring.QuizType       `json:"quizType,omitempty"`
	AgeGroup       scoring.AgeGroup       `json:"ageGroup,omitempty"`
	Responses      scoring.Responses      `json:"responses"`
}

// Service scores, stores and consolidates assessments.
type Service struct {
	store        Store
	cache        ProfileCache
	policy       WeightPolicy
	preprocessor *Preprocessor
	logger       *monitoring.Logger
	observer     Observer
	counters     Counters
	retry        resilience.RetryConfig
	locks        childLocks
	now          func() time.Time
}

// NewService wires a service. cache may be nil.
func NewService(store Store, cache ProfileCache, policy WeightPolicy, logger *monitoring.Logger) (*Service, error) {
	if err := policy.Validate(); err != nil {
		return nil, apperrors.NewConfigurationError("invalid weighting policy", err)
	}
	if logger == nil {
		logger = monitoring.NopLogger()
	}
	return &Service{
		store:        store,
		cache:        cache,
		policy:       policy,
		preprocessor: NewPreprocessor(DefaultMinSpacing),
		logger:       logger,
		observer:     nopObserver{},
		counters:     nopCounters{},
		retry:        DefaultRetryConfig(),
		now:          time.Now,
	}, nil
}

// SetObserver replaces the default no-op observer.
func (s *Service) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	s.observer = o
}

// SetCounters attaches in-process counters.
func (s *Service) SetCounters(c Counters) {
	if c == nil {
		c = nopCounters{}
	}
	s.counters = c
}

// SetMinSpacing changes the resubmission collapse window.
func (s *Service) SetMinSpacing(d time.Duration) {
	s.preprocessor = NewPreprocessor(d)
}

// DefaultRetryConfig retries store writes that hit a busy or locked database.
func DefaultRetryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableErrors = database.IsTransient
	return cfg
}

// SetRetry changes how store writes are retried.
func (s *Service) SetRetry(cfg resilience.RetryConfig) { s.retry = cfg }

// Policy returns the weighting policy in use.
func (s *Service) Policy() WeightPolicy { return s.policy }

func cacheKey(childID string) string { return "profile:" + childID }

// Score scores one assessment and describes the result.
func (s *Service) Score(ctx context.Context, req ScoreRequest) (*ScoredAssessment, error) {
	if !req.QuizType.Valid() {
		return nil, apperrors.NewValidationError("unknown quiz type", req.QuizType)
	}

	start := time.Now()
	scores := scoring.CalculateScores(req.Responses, req.QuizType, req.AgeGroup)
	insights := scoring.Describe(scores)
	duration := time.Since(start)

	s.observer.ObserveScoring(string(req.QuizType), duration)
	s.counters.IncrementScored()
	s.logger.ScoringLogger(string(req.QuizType), string(req.AgeGroup), answeredSkillQuestions(req.Responses), insights.Personality, duration)

	return &ScoredAssessment{Scores: scores, Insights: insights}, nil
}

// Consolidate merges caller-weighted sources into one profile.
func (s *Service) Consolidate(ctx context.Context, sources []scoring.Source) (*ConsolidatedProfile, error) {
	details := map[string]string{}
	for i, src := range sources {
		if !src.QuizType.Valid() {
			details[fmt.Sprintf("sources[%d].quizType", i)] = fmt.Sprintf("unknown quiz type %q", src.QuizType)
		}
		if !src.RespondentType.Valid() {
			details[fmt.Sprintf("sources[%d].respondentType", i)] = fmt.Sprintf("unknown respondent type %q", src.RespondentType)
		}
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationErrorWithMap(details)
	}
	return s.consolidate(sources), nil
}

func (s *Service) consolidate(sources []scoring.Source) *ConsolidatedProfile {
	start := time.Now()
	scores := scoring.Consolidate(sources)
	insights := scoring.Describe(scores)
	report := scoring.Assess(sources)
	duration := time.Since(start)

	s.observer.ObserveConsolidation(len(sources), report.Confidence, report.RequiresReview, duration)
	if report.RequiresReview {
		s.counters.IncrementReviewFlagged()
	}
	s.logger.ConsolidationLogger(len(sources), report.Confidence, report.Agreement, report.RequiresReview, duration)

	return &ConsolidatedProfile{Scores: scores, Insights: insights, AgreementReport: report}
}

// SubmitAssessment scores and stores an assessment for a child and drops
// the child's cached profile.
func (s *Service) SubmitAssessment(ctx context.Context, childID string, sub Submission) (a *database.Assessment, err error) {
	defer s.observe("submit_assessment", time.Now(), &err)

	childID = strings.TrimSpace(childID)
	details := map[string]string{}
	if childID == "" {
		details["childId"] = "child id is required"
	}
	if !sub.QuizType.Valid() {
		details["quizType"] = fmt.Sprintf("unknown quiz type %q", sub.QuizType)
	}
	if !sub.RespondentType.Valid() {
		details["respondentType"] = fmt.Sprintf("unknown respondent type %q", sub.RespondentType)
	}
	if len(sub.Responses) == 0 {
		details["responses"] = "at least one response is required"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationErrorWithMap(details)
	}

	scored, err := s.Score(ctx, ScoreRequest{Responses: sub.Responses, QuizType: sub.QuizType, AgeGroup: sub.AgeGroup})
	if err != nil {
		return nil, err
	}

	a = database.NewAssessment(childID, s.now())
	a.RespondentID = sub.RespondentID
	a.RespondentType = sub.RespondentType
	a.QuizType = sub.QuizType
	a.AgeGroup = sub.AgeGroup
	a.Responses = sub.Responses
	a.Scores = scored.Scores

	unlock := s.locks.lock(childID)
	defer unlock()
	if err := s.write(ctx, func() error { return s.store.SaveAssessment(ctx, a) }); err != nil {
		return nil, apperrors.NewInternalError("failed to store assessment", err)
	}
	s.invalidate(childID)
	return a, nil
}

// BuildProfile consolidates every stored assessment of a child. A cached
// profile is returned while fresh.
func (s *Service) BuildProfile(ctx context.Context, childID string) (p *Profile, err error) {
	defer s.observe("build_profile", time.Now(), &err)

	childID = strings.TrimSpace(childID)
	if childID == "" {
		return nil, apperrors.NewValidationError("child id is required")
	}

	if p, ok := s.cached(childID); ok {
		return p, nil
	}

	unlock := s.locks.lock(childID)
	defer unlock()
	if p, ok := s.cached(childID); ok {
		return p, nil
	}

	assessments, err := s.store.ListAssessments(ctx, childID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load assessments", err)
	}
	if len(assessments) == 0 {
		return nil, apperrors.NewNotFoundError("child", childID)
	}

	now := s.now()
	cleaned := s.preprocessor.Process(assessments)
	sources := s.policy.WeightSources(cleaned, now)
	consolidated := s.consolidate(sources)

	snapshot := database.NewProfileSnapshot(childID, now)
	snapshot.Scores = consolidated.Scores
	snapshot.Insights = consolidated.Insights
	snapshot.Report = consolidated.AgreementReport
	snapshot.AssessmentCount = len(cleaned)
	if err := s.write(ctx, func() error { return s.store.SaveSnapshot(ctx, snapshot) }); err != nil {
		return nil, apperrors.NewInternalError("failed to store profile snapshot", err)
	}
	s.counters.IncrementProfileBuilt()

	p = &Profile{
		ChildID:             childID,
		ConsolidatedProfile: *consolidated,
		AssessmentCount:     len(cleaned),
		SnapshotID:          snapshot.ID,
		GeneratedAt:         snapshot.CreatedAt,
	}
	s.storeInCache(p)
	return p, nil
}

// LatestSnapshot returns the last stored profile of a child without rebuilding.
func (s *Service) LatestSnapshot(ctx context.Context, childID string) (*database.ProfileSnapshot, error) {
	snap, err := s.store.LatestSnapshot(ctx, childID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("profile snapshot", childID)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load profile snapshot", err)
	}
	return snap, nil
}

// DeleteChild erases a child's assessments and snapshots. Deleting an
// unknown child succeeds.
func (s *Service) DeleteChild(ctx context.Context, childID string) (removed int64, err error) {
	defer s.observe("delete_child", time.Now(), &err)

	childID = strings.TrimSpace(childID)
	if childID == "" {
		return 0, apperrors.NewValidationError("child id is required")
	}

	unlock := s.locks.lock(childID)
	defer unlock()
	err = s.write(ctx, func() (werr error) {
		removed, werr = s.store.DeleteChild(ctx, childID)
		return werr
	})
	if err != nil {
		return 0, apperrors.NewInternalError("failed to delete child data", err)
	}
	s.invalidate(childID)
	s.logger.SystemLogger("child_deleted", fmt.Sprintf("removed %d rows", removed))
	return removed, nil
}

// PurgeExpired removes data older than retentionDays. Cached profiles may
// outlive the purge by at most the cache TTL.
func (s *Service) PurgeExpired(ctx context.Context, retentionDays int) (removed int64, err error) {
	defer s.observe("purge_expired", time.Now(), &err)

	if retentionDays <= 0 {
		return 0, apperrors.NewValidationError("retention days must be positive", retentionDays)
	}
	cutoff := s.now().AddDate(0, 0, -retentionDays)
	err = s.write(ctx, func() (werr error) {
		removed, werr = s.store.PurgeOlderThan(ctx, cutoff)
		return werr
	})
	if err != nil {
		return 0, apperrors.NewInternalError("failed to purge expired data", err)
	}
	s.logger.SystemLogger("retention_purge", fmt.Sprintf("removed %d rows older than %s", removed, cutoff.Format(time.RFC3339)))
	return removed, nil
}

func (s *Service) write(ctx context.Context, fn func() error) error {
	return resilience.RetryWithConfig(ctx, s.retry, fn)
}

func (s *Service) observe(op string, start time.Time, err *error) {
	s.observer.ObserveOperation(op, time.Since(start), *err)
}

func (s *Service) cached(childID string) (*Profile, bool) {
	if s.cache == nil {
		return nil, false
	}
	key := cacheKey(childID)
	data, ok := s.cache.Get(key)
	s.logger.CacheLogger("get", key, ok, 0)
	if !ok {
		return nil, false
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		s.logger.Warn("Discarding undecodable cached profile", "key", key, "error", err)
		s.cache.Delete(key)
		return nil, false
	}
	return &p, true
}

func (s *Service) storeInCache(p *Profile) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn("Failed to encode profile for cache", "child_id", p.ChildID, "error", err)
		return
	}
	s.cache.Set(cacheKey(p.ChildID), data)
}

func (s *Service) invalidate(childID string) {
	if s.cache != nil {
		s.cache.Delete(cacheKey(childID))
	}
}

func answeredSkillQuestions(responses scoring.Responses) int {
	n := 0
	for id := range responses {
		if _, ok := scoring.SkillForQuestion(id); ok {
			n++
		}
	}
	return n
}
