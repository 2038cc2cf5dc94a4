package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

// Assessment is one scored questionnaire submitted for a child.
type Assessment struct {
	ID             string                 `json:"id" db:"id"`
	ChildID        string                 `json:"childId" db:"child_id"`
	RespondentID   string                 `json:"respondentId,omitempty" db:"respondent_id"`
	RespondentType scoring.RespondentType `json:"respondentType,omitempty" db:"respondent_type"`
	QuizType       scoring.QuizType       `json:"quizType" db:"quiz_type"`
	AgeGroup       scoring.AgeGroup       `json:"ageGroup,omitempty" db:"age_group"`
	Responses      scoring.Responses      `json:"responses" db:"responses"`
	Scores         scoring.ScoreVector    `json:"scores" db:"scores"`
	SubmittedAt    time.Time              `json:"submittedAt" db:"submitted_at"`
}

// ProfileSnapshot records a consolidated profile as it was built.
type ProfileSnapshot struct {
	ID              string                  `json:"id" db:"id"`
	ChildID         string                  `json:"childId" db:"child_id"`
	Scores          scoring.ScoreVector     `json:"scores" db:"scores"`
	Insights        scoring.Insights        `json:"insights" db:"insights"`
	Report          scoring.AgreementReport `json:"report" db:"report"`
	AssessmentCount int                     `json:"assessmentCount" db:"assessment_count"`
	CreatedAt       time.Time               `json:"createdAt" db:"created_at"`
}

// StoreStats summarizes table sizes for /stats.
type StoreStats struct {
	Children    int64 `json:"children"`
	Assessments int64 `json:"assessments"`
}

// NewAssessment creates an assessment with a generated ID.
func NewAssessment(childID string, submittedAt time.Time) *Assessment {
	return &Assessment{
		ID:          uuid.New().String(),
		ChildID:     childID,
		SubmittedAt: submittedAt.UTC(),
	}
}

// NewProfileSnapshot creates a snapshot with a generated ID.
func NewProfileSnapshot(childID string, createdAt time.Time) *ProfileSnapshot {
	return &ProfileSnapshot{
		ID:        uuid.New().String(),
		ChildID:   childID,
		CreatedAt: createdAt.UTC(),
	}
}

func toUnix(t time.Time) int64 { return t.UTC().UnixNano() }

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }
