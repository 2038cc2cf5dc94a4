package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// Repository handles database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveAssessment stores a scored assessment.
func (r *Repository) SaveAssessment(ctx context.Context, a *Assessment) error {
	responses, err := json.Marshal(a.Responses)
	if err != nil {
		return fmt.Errorf("failed to encode responses: %w", err)
	}
	scores, err := json.Marshal(a.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode scores: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement(stmtInsertAssessment)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		a.ID, a.ChildID, a.RespondentID, string(a.RespondentType), string(a.QuizType), string(a.AgeGroup),
		string(responses), string(scores), toUnix(a.SubmittedAt))
	if err != nil {
		return fmt.Errorf("failed to save assessment: %w", err)
	}
	return nil
}

// ListAssessments returns a child's assessments, oldest first.
func (r *Repository) ListAssessments(ctx context.Context, childID string) ([]Assessment, error) {
	stmt, err := r.db.GetPreparedStatement(stmtListAssessments)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	var out []Assessment
	for rows.Next() {
		var (
			a                 Assessment
			respondentType    string
			quizType          string
			ageGroup          string
			responses, scores string
			submittedAt       int64
		)
		if err := rows.Scan(&a.ID, &a.ChildID, &a.RespondentID, &respondentType, &quizType, &ageGroup,
			&responses, &scores, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		a.RespondentType = scoring.RespondentType(respondentType)
		a.QuizType = scoring.QuizType(quizType)
		a.AgeGroup = scoring.AgeGroup(ageGroup)
		a.SubmittedAt = fromUnix(submittedAt)
		if err := json.Unmarshal([]byte(responses), &a.Responses); err != nil {
			return nil, fmt.Errorf("failed to decode responses of %s: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(scores), &a.Scores); err != nil {
			return nil, fmt.Errorf("failed to decode scores of %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assessments: %w", err)
	}
	return out, nil
}

// SaveSnapshot stores a built profile.
func (r *Repository) SaveSnapshot(ctx context.Context, s *ProfileSnapshot) error {
	scores, err := json.Marshal(s.Scores)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot scores: %w", err)
	}
	insights, err := json.Marshal(s.Insights)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot insights: %w", err)
	}
	report, err := json.Marshal(s.Report)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot report: %w", err)
	}

	stmt, err := r.db.GetPreparedStatement(stmtInsertSnapshot)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx, s.ID, s.ChildID, string(scores), string(insights), string(report),
		s.AssessmentCount, toUnix(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot for a child or ErrNotFound.
func (r *Repository) LatestSnapshot(ctx context.Context, childID string) (*ProfileSnapshot, error) {
	stmt, err := r.db.GetPreparedStatement(stmtLatestSnapshot)
	if err != nil {
		return nil, err
	}

	var (
		s                        ProfileSnapshot
		scores, insights, report string
		createdAt                int64
	)
	err = stmt.QueryRowContext(ctx, childID).Scan(&s.ID, &s.ChildID, &scores, &insights, &report,
		&s.AssessmentCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(scores), &s.Scores); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot scores: %w", err)
	}
	if err := json.Unmarshal([]byte(insights), &s.Insights); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot insights: %w", err)
	}
	if err := json.Unmarshal([]byte(report), &s.Report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot report: %w", err)
	}
	s.CreatedAt = fromUnix(createdAt)
	return &s, nil
}

// DeleteChild removes every assessment and snapshot of a child and returns
// the number of rows removed.
func (r *Repository) DeleteChild(ctx context.Context, childID string) (int64, error) {
	return r.deleteInTx(ctx, childID, stmtDeleteAssessments, stmtDeleteSnapshots)
}

// PurgeOlderThan removes assessments submitted and snapshots created before cutoff.
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.deleteInTx(ctx, toUnix(cutoff), stmtPurgeAssessments, stmtPurgeSnapshots)
}

func (r *Repository) deleteInTx(ctx context.Context, arg interface{}, names ...string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var total int64
	for _, name := range names {
		stmt, err := r.db.GetPreparedStatement(name)
		if err != nil {
			return 0, err
		}
		res, err := tx.StmtContext(ctx, stmt).ExecContext(ctx, arg)
		if err != nil {
			return 0, fmt.Errorf("failed to execute %s: %w", name, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count rows of %s: %w", name, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return total, nil
}

// Stats counts stored children and assessments.
func (r *Repository) Stats(ctx context.Context) (StoreStats, error) {
	var stats StoreStats
	for name, dst := range map[string]*int64{
		stmtCountChildren:      &stats.Children,
		stmtCountAssessmentAll: &stats.Assessments,
	} {
		stmt, err := r.db.GetPreparedStatement(name)
		if err != nil {
			return stats, err
		}
		if err := stmt.QueryRowContext(ctx).Scan(dst); err != nil {
			return stats, fmt.Errorf("failed to execute %s: %w", name, err)
		}
	}
	return stats, nil
}
