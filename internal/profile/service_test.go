package profile

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/learning-profile/internal/cache"
	"github.com/ZanzyTHEbar/learning-profile/internal/database"
	apperrors "github.com/ZanzyTHEbar/learning-profile/internal/errors"
	"github.com/ZanzyTHEbar/learning-profile/internal/monitoring"
	"github.com/ZanzyTHEbar/learning-profile/internal/resilience"
	"github.com/ZanzyTHEbar/learning-profile/internal/scoring"
)

type memStore struct {
	mu          sync.Mutex
	assessments []database.Assessment
	snapshots   []database.ProfileSnapshot
	lists       int
	failWith    error
	busyWrites  int
}

func (m *memStore) SaveAssessment(_ context.Context, a *database.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	if m.busyWrites > 0 {
		m.busyWrites--
		return sqlite3.Error{Code: sqlite3.ErrBusy}
	}
	m.assessments = append(m.assessments, *a)
	return nil
}

func (m *memStore) ListAssessments(_ context.Context, childID string) ([]database.Assessment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []database.Assessment
	for _, a := range m.assessments {
		if a.ChildID == childID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (m *memStore) SaveSnapshot(_ context.Context, s *database.ProfileSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, *s)
	return nil
}

func (m *memStore) LatestSnapshot(_ context.Context, childID string) (*database.ProfileSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].ChildID == childID {
			s := m.snapshots[i]
			return &s, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) DeleteChild(_ context.Context, childID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.assessments[:0]
	for _, a := range m.assessments {
		if a.ChildID == childID {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.assessments = kept
	snaps := m.snapshots[:0]
	for _, s := range m.snapshots {
		if s.ChildID == childID {
			n++
			continue
		}
		snaps = append(snaps, s)
	}
	m.snapshots = snaps
	return n, nil
}

func (m *memStore) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.assessments[:0]
	for _, a := range m.assessments {
		if a.SubmittedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, a)
	}
	m.assessments = kept
	return n, nil
}

type recordingObserver struct {
	scored         int
	consolidations int
	ops            map[string]int
	failed         map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{ops: map[string]int{}, failed: map[string]int{}}
}

func (r *recordingObserver) ObserveScoring(string, time.Duration) { r.scored++ }
func (r *recordingObserver) ObserveConsolidation(int, float64, bool, time.Duration) {
	r.consolidations++
}
func (r *recordingObserver) ObserveOperation(op string, _ time.Duration, err error) {
	r.ops[op]++
	if err != nil {
		r.failed[op]++
	}
}

func allAnswers(n float64) scoring.Responses {
	r := scoring.Responses{}
	for id := 1; id <= 24; id++ {
		r[id] = scoring.Likert(n)
	}
	return r
}

func newTestService(t *testing.T) (*Service, *memStore, *cache.Cache) {
	t.Helper()
	store := &memStore{}
	c := cache.NewCache(time.Minute, 0)
	t.Cleanup(func() { c.Close() })

	svc, err := NewService(store, c, DefaultWeightPolicy(), monitoring.NopLogger())
	require.NoError(t, err)
	svc.now = func() time.Time { return refTime }
	return svc, store, c
}

func TestNewService_RejectsInvalidPolicy(t *testing.T) {
	policy := DefaultWeightPolicy()
	policy.RepeatFactor = 2

	_, err := NewService(&memStore{}, nil, policy, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConfiguration))
}

func TestService_Score(t *testing.T) {
	svc, _, _ := newTestService(t)
	obs := newRecordingObserver()
	svc.SetObserver(obs)
	metrics := monitoring.NewMetrics()
	svc.SetCounters(metrics)

	got, err := svc.Score(context.Background(), ScoreRequest{
		Responses: scoring.Responses{1: scoring.Likert(5), 2: scoring.Likert(5), 3: scoring.Likert(5)},
		QuizType:  scoring.QuizParentHome,
	})
	require.NoError(t, err)

	comm, ok := got.Scores.Score(scoring.Communication)
	require.True(t, ok)
	assert.Equal(t, 5.0, comm)
	assert.Contains(t, got.Strengths, string(scoring.Communication))
	assert.NotEmpty(t, got.Personality)
	assert.Equal(t, 1, obs.scored)
	assert.Equal(t, int64(1), metrics.AssessmentsScored)

	_, err = svc.Score(context.Background(), ScoreRequest{QuizType: "bogus"})
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
}

func TestService_Consolidate(t *testing.T) {
	svc, _, _ := newTestService(t)

	high := scoring.CalculateScores(allAnswers(5), scoring.QuizTeacherClassroom, "")
	low := scoring.CalculateScores(allAnswers(1), scoring.QuizParentHome, "")

	got, err := svc.Consolidate(context.Background(), []scoring.Source{
		{Scores: high, Weight: 0.6, QuizType: scoring.QuizTeacherClassroom, RespondentType: scoring.RespondentTeacher},
		{Scores: low, Weight: 0.4, QuizType: scoring.QuizParentHome, RespondentType: scoring.RespondentParent},
	})
	require.NoError(t, err)

	for _, skill := range scoring.Skills() {
		v, ok := got.Scores.Score(skill)
		require.True(t, ok)
		assert.InDelta(t, 3.4, v, 1e-9, string(skill))
	}
	assert.True(t, got.RequiresReview)
	assert.Len(t, got.Conflicts, scoring.SkillCount)

	empty, err := svc.Consolidate(context.Background(), nil)
	require.NoError(t, err)
	v, _ := empty.Scores.Score(scoring.Math)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, 0.0, empty.Confidence)

	_, err = svc.Consolidate(context.Background(), []scoring.Source{{QuizType: "x", RespondentType: "robot"}})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Len(t, appErr.Fields(), 2)
}

func TestService_SubmitAndBuildProfile(t *testing.T) {
	svc, store, c := newTestService(t)
	ctx := context.Background()
	obs := newRecordingObserver()
	svc.SetObserver(obs)

	_, err := svc.BuildProfile(ctx, "child-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))

	teacher, err := svc.SubmitAssessment(ctx, " child-1 ", Submission{
		RespondentID:   "teacher-a",
		RespondentType: scoring.RespondentTeacher,
		QuizType:       scoring.QuizTeacherClassroom,
		Responses:      allAnswers(5),
	})
	require.NoError(t, err)
	assert.Equal(t, "child-1", teacher.ChildID)
	assert.NotEmpty(t, teacher.ID)
	assert.Equal(t, refTime, teacher.SubmittedAt)

	_, err = svc.SubmitAssessment(ctx, "child-1", Submission{
		RespondentID:   "mum",
		RespondentType: scoring.RespondentParent,
		QuizType:       scoring.QuizParentHome,
		Responses:      allAnswers(1),
	})
	require.NoError(t, err)

	p, err := svc.BuildProfile(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, "child-1", p.ChildID)
	assert.Equal(t, 2, p.AssessmentCount)
	mathScore, _ := p.Scores.Score(scoring.Math)
	assert.InDelta(t, 3.4, mathScore, 1e-9)
	assert.True(t, p.RequiresReview)
	assert.NotEmpty(t, p.SnapshotID)
	require.Len(t, store.snapshots, 1)
	assert.Equal(t, p.SnapshotID, store.snapshots[0].ID)

	// Second build is served from the cache.
	cached, err := svc.BuildProfile(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, p.SnapshotID, cached.SnapshotID)
	assert.Equal(t, 2, store.lists)
	assert.Equal(t, 1, c.Size())

	// A new submission invalidates it.
	_, err = svc.SubmitAssessment(ctx, "child-1", Submission{
		RespondentID:   "mum",
		RespondentType: scoring.RespondentParent,
		QuizType:       scoring.QuizGeneral,
		Responses:      allAnswers(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Size())

	rebuilt, err := svc.BuildProfile(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, 3, rebuilt.AssessmentCount)
	assert.NotEqual(t, p.SnapshotID, rebuilt.SnapshotID)

	snap, err := svc.LatestSnapshot(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, rebuilt.SnapshotID, snap.ID)

	assert.Equal(t, 4, obs.ops["build_profile"])
	assert.Equal(t, 1, obs.failed["build_profile"])
	assert.Equal(t, 3, obs.ops["submit_assessment"])
}

func TestService_SubmitAssessmentValidation(t *testing.T) {
	svc, store, _ := newTestService(t)

	tests := []struct {
		name    string
		childID string
		sub     Submission
		field   string
	}{
		{"missing child", "  ", Submission{Responses: allAnswers(3)}, "childId"},
		{"unknown quiz", "c", Submission{QuizType: "quiz", Responses: allAnswers(3)}, "quizType"},
		{"unknown respondent", "c", Submission{RespondentType: "robot", Responses: allAnswers(3)}, "respondentType"},
		{"no responses", "c", Submission{}, "responses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitAssessment(context.Background(), tt.childID, tt.sub)
			require.Error(t, err)
			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.CategoryValidation, appErr.Category)
			assert.Contains(t, appErr.Fields(), tt.field)
		})
	}
	assert.Empty(t, store.assessments)
}

func TestService_SubmitAssessmentStoreFailure(t *testing.T) {
	svc, store, _ := newTestService(t)
	store.failWith = errors.New("disk full")

	_, err := svc.SubmitAssessment(context.Background(), "c", Submission{Responses: allAnswers(3)})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInternal))
}

func TestService_SubmitAssessmentRetriesBusyStore(t *testing.T) {
	svc, store, _ := newTestService(t)
	svc.SetRetry(resilience.RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		BackoffFactor:   1,
		RetryableErrors: database.IsTransient,
	})

	store.busyWrites = 2
	_, err := svc.SubmitAssessment(context.Background(), "c1", Submission{Responses: allAnswers(4)})
	require.NoError(t, err)
	assert.Len(t, store.assessments, 1)

	store.busyWrites = 3
	_, err = svc.SubmitAssessment(context.Background(), "c1", Submission{Responses: allAnswers(4)})
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryInternal))
	assert.Len(t, store.assessments, 1)
}

func TestService_MalformedResponsesAreNotErrors(t *testing.T) {
	svc, _, _ := newTestService(t)

	a, err := svc.SubmitAssessment(context.Background(), "c", Submission{
		Responses: scoring.Responses{1: scoring.Malformed(), 2: scoring.Choice("often")},
	})
	require.NoError(t, err)
	v, _ := a.Scores.Score(scoring.Communication)
	assert.Equal(t, 1.0, v)
}

func TestService_DeleteChild(t *testing.T) {
	svc, store, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitAssessment(ctx, "child-1", Submission{Responses: allAnswers(4)})
	require.NoError(t, err)
	_, err = svc.BuildProfile(ctx, "child-1")
	require.NoError(t, err)
	require.Equal(t, 1, c.Size())

	removed, err := svc.DeleteChild(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	assert.Equal(t, 0, c.Size())
	assert.Empty(t, store.assessments)

	removed, err = svc.DeleteChild(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	_, err = svc.BuildProfile(ctx, "child-1")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))

	_, err = svc.LatestSnapshot(ctx, "child-1")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound))

	_, err = svc.DeleteChild(ctx, "")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
}

func TestService_PurgeExpired(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	svc.now = func() time.Time { return refTime.AddDate(0, 0, -400) }
	_, err := svc.SubmitAssessment(ctx, "old", Submission{Responses: allAnswers(4)})
	require.NoError(t, err)
	svc.now = func() time.Time { return refTime }
	_, err = svc.SubmitAssessment(ctx, "new", Submission{Responses: allAnswers(4)})
	require.NoError(t, err)

	removed, err := svc.PurgeExpired(ctx, 365)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	require.Len(t, store.assessments, 1)
	assert.Equal(t, "new", store.assessments[0].ChildID)

	_, err = svc.PurgeExpired(ctx, 0)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryValidation))
}

func TestService_UndecodableCacheEntryIsRebuilt(t *testing.T) {
	svc, _, c := newTestService(t)
	ctx := context.Background()

	_, err := svc.SubmitAssessment(ctx, "child-1", Submission{Responses: allAnswers(4)})
	require.NoError(t, err)
	c.Set(cacheKey("child-1"), []byte("{not json"))

	p, err := svc.BuildProfile(ctx, "child-1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.AssessmentCount)
}

func TestService_ReviewIsLogged(t *testing.T) {
	store := &memStore{}
	var buf bytes.Buffer
	svc, err := NewService(store, nil, DefaultWeightPolicy(), monitoring.NewLoggerWithWriter(&buf, slog.LevelInfo))
	require.NoError(t, err)
	metrics := monitoring.NewMetrics()
	svc.SetCounters(metrics)

	_, err = svc.Consolidate(context.Background(), []scoring.Source{
		{Scores: scoring.CalculateScores(allAnswers(5), "", ""), Weight: 1},
		{Scores: scoring.CalculateScores(allAnswers(1), "", ""), Weight: 1},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Equal(t, int64(1), metrics.ReviewsFlagged)
}

// pausingStore blocks the first ListAssessments until released.
type pausingStore struct {
	*memStore
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListAssessments(ctx context.Context, childID string) ([]database.Assessment, error) {
	out, err := p.memStore.ListAssessments(ctx, childID)
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return out, err
}

func TestService_EraseDuringBuildStaysErased(t *testing.T) {
	store := &pausingStore{memStore: &memStore{}, entered: make(chan struct{}), release: make(chan struct{})}
	c := cache.NewCache(time.Minute, 0)
	t.Cleanup(func() { c.Close() })
	svc, err := NewService(store, c, DefaultWeightPolicy(), monitoring.NopLogger())
	require.NoError(t, err)
	svc.now = func() time.Time { return refTime }

	ctx := context.Background()
	_, err = svc.SubmitAssessment(ctx, "kid-1", Submission{QuizType: scoring.QuizGeneral, Responses: allAnswers(4)})
	require.NoError(t, err)

	buildDone := make(chan error, 1)
	go func() {
		_, err := svc.BuildProfile(ctx, "kid-1")
		buildDone <- err
	}()
	<-store.entered

	deleteDone := make(chan error, 1)
	go func() {
		_, err := svc.DeleteChild(ctx, "kid-1")
		deleteDone <- err
	}()
	require.Eventually(t, func() bool { return svc.locks.waiting("kid-1") == 2 }, time.Second, time.Millisecond)

	close(store.release)
	require.NoError(t, <-buildDone)
	require.NoError(t, <-deleteDone)

	_, err = svc.LatestSnapshot(ctx, "kid-1")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound), "snapshot written by the build is erased")

	_, err = svc.BuildProfile(ctx, "kid-1")
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryNotFound), "no cached profile survives the erasure")
	assert.Zero(t, svc.locks.waiting("kid-1"))
}

func TestChildLocks_SerialisesSameChild(t *testing.T) {
	var l childLocks
	unlockA := l.lock("a")
	unlockB := l.lock("b")

	acquired := make(chan struct{})
	go func() {
		unlock := l.lock("a")
		close(acquired)
		unlock()
	}()

	require.Eventually(t, func() bool { return l.waiting("a") == 2 }, time.Second, time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("second lock of the same child acquired while held")
	default:
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Eventually(t, func() bool { return l.waiting("a") == 0 }, time.Second, time.Millisecond)
	assert.Zero(t, l.waiting("b"))
}
