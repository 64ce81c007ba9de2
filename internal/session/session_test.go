package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/educatodos/player-gateway/internal/domain"
	"github.com/educatodos/player-gateway/internal/tracker"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubProgressRepo struct {
	mu       sync.Mutex
	records  []*domain.LessonProgress
	byLesson map[int]*domain.LessonProgress
	saves    []*domain.LessonProgress
}

func newStubProgressRepo() *stubProgressRepo {
	return &stubProgressRepo{byLesson: map[int]*domain.LessonProgress{}}
}

func (r *stubProgressRepo) ListProgress(ctx context.Context) ([]*domain.LessonProgress, error) {
	return r.records, nil
}

func (r *stubProgressRepo) GetLessonProgress(ctx context.Context, lessonID int) (*domain.LessonProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.byLesson[lessonID]
	if !ok {
		return nil, domain.ErrNoRecord
	}
	return record, nil
}

func (r *stubProgressRepo) SaveProgress(ctx context.Context, record *domain.LessonProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, record)
	return nil
}

type stubCompletionRepo struct {
	mu       sync.Mutex
	existing *domain.CourseCompletion
	result   *domain.CourseCompletion
	submits  int
}

func (r *stubCompletionRepo) GetCourseCompletion(ctx context.Context, courseID int) (*domain.CourseCompletion, error) {
	if r.existing == nil {
		return nil, domain.ErrNoRecord
	}
	return r.existing, nil
}

func (r *stubCompletionRepo) CompleteCourse(ctx context.Context, courseID int) (*domain.CourseCompletion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits++
	return r.result, nil
}

func (r *stubCompletionRepo) ListCompletions(ctx context.Context) ([]*domain.CourseCompletion, error) {
	return nil, nil
}

func (r *stubCompletionRepo) GetCompletionByCode(ctx context.Context, code string) (*domain.CourseCompletion, error) {
	return nil, domain.ErrNoRecord
}

type sessionTicker struct {
	ch chan time.Time
}

func (st *sessionTicker) C() <-chan time.Time { return st.ch }
func (st *sessionTicker) Stop()               {}

func (st *sessionTicker) advance(n int) {
	for i := 0; i < n; i++ {
		st.ch <- time.Now()
	}
}

type sessionTickerSource struct {
	mu      sync.Mutex
	tickers []*sessionTicker
}

func (ts *sessionTickerSource) factory(d time.Duration) tracker.Ticker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	st := &sessionTicker{ch: make(chan time.Time, tracker.CompletionThreshold*2)}
	ts.tickers = append(ts.tickers, st)
	return st
}

func (ts *sessionTickerSource) last() *sessionTicker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.tickers[len(ts.tickers)-1]
}

func courseFixture() *domain.Course {
	return &domain.Course{
		ID:    10,
		Title: "Go para web",
		Sections: []*domain.Section{
			{ID: 1, Order: 1, Lessons: []*domain.Lesson{
				{ID: 1, Order: 1, Title: "Introdução"},
				{ID: 2, Order: 2, Title: "Handlers"},
			}},
		},
	}
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("event stream closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return Event{}
	}
}

func Test_Session_WatchThroughToCertificate(t *testing.T) {
	progress := newStubProgressRepo()
	completions := &stubCompletionRepo{
		result: &domain.CourseCompletion{Course: 10, CertificateCode: "CERT-AB12CD34EF56"},
	}
	source := new(sessionTickerSource)

	s := newSession("sess-1", 7, courseFixture(), progress, completions, source.factory, zap.NewNop())
	defer s.Close()
	assert.NoError(t, s.start(context.Background(), 0))

	state := s.Snapshot()
	assert.Equal(t, 1, state.CurrentLesson)
	assert.False(t, state.Completable)
	assert.Empty(t, state.CompletedLessons)

	// completing before every lesson is done is rejected
	_, err := s.Complete(context.Background())
	assert.Equal(t, domain.ErrCourseNotCompletable, err)

	s.Heartbeat(95)
	source.last().advance(tracker.CompletionThreshold)

	ev := nextEvent(t, s)
	assert.Equal(t, EventLessonCompleted, ev.Type)
	assert.Equal(t, 1, ev.LessonID)

	lesson, err := s.Navigate(2)
	assert.NoError(t, err)
	assert.Equal(t, "Handlers", lesson.Title)

	s.Heartbeat(30)
	source.last().advance(tracker.CompletionThreshold)

	ev = nextEvent(t, s)
	assert.Equal(t, EventLessonCompleted, ev.Type)
	assert.Equal(t, 2, ev.LessonID)
	ev = nextEvent(t, s)
	assert.Equal(t, EventCourseCompletable, ev.Type)

	state = s.Snapshot()
	assert.True(t, state.Completable)
	assert.Equal(t, []int{1, 2}, state.CompletedLessons)

	record, err := s.Complete(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "CERT-AB12CD34EF56", record.CertificateCode)

	ev = nextEvent(t, s)
	assert.Equal(t, EventCourseCompleted, ev.Type)
	assert.Equal(t, "CERT-AB12CD34EF56", ev.CertificateCode)

	// a second submit is answered from the session, not the backend
	again, err := s.Complete(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, record, again)
	assert.Equal(t, 1, completions.submits)
}

func Test_Session_StartHonorsExistingCompletion(t *testing.T) {
	completions := &stubCompletionRepo{
		existing: &domain.CourseCompletion{Course: 10, CertificateCode: "CERT-AB12CD34EF56"},
	}
	s := newSession("sess-1", 7, courseFixture(), newStubProgressRepo(), completions, new(sessionTickerSource).factory, zap.NewNop())
	defer s.Close()
	assert.NoError(t, s.start(context.Background(), 0))

	record, err := s.Complete(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "CERT-AB12CD34EF56", record.CertificateCode)
	assert.Equal(t, 0, completions.submits)
}

func Test_Session_StartAtRequestedLesson(t *testing.T) {
	s := newSession("sess-1", 7, courseFixture(), newStubProgressRepo(), new(stubCompletionRepo), new(sessionTickerSource).factory, zap.NewNop())
	defer s.Close()

	assert.NoError(t, s.start(context.Background(), 2))
	assert.Equal(t, 2, s.Snapshot().CurrentLesson)
}

func Test_Session_StartRejectsUnknownLesson(t *testing.T) {
	s := newSession("sess-1", 7, courseFixture(), newStubProgressRepo(), new(stubCompletionRepo), new(sessionTickerSource).factory, zap.NewNop())
	defer s.Close()

	assert.Equal(t, domain.ErrLessonNotFound, s.start(context.Background(), 99))
}

func Test_Session_EmptyCourseStaysIdle(t *testing.T) {
	s := newSession("sess-1", 7, &domain.Course{ID: 11}, newStubProgressRepo(), new(stubCompletionRepo), new(sessionTickerSource).factory, zap.NewNop())
	defer s.Close()

	assert.NoError(t, s.start(context.Background(), 0))
	state := s.Snapshot()
	assert.Equal(t, 0, state.CurrentLesson)
	assert.False(t, state.Completable)

	_, err := s.Complete(context.Background())
	assert.Equal(t, domain.ErrCourseNotCompletable, err)
}

func Test_Session_SeekPushedAsEvent(t *testing.T) {
	progress := newStubProgressRepo()
	progress.byLesson[1] = &domain.LessonProgress{Lesson: 1, CurrentTime: 37}

	s := newSession("sess-1", 7, courseFixture(), progress, new(stubCompletionRepo), new(sessionTickerSource).factory, zap.NewNop())
	defer s.Close()
	assert.NoError(t, s.start(context.Background(), 0))

	ev := nextEvent(t, s)
	assert.Equal(t, EventSeek, ev.Type)
	assert.Equal(t, 37, ev.Seconds)
}

func Test_Session_NavigateResetsReportedPosition(t *testing.T) {
	s := newSession("sess-1", 7, courseFixture(), newStubProgressRepo(), new(stubCompletionRepo), new(sessionTickerSource).factory, zap.NewNop())
	defer s.Close()
	assert.NoError(t, s.start(context.Background(), 0))

	s.Heartbeat(95)
	assert.Equal(t, 95, s.surface.Position())

	_, err := s.Navigate(2)
	assert.NoError(t, err)
	assert.Equal(t, 0, s.surface.Position())
}

func Test_Session_CloseIsIdempotent(t *testing.T) {
	s := newSession("sess-1", 7, courseFixture(), newStubProgressRepo(), new(stubCompletionRepo), new(sessionTickerSource).factory, zap.NewNop())
	assert.NoError(t, s.start(context.Background(), 0))

	s.Close()
	s.Close()

	_, ok := <-s.Events()
	assert.False(t, ok)
}

func Test_Session_EmitDropsOldestWhenFull(t *testing.T) {
	s := newSession("sess-1", 7, courseFixture(), newStubProgressRepo(), new(stubCompletionRepo), new(sessionTickerSource).factory, zap.NewNop())
	defer s.Close()

	for i := 0; i < eventBufferSize+4; i++ {
		s.emit(Event{Type: EventSeek, Seconds: i})
	}

	ev := nextEvent(t, s)
	assert.True(t, ev.Seconds > 0)
	assert.Len(t, s.events, eventBufferSize-1)
}
