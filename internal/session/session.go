package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/educatodos/player-gateway/internal/catalog"
	"github.com/educatodos/player-gateway/internal/completion"
	"github.com/educatodos/player-gateway/internal/domain"
	"github.com/educatodos/player-gateway/internal/navigation"
	"github.com/educatodos/player-gateway/internal/tracker"
	"go.uber.org/zap"
)

// eventBufferSize pending events per session; the player is expected to keep
// the stream drained
const eventBufferSize = 16

// Session one learner watching one course. It owns the tracker state machine
// and the remote media surface, and is safe for concurrent handler calls.
type Session struct {
	ID     string
	UserID int

	course  *domain.Course
	tracker *tracker.Tracker
	nav     *navigation.Coordinator
	courses *completion.Coordinator
	surface *remoteSurface
	logger  *zap.Logger

	mu         sync.Mutex
	current    *domain.Lesson
	completion *domain.CourseCompletion
	lastSeen   time.Time
	closed     bool
	events     chan Event
}

// State snapshot returned to the player
type State struct {
	ID               string                   `json:"id"`
	Course           *domain.Course           `json:"course"`
	CurrentLesson    int                      `json:"current_lesson,omitempty"`
	ElapsedSeconds   int                      `json:"elapsed_seconds"`
	CompletedLessons []int                    `json:"completed_lessons"`
	Completable      bool                     `json:"completable"`
	Completion       *domain.CourseCompletion `json:"completion,omitempty"`
}

func newSession(id string, userID int, course *domain.Course, progress domain.ProgressRepository,
	completions domain.CompletionRepository, newTicker tracker.TickerFactory, logger *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		UserID:   userID,
		course:   course,
		logger:   logger,
		lastSeen: time.Now(),
		events:   make(chan Event, eventBufferSize),
	}
	s.surface = &remoteSurface{emit: s.emit}
	s.tracker = tracker.New(progress, newTicker, logger, s.onLessonCompleted)
	s.nav = navigation.NewCoordinator(s.tracker, logger)
	s.courses = completion.NewCoordinator(completions, logger)
	return s
}

// start load mirrors and activate the entry lesson. A lessonID of zero means
// the first lesson in catalog order; a course without lessons stays idle.
func (s *Session) start(ctx context.Context, lessonID int) error {
	if err := s.tracker.LoadAllCompleted(ctx); err != nil {
		// no progress yet is normal for new learners, and even a fetch
		// failure must not block the viewing session
		s.logger.Warn("Could not load progress records", zap.Error(err))
	}

	if record, err := s.courses.AlreadyCompleted(ctx, s.course.ID); err != nil {
		s.logger.Warn("Could not check course completion", zap.Int("course.id", s.course.ID), zap.Error(err))
	} else if record != nil {
		s.mu.Lock()
		s.completion = record
		s.mu.Unlock()
	}

	lesson, err := catalog.CurrentLesson(s.course, lessonID)
	if err != nil {
		return err
	}
	if lesson == nil {
		return nil
	}

	s.mu.Lock()
	s.current = lesson
	s.mu.Unlock()
	s.tracker.Activate(lesson, s.surface)
	s.tracker.RestorePosition(lesson, s.surface)
	return nil
}

// Heartbeat record the playback position reported by the player
func (s *Session) Heartbeat(positionSeconds int) {
	s.surface.report(positionSeconds)
	s.touch()
}

// Navigate switch to another lesson of the course, flushing the outgoing
// lesson first
func (s *Session) Navigate(lessonID int) (*domain.Lesson, error) {
	s.touch()
	lesson, err := s.nav.SwitchLesson(s.course, lessonID, s.surface)
	if err != nil {
		return nil, err
	}
	s.surface.reset()
	s.mu.Lock()
	s.current = lesson
	s.mu.Unlock()
	return lesson, nil
}

// Complete submit the course completion once every lesson is done
func (s *Session) Complete(ctx context.Context) (*domain.CourseCompletion, error) {
	s.touch()

	s.mu.Lock()
	already := s.completion
	s.mu.Unlock()
	if already != nil {
		return already, nil
	}

	record, err := s.courses.CompleteCourse(ctx, s.course, s.tracker.CompletedSet())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.completion = record
	s.mu.Unlock()
	s.emit(Event{Type: EventCourseCompleted, CertificateCode: record.CertificateCode})
	return record, nil
}

// Snapshot current session state
func (s *Session) Snapshot() *State {
	s.mu.Lock()
	current := s.current
	record := s.completion
	s.mu.Unlock()

	completed := s.tracker.CompletedSet()
	ids := make([]int, 0, len(completed))
	for id := range completed {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	state := &State{
		ID:               s.ID,
		Course:           s.course,
		ElapsedSeconds:   s.tracker.Elapsed(),
		CompletedLessons: ids,
		Completable:      completion.GateSatisfied(catalog.LessonIDs(s.course), completed),
		Completion:       record,
	}
	if current != nil {
		state.CurrentLesson = current.ID
	}
	return state
}

// Events stream of notifications for the player. Closed on session teardown.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Close cancel the tick stream and close the event stream. In-flight saves
// are allowed to finish.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.tracker.Stop()
	close(s.events)
}

// LastSeen time of the last player interaction
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) onLessonCompleted(lessonID int) {
	s.emit(Event{Type: EventLessonCompleted, LessonID: lessonID})
	if completion.GateSatisfied(catalog.LessonIDs(s.course), s.tracker.CompletedSet()) {
		s.emit(Event{Type: EventCourseCompletable})
	}
}

// emit non-blocking event delivery; a player that stopped draining loses the
// oldest notifications first
func (s *Session) emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.events <- ev:
			return
		default:
			select {
			case <-s.events:
			default:
			}
		}
	}
}
