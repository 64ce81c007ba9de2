package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/educatodos/player-gateway/internal/domain"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// TickInterval granularity of the session watch counter
const TickInterval = time.Second

// CompletionThreshold dwell seconds after which a lesson counts as completed,
// independent of lesson duration
const CompletionThreshold = 10

// lesson watch states
type watchState int

const (
	stateIdle watchState = iota
	stateWatching
	stateCompleted
)

// watch per-lesson session state, reset whenever the active lesson changes
type watch struct {
	lesson  *domain.Lesson
	surface domain.MediaSurface
	state   watchState
	elapsed int // seconds in view since activation
	ticker  Ticker
	cancel  chan struct{}
	stopped bool
}

// Tracker accumulates viewing time for the active lesson, decides when it
// counts as completed and persists that decision. It owns the single tick
// stream and the completed-set mirror for the course.
type Tracker struct {
	mu        sync.Mutex
	saveMu    sync.Mutex // serializes progress writes for this session
	progress  domain.ProgressRepository
	newTicker TickerFactory
	logger    *zap.Logger

	completed   map[int]bool
	active      *watch
	onCompleted func(lessonID int)
}

// New create a Tracker. onCompleted may be nil; when set it fires after a
// lesson completion has been persisted and mirrored.
func New(progress domain.ProgressRepository, newTicker TickerFactory, logger *zap.Logger, onCompleted func(lessonID int)) *Tracker {
	return &Tracker{
		progress:    progress,
		newTicker:   newTicker,
		logger:      logger,
		completed:   map[int]bool{},
		onCompleted: onCompleted,
	}
}

// LoadAllCompleted fetch the learner's full progress record set and mirror
// the completed lesson IDs. No records is a normal state for new learners.
func (t *Tracker) LoadAllCompleted(ctx context.Context) error {
	apmSpan, ctx := apm.StartSpan(ctx, "Tracker.LoadAllCompleted", "service")
	defer apmSpan.End()

	records, err := t.progress.ListProgress(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, record := range records {
		if record.Completed {
			t.completed[record.Lesson] = true
		}
	}
	return nil
}

// Activate make the lesson current: the previous tick stream is torn down
// first, the session counter restarts at zero. An already completed lesson
// gets no tick stream; further dwell time is ignored.
func (t *Tracker) Activate(lesson *domain.Lesson, surface domain.MediaSurface) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopActiveLocked()

	w := &watch{
		lesson:  lesson,
		surface: surface,
	}
	t.active = w

	if t.completed[lesson.ID] {
		w.state = stateCompleted
		return
	}

	w.state = stateWatching
	w.ticker = t.newTicker(TickInterval)
	w.cancel = make(chan struct{})
	go t.runTicks(w)
}

// RestorePosition asynchronously fetch any previously saved playback position
// for the lesson and seek the media surface to it. A missing prior record is
// no saved position, not an error. The fetch runs detached from any request
// scope: the caller returning must not abort it.
func (t *Tracker) RestorePosition(lesson *domain.Lesson, surface domain.MediaSurface) {
	go func() {
		record, err := t.progress.GetLessonProgress(context.Background(), lesson.ID)
		if err != nil {
			if err != domain.ErrNoRecord {
				t.logger.Warn("Failed to load saved position", zap.Int("lesson.id", lesson.ID), zap.Error(err))
			}
			return
		}
		if record.CurrentTime > 0 && surface != nil {
			surface.Seek(record.CurrentTime)
		}
	}()
}

// FlushOnDeactivate persist the playback position of a lesson being switched
// away from, with completed = false. Best effort: the caller never waits and
// a failure after retries is only logged. The save must outlive the request
// that triggered the switch, so it runs on a fresh context.
func (t *Tracker) FlushOnDeactivate(lessonID, positionSeconds int) {
	go func() {
		t.saveMu.Lock()
		defer t.saveMu.Unlock()

		err := t.progress.SaveProgress(context.Background(), &domain.LessonProgress{
			Lesson:      lessonID,
			CurrentTime: positionSeconds,
			Completed:   false,
		})
		if err != nil {
			t.logger.Error("Dropping position flush after retries", zap.Int("lesson.id", lessonID), zap.Error(err))
		}
	}()
}

// Stop tear down the active tick stream. In-flight saves are left to finish.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopActiveLocked()
	t.active = nil
}

// Completed whether the lesson is in the completed-set mirror
func (t *Tracker) Completed(lessonID int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed[lessonID]
}

// CompletedSet snapshot of the completed lesson IDs
func (t *Tracker) CompletedSet() map[int]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[int]bool, len(t.completed))
	for id := range t.completed {
		set[id] = true
	}
	return set
}

// Elapsed seconds accumulated for the active lesson
func (t *Tracker) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return 0
	}
	return t.active.elapsed
}

// ActiveLessonID the current lesson, 0 when none is active
func (t *Tracker) ActiveLessonID() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return 0
	}
	return t.active.lesson.ID
}

// ActiveSurfaceAttached whether the active lesson has a media surface
func (t *Tracker) ActiveSurfaceAttached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil && t.active.surface != nil
}

// ActivePosition last playback second reported for the active lesson, 0 when
// no surface is attached
func (t *Tracker) ActivePosition() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil || t.active.surface == nil {
		return 0
	}
	return t.active.surface.Position()
}

func (t *Tracker) stopActiveLocked() {
	w := t.active
	if w == nil || w.stopped {
		return
	}
	w.stopped = true
	if w.ticker != nil {
		w.ticker.Stop()
	}
	if w.cancel != nil {
		close(w.cancel)
	}
}

func (t *Tracker) runTicks(w *watch) {
	for {
		select {
		case <-w.cancel:
			return
		case <-w.ticker.C():
			t.tick(w)
		}
	}
}

// tick advance the session counter by one second; crossing the threshold
// stops the stream and persists the completion
func (t *Tracker) tick(w *watch) {
	t.mu.Lock()
	if t.active != w || w.state != stateWatching {
		t.mu.Unlock()
		return
	}
	w.elapsed++
	if w.elapsed < CompletionThreshold {
		t.mu.Unlock()
		return
	}

	// threshold reached: no further ticks for this lesson either way
	w.stopped = true
	w.ticker.Stop()
	close(w.cancel)

	lessonID := w.lesson.ID
	position := 0
	if w.surface != nil {
		position = w.surface.Position()
	}
	t.mu.Unlock()

	t.persistCompletion(w, lessonID, position)
}

func (t *Tracker) persistCompletion(w *watch, lessonID, position int) {
	t.saveMu.Lock()
	err := t.progress.SaveProgress(context.Background(), &domain.LessonProgress{
		Lesson:      lessonID,
		CurrentTime: position,
		Completed:   true,
	})
	t.saveMu.Unlock()

	if err != nil {
		// best-effort semantics: the learner is not interrupted
		t.logger.Error("Dropping lesson completion after retries", zap.Int("lesson.id", lessonID), zap.Error(err))
		return
	}

	t.mu.Lock()
	t.completed[lessonID] = true
	w.state = stateCompleted
	t.mu.Unlock()

	t.logger.Info("Lesson completed", zap.Int("lesson.id", lessonID), zap.Int("media.position", position))
	if t.onCompleted != nil {
		t.onCompleted(lessonID)
	}
}
