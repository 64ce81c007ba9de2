package navigation

import (
	"github.com/educatodos/player-gateway/internal/catalog"
	"github.com/educatodos/player-gateway/internal/domain"
	"github.com/educatodos/player-gateway/internal/tracker"
	"go.uber.org/zap"
)

// Coordinator sequences the flush-then-switch protocol around the tracker
type Coordinator struct {
	tracker *tracker.Tracker
	logger  *zap.Logger
}

// NewCoordinator .
func NewCoordinator(tr *tracker.Tracker, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		tracker: tr,
		logger:  logger,
	}
}

// SwitchLesson flush the outgoing lesson, then activate the target. The
// flush only happens when the outgoing lesson exists, is not completed and
// has a media surface attached; navigation never waits on its outcome and
// the flush keeps running after the caller's request scope ends.
func (nc *Coordinator) SwitchLesson(course *domain.Course, toLessonID int, surface domain.MediaSurface) (*domain.Lesson, error) {
	to := catalog.FindLesson(course, toLessonID)
	if to == nil {
		return nil, domain.ErrLessonNotFound
	}

	fromID := nc.tracker.ActiveLessonID()
	if fromID != 0 && fromID != to.ID && !nc.tracker.Completed(fromID) && nc.tracker.ActiveSurfaceAttached() {
		position := nc.tracker.ActivePosition()
		nc.logger.Debug("Flushing outgoing lesson",
			zap.Int("lesson.id", fromID),
			zap.Int("media.position", position),
		)
		nc.tracker.FlushOnDeactivate(fromID, position)
	}

	nc.tracker.Activate(to, surface)
	nc.tracker.RestorePosition(to, surface)
	return to, nil
}
