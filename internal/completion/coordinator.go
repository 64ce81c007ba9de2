package completion

import (
	"context"
	"sync"

	"github.com/educatodos/player-gateway/internal/catalog"
	"github.com/educatodos/player-gateway/internal/domain"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// Coordinator gate-checked, exactly-once course completion submission
type Coordinator struct {
	completions domain.CompletionRepository
	logger      *zap.Logger

	mu       sync.Mutex
	inFlight bool
}

// NewCoordinator .
func NewCoordinator(completions domain.CompletionRepository, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		completions: completions,
		logger:      logger,
	}
}

// AlreadyCompleted mount-time existence check. Returns nil without error
// while the course is unfinished.
func (co *Coordinator) AlreadyCompleted(ctx context.Context, courseID int) (*domain.CourseCompletion, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Coordinator.AlreadyCompleted", "service")
	defer apmSpan.End()

	completion, err := co.completions.GetCourseCompletion(ctx, courseID)
	if err == domain.ErrNoRecord {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// CompleteCourse submit the completion request once the gate is satisfied.
// The in-flight guard rejects a second submission while one is running;
// submission errors are surfaced for user-visible reporting, never retried
// automatically.
func (co *Coordinator) CompleteCourse(ctx context.Context, course *domain.Course, completed map[int]bool) (*domain.CourseCompletion, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Coordinator.CompleteCourse", "service")
	defer apmSpan.End()

	if !GateSatisfied(catalog.LessonIDs(course), completed) {
		return nil, domain.ErrCourseNotCompletable
	}

	co.mu.Lock()
	if co.inFlight {
		co.mu.Unlock()
		return nil, domain.ErrCompletionInFlight
	}
	co.inFlight = true
	co.mu.Unlock()
	defer func() {
		co.mu.Lock()
		co.inFlight = false
		co.mu.Unlock()
	}()

	completion, err := co.completions.CompleteCourse(ctx, course.ID)
	if err != nil {
		co.logger.Error("Course completion submission failed", zap.Int("course.id", course.ID), zap.Error(err))
		return nil, err
	}

	co.logger.Info("Course completed",
		zap.Int("course.id", course.ID),
		zap.String("certificate.code", completion.CertificateCode),
	)
	return completion, nil
}
