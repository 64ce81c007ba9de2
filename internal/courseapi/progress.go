package courseapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/educatodos/player-gateway/internal/domain"
	"go.uber.org/zap"
)

// upsert retry policy: 5xx answers only (the backend database occasionally
// locks up), 3 retries with exponential backoff
const (
	maxSaveRetries = 3
	baseRetryDelay = time.Second
)

var _ domain.ProgressRepository = &Client{}

// ListProgress fetch every progress record of the authenticated learner. An
// empty list is the normal state for new learners.
func (c *Client) ListProgress(ctx context.Context) ([]*domain.LessonProgress, error) {
	var records []*domain.LessonProgress
	if err := c.do(ctx, http.MethodGet, "/progress/", nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetLessonProgress fetch the learner's progress for one lesson. Returns
// domain.ErrNoRecord when the lesson was never touched.
func (c *Client) GetLessonProgress(ctx context.Context, lessonID int) (*domain.LessonProgress, error) {
	record := new(domain.LessonProgress)
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/progress/by-lesson/%d/", lessonID), nil, record)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && re.IsNotFound() {
			return nil, domain.ErrNoRecord
		}
		return nil, err
	}
	return record, nil
}

// SaveProgress upsert position and completed flag for a lesson. Transient
// server faults are retried at 1s, 2s and 4s; any other failure is returned
// after the first attempt.
func (c *Client) SaveProgress(ctx context.Context, record *domain.LessonProgress) error {
	payload := map[string]interface{}{
		"lesson":       record.Lesson,
		"current_time": record.CurrentTime,
		"completed":    record.Completed,
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = c.do(ctx, http.MethodPost, "/progress/update-progress/", payload, nil)
		if err == nil {
			return nil
		}

		var re *RemoteError
		if !errors.As(err, &re) || !re.IsServerFault() || attempt >= maxSaveRetries {
			return err
		}

		delay := baseRetryDelay << uint(attempt) // 1s, 2s, 4s
		c.logger.Warn("Progress save hit a server fault, retrying",
			zap.Int("lesson.id", record.Lesson),
			zap.Int("retry.attempt", attempt+1),
			zap.Duration("retry.delay", delay),
			zap.Int("http.response.status_code", re.StatusCode),
		)
		c.sleep(delay)
	}
}
