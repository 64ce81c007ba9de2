package courseapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/educatodos/player-gateway/internal/domain"
)

var _ domain.CompletionRepository = &Client{}

// GetCourseCompletion fetch the completion record for a course. Returns
// domain.ErrNoRecord while the course is unfinished.
func (c *Client) GetCourseCompletion(ctx context.Context, courseID int) (*domain.CourseCompletion, error) {
	completion := new(domain.CourseCompletion)
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/completions/by-course/%d/", courseID), nil, completion)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && re.IsNotFound() {
			return nil, domain.ErrNoRecord
		}
		return nil, err
	}
	return completion, nil
}

// CompleteCourse submit the completion request. No automatic retry: the
// caller reports the failure and lets the learner retry manually.
func (c *Client) CompleteCourse(ctx context.Context, courseID int) (*domain.CourseCompletion, error) {
	payload := map[string]interface{}{"course": courseID}
	completion := new(domain.CourseCompletion)
	if err := c.do(ctx, http.MethodPost, "/completions/complete-course/", payload, completion); err != nil {
		return nil, err
	}
	return completion, nil
}

// ListCompletions fetch every certificate the learner has earned
func (c *Client) ListCompletions(ctx context.Context) ([]*domain.CourseCompletion, error) {
	var completions []*domain.CourseCompletion
	if err := c.do(ctx, http.MethodGet, "/completions/", nil, &completions); err != nil {
		return nil, err
	}
	return completions, nil
}

// GetCompletionByCode look a certificate up by its public code
func (c *Client) GetCompletionByCode(ctx context.Context, code string) (*domain.CourseCompletion, error) {
	completion := new(domain.CourseCompletion)
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/completions/by-code/%s/", code), nil, completion)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && re.IsNotFound() {
			return nil, domain.ErrNoRecord
		}
		return nil, err
	}
	return completion, nil
}
