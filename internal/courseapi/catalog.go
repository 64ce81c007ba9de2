package courseapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/educatodos/player-gateway/internal/domain"
)

var _ domain.CatalogRepository = &Client{}

// GetCourse fetch a course with its sections and lessons. A catalog failure
// has no degraded mode, so any error is returned untouched for the caller to
// surface.
func (c *Client) GetCourse(ctx context.Context, courseID int) (*domain.Course, error) {
	course := new(domain.Course)
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/courses/%d/", courseID), nil, course); err != nil {
		return nil, err
	}
	return course, nil
}
