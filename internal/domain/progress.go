package domain

import (
	"context"
)

// LessonProgress one record per (learner, lesson), upserted on every save
type LessonProgress struct {
	ID          int    `json:"id,omitempty"`
	Lesson      int    `json:"lesson"`
	CurrentTime int    `json:"current_time"`
	Completed   bool   `json:"completed"`
	LastWatched string `json:"last_watched,omitempty"`
}

// CourseCompletion immutable record created once the completion gate is
// satisfied and the backend accepts the submission
type CourseCompletion struct {
	ID               int     `json:"id,omitempty"`
	User             int     `json:"user,omitempty"`
	UserName         string  `json:"user_name,omitempty"`
	Course           int     `json:"course"`
	CourseTitle      string  `json:"course_title,omitempty"`
	CourseImage      string  `json:"course_image,omitempty"`
	CourseCategory   string  `json:"course_category,omitempty"`
	CourseDifficulty string  `json:"course_difficulty,omitempty"`
	CompletedAt      string  `json:"completed_at"`
	CertificateCode  string  `json:"certificate_code"`
	TotalHours       float64 `json:"total_hours"`
}

// ProgressRepository persistence for lesson progress records.
//
// GetLessonProgress returns ErrNoRecord when the learner has never touched
// the lesson; callers treat that as a normal empty state.
type ProgressRepository interface {
	ListProgress(ctx context.Context) ([]*LessonProgress, error)
	GetLessonProgress(ctx context.Context, lessonID int) (*LessonProgress, error)
	SaveProgress(ctx context.Context, record *LessonProgress) error
}

// CompletionRepository course completion records and certificates.
//
// GetCourseCompletion returns ErrNoRecord while the course is unfinished.
type CompletionRepository interface {
	GetCourseCompletion(ctx context.Context, courseID int) (*CourseCompletion, error)
	CompleteCourse(ctx context.Context, courseID int) (*CourseCompletion, error)
	ListCompletions(ctx context.Context) ([]*CourseCompletion, error)
	GetCompletionByCode(ctx context.Context, code string) (*CourseCompletion, error)
}

// MediaSurface playable media attached to the active lesson. Position is the
// last playback second reported by the player, Seek pushes the player to a
// saved position.
type MediaSurface interface {
	Position() int
	Seek(seconds int)
}
