package domain

import "errors"

// ErrNoRecord the backend has no record yet, a normal state for new learners
var ErrNoRecord = errors.New("No record exists yet")

// ErrCourseNotCompletable the completion gate is not satisfied
var ErrCourseNotCompletable = errors.New("Not every lesson in the course is completed")

// ErrCompletionInFlight a completion submission is already running
var ErrCompletionInFlight = errors.New("Course completion is already in flight")

// ErrLessonNotFound the requested lesson is not part of the course
var ErrLessonNotFound = errors.New("Lesson does not belong to the course")

// ErrSessionNotFound no live viewing session with the given ID
var ErrSessionNotFound = errors.New("Viewing session not found or expired")
