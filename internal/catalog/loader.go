package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/educatodos/player-gateway/internal/domain"
	"github.com/educatodos/player-gateway/internal/infrastructure/driver"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// Loader resolves course catalogs and the "current lesson" selection
type Loader struct {
	repo     domain.CatalogRepository
	kv       driver.KeyValueDB // nil disables caching
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewLoader create a Loader. kv may be nil.
func NewLoader(repo domain.CatalogRepository, kv driver.KeyValueDB, cacheTTL time.Duration, logger *zap.Logger) *Loader {
	return &Loader{
		repo:     repo,
		kv:       kv,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Load fetch a course catalog, immutable once loaded, so cache hits are
// served without touching the backend
func (l *Loader) Load(ctx context.Context, courseID int) (*domain.Course, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "Loader.Load", "service")
	defer apmSpan.End()

	if course := l.fromCache(courseID); course != nil {
		return course, nil
	}

	course, err := l.repo.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	sortCatalog(course)
	l.toCache(course)
	return course, nil
}

// CurrentLesson select the active lesson: the requested one when given, the
// first lesson in catalog order otherwise. A course without lessons yields
// nil, which callers must handle as a valid empty state.
func CurrentLesson(course *domain.Course, requestedID int) (*domain.Lesson, error) {
	if requestedID != 0 {
		lesson := FindLesson(course, requestedID)
		if lesson == nil {
			return nil, domain.ErrLessonNotFound
		}
		return lesson, nil
	}
	return FirstLesson(course), nil
}

// FirstLesson the first lesson by section order, then lesson order. Nil for
// an empty course.
func FirstLesson(course *domain.Course) *domain.Lesson {
	for _, section := range course.Sections {
		if len(section.Lessons) > 0 {
			return section.Lessons[0]
		}
	}
	return nil
}

// FindLesson locate a lesson by ID anywhere in the course
func FindLesson(course *domain.Course, lessonID int) *domain.Lesson {
	for _, section := range course.Sections {
		for _, lesson := range section.Lessons {
			if lesson.ID == lessonID {
				return lesson
			}
		}
	}
	return nil
}

// LessonIDs the completion universe of the course, in catalog order
func LessonIDs(course *domain.Course) []int {
	var ids []int
	for _, section := range course.Sections {
		for _, lesson := range section.Lessons {
			ids = append(ids, lesson.ID)
		}
	}
	return ids
}

// sortCatalog the backend serializes sections and lessons ordered, but ordem
// is the authoritative ordering
func sortCatalog(course *domain.Course) {
	sort.SliceStable(course.Sections, func(i, j int) bool {
		return course.Sections[i].Order < course.Sections[j].Order
	})
	for _, section := range course.Sections {
		lessons := section.Lessons
		sort.SliceStable(lessons, func(i, j int) bool {
			return lessons[i].Order < lessons[j].Order
		})
	}
}

func cacheKey(courseID int) string {
	return fmt.Sprintf("catalog:%d", courseID)
}

func (l *Loader) fromCache(courseID int) *domain.Course {
	if l.kv == nil {
		return nil
	}
	raw, err := l.kv.Get(cacheKey(courseID))
	if err != nil {
		return nil
	}
	course := new(domain.Course)
	if err := json.Unmarshal([]byte(raw), course); err != nil {
		l.logger.Warn("Dropping unreadable catalog cache entry", zap.Int("course.id", courseID), zap.Error(err))
		return nil
	}
	return course
}

func (l *Loader) toCache(course *domain.Course) {
	if l.kv == nil {
		return
	}
	raw, err := json.Marshal(course)
	if err != nil {
		return
	}
	if err := l.kv.SetEX(cacheKey(course.ID), string(raw), l.cacheTTL); err != nil {
		l.logger.Warn("Failed to cache catalog", zap.Int("course.id", course.ID), zap.Error(err))
	}
}
