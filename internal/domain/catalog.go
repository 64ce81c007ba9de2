package domain

import (
	"context"
)

// LessonAttachment file attached to a lesson, rendered by the player
type LessonAttachment struct {
	ID       int    `json:"id"`
	Title    string `json:"titulo"`
	File     string `json:"arquivo"`
	FileType string `json:"tipo_arquivo"`
	SizeKB   int    `json:"tamanho_kb"`
}

// Lesson smallest completable unit of course content
type Lesson struct {
	ID          int                 `json:"id"`
	Title       string              `json:"titulo"`
	Subtitle    string              `json:"subtitulo"`
	Description string              `json:"descricao"`
	Video       string              `json:"video"`
	DurationMin int                 `json:"duracao_minutos"`
	Order       int                 `json:"ordem"`
	Attachments []*LessonAttachment `json:"attachments"`
}

// Section ordered grouping of lessons within a course
type Section struct {
	ID      int       `json:"id"`
	Title   string    `json:"titulo"`
	Order   int       `json:"ordem"`
	Lessons []*Lesson `json:"lessons"`
}

type Course struct {
	ID         int        `json:"id"`
	Title      string     `json:"titulo"`
	Subtitle   string     `json:"subtitulo"`
	Summary    string     `json:"resumo"`
	Category   string     `json:"categoria"`
	Difficulty string     `json:"grau_dificuldade"`
	Image      string     `json:"imagem"`
	IsActive   bool       `json:"is_active"`
	Sections   []*Section `json:"sections"`
}

// CatalogRepository read access to the course catalog owned by the backend
type CatalogRepository interface {
	GetCourse(ctx context.Context, courseID int) (*Course, error)
}
