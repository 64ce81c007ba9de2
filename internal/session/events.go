package session

// event types pushed to the player
const (
	EventLessonCompleted   = "lesson_completed"
	EventCourseCompletable = "course_completable"
	EventCourseCompleted   = "course_completed"
	EventSeek              = "seek"
)

// Event notification pushed to the player over the session event stream
type Event struct {
	Type            string `json:"type"`
	LessonID        int    `json:"lesson_id,omitempty"`
	Seconds         int    `json:"seconds,omitempty"`
	CertificateCode string `json:"certificate_code,omitempty"`
}
