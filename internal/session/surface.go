package session

import (
	"sync"

	"github.com/educatodos/player-gateway/internal/domain"
)

// remoteSurface MediaSurface proxied over the API: the player reports its
// playback position through heartbeats and receives seeks as pushed events
type remoteSurface struct {
	mu       sync.Mutex
	position int
	emit     func(Event)
}

var _ domain.MediaSurface = &remoteSurface{}

func (s *remoteSurface) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *remoteSurface) Seek(seconds int) {
	s.emit(Event{Type: EventSeek, Seconds: seconds})
}

// report record the position carried by a heartbeat
func (s *remoteSurface) report(seconds int) {
	s.mu.Lock()
	s.position = seconds
	s.mu.Unlock()
}

// reset zero the position when the active lesson changes
func (s *remoteSurface) reset() {
	s.mu.Lock()
	s.position = 0
	s.mu.Unlock()
}
