package session

import (
	"context"
	"sync"
	"time"

	"github.com/educatodos/player-gateway/internal/catalog"
	"github.com/educatodos/player-gateway/internal/courseapi"
	"github.com/educatodos/player-gateway/internal/domain"
	"github.com/educatodos/player-gateway/internal/infrastructure/auth"
	"github.com/educatodos/player-gateway/internal/infrastructure/driver"
	"github.com/educatodos/player-gateway/internal/infrastructure/uuid"
	"github.com/educatodos/player-gateway/internal/tracker"
	"go.uber.org/zap"
)

// ManagerConfig wiring options for the session registry
type ManagerConfig struct {
	BackendBaseURL  string
	BackendTimeout  time.Duration
	AuthRefreshURL  string
	SessionTTL      time.Duration
	CatalogCacheTTL time.Duration
}

// Manager registry of live viewing sessions, keyed by generated session ID.
// Each session carries its own backend client bound to the credentials of
// the learner that opened it.
type Manager struct {
	cfg       *ManagerConfig
	idgen     uuid.Generator
	kv        driver.KeyValueDB // nil disables catalog caching
	newTicker tracker.TickerFactory
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	stopReaper chan struct{}
}

// NewManager create a Manager and start its idle-session reaper
func NewManager(cfg *ManagerConfig, idgen uuid.Generator, kv driver.KeyValueDB,
	newTicker tracker.TickerFactory, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:        cfg,
		idgen:      idgen,
		kv:         kv,
		newTicker:  newTicker,
		logger:     logger,
		sessions:   map[string]*Session{},
		stopReaper: make(chan struct{}),
	}
	go m.reapLoop()
	return m
}

// Create open a viewing session for (learner, course). lessonID of zero
// selects the first lesson. A catalog failure is blocking: no session is
// created.
func (m *Manager) Create(ctx context.Context, userID int, access, refresh string, courseID, lessonID int) (*Session, error) {
	id, err := m.idgen.Generate()
	if err != nil {
		return nil, err
	}

	logger := m.logger.With(zap.String("session.id", id), zap.Int("user.id", userID), zap.Int("course.id", courseID))

	var tokens auth.TokenSource
	if refresh != "" && m.cfg.AuthRefreshURL != "" {
		tokens = auth.NewRefreshTokenSource(access, refresh, m.cfg.AuthRefreshURL, nil)
	} else {
		tokens = auth.NewStaticTokenSource(access)
	}
	client := courseapi.NewClient(m.cfg.BackendBaseURL, m.cfg.BackendTimeout, tokens, logger)
	loader := catalog.NewLoader(client, m.kv, m.cfg.CatalogCacheTTL, logger)

	course, err := loader.Load(ctx, courseID)
	if err != nil {
		return nil, err
	}

	s := newSession(id, userID, course, client, client, m.newTicker, logger)
	if err := s.start(ctx, lessonID); err != nil {
		s.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	logger.Info("Viewing session opened")
	return s, nil
}

// Get fetch a live session; learners only see their own sessions
func (m *Manager) Get(id string, userID int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Delete tear a session down and drop it from the registry
func (m *Manager) Delete(id string, userID int) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		m.mu.Unlock()
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Close()
	m.logger.Info("Viewing session closed", zap.String("session.id", id))
	return nil
}

// Len number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stop the reaper and tear down every live session
func (m *Manager) Close() {
	close(m.stopReaper)
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (m *Manager) reapLoop() {
	interval := m.cfg.SessionTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopReaper:
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

func (m *Manager) reapIdle() {
	deadline := time.Now().Add(-m.cfg.SessionTTL)
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(deadline) {
			delete(m.sessions, id)
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		m.logger.Info("Evicted idle viewing session", zap.String("session.id", s.ID))
	}
}
