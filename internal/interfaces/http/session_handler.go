package http

import (
	"errors"
	"net/http"

	"github.com/educatodos/player-gateway/internal/courseapi"
	"github.com/educatodos/player-gateway/internal/domain"
	infra "github.com/educatodos/player-gateway/internal/infrastructure"
	"github.com/educatodos/player-gateway/internal/infrastructure/auth"
	"github.com/educatodos/player-gateway/internal/infrastructure/validate"
	"github.com/educatodos/player-gateway/internal/session"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// SessionHandler viewing session lifecycle endpoints
type SessionHandler struct {
	manager   *session.Manager
	jwtUtil   *auth.JWTUtil
	validator validate.Validator
}

func NewSessionHandler(manager *session.Manager, jwtUtil *auth.JWTUtil, validator validate.Validator) *SessionHandler {
	return &SessionHandler{manager, jwtUtil, validator}
}

// CreateSessionRequest open a viewing session for a course. Refresh is
// optional: without it the session cannot renew an expiring access token and
// long-running saves may start failing with 401.
type CreateSessionRequest struct {
	Course  int    `json:"course" validate:"required,min=1"`
	Lesson  int    `json:"lesson" validate:"omitempty,min=1"`
	Refresh string `json:"refresh"`
}

// HeartbeatRequest playback position report from the player
type HeartbeatRequest struct {
	Position int `json:"position" validate:"min=0"`
}

// NavigateRequest switch the session to another lesson
type NavigateRequest struct {
	Lesson int `json:"lesson" validate:"required,min=1"`
}

func (sh *SessionHandler) HandleCreateSession(c echo.Context) (err error) {
	post := new(CreateSessionRequest)
	if err = c.Bind(post); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, err.Error()))
	}
	if errs := sh.validator.Struct(post); errs != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTValidationError(http.StatusUnprocessableEntity, "Validation failed", errs))
	}

	claims := sh.jwtUtil.GetContextToken(c)
	access, err := sh.jwtUtil.ExtractToken(c)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}

	s, err := sh.manager.Create(c.Request().Context(), claims.UserID, access, post.Refresh, post.Course, post.Lesson)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, s.Snapshot())
}

func (sh *SessionHandler) HandleGetSession(c echo.Context) error {
	s, err := sh.session(c)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

func (sh *SessionHandler) HandleHeartbeat(c echo.Context) error {
	post := new(HeartbeatRequest)
	if err := c.Bind(post); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, err.Error()))
	}
	if errs := sh.validator.Struct(post); errs != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTValidationError(http.StatusUnprocessableEntity, "Validation failed", errs))
	}

	s, err := sh.session(c)
	if err != nil {
		return writeDomainError(c, err)
	}
	s.Heartbeat(post.Position)
	return c.NoContent(http.StatusNoContent)
}

func (sh *SessionHandler) HandleNavigate(c echo.Context) error {
	post := new(NavigateRequest)
	if err := c.Bind(post); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, err.Error()))
	}
	if errs := sh.validator.Struct(post); errs != nil {
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTValidationError(http.StatusUnprocessableEntity, "Validation failed", errs))
	}

	s, err := sh.session(c)
	if err != nil {
		return writeDomainError(c, err)
	}
	lesson, err := s.Navigate(post.Lesson)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, lesson)
}

func (sh *SessionHandler) HandleComplete(c echo.Context) error {
	s, err := sh.session(c)
	if err != nil {
		return writeDomainError(c, err)
	}
	completion, err := s.Complete(c.Request().Context())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, completion)
}

func (sh *SessionHandler) HandleCloseSession(c echo.Context) error {
	claims := sh.jwtUtil.GetContextToken(c)
	if err := sh.manager.Delete(c.Param("id"), claims.UserID); err != nil {
		return writeDomainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleEvents stream session events over a websocket until the session is
// torn down or the player disconnects
func (sh *SessionHandler) HandleEvents(c echo.Context) error {
	s, err := sh.session(c)
	if err != nil {
		return writeDomainError(c, err)
	}
	events := s.Events()
	return infra.WithHeartbeat(func(conn *websocket.Conn) error {
		ev, ok := <-events
		if !ok {
			return errors.New("session closed")
		}
		return conn.WriteJSON(ev)
	})(c)
}

func (sh *SessionHandler) session(c echo.Context) (*session.Session, error) {
	claims := sh.jwtUtil.GetContextToken(c)
	return sh.manager.Get(c.Param("id"), claims.UserID)
}

// writeDomainError translate core errors into transport answers. Backend
// faults surface as 502 so the player can distinguish gateway bugs from
// upstream trouble.
func writeDomainError(c echo.Context, err error) error {
	switch err {
	case domain.ErrSessionNotFound, domain.ErrLessonNotFound, domain.ErrNoRecord:
		return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, err.Error()))
	case domain.ErrCourseNotCompletable, domain.ErrCompletionInFlight:
		return c.JSON(http.StatusConflict, NewRESTStandardError(http.StatusConflict, err.Error()))
	}

	var re *courseapi.RemoteError
	if errors.As(err, &re) {
		switch {
		case re.IsNotFound():
			return c.JSON(http.StatusNotFound, NewRESTStandardError(http.StatusNotFound, re.Detail))
		case re.StatusCode == http.StatusUnauthorized || re.StatusCode == http.StatusForbidden:
			return c.JSON(re.StatusCode, NewRESTStandardError(re.StatusCode, re.Detail))
		default:
			return c.JSON(http.StatusBadGateway, NewRESTStandardError(http.StatusBadGateway, re.Error()))
		}
	}
	return err
}
