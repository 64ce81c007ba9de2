package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/educatodos/player-gateway/internal/domain"
	"github.com/educatodos/player-gateway/internal/infrastructure/auth"
	"github.com/educatodos/player-gateway/internal/infrastructure/uuid"
	"github.com/educatodos/player-gateway/internal/infrastructure/validate"
	"github.com/educatodos/player-gateway/internal/session"
	"github.com/educatodos/player-gateway/internal/tracker"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func backendCourse() *domain.Course {
	return &domain.Course{
		ID:    10,
		Title: "Go para web",
		Sections: []*domain.Section{
			{ID: 1, Order: 1, Lessons: []*domain.Lesson{
				{ID: 1, Order: 1, Title: "Introdução"},
				{ID: 2, Order: 2, Title: "Handlers"},
			}},
		},
	}
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/courses/10/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(backendCourse())
	})
	mux.HandleFunc("/progress/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*domain.LessonProgress{})
	})
	mux.HandleFunc("/progress/by-lesson/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/completions/by-course/10/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/completions/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*domain.CourseCompletion{
			{Course: 10, CertificateCode: "CERT-AB12CD34EF56"},
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

type handlerFixture struct {
	app     *echo.Echo
	manager *session.Manager
	jwtUtil *auth.JWTUtil
	handler *SessionHandler
}

func newHandlerFixture(backendURL string) *handlerFixture {
	jwtUtil := auth.NewJWTUtil("HS256", "secret")
	manager := session.NewManager(&session.ManagerConfig{
		BackendBaseURL: backendURL,
		BackendTimeout: 5 * time.Second,
		SessionTTL:     30 * time.Minute,
	}, uuid.NewNanoIDGenerator(12), nil, tracker.NewTicker, zap.NewNop())
	return &handlerFixture{
		app:     echo.New(),
		manager: manager,
		jwtUtil: jwtUtil,
		handler: NewSessionHandler(manager, jwtUtil, validate.NewValidator()),
	}
}

func (f *handlerFixture) close() {
	f.manager.Close()
}

// request build an authenticated echo context the way the jwt middleware
// leaves it
func (f *handlerFixture) request(method, body string, userID int, sessionID string) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer access-token")

	rec := httptest.NewRecorder()
	c := f.app.NewContext(req, rec)
	f.jwtUtil.SetContextToken(c, &auth.AppTokenClaims{UserID: userID, TokenType: "access"})
	if sessionID != "" {
		c.SetParamNames("id")
		c.SetParamValues(sessionID)
	}
	return c, rec
}

func (f *handlerFixture) createSession(t *testing.T, userID int) string {
	t.Helper()
	c, rec := f.request(http.MethodPost, `{"course":10}`, userID, "")
	assert.NoError(t, f.handler.HandleCreateSession(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var state session.State
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	return state.ID
}

func Test_HandleCreateSession(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	c, rec := f.request(http.MethodPost, `{"course":10}`, 7, "")
	assert.NoError(t, f.handler.HandleCreateSession(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var state session.State
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.NotEmpty(t, state.ID)
	assert.Equal(t, 1, state.CurrentLesson)
	assert.Equal(t, "Go para web", state.Course.Title)
}

func Test_HandleCreateSession_Validation(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	c, rec := f.request(http.MethodPost, `{}`, 7, "")
	assert.NoError(t, f.handler.HandleCreateSession(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body RESTValidationError
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.InvalidParams, 1)
	assert.Equal(t, "course", body.InvalidParams[0].Domain)
}

func Test_HandleCreateSession_UnknownEntryLesson(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	c, rec := f.request(http.MethodPost, `{"course":10,"lesson":99}`, 7, "")
	assert.NoError(t, f.handler.HandleCreateSession(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_HandleCreateSession_BackendCourseMissing(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	c, rec := f.request(http.MethodPost, `{"course":77}`, 7, "")
	assert.NoError(t, f.handler.HandleCreateSession(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_HandleGetSession(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	id := f.createSession(t, 7)

	c, rec := f.request(http.MethodGet, "", 7, id)
	assert.NoError(t, f.handler.HandleGetSession(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// another learner cannot read the session
	c, rec = f.request(http.MethodGet, "", 8, id)
	assert.NoError(t, f.handler.HandleGetSession(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_HandleHeartbeat(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	id := f.createSession(t, 7)

	c, rec := f.request(http.MethodPost, `{"position":95}`, 7, id)
	assert.NoError(t, f.handler.HandleHeartbeat(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = f.request(http.MethodPost, `{"position":-1}`, 7, id)
	assert.NoError(t, f.handler.HandleHeartbeat(c))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	c, rec = f.request(http.MethodPost, `{"position":95}`, 7, "missing")
	assert.NoError(t, f.handler.HandleHeartbeat(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_HandleNavigate(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	id := f.createSession(t, 7)

	c, rec := f.request(http.MethodPost, `{"lesson":2}`, 7, id)
	assert.NoError(t, f.handler.HandleNavigate(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var lesson domain.Lesson
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lesson))
	assert.Equal(t, "Handlers", lesson.Title)

	c, rec = f.request(http.MethodPost, `{"lesson":99}`, 7, id)
	assert.NoError(t, f.handler.HandleNavigate(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_HandleComplete_GateUnsatisfied(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	id := f.createSession(t, 7)

	c, rec := f.request(http.MethodPost, "", 7, id)
	assert.NoError(t, f.handler.HandleComplete(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func Test_HandleCloseSession(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()
	f := newHandlerFixture(backend.URL)
	defer f.close()

	id := f.createSession(t, 7)

	c, rec := f.request(http.MethodDelete, "", 7, id)
	assert.NoError(t, f.handler.HandleCloseSession(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	c, rec = f.request(http.MethodGet, "", 7, id)
	assert.NoError(t, f.handler.HandleGetSession(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_HandleEvents_StreamsSessionEvents(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/courses/10/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(backendCourse())
	})
	mux.HandleFunc("/progress/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*domain.LessonProgress{})
	})
	// a saved position on the entry lesson makes the session push a seek
	// right after creation
	mux.HandleFunc("/progress/by-lesson/1/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&domain.LessonProgress{Lesson: 1, CurrentTime: 37})
	})
	mux.HandleFunc("/progress/by-lesson/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/completions/by-course/10/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	backend := httptest.NewServer(mux)
	defer backend.Close()

	f := newHandlerFixture(backend.URL)
	defer f.close()
	id := f.createSession(t, 7)

	f.app.GET("/ws/sessions/:id", func(c echo.Context) error {
		f.jwtUtil.SetContextToken(c, &auth.AppTokenClaims{UserID: 7, TokenType: "access"})
		return f.handler.HandleEvents(c)
	})
	server := httptest.NewServer(f.app)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/sessions/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev session.Event
	assert.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, session.EventSeek, ev.Type)
	assert.Equal(t, 37, ev.Seconds)
}

func Test_HandleListCertificates(t *testing.T) {
	backend := newBackend(t)
	defer backend.Close()

	ch := NewCertificateHandler(backend.URL, 5*time.Second, auth.NewJWTUtil("HS256", "secret"))
	app := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer access-token")
	rec := httptest.NewRecorder()
	assert.NoError(t, ch.HandleListCertificates(app.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var completions []*domain.CourseCompletion
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completions))
	assert.Len(t, completions, 1)
	assert.Equal(t, "CERT-AB12CD34EF56", completions[0].CertificateCode)

	// no bearer credential, no pass-through
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	assert.NoError(t, ch.HandleListCertificates(app.NewContext(req, rec)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
