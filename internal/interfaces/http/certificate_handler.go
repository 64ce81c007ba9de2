package http

import (
	"net/http"
	"time"

	"github.com/educatodos/player-gateway/internal/courseapi"
	"github.com/educatodos/player-gateway/internal/infrastructure/auth"
	"github.com/educatodos/player-gateway/internal/infrastructure/logging"
	"github.com/labstack/echo/v4"
)

// CertificateHandler pass-through endpoints for the certificates pages.
// Stateless: each request gets a backend client bound to its own bearer
// token.
type CertificateHandler struct {
	backendBaseURL string
	backendTimeout time.Duration
	jwtUtil        *auth.JWTUtil
}

func NewCertificateHandler(backendBaseURL string, backendTimeout time.Duration, jwtUtil *auth.JWTUtil) *CertificateHandler {
	return &CertificateHandler{backendBaseURL, backendTimeout, jwtUtil}
}

func (ch *CertificateHandler) HandleListCertificates(c echo.Context) error {
	client, err := ch.client(c)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}
	completions, err := client.ListCompletions(c.Request().Context())
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, completions)
}

func (ch *CertificateHandler) HandleGetCertificate(c echo.Context) error {
	client, err := ch.client(c)
	if err != nil {
		return c.NoContent(http.StatusUnauthorized)
	}
	completion, err := client.GetCompletionByCode(c.Request().Context(), c.Param("code"))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, completion)
}

func (ch *CertificateHandler) client(c echo.Context) (*courseapi.Client, error) {
	access, err := ch.jwtUtil.ExtractToken(c)
	if err != nil {
		return nil, err
	}
	logger := logging.ExtractLoggerFromContext(c.Request().Context())
	return courseapi.NewClient(ch.backendBaseURL, ch.backendTimeout, auth.NewStaticTokenSource(access), logger), nil
}
