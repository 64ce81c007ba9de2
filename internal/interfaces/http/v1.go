package http

import (
	"github.com/labstack/echo/v4"
)

func v1Endpoint(
	SessionHandler *SessionHandler,
	CertificateHandler *CertificateHandler,
	jwtMiddleware echo.MiddlewareFunc,
	requestIDMiddleware echo.MiddlewareFunc,
	traceLoggerMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{requestIDMiddleware, traceLoggerMiddleware},
		groups: []*apiGroup{
			{
				prefix:      "/sessions",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware},
				routes: []*route{
					{"POST", "/", SessionHandler.HandleCreateSession, nil},
					{"GET", "/:id", SessionHandler.HandleGetSession, nil},
					{"DELETE", "/:id", SessionHandler.HandleCloseSession, nil},
					{"POST", "/:id/heartbeat", SessionHandler.HandleHeartbeat, nil},
					{"POST", "/:id/navigate", SessionHandler.HandleNavigate, nil},
					{"POST", "/:id/complete", SessionHandler.HandleComplete, nil},
				},
			},
			{
				prefix:      "/certificates",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware},
				routes: []*route{
					{"GET", "/", CertificateHandler.HandleListCertificates, nil},
					{"GET", "/:code", CertificateHandler.HandleGetCertificate, nil},
				},
			},
			{
				prefix:      "/ws",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware},
				routes: []*route{
					{"GET", "/sessions/:id", SessionHandler.HandleEvents, nil},
				},
			},
		},
	}
}
