// Package http exposes the chat service over HTTP with echo. Streaming turns
// are delivered as server-sent events.
//
// The server does not authenticate users. The X-User-ID header is taken as
// the caller's identity as is, so the server must run behind an
// authenticating proxy that sets the header and strips any value supplied by
// the client. Guest tokens are only checked to be UUIDs.
package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Identity headers.
const (
	HeaderUserID     = "X-User-ID"
	HeaderGuestToken = "X-Guest-Token"
)

const refKey = "relay.session_ref"

// Server serves the chat API. Requests for the same session are serialized.
type Server struct {
	echo   *echo.Echo
	chat   relay.ChatService
	locks  *keyedMutex
	logger *slog.Logger
	newID  func() string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator overrides guest token generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Server) { s.newID = f }
}

// NewServer creates a Server for svc.
func NewServer(svc relay.ChatService, opts ...Option) *Server {
	s := &Server{
		echo:   echo.New(),
		chat:   svc,
		locks:  newKeyedMutex(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.LogAttrs(c.Request().Context(), slog.LevelInfo, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.POST("/v1/guest", s.handleCreateGuest)
	s.echo.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	v1 := s.echo.Group("/v1", s.identify)
	v1.POST("/messages", s.handleSendMessage)
	v1.POST("/messages/stream", s.handleStreamMessage)
	v1.DELETE("/conversation", s.handleReset)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// identify resolves the session from the identity headers. A user id wins
// over a guest token. The user id is trusted; see the package doc.
func (s *Server) identify(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		h := c.Request().Header
		if id := strings.TrimSpace(h.Get(HeaderUserID)); id != "" {
			c.Set(refKey, relay.SessionRef{ID: id, Kind: relay.Authenticated})
			return next(c)
		}
		token := strings.TrimSpace(h.Get(HeaderGuestToken))
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
		}
		if _, err := uuid.Parse(token); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid guest token")
		}
		c.Set(refKey, relay.SessionRef{ID: token, Kind: relay.Guest})
		return next(c)
	}
}

func sessionRef(c echo.Context) relay.SessionRef {
	ref, _ := c.Get(refKey).(relay.SessionRef)
	return ref
}

// lock serializes requests for the session of c until the returned function
// is called.
func (s *Server) lock(c echo.Context) (func(), error) {
	ref := sessionRef(c)
	unlock, err := s.locks.Lock(c.Request().Context(), string(ref.Kind)+":"+ref.ID)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusRequestTimeout, "request cancelled")
	}
	return unlock, nil
}
