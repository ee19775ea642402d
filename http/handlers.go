package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fwojciec/relay"
	"github.com/labstack/echo/v4"
)

type messageRequest struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type guestResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleCreateGuest(c echo.Context) error {
	return c.JSON(http.StatusCreated, guestResponse{Token: s.newID()})
}

func bindMessage(c echo.Context) (string, error) {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	return req.Message, nil
}

// POST /v1/messages
func (s *Server) handleSendMessage(c echo.Context) error {
	text, err := bindMessage(c)
	if err != nil {
		return err
	}
	unlock, err := s.lock(c)
	if err != nil {
		return err
	}
	defer unlock()

	reply, err := s.chat.SendMessage(c.Request().Context(), sessionRef(c), text)
	if err != nil {
		if errors.Is(err, relay.ErrValidation) {
			return c.JSON(http.StatusBadRequest, messageResponse{Text: reply, Error: "invalid_request"})
		}
		return c.JSON(http.StatusInternalServerError, messageResponse{Text: reply, Error: "turn_failed"})
	}
	return c.JSON(http.StatusOK, messageResponse{Text: reply})
}

// POST /v1/messages/stream
func (s *Server) handleStreamMessage(c echo.Context) error {
	text, err := bindMessage(c)
	if err != nil {
		return err
	}
	unlock, err := s.lock(c)
	if err != nil {
		return err
	}
	defer unlock()

	ctx := c.Request().Context()
	updates := s.chat.StreamMessage(ctx, sessionRef(c), text)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	for u := range updates {
		if err := writeEvent(res, u); err != nil {
			// Drain so the turn can finish without a reader.
			for range updates {
			}
			return nil
		}
	}
	return nil
}

// DELETE /v1/conversation
func (s *Server) handleReset(c echo.Context) error {
	unlock, err := s.lock(c)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.chat.ResetConversation(c.Request().Context(), sessionRef(c)); err != nil {
		s.logger.ErrorContext(c.Request().Context(), "reset failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "reset failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// writeEvent writes u as one server-sent event and flushes it.
func writeEvent(res *echo.Response, u relay.Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("marshal update: %w", err)
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", u.Type, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
