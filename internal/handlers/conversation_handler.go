package handlers

import (
	"net/http"
	"time"

	"github.com/campus-skillshare/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// ConversationHandler handles direct messages
type ConversationHandler struct {
	heartbeat time.Duration
}

// NewConversationHandler creates a new ConversationHandler. heartbeat paces the
// keep-alive comments of the message stream.
func NewConversationHandler(heartbeat time.Duration) *ConversationHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &ConversationHandler{heartbeat: heartbeat}
}

// RegisterConversationRoutes registers conversation routes. :uid is the other participant.
func (h *ConversationHandler) RegisterConversationRoutes(g *echo.Group) {
	g.GET("/conversations", h.GetConversations)
	g.GET("/conversations/:uid", h.OpenConversation)
	g.GET("/conversations/:uid/messages", h.GetMessages)
	g.GET("/conversations/:uid/events", h.MessageEvents)
	g.POST("/conversations/:uid/messages", h.SendMessage)
	g.PUT("/conversations/:uid/title", h.SetTitle)
}

// GetConversations lists the caller's conversations, most recent first
func (h *ConversationHandler) GetConversations(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	views, err := s.Conversations(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"conversations": views})
}

// OpenConversation resolves the other participant and returns the message log
func (h *ConversationHandler) OpenConversation(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	partner, err := s.Partner(ctx, c.Param("uid"))
	if err != nil {
		return httpError(err)
	}
	messages, err := s.Messages(ctx, partner.UID)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{
		"chatId":   models.PairID(s.UID(), partner.UID),
		"partner":  partner,
		"messages": messages,
	})
}

func (h *ConversationHandler) GetMessages(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	messages, err := s.Messages(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"messages": messages})
}

// MessageEvents streams the conversation with :uid: one "messages" event with the
// log so far, then a "message" event per new message.
func (h *ConversationHandler) MessageEvents(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	batches, stop, err := s.WatchMessages(ctx, c.Param("uid"))
	if err != nil {
		return httpError(err)
	}
	defer stop()

	stream := openEventStream(c)
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return nil
			}
		case batch, open := <-batches:
			if !open {
				return nil
			}
			if batch.Backlog {
				if err := stream.send("", "messages", echo.Map{"messages": batch.Messages}); err != nil {
					return nil
				}
				continue
			}
			for _, msg := range batch.Messages {
				if err := stream.send(msg.ID, "message", msg); err != nil {
					return nil
				}
			}
		}
	}
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := s.SendMessage(c.Request().Context(), c.Param("uid"), req.Text)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusCreated, msg)
}

// SetTitle names the conversation for both participants; an empty title clears it
func (h *ConversationHandler) SetTitle(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	var req models.SetTitleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := s.SetTitle(c.Request().Context(), c.Param("uid"), req.Title); err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"title": req.Title})
}
