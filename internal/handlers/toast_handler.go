package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ToastHandler exposes the caller's live notifications
type ToastHandler struct {
	heartbeat time.Duration
}

// NewToastHandler creates a new ToastHandler. The event stream writes a comment
// every heartbeat to keep proxies from closing it.
func NewToastHandler(heartbeat time.Duration) *ToastHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &ToastHandler{heartbeat: heartbeat}
}

// RegisterToastRoutes registers toast routes
func (h *ToastHandler) RegisterToastRoutes(g *echo.Group) {
	g.GET("/toasts", h.GetToasts)
	g.DELETE("/toasts/:id", h.DismissToast)
	g.GET("/events", h.Events)
}

func (h *ToastHandler) GetToasts(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, echo.Map{"toasts": s.Toasts()})
}

// DismissToast closes a toast before its timeout
func (h *ToastHandler) DismissToast(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	if !s.DismissToast(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "Toast not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// Events streams every new toast as a "toast" event and the caller's conversation
// list as a "conversations" event each time it changes, until the client goes away
// or the session ends.
func (h *ToastHandler) Events(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	toasts, cancel := s.SubscribeToasts()
	defer cancel()
	convs, stop, err := s.WatchConversations(ctx)
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
		case toast, open := <-toasts:
			if !open {
				return nil
			}
			if err := stream.send(toast.ID, "toast", toast); err != nil {
				return nil
			}
		case views, open := <-convs:
			if !open {
				return nil
			}
			if err := stream.send("", "conversations", echo.Map{"conversations": views}); err != nil {
				return nil
			}
		}
	}
}
