package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const defaultHeartbeat = 25 * time.Second

// eventStream writes server-sent events to one response
type eventStream struct {
	res *echo.Response
}

func openEventStream(c echo.Context) *eventStream {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()
	return &eventStream{res: res}
}

// send writes one event; id may be empty
func (s *eventStream) send(id, event string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if id != "" {
		if _, err := fmt.Fprintf(s.res, "id: %s\n", id); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.res, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	s.res.Flush()
	return nil
}

// ping writes a comment so proxies keep the stream open
func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.res, ": ping\n\n"); err != nil {
		return err
	}
	s.res.Flush()
	return nil
}
