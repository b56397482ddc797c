package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/campus-skillshare/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// ActivityHandler pages through the caller's reconciliation and message journal
type ActivityHandler struct {
	activityRepository repositories.ActivityRepository
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activityRepo repositories.ActivityRepository) *ActivityHandler {
	return &ActivityHandler{activityRepository: activityRepo}
}

// RegisterActivityRoutes registers activity routes
func (h *ActivityHandler) RegisterActivityRoutes(g *echo.Group) {
	g.GET("/activity", h.GetActivity)
	g.GET("/activity/failed", h.GetFailed)
}

// GetActivity returns paginated journal entries, newest first
func (h *ActivityHandler) GetActivity(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}

	entries, total, err := h.activityRepository.GetByUser(s.UID(), page, limit)
	if err != nil {
		return httpError(err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"activity": entries,
		},
		"meta": echo.Map{
			"currentPage":     page,
			"totalPages":      totalPages,
			"totalItems":      total,
			"itemsPerPage":    limit,
			"hasNextPage":     page < totalPages,
			"hasPreviousPage": page > 1,
		},
	})
}

// GetFailed lists recent failed actions, the ones a user may want to retry
func (h *ActivityHandler) GetFailed(c echo.Context) error {
	s, err := currentSession(c)
	if err != nil {
		return err
	}
	entries, err := h.activityRepository.GetFailed(s.UID(), 20)
	if err != nil {
		return httpError(err)
	}
	return ok(c, http.StatusOK, echo.Map{"activity": entries})
}
