package handlers

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

// RateLimiter is the minimal interface required to guard sensitive endpoints.
type RateLimiter interface {
	Allow(key string) bool
}

func allowRequest(limiter RateLimiter, c echo.Context, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(rateLimitKey(c, scope))
}

func rateLimitKey(c echo.Context, scope string) string {
	ip := c.RealIP()
	if scope == "" {
		return ip
	}
	return fmt.Sprintf("%s:%s", scope, ip)
}
