package middleware

import "github.com/labstack/echo/v4"

// actorID is the authenticated subject, or "anon" before JWTAuth ran.
func actorID(c echo.Context) string {
	if s, ok := c.Get(KeyUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
