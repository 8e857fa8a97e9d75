package middleware

// identity.go holds the request identity helpers shared by the auth,
// rate limit and handler layers.  JWTAuth and OptionalJWT store the
// authenticated user id under ContextUserID as a uint64.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// ContextUserID is the echo context key holding the authenticated user id.
const ContextUserID = "user_id"

// UserID returns the authenticated user id, or 0 for guests.
func UserID(c echo.Context) uint64 {
    if v, ok := c.Get(ContextUserID).(uint64); ok {
        return v
    }
    return 0
}

// identityKey renders the caller for rate limit keys.
func identityKey(c echo.Context) string {
    if id := UserID(c); id != 0 {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
