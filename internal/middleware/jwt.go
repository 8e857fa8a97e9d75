package middleware

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/utils"
)

func bearer(c echo.Context) (string, bool) {
    auth := c.Request().Header.Get("Authorization")
    if !strings.HasPrefix(auth, "Bearer ") {
        return "", false
    }
    raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    return raw, raw != ""
}

func unauthorized(c echo.Context, msg string) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}

// JWTAuth validates a Bearer access token and stores the subject under
// ContextUserID.  Requests without a valid token get 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c)
            if !ok {
                return unauthorized(c, "missing bearer token")
            }
            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return unauthorized(c, "invalid token")
            }
            c.Set(ContextUserID, id)
            return next(c)
        }
    }
}

// OptionalJWT lets guests through without an identity.  A token that is
// present but invalid is still rejected so clients know to refresh.
func OptionalJWT(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := bearer(c)
            if !ok {
                return next(c)
            }
            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return unauthorized(c, "invalid token")
            }
            c.Set(ContextUserID, id)
            return next(c)
        }
    }
}
