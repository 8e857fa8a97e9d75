package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/handler"
    "github.com/iliyamo/notes-marketplace/internal/middleware"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
    Auth      *handler.AuthHandler
    Notes     *handler.NoteHandler
    Purchases *handler.PurchaseHandler
    Comments  *handler.CommentHandler
    Profile   *handler.ProfileHandler
    Ready     echo.HandlerFunc // optional readiness probe
}

// Guards holds the cross-cutting middleware applied per route group.  Nil
// entries are skipped.
type Guards struct {
    JWTSecret     string
    RateLimit     echo.MiddlewareFunc // public reads
    AuthRateLimit echo.MiddlewareFunc // credential endpoints
    SearchCache   echo.MiddlewareFunc
}

func chain(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
    out := make([]echo.MiddlewareFunc, 0, len(mws))
    for _, m := range mws {
        if m != nil {
            out = append(out, m)
        }
    }
    return out
}

// Register wires all routes onto e.
func Register(e *echo.Echo, h Handlers, g Guards) {
    RegisterRoutes(e, h.Ready)
    RegisterAuth(e, h.Auth, g)
    RegisterNotes(e, h, g)
    RegisterAccount(e, h.Profile, h.Notes, g.JWTSecret)
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, ready echo.HandlerFunc) {
    e.GET("/healthz", handler.Health)
    if ready != nil {
        e.GET("/readyz", ready)
    }
}

// RegisterAuth registers /v1/auth.  Register, login and refresh are rate
// limited per client IP; logout accepts an optional access token so a
// caller without a refresh token can end all of its sessions.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, g Guards) {
    grp := e.Group("/v1/auth")
    limited := chain(g.AuthRateLimit)
    grp.POST("/register", a.Register, limited...)
    grp.POST("/login", a.Login, limited...)
    grp.POST("/refresh", a.Refresh, limited...)
    grp.POST("/logout", a.Logout, middleware.OptionalJWT(g.JWTSecret))
}
