package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/handler"
    "github.com/iliyamo/notes-marketplace/internal/middleware"
)

// RegisterAccount registers the caller's own resources under /v1.  All
// routes require a valid JWT.
func RegisterAccount(e *echo.Echo, p *handler.ProfileHandler, n *handler.NoteHandler, jwtSecret string) {
    g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
    g.GET("/profile", p.Get)
    g.PUT("/profile", p.Update)
    g.POST("/withdrawals", p.Withdraw)
    g.GET("/me/notes", n.Mine)
    g.GET("/me/purchases", n.Purchased)
}
