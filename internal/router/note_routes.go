package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/middleware"
)

// RegisterNotes registers browsing, note management, purchase and
// comment routes.  Search and detail are open to guests; everything that
// writes requires a valid access token.
func RegisterNotes(e *echo.Echo, h Handlers, g Guards) {
    optional := middleware.OptionalJWT(g.JWTSecret)
    required := middleware.JWTAuth(g.JWTSecret)

    e.GET("/v1/notes/search", h.Notes.Search, chain(g.RateLimit, g.SearchCache)...)
    e.GET("/v1/notes/:id", h.Notes.Detail, chain(optional, g.RateLimit)...)
    e.GET("/v1/notes/:id/comments", h.Comments.List, chain(optional, g.RateLimit)...)

    grp := e.Group("/v1", required)
    grp.GET("/notes/:id/document", h.Notes.Document)
    grp.POST("/notes", h.Notes.Upload)
    grp.PUT("/notes/:id", h.Notes.Edit)
    grp.DELETE("/notes/:id", h.Notes.Delete)

    grp.POST("/notes/:id/purchase", h.Purchases.PurchaseNote)
    grp.POST("/purchases", h.Purchases.Purchase)

    grp.POST("/notes/:id/comments", h.Comments.Create)
    grp.POST("/comments", h.Comments.Create)
}
