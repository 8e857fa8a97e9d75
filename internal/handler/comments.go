package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/middleware"
    "github.com/iliyamo/notes-marketplace/internal/service"
)

// CommentHandler serves ratings and comments.
type CommentHandler struct {
    Comments *service.CommentService
}

func NewCommentHandler(s *service.CommentService) *CommentHandler {
    if s == nil {
        panic("nil comment service passed to NewCommentHandler")
    }
    return &CommentHandler{Comments: s}
}

type commentReq struct {
    NoteID  uint64 `json:"note_id"`
    Comment string `json:"comment"`
    Rating  int    `json:"rating"`
}

// Create handles POST /v1/notes/:id/comments and POST /v1/comments.
func (h *CommentHandler) Create(c echo.Context) error {
    var req commentReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    noteID := req.NoteID
    if c.Param("id") != "" {
        id, ok := pathID(c, "id")
        if !ok {
            return badRequest(c, "invalid note id")
        }
        noteID = id
    }
    if noteID == 0 {
        return badRequest(c, "note_id is required")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    cm, err := h.Comments.AddComment(ctx, noteID, middleware.UserID(c), req.Rating, req.Comment)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, toComment(cm))
}

// List handles GET /v1/notes/:id/comments.
func (h *CommentHandler) List(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid note id")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    cs, err := h.Comments.List(ctx, middleware.UserID(c), id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": toComments(cs)})
}
