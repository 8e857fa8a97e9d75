package handler

import (
    "fmt"
    "io"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/middleware"
    "github.com/iliyamo/notes-marketplace/internal/model"
    "github.com/iliyamo/notes-marketplace/internal/repository"
    "github.com/iliyamo/notes-marketplace/internal/service"
)

// NoteHandler serves note upload, edit, delete and the gated reads.
type NoteHandler struct {
    Notes          *service.NoteService
    MaxUploadBytes int64
}

func NewNoteHandler(n *service.NoteService, maxUpload int64) *NoteHandler {
    if n == nil {
        panic("nil note service passed to NewNoteHandler")
    }
    if maxUpload <= 0 {
        maxUpload = 20 << 20
    }
    return &NoteHandler{Notes: n, MaxUploadBytes: maxUpload}
}

// firstQuery returns the first non-empty query parameter among names.
func firstQuery(c echo.Context, names ...string) string {
    for _, n := range names {
        if v := strings.TrimSpace(c.QueryParam(n)); v != "" {
            return v
        }
    }
    return ""
}

// Search handles GET /v1/notes/search.  Deleted notes never appear and
// results carry no study content.
func (h *NoteHandler) Search(c echo.Context) error {
    page, _ := strconv.Atoi(c.QueryParam("page"))
    size, _ := strconv.Atoi(firstQuery(c, "limit", "page_size"))
    q := repository.NoteSearchQuery{
        University:    firstQuery(c, "university"),
        CourseCode:    firstQuery(c, "course_code", "course"),
        BookReference: firstQuery(c, "book_reference", "book"),
        Keyword:       firstQuery(c, "keyword", "q"),
        Page:          page,
        PageSize:      size,
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    res, err := h.Notes.Search(ctx, q)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "data":      toNotes(res.Notes, false),
        "total":     res.Total,
        "page":      res.Page,
        "page_size": res.PageSize,
    })
}

// Detail handles GET /v1/notes/:id for guests and users.
func (h *NoteHandler) Detail(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid note id")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    v, err := h.Notes.Detail(ctx, middleware.UserID(c), id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toNoteView(v))
}

// Document handles GET /v1/notes/:id/document with a presigned URL.
func (h *NoteHandler) Document(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid note id")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    url, err := h.Notes.DocumentURL(ctx, middleware.UserID(c), id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"url": url})
}

func optionalForm(c echo.Context, name string) *string {
    if _, ok := c.Request().MultipartForm.Value[name]; !ok {
        return nil
    }
    v := c.FormValue(name)
    return &v
}

// Upload handles multipart POST /v1/notes.  The call returns once the
// study content is generated and the note is stored.
func (h *NoteHandler) Upload(c echo.Context) error {
    req := c.Request()
    req.Body = http.MaxBytesReader(c.Response(), req.Body, h.MaxUploadBytes+1<<20)
    if err := req.ParseMultipartForm(8 << 20); err != nil {
        return badRequest(c, "invalid multipart form")
    }
    fh, err := c.FormFile("file")
    if err != nil {
        if fh, err = c.FormFile("document"); err != nil {
            return badRequest(c, "file is required")
        }
    }
    if fh.Size > h.MaxUploadBytes {
        return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{
            "error":   "validation_error",
            "message": fmt.Sprintf("file larger than %d bytes", h.MaxUploadBytes),
        })
    }
    price, err := model.ParseCents(c.FormValue("price"))
    if err != nil {
        return badRequest(c, "invalid price")
    }
    f, err := fh.Open()
    if err != nil {
        return badRequest(c, "cannot read file")
    }
    defer f.Close()
    doc, err := io.ReadAll(io.LimitReader(f, h.MaxUploadBytes+1))
    if err != nil {
        return badRequest(c, "cannot read file")
    }

    n, err := h.Notes.Upload(req.Context(), middleware.UserID(c), service.UploadInput{
        Title:         c.FormValue("title"),
        University:    c.FormValue("university"),
        CourseCode:    firstNonEmpty(c.FormValue("course_code"), c.FormValue("course")),
        BookReference: optionalForm(c, "book_reference"),
        Description:   c.FormValue("description"),
        PriceCents:    price,
        Filename:      fh.Filename,
        ContentType:   fh.Header.Get(echo.HeaderContentType),
        Document:      doc,
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, toNote(n, true))
}

func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if strings.TrimSpace(v) != "" {
            return v
        }
    }
    return ""
}

type editReq struct {
    Title         string   `json:"title"`
    University    string   `json:"university"`
    CourseCode    string   `json:"course_code"`
    BookReference *string  `json:"book_reference"`
    Description   string   `json:"description"`
    Price         *float64 `json:"price"`
    PriceCents    *int64   `json:"price_cents"`
}

func (r editReq) cents() (model.Cents, error) {
    switch {
    case r.PriceCents != nil:
        if *r.PriceCents < 0 {
            return 0, model.ErrInvalidAmount
        }
        return model.Cents(*r.PriceCents), nil
    case r.Price != nil:
        return model.CentsFromFloat(*r.Price)
    }
    return 0, nil
}

// Edit handles PUT /v1/notes/:id for the owner.
func (h *NoteHandler) Edit(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid note id")
    }
    var req editReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    price, err := req.cents()
    if err != nil {
        return badRequest(c, "price must not be negative")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    n, err := h.Notes.Edit(ctx, middleware.UserID(c), id, model.NoteEdit{
        Title:         req.Title,
        University:    req.University,
        CourseCode:    req.CourseCode,
        BookReference: req.BookReference,
        Description:   req.Description,
        PriceCents:    price,
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toNote(n, true))
}

// Delete handles DELETE /v1/notes/:id (soft delete).
func (h *NoteHandler) Delete(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid note id")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    if err := h.Notes.Delete(ctx, middleware.UserID(c), id); err != nil {
        return fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Mine handles GET /v1/me/notes.
func (h *NoteHandler) Mine(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()
    ns, err := h.Notes.Mine(ctx, middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": toNotes(ns, true)})
}

// Purchased handles GET /v1/me/purchases.
func (h *NoteHandler) Purchased(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()
    ns, err := h.Notes.Purchased(ctx, middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"data": toNotes(ns, true)})
}
