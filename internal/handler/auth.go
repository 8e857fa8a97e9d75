package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/middleware"
    "github.com/iliyamo/notes-marketplace/internal/service"
)

// AuthHandler serves register, login, refresh and logout.
type AuthHandler struct {
    Users *service.UserService
}

func NewAuthHandler(u *service.UserService) *AuthHandler {
    if u == nil {
        panic("nil user service passed to NewAuthHandler")
    }
    return &AuthHandler{Users: u}
}

type registerReq struct {
    Email      string `json:"email"`
    Password   string `json:"password"`
    Name       string `json:"name"`
    University string `json:"university"`
}

type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}

// Register creates the user and returns tokens immediately.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    s, err := h.Users.Register(ctx, service.RegisterInput{
        Email:      req.Email,
        Password:   req.Password,
        Name:       req.Name,
        University: req.University,
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, toAuth(s))
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    s, err := h.Users.Login(ctx, req.Email, req.Password)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toAuth(s))
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    s, err := h.Users.Refresh(ctx, req.RefreshToken)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toAuth(s))
}

// Logout revokes the given refresh token, or every session of the
// authenticated caller when no token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
    var req refreshReq
    _ = c.Bind(&req)
    ctx, cancel := reqCtx(c)
    defer cancel()

    if err := h.Users.Logout(ctx, middleware.UserID(c), req.RefreshToken); err != nil {
        return fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
