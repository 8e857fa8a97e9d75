package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/middleware"
    "github.com/iliyamo/notes-marketplace/internal/model"
    "github.com/iliyamo/notes-marketplace/internal/service"
)

// ProfileHandler serves the account view, profile edits and withdrawals.
type ProfileHandler struct {
    Users    *service.UserService
    Earnings *service.EarningsService
}

func NewProfileHandler(u *service.UserService, e *service.EarningsService) *ProfileHandler {
    if u == nil || e == nil {
        panic("nil service passed to NewProfileHandler")
    }
    return &ProfileHandler{Users: u, Earnings: e}
}

type profileResp struct {
    userPart
    balanceResp
    NotesUploaded  int64 `json:"notes_uploaded"`
    NotesPurchased int64 `json:"notes_purchased"`
}

// Get handles GET /v1/profile.
func (h *ProfileHandler) Get(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    p, err := h.Users.Profile(ctx, middleware.UserID(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, profileResp{
        userPart:       toUser(p.User),
        balanceResp:    toBalance(p.Balance),
        NotesUploaded:  p.NotesUploaded,
        NotesPurchased: p.NotesPurchased,
    })
}

type profileReq struct {
    Name            *string `json:"name"`
    University      *string `json:"university"`
    CurrentPassword string  `json:"current_password"`
    NewPassword     string  `json:"new_password"`
    ConfirmPassword string  `json:"confirm_password"`
}

// Update handles PUT /v1/profile.
func (h *ProfileHandler) Update(c echo.Context) error {
    var req profileReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Users.UpdateProfile(ctx, middleware.UserID(c), service.ProfileUpdate{
        Name:            req.Name,
        University:      req.University,
        CurrentPassword: req.CurrentPassword,
        NewPassword:     req.NewPassword,
        ConfirmPassword: req.ConfirmPassword,
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toUser(u))
}

type withdrawReq struct {
    Amount        *float64 `json:"amount"`
    PaymentMethod string   `json:"payment_method"`
}

type withdrawalResp struct {
    ID            uint64      `json:"id"`
    Amount        float64     `json:"amount"`
    AmountCents   int64       `json:"amount_cents"`
    PaymentMethod string      `json:"payment_method"`
    CreatedAt     time.Time   `json:"created_at"`
    Balance       balanceResp `json:"balance"`
}

// Withdraw handles POST /v1/withdrawals.  The whole available balance is
// paid out; amount, when sent, must not exceed it.
func (h *ProfileHandler) Withdraw(c echo.Context) error {
    var req withdrawReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    var requested model.Cents
    if req.Amount != nil {
        v, err := model.CentsFromFloat(*req.Amount)
        if err != nil {
            return badRequest(c, "amount must not be negative")
        }
        requested = v
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    userID := middleware.UserID(c)
    w, err := h.Earnings.Withdraw(ctx, userID, requested, req.PaymentMethod)
    if err != nil {
        return fail(c, err)
    }
    bal, err := h.Earnings.Balance(ctx, userID)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, withdrawalResp{
        ID:            w.ID,
        Amount:        w.AmountCents.Float(),
        AmountCents:   int64(w.AmountCents),
        PaymentMethod: w.PaymentMethod,
        CreatedAt:     w.CreatedAt,
        Balance:       toBalance(bal),
    })
}
