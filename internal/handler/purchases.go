package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/middleware"
    "github.com/iliyamo/notes-marketplace/internal/service"
)

// PurchaseHandler serves the two purchase routes.
type PurchaseHandler struct {
    Purchases *service.PurchaseService
}

func NewPurchaseHandler(p *service.PurchaseService) *PurchaseHandler {
    if p == nil {
        panic("nil purchase service passed to NewPurchaseHandler")
    }
    return &PurchaseHandler{Purchases: p}
}

type purchaseReq struct {
    NoteID        uint64 `json:"note_id"`
    PaymentMethod string `json:"payment_method"`
}

type receiptResp struct {
    PurchaseID    uint64  `json:"purchase_id"`
    NoteID        uint64  `json:"note_id"`
    Amount        float64 `json:"amount"`
    AmountCents   int64   `json:"amount_cents"`
    PaymentMethod string  `json:"payment_method"`
    PaymentRef    string  `json:"payment_ref,omitempty"`
}

// PurchaseNote handles POST /v1/notes/:id/purchase.
func (h *PurchaseHandler) PurchaseNote(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return badRequest(c, "invalid note id")
    }
    var req purchaseReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    return h.purchase(c, id, req.PaymentMethod)
}

// Purchase handles POST /v1/purchases with the note id in the body.
func (h *PurchaseHandler) Purchase(c echo.Context) error {
    var req purchaseReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }
    if req.NoteID == 0 {
        return badRequest(c, "note_id is required")
    }
    return h.purchase(c, req.NoteID, req.PaymentMethod)
}

func (h *PurchaseHandler) purchase(c echo.Context, noteID uint64, method string) error {
    ctx, cancel := reqCtx(c)
    defer cancel()

    r, err := h.Purchases.Purchase(ctx, middleware.UserID(c), noteID, method)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, receiptResp{
        PurchaseID:    r.PurchaseID,
        NoteID:        r.NoteID,
        Amount:        r.Amount.Float(),
        AmountCents:   int64(r.Amount),
        PaymentMethod: r.PaymentMethod,
        PaymentRef:    r.PaymentRef,
    })
}
