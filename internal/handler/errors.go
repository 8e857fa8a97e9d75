package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/notes-marketplace/internal/service"
)

// errorStatus maps service errors onto HTTP status and a stable code.
// More specific sentinels come before the ones they wrap.
func errorStatus(err error) (int, string) {
    switch {
    case errors.Is(err, service.ErrAlreadyOwned):
        return http.StatusConflict, "already_owned"
    case errors.Is(err, service.ErrSelfPurchase):
        return http.StatusConflict, "self_purchase"
    case errors.Is(err, service.ErrEmailTaken):
        return http.StatusConflict, "email_taken"
    case errors.Is(err, service.ErrConflict):
        return http.StatusConflict, "conflict"
    case errors.Is(err, service.ErrValidation):
        return http.StatusBadRequest, "validation_error"
    case errors.Is(err, service.ErrUnauthorized):
        return http.StatusUnauthorized, "unauthorized"
    case errors.Is(err, service.ErrForbidden):
        return http.StatusForbidden, "forbidden"
    case errors.Is(err, service.ErrNotFound):
        return http.StatusNotFound, "not_found"
    case errors.Is(err, service.ErrBelowMinimum):
        return http.StatusUnprocessableEntity, "below_minimum"
    case errors.Is(err, service.ErrInsufficientBalance):
        return http.StatusUnprocessableEntity, "insufficient_balance"
    case errors.Is(err, service.ErrUpstream):
        return http.StatusBadGateway, "upstream_failure"
    case errors.Is(err, context.DeadlineExceeded):
        return http.StatusGatewayTimeout, "timeout"
    }
    return http.StatusInternalServerError, "internal_error"
}

// fail renders err as {"error": code, "message": detail}.  Internal
// errors are logged by the request logger; their text is not echoed.
func fail(c echo.Context, err error) error {
    status, code := errorStatus(err)
    msg := err.Error()
    if status == http.StatusInternalServerError {
        c.Logger().Error(err)
        msg = "internal error"
    }
    return c.JSON(status, echo.Map{"error": code, "message": msg})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": msg})
}
