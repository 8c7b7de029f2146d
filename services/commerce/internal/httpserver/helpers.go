package httpserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/service"
	"github.com/Skotchmaster/fundshop/services/commerce/internal/util"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var errUnauthorized = errors.New("unauthorized")

func GetID(c echo.Context) (uuid.UUID, error) {
	v := c.Get("user_id")
	s, ok := v.(string)
	if !ok || s == "" {
		return uuid.Nil, errUnauthorized
	}

	userID, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errUnauthorized
	}

	return userID, nil
}

func GetCaller(c echo.Context) (service.Caller, error) {
	id, err := GetID(c)
	if err != nil {
		return service.Caller{}, err
	}
	role, _ := c.Get("role").(string)
	return service.Caller{UserID: id, Role: role}, nil
}

func paramID(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

var sentinels = []struct {
	err    error
	status int
}{
	{service.ErrValidation, http.StatusBadRequest},
	{service.ErrForbidden, http.StatusForbidden},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrConflict, http.StatusConflict},
	{service.ErrGatewayUnavailable, http.StatusBadGateway},
}

func statusOf(err error) int {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// publicMessage drops the sentinel prefix so buyers see only the actionable part.
func publicMessage(err error, status int) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal error"
	case http.StatusBadGateway:
		return "payment gateway unavailable, try again later"
	}
	msg := err.Error()
	for _, s := range sentinels {
		msg = strings.TrimPrefix(msg, s.err.Error()+": ")
	}
	return msg
}

// fail logs a service error at the level its status deserves and renders it.
func fail(c echo.Context, l *slog.Logger, event string, err error) error {
	var gateErr *service.GateError
	if errors.As(err, &gateErr) {
		status := statusOf(gateErr)
		l.Warn(event, "status", status, "reason", gateErr.Reason, "error", err)
		return c.JSON(status, map[string]any{
			"error":      gateErr.Reason,
			"message":    gateErr.Message,
			"percentage": gateErr.Percentage,
		})
	}

	status := statusOf(err)
	msg := publicMessage(err, status)
	if status >= http.StatusInternalServerError {
		l.Error(event, "status", status, "reason", msg, "error", err)
	} else {
		l.Warn(event, "status", status, "reason", msg, "error", err)
	}
	return echo.NewHTTPError(status, msg)
}

func pageParams(c echo.Context) (page, size int) {
	return util.ParseIntDefault(c.QueryParam("page"), 1), util.ParseIntDefault(c.QueryParam("size"), 0)
}
