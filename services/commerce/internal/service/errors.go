package service

import (
	"errors"
	"fmt"

	"github.com/Skotchmaster/fundshop/pkg/paymentclient"
	"github.com/Skotchmaster/fundshop/pkg/tokens"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrValidation         = errors.New("validation")                  // 400
	ErrForbidden          = errors.New("forbidden")                   // 403
	ErrNotFound           = errors.New("not found")                   // 404
	ErrConflict           = errors.New("conflict")                    // 409
	ErrGatewayUnavailable = errors.New("payment gateway unavailable") // 502, retried by the gateway on webhooks
)

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s not found", ErrNotFound, what)
	}
	return err
}

func gatewayErr(op string, err error) error {
	if errors.Is(err, paymentclient.ErrUnavailable) {
		return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID uuid.UUID
	Role   string
}

func (c Caller) IsAdmin() bool {
	return c.Role == tokens.RoleAdmin
}
