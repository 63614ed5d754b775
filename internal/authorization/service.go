package authorization

import (
	"context"
	"errors"

	"github.com/smallbiznis/garageflow/internal/auth"
)

type Service interface {
	Authorize(ctx context.Context, principal auth.Principal, object string, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidGarage = errors.New("invalid_garage")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
