package domain

import (
	"context"
	"errors"
)

type CreateGarageRequest struct {
	Name string `json:"name"`
	Bays int    `json:"bays"`
}

type Service interface {
	Create(ctx context.Context, req CreateGarageRequest) (Garage, error)
	GetByID(ctx context.Context, id string) (Garage, error)
	List(ctx context.Context) ([]Garage, error)
}

var (
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidBays = errors.New("invalid_bays")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("not_found")
	ErrSlugTaken   = errors.New("slug_taken")
)
