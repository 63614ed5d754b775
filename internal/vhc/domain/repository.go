package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/garageflow/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, response *Response) error
	FindByID(ctx context.Context, db *gorm.DB, garageID, id snowflake.ID) (*Response, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Page) ([]*Response, int64, error)
}
