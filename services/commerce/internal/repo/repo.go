package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/Skotchmaster/fundshop/services/commerce/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrStaleState means a guarded update matched no rows because the row moved on.
	ErrStaleState    = errors.New("state changed concurrently")
	ErrStockExceeded = errors.New("stock exceeded")
	ErrDuplicate     = errors.New("duplicate record")
)

// newestFirst breaks created_at ties by id so pages never overlap.
var newestFirst = clause.OrderBy{Columns: []clause.OrderByColumn{
	{Column: clause.Column{Name: "created_at"}, Desc: true},
	{Column: clause.Column{Name: "id"}},
}}

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(models.All()...)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
