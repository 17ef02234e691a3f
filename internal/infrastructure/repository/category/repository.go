package category

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	domain "jan-server/services/media-ingest/internal/domain/media"
	"jan-server/services/media-ingest/internal/infrastructure/database/entities"
	"jan-server/services/media-ingest/internal/utils/platformerrors"
)

// Repository reads the category table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindActive returns the active category whose id equals ref or whose name
// matches it case-insensitively. The id match wins when both exist.
func (r *Repository) FindActive(ctx context.Context, ref string) (*entities.Category, error) {
	var rows []entities.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("id = ? OR LOWER(name) = ?", ref, strings.ToLower(ref)).
		Limit(2).
		Find(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to look up category",
			err,
			"d176786d-3c79-44c7-86ca-8cc6dfbb332a",
		)
	}
	if len(rows) == 0 {
		return nil, domain.ErrCategoryNotFound
	}
	for i := range rows {
		if rows[i].ID == ref {
			return &rows[i], nil
		}
	}
	return &rows[0], nil
}

// IsNotFound reports whether err means no active category matched.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrCategoryNotFound)
}
