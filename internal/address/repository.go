package address

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/pkg/db/models"
)

// Repository persists customers' saved shipping addresses.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListByUser returns the default address first, then the rest oldest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) FindForUser(ctx context.Context, userID uuid.UUID, id uint64) (*models.Address, error) {
	var row models.Address
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Address{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *Repository) Create(ctx context.Context, row *models.Address) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// Save writes every column, including false and empty values.
func (r *Repository) Save(ctx context.Context, row *models.Address) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *Repository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Address{}, "id = ?", id).Error
}

// ClearDefault unsets the default flag on every address except keepID.
func (r *Repository) ClearDefault(ctx context.Context, userID uuid.UUID, keepID uint64) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_id = ? AND id <> ? AND is_default = ?", userID, keepID, true).
		Update("is_default", false).Error
}

// PromoteOldest marks the user's oldest address as default, if any remain.
func (r *Repository) PromoteOldest(ctx context.Context, userID uuid.UUID) error {
	var row models.Address
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Address{}).Where("id = ?", row.ID).Update("is_default", true).Error
}
