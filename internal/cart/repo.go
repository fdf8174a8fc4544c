package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/pkg/db/models"
)

// Repository persists authenticated customers' cart lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ListByUser returns the user's lines, oldest first, with product data.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product.Variants").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindForUser loads one line, scoped to its owner.
func (r *Repository) FindForUser(ctx context.Context, userID uuid.UUID, id uint64) (*models.CartItem, error) {
	var row models.CartItem
	err := r.db.WithContext(ctx).
		Preload("Product.Variants").
		Where("id = ? AND user_id = ?", id, userID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIdentity loads the line for a product variant, if any.
func (r *Repository) FindByIdentity(ctx context.Context, userID uuid.UUID, productID uint64, size, color string) (*models.CartItem, error) {
	var row models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND size = ? AND color = ?", userID, productID, size, color).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) Create(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *Repository) UpdateQuantity(ctx context.Context, id uint64, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", id).
		Update("quantity", qty).Error
}

// Delete removes a line and reports whether it existed.
func (r *Repository) Delete(ctx context.Context, userID uuid.UUID, id uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LineIdentity addresses a cart line by what it holds rather than its row id.
type LineIdentity struct {
	ProductID uint64
	Size      string
	Color     string
}

// DeleteIdentities removes the listed variants from the user's cart. Used
// once checkout has turned them into an order.
func (r *Repository) DeleteIdentities(ctx context.Context, userID uuid.UUID, lines []LineIdentity) error {
	for _, line := range lines {
		err := r.db.WithContext(ctx).
			Where("user_id = ? AND product_id = ? AND size = ? AND color = ?", userID, line.ProductID, line.Size, line.Color).
			Delete(&models.CartItem{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
