package products

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/pkg/db/models"
)

// ErrInsufficientStock is returned when a conditional stock decrement finds
// fewer units than requested.
var ErrInsufficientStock = errors.New("insufficient stock")

// Repository persists catalog listings and their variant stock.
type Repository struct {
	db *gorm.DB
}

// NewRepository returns a catalog repository bound to the provided DB.
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

// ListFilter narrows catalog reads.
type ListFilter struct {
	Brand  string
	Query  string
	Limit  int
	Offset int
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("is_active = ?", true)
	if brand := strings.TrimSpace(filter.Brand); brand != "" {
		q = q.Where("LOWER(brand) = ?", strings.ToLower(brand))
	}
	if term := strings.TrimSpace(filter.Query); term != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var rows []models.Product
	if err := q.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID loads a product with its variants; inactive listings are included
// so order history can still resolve them.
func (r *Repository) FindByID(ctx context.Context, id uint64) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads several products keyed by id.
func (r *Repository) FindByIDs(ctx context.Context, ids []uint64) (map[uint64]models.Product, error) {
	out := make(map[uint64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Preload("Variants").
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// Create inserts a product together with its variants.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// DecrementStock removes qty units from a variant, failing with
// ErrInsufficientStock rather than going negative.
func (r *Repository) DecrementStock(ctx context.Context, variantID uint64, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock returns qty units to a variant.
func (r *Repository) RestoreStock(ctx context.Context, variantID uint64, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		Update("stock", gorm.Expr("stock + ?", qty)).Error
}

// ResolveVariant picks the variant matching size and color. A product with a
// single variant accepts blank size and color.
func ResolveVariant(product models.Product, size, color string) (*models.ProductVariant, bool) {
	size, color = strings.TrimSpace(size), strings.TrimSpace(color)
	for i := range product.Variants {
		v := &product.Variants[i]
		if strings.EqualFold(v.Size, size) && strings.EqualFold(v.Color, color) {
			return v, true
		}
	}
	if size == "" && color == "" && len(product.Variants) == 1 {
		return &product.Variants[0], true
	}
	return nil, false
}
