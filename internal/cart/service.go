package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/internal/products"
	"github.com/solespace/solespace-backend/pkg/db/models"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes cart operations for signed-in customers.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error)
	Add(ctx context.Context, userID uuid.UUID, input AddInput) (*ItemDTO, error)
	Sync(ctx context.Context, userID uuid.UUID, items []SyncItem) (*SyncResult, error)
	Update(ctx context.Context, userID uuid.UUID, id uint64, quantity int) (*ItemDTO, error)
	Remove(ctx context.Context, userID uuid.UUID, id uint64) error
}

type service struct {
	repo     *Repository
	products *products.Repository
	tx       txRunner
	logg     *logger.Logger
}

// NewService builds the cart service.
func NewService(repo *Repository, productRepo *products.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: productRepo, tx: tx, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) ([]ItemDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	out := make([]ItemDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toItemDTO(row))
	}
	return out, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddInput) (*ItemDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.ProductID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	var lineID uint64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		variant, err := s.loadVariant(ctx, tx, input.ProductID, input.Size, input.Color)
		if err != nil {
			return err
		}

		existing, err := repo.FindByIdentity(ctx, userID, input.ProductID, variant.Size, variant.Color)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if input.Quantity > variant.Stock {
				return stockExceeded(variant.Stock)
			}
			row := models.CartItem{
				UserID:    userID,
				ProductID: input.ProductID,
				Size:      variant.Size,
				Color:     variant.Color,
				Quantity:  input.Quantity,
			}
			if err := repo.Create(ctx, &row); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
			}
			lineID = row.ID
			return nil
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		next := existing.Quantity + input.Quantity
		if next > variant.Stock {
			return stockExceeded(variant.Stock)
		}
		if err := repo.UpdateQuantity(ctx, existing.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		lineID = existing.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, userID, lineID)
}

// Sync merges uploaded guest lines into the cart. For a variant already in
// the cart the larger of the two quantities wins, so replaying the same
// upload leaves the cart unchanged. Quantities are clamped to stock; lines
// for unknown or sold-out variants are reported as skipped.
func (s *service) Sync(ctx context.Context, userID uuid.UUID, items []SyncItem) (*SyncResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	for i, item := range items {
		if item.ProductID == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required").
				WithDetails(map[string]any{"index": i})
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
				WithDetails(map[string]any{"index": i})
		}
	}

	result := &SyncResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, item := range items {
			variant, err := s.loadVariant(ctx, tx, item.ProductID, item.Size, item.Color)
			if err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency {
					result.Skipped = append(result.Skipped, item)
					continue
				}
				return err
			}
			if variant.Stock <= 0 {
				result.Skipped = append(result.Skipped, item)
				continue
			}

			existing, err := repo.FindByIdentity(ctx, userID, item.ProductID, variant.Size, variant.Color)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				row := models.CartItem{
					UserID:    userID,
					ProductID: item.ProductID,
					Size:      variant.Size,
					Color:     variant.Color,
					Quantity:  min(item.Quantity, variant.Stock),
				}
				if err := repo.Create(ctx, &row); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart item")
				}
				continue
			}
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
			}
			merged := min(max(existing.Quantity, item.Quantity), variant.Stock)
			if merged != existing.Quantity {
				if err := repo.UpdateQuantity(ctx, existing.ID, merged); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Skipped) > 0 && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "skipped": len(result.Skipped)})
		s.logg.Warn(logCtx, "cart.sync.skipped_lines")
	}

	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.Items = current
	return result, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, id uint64, quantity int) (*ItemDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindForUser(ctx, userID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}
		if row.Product == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		variant, ok := products.ResolveVariant(*row.Product, row.Size, row.Color)
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant is no longer available")
		}
		if quantity > variant.Stock {
			return stockExceeded(variant.Stock)
		}
		if err := repo.UpdateQuantity(ctx, row.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.reload(ctx, userID, id)
}

func (s *service) Remove(ctx context.Context, userID uuid.UUID, id uint64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if id == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (s *service) loadVariant(ctx context.Context, tx *gorm.DB, productID uint64, size, color string) (*models.ProductVariant, error) {
	product, err := s.products.WithTx(tx).FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	variant, ok := products.ResolveVariant(*product, size, color)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "selected size or color is unavailable")
	}
	return variant, nil
}

func (s *service) reload(ctx context.Context, userID uuid.UUID, id uint64) (*ItemDTO, error) {
	row, err := s.repo.FindForUser(ctx, userID, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart item")
	}
	dto := toItemDTO(*row)
	return &dto, nil
}

func stockExceeded(available int) error {
	return pkgerrors.Newf(pkgerrors.CodeStockExceeded, "only %d left in stock", available).
		WithDetails(map[string]any{"available": available})
}
