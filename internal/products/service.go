package products

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/pkg/db/models"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
	"github.com/solespace/solespace-backend/pkg/pagination"
)

// Service exposes catalog reads to the storefront.
type Service interface {
	List(ctx context.Context, input ListInput) ([]ProductDTO, error)
	Get(ctx context.Context, id uint64) (*ProductDTO, error)
}

type catalogReader interface {
	List(ctx context.Context, filter ListFilter) ([]models.Product, error)
	FindByID(ctx context.Context, id uint64) (*models.Product, error)
}

// ListInput carries the optional catalog filters.
type ListInput struct {
	Brand  string
	Query  string
	Limit  int
	Offset int
}

type service struct {
	repo catalogReader
}

// NewService builds the catalog service.
func NewService(repo catalogReader) (Service, error) {
	if repo == nil {
		return nil, errors.New("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, input ListInput) ([]ProductDTO, error) {
	if input.Offset < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offset must be non-negative")
	}
	rows, err := s.repo.List(ctx, ListFilter{
		Brand:  input.Brand,
		Query:  input.Query,
		Limit:  pagination.NormalizeLimit(input.Limit),
		Offset: input.Offset,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*ProductDTO, error) {
	if id == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	dto := toDTO(*row)
	return &dto, nil
}
