package address

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/internal/audit"
	"github.com/solespace/solespace-backend/pkg/checkout"
	"github.com/solespace/solespace-backend/pkg/db/models"
	"github.com/solespace/solespace-backend/pkg/enums"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
)

const entityType = "address"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages a customer's address book. At most one address per
// customer is the default; the first one saved always is.
type Service interface {
	List(ctx context.Context, userID uuid.UUID) ([]DTO, error)
	Create(ctx context.Context, userID uuid.UUID, input Input) (*DTO, error)
	Update(ctx context.Context, userID uuid.UUID, id uint64, input Input) (*DTO, error)
	Delete(ctx context.Context, userID uuid.UUID, id uint64) error
}

type service struct {
	repo  *Repository
	audit *audit.Repository
	tx    txRunner
}

func NewService(repo *Repository, auditRepo *audit.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if auditRepo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, audit: auditRepo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]DTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	out := make([]DTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input Input) (*DTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	fields := normalize(input.AddressFields)
	if err := checkout.ValidateAddress(fields); err != nil {
		return nil, err
	}

	var created models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		count, err := repo.CountByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count addresses")
		}

		created = models.Address{UserID: userID, IsDefault: input.IsDefault || count == 0}
		apply(&created, fields)
		if err := repo.Create(ctx, &created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
		}
		if created.IsDefault {
			if err := repo.ClearDefault(ctx, userID, created.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		return s.record(ctx, tx, enums.AuditAddressCreated, userID, created.ID)
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, userID uuid.UUID, id uint64, input Input) (*DTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	fields := normalize(input.AddressFields)
	if err := checkout.ValidateAddress(fields); err != nil {
		return nil, err
	}

	var updated *models.Address
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindForUser(ctx, userID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		apply(row, fields)
		// Unsetting the only default is ignored; another address has to be
		// made default instead.
		if input.IsDefault {
			row.IsDefault = true
		}
		if err := repo.Save(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
		}
		if row.IsDefault {
			if err := repo.ClearDefault(ctx, userID, row.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear default address")
			}
		}
		updated = row
		return s.record(ctx, tx, enums.AuditAddressUpdated, userID, row.ID)
	})
	if err != nil {
		return nil, err
	}
	dto := toDTO(*updated)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, userID uuid.UUID, id uint64) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindForUser(ctx, userID, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
		}
		if err := repo.Delete(ctx, row.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete address")
		}
		if row.IsDefault {
			if err := repo.PromoteOldest(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promote default address")
			}
		}
		return s.record(ctx, tx, enums.AuditAddressDeleted, userID, row.ID)
	})
}

func (s *service) record(ctx context.Context, tx *gorm.DB, action enums.AuditAction, userID uuid.UUID, id uint64) error {
	err := s.audit.WithTx(tx).Record(ctx, audit.Entry{
		Action:     action,
		Actor:      enums.AuditActorCustomer,
		UserID:     &userID,
		EntityType: entityType,
		EntityID:   strconv.FormatUint(id, 10),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record audit")
	}
	return nil
}
