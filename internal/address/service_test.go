package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/solespace/solespace-backend/internal/audit"
	"github.com/solespace/solespace-backend/pkg/checkout"
	"github.com/solespace/solespace-backend/pkg/db"
	"github.com/solespace/solespace-backend/pkg/db/dbtest"
	"github.com/solespace/solespace-backend/pkg/db/models"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), audit.NewRepository(conn), db.Wrap(conn))
	require.NoError(t, err)
	return svc, conn
}

func sampleInput(line string) Input {
	return Input{AddressFields: checkout.AddressFields{
		Name:        "Juan Dela Cruz",
		Phone:       "09171234567",
		Region:      "CALABARZON",
		Province:    "Cavite",
		City:        "Dasmarinas",
		Barangay:    "Salitran",
		PostalCode:  "4114",
		AddressLine: line,
	}}
}

func TestFirstAddressBecomesDefault(t *testing.T) {
	svc, _ := newTestService(t)
	user := uuid.New()

	first, err := svc.Create(context.Background(), user, sampleInput("123 Mabini St"))
	require.NoError(t, err)
	require.True(t, first.IsDefault)

	second, err := svc.Create(context.Background(), user, sampleInput("456 Rizal Ave"))
	require.NoError(t, err)
	require.False(t, second.IsDefault)
}

func TestOnlyOneDefaultPerUser(t *testing.T) {
	svc, conn := newTestService(t)
	user := uuid.New()

	_, err := svc.Create(context.Background(), user, sampleInput("123 Mabini St"))
	require.NoError(t, err)
	in := sampleInput("456 Rizal Ave")
	in.IsDefault = true
	second, err := svc.Create(context.Background(), user, in)
	require.NoError(t, err)

	var defaults []models.Address
	require.NoError(t, conn.Where("user_id = ? AND is_default = ?", user, true).Find(&defaults).Error)
	require.Len(t, defaults, 1)
	require.Equal(t, second.ID, defaults[0].ID)

	list, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Equal(t, second.ID, list[0].ID)
}

func TestCreateRejectsInvalidPostalCode(t *testing.T) {
	svc, _ := newTestService(t)
	in := sampleInput("123 Mabini St")
	in.PostalCode = "41A0"

	_, err := svc.Create(context.Background(), uuid.New(), in)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateAllowsBlankPostalCode(t *testing.T) {
	svc, _ := newTestService(t)
	in := sampleInput("123 Mabini St")
	in.PostalCode = "  "

	dto, err := svc.Create(context.Background(), uuid.New(), in)
	require.NoError(t, err)
	require.Empty(t, dto.PostalCode)
}

func TestUpdateIsScopedToOwner(t *testing.T) {
	svc, _ := newTestService(t)
	owner := uuid.New()
	created, err := svc.Create(context.Background(), owner, sampleInput("123 Mabini St"))
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), uuid.New(), created.ID, sampleInput("789 Luna St"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	updated, err := svc.Update(context.Background(), owner, created.ID, sampleInput("789 Luna St"))
	require.NoError(t, err)
	require.Equal(t, "789 Luna St", updated.AddressLine)
	require.True(t, updated.IsDefault)
}

func TestDeletingDefaultPromotesOldest(t *testing.T) {
	svc, conn := newTestService(t)
	user := uuid.New()
	first, err := svc.Create(context.Background(), user, sampleInput("123 Mabini St"))
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), user, sampleInput("456 Rizal Ave"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), user, first.ID))

	list, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, second.ID, list[0].ID)
	require.True(t, list[0].IsDefault)

	var trail int64
	require.NoError(t, conn.Model(&models.AuditLog{}).Where("entity_type = ?", "address").Count(&trail).Error)
	require.EqualValues(t, 3, trail)
}
