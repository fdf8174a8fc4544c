package address

import (
	"strings"

	"github.com/solespace/solespace-backend/pkg/checkout"
	"github.com/solespace/solespace-backend/pkg/db/models"
)

// Input is the create/update body. Fields share the checkout address rules.
type Input struct {
	checkout.AddressFields
	IsDefault bool `json:"is_default"`
}

// DTO is the wire form of a saved address.
type DTO struct {
	ID          uint64 `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Region      string `json:"region"`
	Province    string `json:"province"`
	City        string `json:"city"`
	Barangay    string `json:"barangay"`
	PostalCode  string `json:"postal_code,omitempty"`
	AddressLine string `json:"address_line"`
	IsDefault   bool   `json:"is_default"`
}

func toDTO(row models.Address) DTO {
	dto := DTO{
		ID:          row.ID,
		Name:        row.Name,
		Phone:       row.Phone,
		Region:      row.Region,
		Province:    row.Province,
		City:        row.City,
		Barangay:    row.Barangay,
		AddressLine: row.AddressLine,
		IsDefault:   row.IsDefault,
	}
	if row.PostalCode != nil {
		dto.PostalCode = *row.PostalCode
	}
	return dto
}

func normalize(in checkout.AddressFields) checkout.AddressFields {
	return checkout.AddressFields{
		Name:        strings.TrimSpace(in.Name),
		Phone:       strings.TrimSpace(in.Phone),
		Region:      strings.TrimSpace(in.Region),
		Province:    strings.TrimSpace(in.Province),
		City:        strings.TrimSpace(in.City),
		Barangay:    strings.TrimSpace(in.Barangay),
		PostalCode:  strings.TrimSpace(in.PostalCode),
		AddressLine: strings.TrimSpace(in.AddressLine),
	}
}

func apply(row *models.Address, fields checkout.AddressFields) {
	row.Name = fields.Name
	row.Phone = fields.Phone
	row.Region = fields.Region
	row.Province = fields.Province
	row.City = fields.City
	row.Barangay = fields.Barangay
	row.AddressLine = fields.AddressLine
	row.PostalCode = nil
	if fields.PostalCode != "" {
		code := fields.PostalCode
		row.PostalCode = &code
	}
}
