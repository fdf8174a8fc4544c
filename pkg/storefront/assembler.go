package storefront

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/solespace/solespace-backend/pkg/checkout"
	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
)

// Assembler turns a cart selection into a CheckoutPayload. It never talks to
// the network.
type Assembler struct {
	validate *validator.Validate
}

func NewAssembler() *Assembler {
	return &Assembler{validate: checkout.NewValidator()}
}

// Assemble fails with ErrEmptySelection when nothing selected exists in the
// snapshot and with ErrMissingProductID when a selected line has no integer
// product id. The total covers selected lines only.
func (a *Assembler) Assemble(snapshot CartSnapshot, selectedIDs []string, choice AddressChoice, contact Contact) (CheckoutPayload, error) {
	wanted := make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		wanted[id] = struct{}{}
	}

	items := make([]CheckoutItem, 0, len(wanted))
	total := decimal.Zero
	for _, line := range snapshot.Lines {
		if _, ok := wanted[line.ID]; !ok {
			continue
		}
		pid, ok := line.ResolveProductID()
		if !ok {
			return CheckoutPayload{}, validationError("Some items in your cart are missing product information. Please remove them and add them again.", ErrMissingProductID)
		}
		items = append(items, CheckoutItem{
			ProductID: pid,
			LineID:    line.ID,
			Name:      line.Name,
			Size:      line.Size,
			Color:     line.Color,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
		total = total.Add(line.Subtotal())
	}
	if len(items) == 0 {
		return CheckoutPayload{}, validationError("Please select at least one item to check out.", ErrEmptySelection)
	}

	shipping, err := a.shipping(choice)
	if err != nil {
		return CheckoutPayload{}, err
	}
	if err := a.validate.Struct(contact); err != nil {
		return CheckoutPayload{}, validationError(checkout.FormatValidationErrors(err).Message(), err)
	}

	return CheckoutPayload{
		Items:         items,
		TotalAmount:   total,
		Customer:      contact,
		Shipping:      shipping,
		PaymentMethod: PaymentMethodPayMongo,
	}, nil
}

func (a *Assembler) shipping(choice AddressChoice) (ShippingFields, error) {
	if addr := choice.Selected; addr != nil {
		fields := checkout.AddressFields{
			Name:        addr.Name,
			Phone:       addr.Phone,
			Region:      addr.Region,
			Province:    addr.Province,
			City:        addr.City,
			Barangay:    addr.Barangay,
			PostalCode:  addr.PostalCode,
			AddressLine: addr.AddressLine,
		}
		if err := checkout.ValidateAddress(fields); err != nil {
			msg := "Please check the selected address."
			if typed := pkgerrors.As(err); typed != nil {
				msg = typed.Message()
			}
			return ShippingFields{}, validationError(msg, err)
		}
		return ShippingFields{
			Name:        addr.Name,
			Phone:       addr.Phone,
			Region:      addr.Region,
			Province:    addr.Province,
			City:        addr.City,
			Barangay:    addr.Barangay,
			PostalCode:  addr.PostalCode,
			AddressLine: strings.TrimSpace(addr.AddressLine),
		}, nil
	}

	fb := choice.Fallback
	err := checkout.ValidateFallbackShipping(checkout.FallbackShipping{
		Name:        fb.Name,
		Phone:       fb.Phone,
		AddressLine: fb.AddressLine,
	})
	if err != nil {
		return ShippingFields{}, validationError("Please fill in your shipping details.", err)
	}
	return fb, nil
}
