package enums

import "fmt"

// PaymentStatus tracks whether the hosted payment link has been settled.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

func (p PaymentStatus) String() string {
	return string(p)
}

func (p PaymentStatus) IsValid() bool {
	return p == PaymentStatusPending || p == PaymentStatusPaid
}

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid payment status %q", value)
	}
	return status, nil
}

// PaymentMethod is fixed for storefront checkout; the enum exists so the
// column and request DTOs validate against a closed set.
type PaymentMethod string

const PaymentMethodPayMongo PaymentMethod = "paymongo"

func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodPayMongo
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(value)
	if !method.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return method, nil
}
