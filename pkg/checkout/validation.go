package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
)

const (
	// TagPostalCode validates an optional four-digit Philippine postal code.
	TagPostalCode = "ph_postal"
	// TagAddressLine validates a street line of at least MinAddressLineLength
	// characters once surrounding whitespace is removed.
	TagAddressLine = "address_line"

	PostalCodeLength     = 4
	MinAddressLineLength = 5
)

// AddressFields is the structured shipping address every address book entry
// and checkout submission must satisfy.
type AddressFields struct {
	Name        string `json:"name" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	Region      string `json:"region" validate:"required"`
	Province    string `json:"province" validate:"required"`
	City        string `json:"city" validate:"required"`
	Barangay    string `json:"barangay" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"ph_postal"`
	AddressLine string `json:"address_line" validate:"address_line"`
}

// FallbackShipping is the free-text shipping form used when no saved
// address is selected; only presence is checked.
type FallbackShipping struct {
	Name        string `json:"name" validate:"required"`
	Phone       string `json:"phone" validate:"required"`
	AddressLine string `json:"address_line" validate:"required"`
}

var validate = NewValidator()

// NewValidator returns a validator using json field names and the address
// rules registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the address tags on an existing validator.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation(TagPostalCode, func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		return value == "" || IsValidPostalCode(value)
	})
	_ = v.RegisterValidation(TagAddressLine, func(fl validator.FieldLevel) bool {
		return len([]rune(strings.TrimSpace(fl.Field().String()))) >= MinAddressLineLength
	})
}

// IsValidPostalCode reports whether code is exactly four ASCII digits.
func IsValidPostalCode(code string) bool {
	if len(code) != PostalCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// ValidateAddress returns a CodeValidation error whose details map each
// offending json field to a message.
func ValidateAddress(fields AddressFields) error {
	return validateStruct(fields)
}

// ValidateFallbackShipping checks the free-text shipping fields for presence.
func ValidateFallbackShipping(fields FallbackShipping) error {
	return validateStruct(fields)
}

func validateStruct(value any) error {
	if err := validate.Struct(value); err != nil {
		return FormatValidationErrors(err)
	}
	return nil
}

// FormatValidationErrors converts validator output to the shared typed error.
func FormatValidationErrors(err error) *pkgerrors.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = ValidationMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, firstMessage(errs)).WithDetails(details)
}

func firstMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("%s %s", errs[0].Field(), ValidationMessage(errs[0]))
}

// ValidationMessage renders a single field failure.
func ValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	case TagPostalCode:
		return "must be exactly 4 digits"
	case TagAddressLine:
		return fmt.Sprintf("must be at least %d characters", MinAddressLineLength)
	}
	return "is invalid"
}
