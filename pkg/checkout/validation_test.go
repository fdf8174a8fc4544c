package checkout

import (
	"testing"

	pkgerrors "github.com/solespace/solespace-backend/pkg/errors"
)

func validAddress() AddressFields {
	return AddressFields{
		Name:        "Maria Santos",
		Phone:       "09171234567",
		Region:      "Region IV-A",
		Province:    "Cavite",
		City:        "Dasmarinas",
		Barangay:    "Salitran",
		PostalCode:  "4114",
		AddressLine: "Blk 4 Lot 12 Mabini St",
	}
}

func TestIsValidPostalCode(t *testing.T) {
	cases := map[string]bool{
		"4100":  true,
		"0000":  true,
		"41A0":  false,
		"410":   false,
		"41000": false,
		"":      false,
		"４１００": false,
	}
	for code, want := range cases {
		if got := IsValidPostalCode(code); got != want {
			t.Fatalf("IsValidPostalCode(%q)=%v want %v", code, got, want)
		}
	}
}

func TestValidateAddressPostalCode(t *testing.T) {
	addr := validAddress()
	addr.PostalCode = "4100"
	if err := ValidateAddress(addr); err != nil {
		t.Fatalf("expected 4100 to pass, got %v", err)
	}

	for _, bad := range []string{"41A0", "410"} {
		addr.PostalCode = bad
		err := ValidateAddress(addr)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("postal code %q: expected validation error, got %v", bad, err)
		}
		details, _ := typed.Details().(map[string]string)
		if details["postal_code"] == "" {
			t.Fatalf("postal code %q: expected postal_code detail, got %v", bad, typed.Details())
		}
	}
}

func TestValidateAddressOptionalPostalCode(t *testing.T) {
	addr := validAddress()
	addr.PostalCode = ""
	if err := ValidateAddress(addr); err != nil {
		t.Fatalf("postal code is optional, got %v", err)
	}
}

func TestValidateAddressLineLengthIsTrimmed(t *testing.T) {
	addr := validAddress()
	addr.AddressLine = "  Rd1  "
	err := ValidateAddress(addr)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected short address line to fail")
	}
	details := typed.Details().(map[string]string)
	if details["address_line"] == "" {
		t.Fatalf("expected address_line detail, got %v", details)
	}

	addr.AddressLine = " Rd 12 "
	if err := ValidateAddress(addr); err != nil {
		t.Fatalf("five trimmed characters should pass, got %v", err)
	}
}

func TestValidateAddressRequiredFields(t *testing.T) {
	err := ValidateAddress(AddressFields{AddressLine: "Somewhere 1"})
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatal("expected validation error")
	}
	details := typed.Details().(map[string]string)
	for _, field := range []string{"name", "phone", "region", "province", "city", "barangay"} {
		if details[field] != "is required" {
			t.Fatalf("expected %s to be required, details=%v", field, details)
		}
	}
}

func TestValidateFallbackShippingPresenceOnly(t *testing.T) {
	if err := ValidateFallbackShipping(FallbackShipping{Name: "A", Phone: "1", AddressLine: "x"}); err != nil {
		t.Fatalf("fallback fields only need presence, got %v", err)
	}
	if err := ValidateFallbackShipping(FallbackShipping{Name: "A"}); err == nil {
		t.Fatal("expected missing fallback fields to fail")
	}
}
