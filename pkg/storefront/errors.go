package storefront

import (
	"errors"
	"fmt"
)

// Kind classifies failures the storefront surfaces to shoppers.
type Kind string

const (
	KindValidation          Kind = "validation"
	KindStockExceeded       Kind = "stock_exceeded"
	KindNotFound            Kind = "not_found"
	KindNetworkOrServer     Kind = "network_or_server"
	KindOrderCreationFailed Kind = "order_creation_failed"
	KindPaymentLinkFailed   Kind = "payment_link_failed"
)

// FallbackMessage is shown when the server gave no usable message.
const FallbackMessage = "Something went wrong. Please try again."

// Error is returned by every storefront operation that can fail in a way the
// shopper should see.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = FallbackMessage
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches kind sentinels such as ErrStockExceeded.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Cause != nil {
		return false
	}
	return t.Kind == e.Kind
}

// UserMessage is the text to show in a toast or modal.
func (e *Error) UserMessage() string {
	if e == nil || e.Message == "" {
		return FallbackMessage
	}
	return e.Message
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrStockExceeded       = &Error{Kind: KindStockExceeded}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrNetworkOrServer     = &Error{Kind: KindNetworkOrServer}
	ErrOrderCreationFailed = &Error{Kind: KindOrderCreationFailed}
	ErrPaymentLinkFailed   = &Error{Kind: KindPaymentLinkFailed}
)

var (
	ErrEmptySelection   = errors.New("no cart items selected")
	ErrMissingProductID = errors.New("cart item has no product id")
	// ErrInFlight is returned when a mutation for the same line is still
	// running. The call is dropped, not queued.
	ErrInFlight       = errors.New("cart line update already in progress")
	ErrNoPendingOrder = errors.New("no pending order")
)

func validationError(message string, cause error) *Error {
	return &Error{Kind: KindValidation, Message: message, Cause: cause}
}

// UserMessage extracts a displayable message from any error.
func UserMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.UserMessage()
	}
	return FallbackMessage
}
