package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// ErrorDump flattens an error chain for request logs. Postgres failures also
// carry the server's diagnostics and, for the storefront's own constraints,
// a short name of the rule that was broken.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	Rule string `json:"rule,omitempty"`
	// Retryable marks serialization failures and deadlocks, which checkout
	// can hit when two orders take the same variant's last units.
	Retryable bool `json:"retryable,omitempty"`
}

// constraintRules names the schema constraints a request can trip. Check
// constraints use Postgres' default <table>_<column>_check naming.
var constraintRules = map[string]string{
	"product_variants_stock_check":    "stock_not_negative",
	"product_variants_identity":       "variant_unique",
	"cart_items_quantity_check":       "cart_quantity_positive",
	"cart_items_identity":             "cart_line_unique",
	"addresses_postal_code_check":     "postal_code_format",
	"addresses_address_line_check":    "address_line_length",
	"addresses_one_default_per_user":  "single_default_address",
	"orders_total_amount_check":       "order_total_not_negative",
	"orders_status_check":             "order_status_known",
	"orders_payment_status_check":     "payment_status_known",
	"idx_orders_order_number":         "order_number_unique",
	"order_line_items_quantity_check": "line_quantity_positive",
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		d.PGCode = pgxErr.Code
		d.PGConstraint = pgxErr.ConstraintName
		d.PGTable = pgxErr.TableName
		d.PGColumn = pgxErr.ColumnName
		d.PGDetail = pgxErr.Detail
		d.PGMessage = pgxErr.Message
	case errors.As(err, &pqErr):
		d.PGCode = string(pqErr.Code)
		d.PGConstraint = pqErr.Constraint
		d.PGTable = pqErr.Table
		d.PGColumn = pqErr.Column
		d.PGDetail = pqErr.Detail
		d.PGMessage = pqErr.Message
	default:
		return d
	}

	d.Rule = constraintRules[d.PGConstraint]
	d.Retryable = d.PGCode == pgSerializationFailure || d.PGCode == pgDeadlockDetected
	return d
}
