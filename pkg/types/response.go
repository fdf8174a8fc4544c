package types

// Payload is a flat success body. Storefront clients read top-level keys
// (items, item, order, ...) so nothing is nested under a data field.
type Payload map[string]any

// ErrorEnvelope carries the message under both message and error so either
// reader style works.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
