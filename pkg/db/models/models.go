package models

// All lists every persisted model, in dependency order, for sqlite
// AutoMigrate in tests and local CLI runs.
func All() []any {
	return []any{
		&Product{},
		&ProductVariant{},
		&CartItem{},
		&Address{},
		&Order{},
		&OrderLineItem{},
		&OutboxEvent{},
		&AuditLog{},
	}
}
