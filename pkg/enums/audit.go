package enums

// AuditAction labels rows in the audit trail.
type AuditAction string

const (
	AuditOrderCreated         AuditAction = "order.created"
	AuditOrderStatusChanged   AuditAction = "order.status_changed"
	AuditOrderCancelled       AuditAction = "order.cancelled"
	AuditOrderPaid            AuditAction = "order.paid"
	AuditOrderLinkAttached    AuditAction = "order.payment_link_attached"
	AuditOrderPaymentRejected AuditAction = "order.payment_rejected"
	AuditAddressCreated       AuditAction = "address.created"
	AuditAddressUpdated       AuditAction = "address.updated"
	AuditAddressDeleted       AuditAction = "address.deleted"
)

// AuditActor distinguishes who triggered an audited change.
type AuditActor string

const (
	AuditActorCustomer AuditActor = "customer"
	AuditActorAdmin    AuditActor = "admin"
	AuditActorSystem   AuditActor = "system"
)
