package event

// Type identifies the type of domain event
type Type string

const (
	TypeTransactionCreated   Type = "transaction.created"
	TypeStatusChanged        Type = "transaction.status_changed"
	TypeTransactionRejected  Type = "transaction.rejected"
	TypeTransactionCompleted Type = "transaction.completed"
	TypeTransactionDiscarded Type = "transaction.discarded"
	TypePermissionsLoaded    Type = "permissions.loaded"
	TypeTemplatesImported    Type = "templates.imported"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTransactionCreated,
		TypeStatusChanged,
		TypeTransactionRejected,
		TypeTransactionCompleted,
		TypeTransactionDiscarded,
		TypePermissionsLoaded,
		TypeTemplatesImported:
		return true
	default:
		return false
	}
}
