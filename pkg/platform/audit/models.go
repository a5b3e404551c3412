package audit

import (
	"context"
	"time"

	id "sixd/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and routing downstream.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/registry significance:
	// account creation and every change to a registered address.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers authentication outcomes.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine profile activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        id.EventID
	Category  EventCategory
	Timestamp time.Time
	AccountID id.AccountID
	Action    string
	// Subject is the business identifier the action concerns, such as a
	// 6D code. Never a phone number.
	Subject   string
	Reason    string
	RequestID string
	// Device is a display label derived from the User-Agent.
	Device string
}

type AuditEvent string

const (
	EventAccountCreated    AuditEvent = "account_created"
	EventAccountRenamed    AuditEvent = "account_renamed"
	EventAddressRegistered AuditEvent = "address_registered"
	EventAddressUpdated    AuditEvent = "address_updated"
	EventSessionIssued     AuditEvent = "session_issued"
	EventAuthFailed        AuditEvent = "auth_failed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventAccountCreated:    CategoryCompliance,
	EventAddressRegistered: CategoryCompliance,
	EventAddressUpdated:    CategoryCompliance,

	EventSessionIssued: CategorySecurity,
	EventAuthFailed:    CategorySecurity,

	EventAccountRenamed: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. Postgres implementations join the caller's
// transaction when one is present in ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}
