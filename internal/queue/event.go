// Package queue defines the audit messages exchanged over RabbitMQ together
// with the publisher used by the API and the consumer that archives them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// AuditQueueName is the durable queue every admin mutation is published to.
const AuditQueueName = "admin.audit"

// Audit event kinds.
const (
	KindCurrencyCreated      = "currency.created"
	KindCurrencyUpdated      = "currency.updated"
	KindCurrencyDeleted      = "currency.deleted"
	KindPivotChanged         = "currency.pivot_changed"
	KindDesignerAssigned     = "assignment.designer_assigned"
	KindDesignerUnassigned   = "assignment.designer_unassigned"
	KindScopeUpdated         = "event.scope_updated"
	KindEventCreated         = "event.created"
	KindEventUpdated         = "event.updated"
	KindEventDeleted         = "event.deleted"
	KindEventMediaSet        = "event.media_set"
	KindCategoryCreated      = "category.created"
	KindCategoryUpdated      = "category.updated"
	KindCategoryDeleted      = "category.deleted"
	KindSequencePartialWrite = "sequence.partial_failure"
)

// AuditEvent describes one completed (or half-completed) admin mutation.
// It carries enough context for downstream consumers to archive or alert on
// without querying the primary database.
type AuditEvent struct {
	ID          string         `json:"id"`           // unique message id
	Kind        string         `json:"kind"`         // one of the Kind* constants
	OperationID string         `json:"operation_id"` // shared with the log lines of the operation
	Actor       string         `json:"actor"`        // JWT subject of the admin, "system" otherwise
	Subject     string         `json:"subject"`      // e.g. "currency:3"
	Details     map[string]any `json:"details,omitempty"`
	Applied     []string       `json:"applied,omitempty"` // statements that ran, for partial failures
	Error       string         `json:"error,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

// NewAuditEvent fills in the id and timestamp.
func NewAuditEvent(kind, operationID, actor, subject string, details map[string]any) AuditEvent {
	if actor == "" {
		actor = "system"
	}
	return AuditEvent{
		ID:          uuid.NewString(),
		Kind:        kind,
		OperationID: operationID,
		Actor:       actor,
		Subject:     subject,
		Details:     details,
		OccurredAt:  time.Now().UTC(),
	}
}
