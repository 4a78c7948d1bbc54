// Package service holds the reference-data managers: the currency pivot
// manager, the event assignment manager and the event and category
// services.  Managers depend only on store.Store; when the store also
// implements store.Transactor and atomic writes are on, every
// multi-statement operation runs in one transaction.
package service

import (
	"context"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/mall-admin/internal/logging"
	"github.com/iliyamo/mall-admin/internal/queue"
)

// Cache namespaces bumped after successful writes.
const (
	NamespaceCurrencies = "currencies"
	NamespaceEvents     = "events"
	NamespaceCategories = "categories"
)

// Invalidator drops cached reads for a namespace.
type Invalidator interface {
	Invalidate(ctx context.Context, namespace string) error
}

// Auditor records completed mutations.
type Auditor interface {
	Record(ctx context.Context, ev queue.AuditEvent) error
}

// Options configure every manager.
type Options struct {
	// Atomic groups multi-statement writes into one transaction when the
	// store supports it.
	Atomic bool
	// StrictLocks makes AssignDesigner refuse boutiques with products
	// instead of trusting the caller to have checked.
	StrictLocks bool
	// OverlapOnCreate checks event date overlap on create as well as update.
	OverlapOnCreate bool

	Logger      *log.Logger
	Invalidator Invalidator
	Auditor     Auditor
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context, string) error { return nil }

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, queue.AuditEvent) error { return nil }

func (o Options) withDefaults(prefix string) Options {
	if o.Logger == nil {
		o.Logger = logging.New(prefix)
	}
	if o.Invalidator == nil {
		o.Invalidator = noopInvalidator{}
	}
	if o.Auditor == nil {
		o.Auditor = noopAuditor{}
	}
	return o
}

type actorKey struct{}

// WithActor tags ctx with the admin performing the operation.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the admin stored by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}
