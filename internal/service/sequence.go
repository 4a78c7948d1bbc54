package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/repository"
	"github.com/iliyamo/mall-admin/internal/store"
)

// core is embedded by every manager.  It owns the store handle, the options
// and the write path.  ns is the cache namespace the manager's writes touch.
type core struct {
	st   store.Store
	opts Options
	log  *log.Logger
	ns   string
}

func newCore(st store.Store, opts Options, prefix, namespace string) core {
	if st == nil {
		panic("service: nil store")
	}
	opts = opts.withDefaults(prefix)
	return core{st: st, opts: opts, log: opts.Logger, ns: namespace}
}

// repos returns repositories bound to the base store, for reads.
func (c *core) repos() *repository.Repos { return repository.New(c.st) }

// sequence is the handle a write operation works through.  Every mutating
// statement goes through exec so the applied list is accurate when a later
// statement fails.
type sequence struct {
	*repository.Repos
	op      string
	id      string
	applied []string
	writes  int
}

// exec runs one mutating statement and records it under desc on success.
func (s *sequence) exec(desc string, fn func() error) error {
	s.writes++
	if err := fn(); err != nil {
		return err
	}
	s.applied = append(s.applied, desc)
	return nil
}

func (s *sequence) execf(fn func() error, format string, args ...any) error {
	return s.exec(fmt.Sprintf(format, args...), fn)
}

// write runs fn as one operation.  In atomic mode on a transactional store
// fn sees a transaction-bound handle and any error rolls everything back.
// Otherwise statements commit one by one; a failure after at least one
// applied statement is logged at ERROR with the applied list, the cache
// namespace is invalidated so reads show the partial state, and a
// partial-failure audit event is published before the error is returned
// unchanged.
func (c *core) write(ctx context.Context, op, subject string, fn func(s *sequence) error) (*sequence, error) {
	opID := uuid.NewString()
	newSeq := func(st store.Store) *sequence {
		return &sequence{Repos: repository.New(st), op: op, id: opID}
	}

	if tx, ok := c.st.(store.Transactor); ok && c.opts.Atomic {
		var seq *sequence
		err := tx.WithinTx(ctx, func(txs store.Store) error {
			seq = newSeq(txs)
			return fn(seq)
		})
		if err != nil {
			if seq != nil && len(seq.applied) > 0 {
				c.log.Warnj(log.JSON{"msg": "operation rolled back", "op": op, "operation_id": opID,
					"subject": subject, "rolled_back": seq.applied, "error": err.Error()})
			}
			return seq, err
		}
		c.log.Debugj(log.JSON{"msg": "operation committed", "op": op, "operation_id": opID, "statements": seq.applied})
		return seq, nil
	}

	seq := newSeq(c.st)
	err := fn(seq)
	if err != nil && len(seq.applied) > 0 {
		c.log.Errorj(log.JSON{
			"msg":          "partial write: earlier statements were not rolled back",
			"op":           op,
			"operation_id": opID,
			"subject":      subject,
			"applied":      seq.applied,
			"error":        err.Error(),
		})
		c.invalidate(ctx)
		ev := queue.NewAuditEvent(queue.KindSequencePartialWrite, opID, ActorFrom(ctx), subject, map[string]any{"op": op})
		ev.Applied = seq.applied
		ev.Error = err.Error()
		c.record(ctx, ev)
	}
	return seq, err
}

// after runs the post-commit side effects of a successful write.  Failures
// are logged and swallowed; the write itself already happened.
func (c *core) after(ctx context.Context, seq *sequence, kind, subject string, details map[string]any) {
	c.invalidate(ctx)
	c.record(ctx, queue.NewAuditEvent(kind, seq.id, ActorFrom(ctx), subject, details))
}

func (c *core) invalidate(ctx context.Context) {
	if err := c.opts.Invalidator.Invalidate(ctx, c.ns); err != nil {
		c.log.Warnj(log.JSON{"msg": "cache invalidation failed", "namespace": c.ns, "error": err.Error()})
	}
}

func (c *core) record(ctx context.Context, ev queue.AuditEvent) {
	if err := c.opts.Auditor.Record(ctx, ev); err != nil {
		c.log.Warnj(log.JSON{"msg": "audit publish failed", "kind": ev.Kind, "operation_id": ev.OperationID, "error": err.Error()})
	}
}
