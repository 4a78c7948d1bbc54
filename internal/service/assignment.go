package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/store"
)

// AssignmentManager owns designer placement and event scope in the
// event_details table.  It keeps at most one active designer per boutique,
// never places a designer in two boutiques of the same event and mall, and
// never deletes a product-bearing row.
type AssignmentManager struct {
	core
}

// NewAssignmentManager returns a manager over st.
func NewAssignmentManager(st store.Store, opts Options) *AssignmentManager {
	return &AssignmentManager{core: newCore(st, opts, "assignment", NamespaceEvents)}
}

// Scope is the set of malls and boutiques an event is declared in.
type Scope struct {
	EventID     uint64   `json:"event_id"`
	MallIDs     []uint64 `json:"mall_ids"`
	BoutiqueIDs []uint64 `json:"boutique_ids"`
	// LockedBoutiqueIDs cannot leave the scope.
	LockedBoutiqueIDs []uint64 `json:"locked_boutique_ids"`
}

// ScopeChange reports what UpdateEventScope did.
type ScopeChange struct {
	Scope
	MallsAdded         []uint64 `json:"malls_added"`
	MallsRemoved       []uint64 `json:"malls_removed"`
	BoutiquesAdded     []uint64 `json:"boutiques_added"`
	BoutiquesRemoved   []uint64 `json:"boutiques_removed"`
	BoutiquesRetained  []uint64 `json:"boutiques_retained"` // omitted but locked
	AssignmentsCleared int64    `json:"assignments_cleared"`
	Writes             int      `json:"writes"`
}

// ResolveCurrentAssignment returns the current assignment of every boutique
// of the (event, mall) pair.  It is recomputed from the rows on each call.
func (m *AssignmentManager) ResolveCurrentAssignment(ctx context.Context, eventID, mallID uint64) ([]ResolvedAssignment, error) {
	rows, err := m.repos().EventDetails.ForEventMall(ctx, eventID, mallID)
	if err != nil {
		return nil, err
	}
	return ResolveAssignments(rows), nil
}

// Resolve returns the current assignment of one boutique.  ok is false when
// the boutique has no rows in the (event, mall) pair.
func (m *AssignmentManager) Resolve(ctx context.Context, eventID, mallID, boutiqueID uint64) (ResolvedAssignment, bool, error) {
	rows, err := m.repos().EventDetails.ForBoutique(ctx, eventID, mallID, boutiqueID)
	if err != nil {
		return ResolvedAssignment{}, false, err
	}
	res := ResolveAssignments(rows)
	if len(res) == 0 {
		return ResolvedAssignment{}, false, nil
	}
	return res[0], true, nil
}

// AssignDesigner places designerID in the boutique.  An existing active
// designer row is rewritten in place; otherwise a new row is inserted.
// Unless StrictLocks is set, the caller is trusted to have checked the lock.
func (m *AssignmentManager) AssignDesigner(ctx context.Context, eventID, mallID, boutiqueID, designerID uint64) (model.EventDetail, error) {
	if eventID == 0 || mallID == 0 || boutiqueID == 0 || designerID == 0 {
		return model.EventDetail{}, invalid("", "event, mall, boutique and designer are required")
	}
	var result model.EventDetail
	subject := fmt.Sprintf("event:%d/boutique:%d", eventID, boutiqueID)
	seq, err := m.write(ctx, "assign_designer", subject, func(s *sequence) error {
		if _, err := s.Events.Get(ctx, eventID); err != nil {
			return err
		}
		b, err := s.Directory.Boutique(ctx, boutiqueID)
		if store.IsNotFound(err) {
			return invalid("boutique_id", "boutique %d does not exist", boutiqueID)
		} else if err != nil {
			return err
		}
		if b.MallID != mallID {
			return invalid("boutique_id", "boutique %d is not in mall %d", boutiqueID, mallID)
		}
		ok, err := s.Directory.DesignerExists(ctx, designerID)
		if err != nil {
			return err
		}
		if !ok {
			return invalid("designer_id", "designer %d does not exist", designerID)
		}

		rows, err := s.EventDetails.ForEventMall(ctx, eventID, mallID)
		if err != nil {
			return err
		}
		var (
			active *model.EventDetail
			own    []model.EventDetail
		)
		for i, r := range rows {
			if r.DesignerID != nil && *r.DesignerID == designerID && r.BoutiqueID != nil && *r.BoutiqueID != boutiqueID {
				return &DesignerAlreadyAssignedError{DesignerID: designerID, BoutiqueID: *r.BoutiqueID}
			}
			if r.BoutiqueID == nil || *r.BoutiqueID != boutiqueID {
				continue
			}
			own = append(own, r)
			if r.IsActiveDesigner() && (active == nil || r.ID > active.ID) {
				active = &rows[i]
			}
		}
		if m.opts.StrictLocks && anyProduct(own) {
			return &AssignmentLockedError{EventID: eventID, MallID: mallID, BoutiqueID: boutiqueID}
		}

		if active != nil {
			if *active.DesignerID == designerID {
				result = *active
				return nil
			}
			return s.execf(func() error {
				var err error
				result, err = s.EventDetails.SetDesigner(ctx, active.ID, designerID)
				return err
			}, "set designer %d on event_details %d", designerID, active.ID)
		}
		return s.execf(func() error {
			var err error
			result, err = s.EventDetails.Insert(ctx, model.EventDetail{
				EventID:    eventID,
				MallID:     model.IDPtr(mallID),
				BoutiqueID: model.IDPtr(boutiqueID),
				DesignerID: model.IDPtr(designerID),
			})
			return err
		}, "insert designer %d for boutique %d", designerID, boutiqueID)
	})
	if err != nil {
		return model.EventDetail{}, err
	}
	if seq.writes > 0 {
		m.after(ctx, seq, queue.KindDesignerAssigned, subject,
			map[string]any{"mall_id": mallID, "designer_id": designerID, "row_id": result.ID})
	}
	return result, nil
}

// UnassignDesigner removes the active designer rows of the boutique.  Scope
// rows stay; a boutique with any product row is refused.
func (m *AssignmentManager) UnassignDesigner(ctx context.Context, eventID, mallID, boutiqueID uint64) (int64, error) {
	var n int64
	subject := fmt.Sprintf("event:%d/boutique:%d", eventID, boutiqueID)
	seq, err := m.write(ctx, "unassign_designer", subject, func(s *sequence) error {
		rows, err := s.EventDetails.ForBoutique(ctx, eventID, mallID, boutiqueID)
		if err != nil {
			return err
		}
		if anyProduct(rows) {
			return &AssignmentLockedError{EventID: eventID, MallID: mallID, BoutiqueID: boutiqueID}
		}
		return s.execf(func() error {
			var err error
			n, err = s.EventDetails.DeleteActiveDesigners(ctx, eventID, mallID, boutiqueID)
			return err
		}, "delete designer rows of boutique %d", boutiqueID)
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.after(ctx, seq, queue.KindDesignerUnassigned, subject,
			map[string]any{"mall_id": mallID, "rows": n})
	}
	return n, nil
}

// EventScope returns the malls and boutiques an event currently covers.
func (m *AssignmentManager) EventScope(ctx context.Context, eventID uint64) (Scope, error) {
	if _, err := m.repos().Events.Get(ctx, eventID); err != nil {
		return Scope{}, err
	}
	rows, err := m.repos().EventDetails.ForEvent(ctx, eventID)
	if err != nil {
		return Scope{}, err
	}
	return indexScope(eventID, rows).scope(), nil
}

// scopeIndex classifies the rows of one event.
type scopeIndex struct {
	eventID        uint64
	mallRows       map[uint64][]uint64 // mall id -> mall-only row ids
	boutiqueRows   map[uint64][]uint64 // boutique id -> boutique-only row ids
	designerRows   map[uint64][]uint64 // boutique id -> active designer row ids
	boutiqueMall   map[uint64]uint64   // boutique id -> mall id seen on its rows
	lockedBoutique idSet
}

func indexScope(eventID uint64, rows []model.EventDetail) *scopeIndex {
	ix := &scopeIndex{
		eventID:        eventID,
		mallRows:       map[uint64][]uint64{},
		boutiqueRows:   map[uint64][]uint64{},
		designerRows:   map[uint64][]uint64{},
		boutiqueMall:   map[uint64]uint64{},
		lockedBoutique: idSet{},
	}
	for _, r := range rows {
		if r.BoutiqueID != nil && r.MallID != nil {
			ix.boutiqueMall[*r.BoutiqueID] = *r.MallID
		}
		switch r.Kind() {
		case model.KindMallScope:
			ix.mallRows[*r.MallID] = append(ix.mallRows[*r.MallID], r.ID)
		case model.KindBoutiqueScope:
			ix.boutiqueRows[*r.BoutiqueID] = append(ix.boutiqueRows[*r.BoutiqueID], r.ID)
		case model.KindDesignerAssignment:
			if r.BoutiqueID != nil {
				ix.designerRows[*r.BoutiqueID] = append(ix.designerRows[*r.BoutiqueID], r.ID)
			}
		case model.KindProductAssignment:
			if r.BoutiqueID != nil {
				ix.lockedBoutique.add(*r.BoutiqueID)
			}
		}
	}
	return ix
}

func (ix *scopeIndex) malls() idSet {
	s := idSet{}
	for id := range ix.mallRows {
		s.add(id)
	}
	return s
}

func (ix *scopeIndex) boutiques() idSet {
	s := idSet{}
	for id := range ix.boutiqueRows {
		s.add(id)
	}
	for id := range ix.designerRows {
		s.add(id)
	}
	for id := range ix.lockedBoutique {
		s.add(id)
	}
	return s
}

func (ix *scopeIndex) scope() Scope {
	return Scope{
		EventID:           ix.eventID,
		MallIDs:           ix.malls().sorted(),
		BoutiqueIDs:       ix.boutiques().sorted(),
		LockedBoutiqueIDs: ix.lockedBoutique.sorted(),
	}
}

// UpdateEventScope rewrites the event's mall and boutique scope to the given
// sets by diffing against the stored rows.  Every boutique must belong to
// one of the given malls.  Boutiques with products are kept even when
// omitted, together with their mall.  Removing a boutique first deletes its
// active designer rows, then its scope rows.  Repeating a call with the same
// sets issues no writes.
func (m *AssignmentManager) UpdateEventScope(ctx context.Context, eventID uint64, mallIDs, boutiqueIDs []uint64) (ScopeChange, error) {
	mallIDs, boutiqueIDs = dedupe(mallIDs), dedupe(boutiqueIDs)
	for _, id := range append(append([]uint64{}, mallIDs...), boutiqueIDs...) {
		if id == 0 {
			return ScopeChange{}, invalid("", "ids must be positive")
		}
	}

	var ch ScopeChange
	subject := fmt.Sprintf("event:%d", eventID)
	seq, err := m.write(ctx, "update_event_scope", subject, func(s *sequence) error {
		if _, err := s.Events.Get(ctx, eventID); err != nil {
			return err
		}
		missing, err := s.Directory.MissingMalls(ctx, mallIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return invalid("mall_ids", "unknown malls %v", missing)
		}
		boutiques, err := s.Directory.Boutiques(ctx, boutiqueIDs)
		if err != nil {
			return err
		}
		targetMalls := newIDSet(mallIDs...)
		for _, id := range boutiqueIDs {
			b, ok := boutiques[id]
			if !ok {
				return invalid("boutique_ids", "unknown boutique %d", id)
			}
			if !targetMalls.has(b.MallID) {
				return invalid("boutique_ids", "boutique %d belongs to mall %d which is not in scope", id, b.MallID)
			}
		}

		rows, err := s.EventDetails.ForEvent(ctx, eventID)
		if err != nil {
			return err
		}
		ix := indexScope(eventID, rows)
		targetBoutiques := newIDSet(boutiqueIDs...)

		// Locked boutiques outside the target keep their mall in scope.
		retainedMalls := idSet{}
		for bid := range ix.lockedBoutique {
			if !targetBoutiques.has(bid) {
				ch.BoutiquesRetained = append(ch.BoutiquesRetained, bid)
				if mid, ok := ix.boutiqueMall[bid]; ok {
					retainedMalls.add(mid)
				}
			}
		}
		ch.BoutiquesRetained = newIDSet(ch.BoutiquesRetained...).sorted()

		current := ix.malls()
		ch.MallsRemoved = current.minus(targetMalls, retainedMalls)
		ch.MallsAdded = targetMalls.minus(current)
		ch.BoutiquesRemoved = ix.boutiques().minus(targetBoutiques, ix.lockedBoutique)
		withScopeRow := idSet{}
		for bid := range ix.boutiqueRows {
			withScopeRow.add(bid)
		}
		ch.BoutiquesAdded = targetBoutiques.minus(withScopeRow)

		for _, mid := range ch.MallsRemoved {
			ids := ix.mallRows[mid]
			if err := s.execf(func() error {
				_, err := s.EventDetails.DeleteIDs(ctx, ids)
				return err
			}, "delete mall %d scope rows %v", mid, ids); err != nil {
				return err
			}
		}
		if len(ch.MallsAdded) > 0 {
			add := make([]model.EventDetail, len(ch.MallsAdded))
			for i, mid := range ch.MallsAdded {
				add[i] = model.EventDetail{EventID: eventID, MallID: model.IDPtr(mid)}
			}
			if err := s.execf(func() error {
				_, err := s.EventDetails.InsertMany(ctx, add)
				return err
			}, "insert mall scope rows %v", ch.MallsAdded); err != nil {
				return err
			}
		}
		for _, bid := range ch.BoutiquesRemoved {
			if ids := ix.designerRows[bid]; len(ids) > 0 {
				if err := s.execf(func() error {
					n, err := s.EventDetails.DeleteIDs(ctx, ids)
					ch.AssignmentsCleared += n
					return err
				}, "delete designer rows %v of boutique %d", ids, bid); err != nil {
					return err
				}
			}
			if ids := ix.boutiqueRows[bid]; len(ids) > 0 {
				if err := s.execf(func() error {
					_, err := s.EventDetails.DeleteIDs(ctx, ids)
					return err
				}, "delete boutique %d scope rows %v", bid, ids); err != nil {
					return err
				}
			}
		}
		if len(ch.BoutiquesAdded) > 0 {
			add := make([]model.EventDetail, len(ch.BoutiquesAdded))
			for i, bid := range ch.BoutiquesAdded {
				add[i] = model.EventDetail{
					EventID:    eventID,
					MallID:     model.IDPtr(boutiques[bid].MallID),
					BoutiqueID: model.IDPtr(bid),
				}
			}
			if err := s.execf(func() error {
				_, err := s.EventDetails.InsertMany(ctx, add)
				return err
			}, "insert boutique scope rows %v", ch.BoutiquesAdded); err != nil {
				return err
			}
		}

		after, err := s.EventDetails.ForEvent(ctx, eventID)
		if err != nil {
			return err
		}
		ch.Scope = indexScope(eventID, after).scope()
		return nil
	})
	if err != nil {
		return ScopeChange{}, err
	}
	ch.Writes = seq.writes
	if seq.writes > 0 {
		m.after(ctx, seq, queue.KindScopeUpdated, subject, map[string]any{
			"malls_added":       ch.MallsAdded,
			"malls_removed":     ch.MallsRemoved,
			"boutiques_added":   ch.BoutiquesAdded,
			"boutiques_removed": ch.BoutiquesRemoved,
		})
	}
	return ch, nil
}
