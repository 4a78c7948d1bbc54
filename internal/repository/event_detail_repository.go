package repository

import (
	"context"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/store"
)

// EventDetailRepo reads and writes the event_details fact table.
type EventDetailRepo struct {
	st store.Store
}

// NewEventDetailRepo binds an EventDetailRepo to a store handle.
func NewEventDetailRepo(st store.Store) *EventDetailRepo { return &EventDetailRepo{st: st} }

// ForEvent returns every row of an event ordered by id.
func (r *EventDetailRepo) ForEvent(ctx context.Context, eventID uint64) ([]model.EventDetail, error) {
	return r.find(ctx, store.Where(store.Eq("event_id", eventID)))
}

// ForEventMall returns every row of an (event, mall) pair ordered by id.
func (r *EventDetailRepo) ForEventMall(ctx context.Context, eventID, mallID uint64) ([]model.EventDetail, error) {
	return r.find(ctx, store.Where(store.Eq("event_id", eventID), store.Eq("mall_id", mallID)))
}

// ForBoutique returns every row of an (event, mall, boutique) triple.
func (r *EventDetailRepo) ForBoutique(ctx context.Context, eventID, mallID, boutiqueID uint64) ([]model.EventDetail, error) {
	return r.find(ctx, boutiqueFilter(eventID, mallID, boutiqueID))
}

func boutiqueFilter(eventID, mallID, boutiqueID uint64) store.Filter {
	return store.Where(
		store.Eq("event_id", eventID),
		store.Eq("mall_id", mallID),
		store.Eq("boutique_id", boutiqueID),
	)
}

// CountProducts reports how many product-bearing rows an event has.
func (r *EventDetailRepo) CountProducts(ctx context.Context, eventID uint64) (int64, error) {
	return r.st.Count(ctx, TableEventDetails, store.Where(store.Eq("event_id", eventID), store.NotNull("product_id")))
}

// Insert stores one row.
func (r *EventDetailRepo) Insert(ctx context.Context, d model.EventDetail) (model.EventDetail, error) {
	row, err := r.st.Insert(ctx, TableEventDetails, detailToRow(d))
	if err != nil {
		return model.EventDetail{}, err
	}
	return detailFromRow(row), nil
}

// InsertMany stores rows in order.
func (r *EventDetailRepo) InsertMany(ctx context.Context, ds []model.EventDetail) ([]model.EventDetail, error) {
	if len(ds) == 0 {
		return nil, nil
	}
	in := make([]store.Row, len(ds))
	for i, d := range ds {
		in[i] = detailToRow(d)
	}
	rows, err := r.st.InsertMany(ctx, TableEventDetails, in)
	out := make([]model.EventDetail, len(rows))
	for i, row := range rows {
		out[i] = detailFromRow(row)
	}
	return out, err
}

// SetDesigner rewrites the designer of row id in place.
func (r *EventDetailRepo) SetDesigner(ctx context.Context, id, designerID uint64) (model.EventDetail, error) {
	row, err := r.st.Update(ctx, TableEventDetails, store.Where(store.Eq("id", id)), store.Row{"designer_id": designerID})
	if err != nil {
		return model.EventDetail{}, err
	}
	return detailFromRow(row), nil
}

// DeleteActiveDesigners removes the designer rows of a boutique that carry
// no product.  Scope rows and product rows are left alone.
func (r *EventDetailRepo) DeleteActiveDesigners(ctx context.Context, eventID, mallID, boutiqueID uint64) (int64, error) {
	f := boutiqueFilter(eventID, mallID, boutiqueID).And(store.NotNull("designer_id"), store.IsNull("product_id"))
	return r.st.Delete(ctx, TableEventDetails, f)
}

// DeleteIDs removes rows by id, but never a product-bearing one.
func (r *EventDetailRepo) DeleteIDs(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.st.Delete(ctx, TableEventDetails, store.Where(store.In("id", ids...), store.IsNull("product_id")))
}

// DeleteForEvent removes every row of an event.  Callers check for product
// rows first.
func (r *EventDetailRepo) DeleteForEvent(ctx context.Context, eventID uint64) (int64, error) {
	return r.st.Delete(ctx, TableEventDetails, store.Where(store.Eq("event_id", eventID)))
}

func (r *EventDetailRepo) find(ctx context.Context, f store.Filter) ([]model.EventDetail, error) {
	rows, err := r.st.Find(ctx, TableEventDetails, f, store.FindOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]model.EventDetail, len(rows))
	for i, row := range rows {
		out[i] = detailFromRow(row)
	}
	return out, nil
}

func detailToRow(d model.EventDetail) store.Row {
	return store.Row{
		"event_id":    d.EventID,
		"mall_id":     d.MallID,
		"boutique_id": d.BoutiqueID,
		"designer_id": d.DesignerID,
		"product_id":  d.ProductID,
	}
}

func detailFromRow(row store.Row) model.EventDetail {
	return model.EventDetail{
		ID:         row.ID(),
		EventID:    row.Uint64("event_id"),
		MallID:     row.NullUint64("mall_id"),
		BoutiqueID: row.NullUint64("boutique_id"),
		DesignerID: row.NullUint64("designer_id"),
		ProductID:  row.NullUint64("product_id"),
	}
}
