package repository

import (
	"context"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/store"
)

// EventRepo reads and writes events and their ordered media links.
type EventRepo struct {
	st store.Store
}

// NewEventRepo binds an EventRepo to a store handle.
func NewEventRepo(st store.Store) *EventRepo { return &EventRepo{st: st} }

// Get returns an event without media.
func (r *EventRepo) Get(ctx context.Context, id uint64) (model.Event, error) {
	row, err := r.st.FindOne(ctx, TableEvents, store.Where(store.Eq("id", id)))
	if err != nil {
		return model.Event{}, err
	}
	return eventFromRow(row), nil
}

// List returns every event ordered by start time.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.st.Find(ctx, TableEvents, nil, store.OrderBy(store.Asc("starts_at")))
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, len(rows))
	for i, row := range rows {
		out[i] = eventFromRow(row)
	}
	return out, nil
}

// Create inserts an event.
func (r *EventRepo) Create(ctx context.Context, e model.Event) (model.Event, error) {
	row, err := r.st.Insert(ctx, TableEvents, store.Row{
		"code":      e.Code,
		"name":      e.Name,
		"starts_at": e.StartsAt,
		"ends_at":   e.EndsAt,
	})
	if err != nil {
		return model.Event{}, err
	}
	return eventFromRow(row), nil
}

// Update rewrites the scalar fields of an event.
func (r *EventRepo) Update(ctx context.Context, e model.Event) (model.Event, error) {
	row, err := r.st.Update(ctx, TableEvents, store.Where(store.Eq("id", e.ID)), store.Row{
		"code":      e.Code,
		"name":      e.Name,
		"starts_at": e.StartsAt,
		"ends_at":   e.EndsAt,
	})
	if err != nil {
		return model.Event{}, err
	}
	return eventFromRow(row), nil
}

// Delete removes an event row.
func (r *EventRepo) Delete(ctx context.Context, id uint64) (int64, error) {
	return r.st.Delete(ctx, TableEvents, store.Where(store.Eq("id", id)))
}

// MediaIDs returns the media ids linked to an event in display order.
func (r *EventRepo) MediaIDs(ctx context.Context, eventID uint64) ([]uint64, error) {
	rows, err := r.st.Find(ctx, TableEventMedia, store.Where(store.Eq("event_id", eventID)), store.OrderBy(store.Asc("position")))
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(rows))
	for i, row := range rows {
		out[i] = row.Uint64("media_id")
	}
	return out, nil
}

// UnlinkMedia removes every media link of an event.
func (r *EventRepo) UnlinkMedia(ctx context.Context, eventID uint64) (int64, error) {
	return r.st.Delete(ctx, TableEventMedia, store.Where(store.Eq("event_id", eventID)))
}

// LinkMedia appends links in the given order, positions starting at 0.
func (r *EventRepo) LinkMedia(ctx context.Context, eventID uint64, mediaIDs []uint64) error {
	if len(mediaIDs) == 0 {
		return nil
	}
	rows := make([]store.Row, len(mediaIDs))
	for i, id := range mediaIDs {
		rows[i] = store.Row{"event_id": eventID, "media_id": id, "position": i}
	}
	_, err := r.st.InsertMany(ctx, TableEventMedia, rows)
	return err
}

func eventFromRow(row store.Row) model.Event {
	return model.Event{
		ID:        row.ID(),
		Code:      row.String("code"),
		Name:      row.String("name"),
		StartsAt:  row.Time("starts_at"),
		EndsAt:    row.Time("ends_at"),
		Media:     []model.Media{},
		CreatedAt: row.Time("created_at"),
		UpdatedAt: row.Time("updated_at"),
	}
}

// MediaRepo reads and writes uploaded media records.
type MediaRepo struct {
	st store.Store
}

// NewMediaRepo binds a MediaRepo to a store handle.
func NewMediaRepo(st store.Store) *MediaRepo { return &MediaRepo{st: st} }

// Create records a media URL.
func (r *MediaRepo) Create(ctx context.Context, url string) (model.Media, error) {
	row, err := r.st.Insert(ctx, TableMedia, store.Row{"url": url})
	if err != nil {
		return model.Media{}, err
	}
	return mediaFromRow(row), nil
}

// GetMany returns the media with the given ids, in the order of ids.
// Unknown ids are skipped.
func (r *MediaRepo) GetMany(ctx context.Context, ids []uint64) ([]model.Media, error) {
	if len(ids) == 0 {
		return []model.Media{}, nil
	}
	rows, err := r.st.Find(ctx, TableMedia, store.Where(store.In("id", ids...)), store.FindOptions{})
	if err != nil {
		return nil, err
	}
	byID := make(map[uint64]model.Media, len(rows))
	for _, row := range rows {
		m := mediaFromRow(row)
		byID[m.ID] = m
	}
	out := make([]model.Media, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func mediaFromRow(row store.Row) model.Media {
	return model.Media{ID: row.ID(), URL: row.String("url"), CreatedAt: row.Time("created_at")}
}
