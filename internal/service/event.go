package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/store"
)

// EventInput is the writable part of an event.  A nil MediaIDs leaves the
// attached media alone on update.
type EventInput struct {
	Code     string    `json:"code"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	MediaIDs []uint64  `json:"media_ids"`
}

func (in *EventInput) normalize() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return invalid("code", "code is required")
	}
	if in.Name == "" {
		return invalid("name", "name is required")
	}
	if in.StartsAt.IsZero() || in.EndsAt.IsZero() {
		return invalid("starts_at", "start and end are required")
	}
	in.StartsAt, in.EndsAt = in.StartsAt.UTC(), in.EndsAt.UTC()
	if !in.StartsAt.Before(in.EndsAt) {
		return invalid("ends_at", "the event must end after it starts")
	}
	if in.MediaIDs != nil {
		in.MediaIDs = dedupe(in.MediaIDs)
	}
	return nil
}

// EventService manages events and their media.  Scope and designer
// placement live in AssignmentManager.
type EventService struct {
	core
}

// NewEventService returns a service over st.
func NewEventService(st store.Store, opts Options) *EventService {
	return &EventService{core: newCore(st, opts, "event", NamespaceEvents)}
}

// List returns every event ordered by start, without media.
func (s *EventService) List(ctx context.Context) ([]model.Event, error) {
	return s.repos().Events.List(ctx)
}

// Get returns an event with its media in display order.
func (s *EventService) Get(ctx context.Context, id uint64) (model.Event, error) {
	r := s.repos()
	e, err := r.Events.Get(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	ids, err := r.Events.MediaIDs(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	if e.Media, err = r.Media.GetMany(ctx, ids); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

// Create inserts an event and links its media.
func (s *EventService) Create(ctx context.Context, in EventInput) (model.Event, error) {
	if err := in.normalize(); err != nil {
		return model.Event{}, err
	}
	candidate := model.Event{Code: in.Code, Name: in.Name, StartsAt: in.StartsAt, EndsAt: in.EndsAt}
	var created model.Event
	seq, err := s.write(ctx, "create_event", "event:"+in.Code, func(seq *sequence) error {
		if s.opts.OverlapOnCreate {
			if err := checkOverlap(ctx, seq, candidate); err != nil {
				return err
			}
		}
		if err := checkMedia(ctx, seq, in.MediaIDs); err != nil {
			return err
		}
		if err := seq.execf(func() error {
			var err error
			created, err = seq.Events.Create(ctx, candidate)
			return err
		}, "insert event %s", in.Code); err != nil {
			return err
		}
		if len(in.MediaIDs) == 0 {
			return nil
		}
		return seq.execf(func() error { return seq.Events.LinkMedia(ctx, created.ID, in.MediaIDs) },
			"link media %v to event %d", in.MediaIDs, created.ID)
	})
	if store.IsDuplicate(err) {
		return model.Event{}, invalid("code", "event code %s is already used", in.Code)
	}
	if err != nil {
		return model.Event{}, err
	}
	s.after(ctx, seq, queue.KindEventCreated, subjectEvent(created.ID), map[string]any{"code": created.Code})
	return s.Get(ctx, created.ID)
}

// Update rewrites an event.  The new dates must not overlap any other
// event.  Media is replaced only when in.MediaIDs is non-nil.
func (s *EventService) Update(ctx context.Context, id uint64, in EventInput) (model.Event, error) {
	if err := in.normalize(); err != nil {
		return model.Event{}, err
	}
	candidate := model.Event{ID: id, Code: in.Code, Name: in.Name, StartsAt: in.StartsAt, EndsAt: in.EndsAt}
	seq, err := s.write(ctx, "update_event", subjectEvent(id), func(seq *sequence) error {
		if _, err := seq.Events.Get(ctx, id); err != nil {
			return err
		}
		if err := checkOverlap(ctx, seq, candidate); err != nil {
			return err
		}
		if err := checkMedia(ctx, seq, in.MediaIDs); err != nil {
			return err
		}
		if err := seq.execf(func() error {
			_, err := seq.Events.Update(ctx, candidate)
			return err
		}, "update event %d", id); err != nil {
			return err
		}
		if in.MediaIDs == nil {
			return nil
		}
		return replaceMedia(ctx, seq, id, in.MediaIDs)
	})
	if store.IsDuplicate(err) {
		return model.Event{}, invalid("code", "event code %s is already used", in.Code)
	}
	if err != nil {
		return model.Event{}, err
	}
	s.after(ctx, seq, queue.KindEventUpdated, subjectEvent(id), map[string]any{"code": in.Code})
	return s.Get(ctx, id)
}

// SetMedia replaces the media of an event with mediaIDs in that order.
func (s *EventService) SetMedia(ctx context.Context, id uint64, mediaIDs []uint64) (model.Event, error) {
	mediaIDs = dedupe(mediaIDs)
	seq, err := s.write(ctx, "set_event_media", subjectEvent(id), func(seq *sequence) error {
		if _, err := seq.Events.Get(ctx, id); err != nil {
			return err
		}
		if err := checkMedia(ctx, seq, mediaIDs); err != nil {
			return err
		}
		return replaceMedia(ctx, seq, id, mediaIDs)
	})
	if err != nil {
		return model.Event{}, err
	}
	s.after(ctx, seq, queue.KindEventMediaSet, subjectEvent(id), map[string]any{"media_ids": mediaIDs})
	return s.Get(ctx, id)
}

// Delete removes an event with its scope rows and media links.  Events
// with products created under them are refused.
func (s *EventService) Delete(ctx context.Context, id uint64) error {
	seq, err := s.write(ctx, "delete_event", subjectEvent(id), func(seq *sequence) error {
		if _, err := seq.Events.Get(ctx, id); err != nil {
			return err
		}
		n, err := seq.EventDetails.CountProducts(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &InUseError{Entity: "event", ID: id, Dependent: "product assignments", Count: n}
		}
		if err := seq.execf(func() error {
			_, err := seq.EventDetails.DeleteForEvent(ctx, id)
			return err
		}, "delete event_details of event %d", id); err != nil {
			return err
		}
		if err := seq.execf(func() error {
			_, err := seq.Events.UnlinkMedia(ctx, id)
			return err
		}, "unlink media of event %d", id); err != nil {
			return err
		}
		return seq.execf(func() error {
			_, err := seq.Events.Delete(ctx, id)
			return err
		}, "delete event %d", id)
	})
	if err != nil {
		return err
	}
	s.after(ctx, seq, queue.KindEventDeleted, subjectEvent(id), nil)
	return nil
}

// RegisterMedia records an uploaded asset by URL.
func (s *EventService) RegisterMedia(ctx context.Context, rawURL string) (model.Media, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "s3") {
		return model.Media{}, invalid("url", "url must be an absolute http, https or s3 URL")
	}
	var m model.Media
	_, err = s.write(ctx, "register_media", "media", func(seq *sequence) error {
		return seq.exec("insert media", func() error {
			var err error
			m, err = seq.Media.Create(ctx, rawURL)
			return err
		})
	})
	return m, err
}

func replaceMedia(ctx context.Context, seq *sequence, eventID uint64, mediaIDs []uint64) error {
	if err := seq.execf(func() error {
		_, err := seq.Events.UnlinkMedia(ctx, eventID)
		return err
	}, "unlink media of event %d", eventID); err != nil {
		return err
	}
	if len(mediaIDs) == 0 {
		return nil
	}
	return seq.execf(func() error { return seq.Events.LinkMedia(ctx, eventID, mediaIDs) },
		"link media %v to event %d", mediaIDs, eventID)
}

func checkOverlap(ctx context.Context, seq *sequence, e model.Event) error {
	events, err := seq.Events.List(ctx)
	if err != nil {
		return err
	}
	for _, o := range events {
		if o.ID != e.ID && e.Overlaps(o) {
			return invalid("starts_at", "dates overlap event %s (%d)", o.Code, o.ID)
		}
	}
	return nil
}

func checkMedia(ctx context.Context, seq *sequence, ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := seq.Media.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	if len(found) != len(ids) {
		have := idSet{}
		for _, m := range found {
			have.add(m.ID)
		}
		return invalid("media_ids", "unknown media %v", newIDSet(ids...).minus(have))
	}
	return nil
}

func subjectEvent(id uint64) string { return fmt.Sprintf("event:%d", id) }
