package model

import "time"

// Event is a time-boxed promotion that malls, boutiques and designers take
// part in.  Participation is recorded in event_details; media is attached
// through the ordered event_media junction.
//
// Fields:
//  ID       – primary key identifier.
//  Code     – short unique code used by storefronts.
//  Name     – display name.
//  StartsAt – inclusive start instant (UTC).
//  EndsAt   – exclusive end instant (UTC); always after StartsAt.
//  Media    – attached media in display order.
type Event struct {
	ID        uint64    `json:"id"`         // events.id
	Code      string    `json:"code"`       // events.code
	Name      string    `json:"name"`       // events.name
	StartsAt  time.Time `json:"starts_at"`  // events.starts_at
	EndsAt    time.Time `json:"ends_at"`    // events.ends_at
	Media     []Media   `json:"media"`      // event_media ordered by position
	CreatedAt time.Time `json:"created_at"` // events.created_at
	UpdatedAt time.Time `json:"updated_at"` // events.updated_at
}

// Overlaps reports whether the half-open ranges of e and o intersect.
func (e Event) Overlaps(o Event) bool {
	return e.StartsAt.Before(o.EndsAt) && o.StartsAt.Before(e.EndsAt)
}

// Media is an uploaded asset referenced by URL.
type Media struct {
	ID        uint64    `json:"id"`         // media.id
	URL       string    `json:"url"`        // media.url
	CreatedAt time.Time `json:"created_at"` // media.created_at
}
