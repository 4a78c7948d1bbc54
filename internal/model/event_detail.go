package model

import "fmt"

// DetailKind is the logical role of an EventDetail row.  The role is never
// stored; it follows from which foreign keys are populated.
type DetailKind int

const (
	KindInvalid DetailKind = iota
	KindMallScope
	KindBoutiqueScope
	KindDesignerAssignment
	KindProductAssignment
)

func (k DetailKind) String() string {
	switch k {
	case KindMallScope:
		return "mall_scope"
	case KindBoutiqueScope:
		return "boutique_scope"
	case KindDesignerAssignment:
		return "designer_assignment"
	case KindProductAssignment:
		return "product_assignment"
	}
	return "invalid"
}

// EventDetail is one row of the event_details fact table.  Depending on the
// populated columns it declares a participating mall, a participating
// boutique, an active designer assignment, or a product created under an
// assignment (locked).
//
// Fields:
//  ID         – primary key identifier; higher means more recent.
//  EventID    – owning event (never null).
//  MallID     – participating mall (nullable).
//  BoutiqueID – participating boutique (nullable).
//  DesignerID – assigned designer (nullable).
//  ProductID  – product created under the assignment (nullable).
type EventDetail struct {
	ID         uint64  `json:"id"`          // event_details.id
	EventID    uint64  `json:"event_id"`    // event_details.event_id
	MallID     *uint64 `json:"mall_id"`     // event_details.mall_id (nullable)
	BoutiqueID *uint64 `json:"boutique_id"` // event_details.boutique_id (nullable)
	DesignerID *uint64 `json:"designer_id"` // event_details.designer_id (nullable)
	ProductID  *uint64 `json:"product_id"`  // event_details.product_id (nullable)
}

// Kind classifies the row.  A populated product wins over a designer, a
// designer over a boutique, a boutique over a mall.
func (d EventDetail) Kind() DetailKind {
	switch {
	case d.ProductID != nil:
		return KindProductAssignment
	case d.DesignerID != nil:
		return KindDesignerAssignment
	case d.BoutiqueID != nil:
		return KindBoutiqueScope
	case d.MallID != nil:
		return KindMallScope
	}
	return KindInvalid
}

// HasProduct reports whether the row is product-bearing (locked).
func (d EventDetail) HasProduct() bool { return d.ProductID != nil }

// IsActiveDesigner reports whether the row is a mutable designer assignment.
func (d EventDetail) IsActiveDesigner() bool { return d.DesignerID != nil && d.ProductID == nil }

// priority orders rows competing to be the current row of a boutique.
func (d EventDetail) priority() int {
	switch {
	case d.ProductID != nil:
		return 2
	case d.DesignerID != nil:
		return 1
	}
	return 0
}

// Supersedes reports whether d should replace o as the current row:
// has-product beats has-designer beats neither, ties go to the higher id.
func (d EventDetail) Supersedes(o EventDetail) bool {
	if pd, po := d.priority(), o.priority(); pd != po {
		return pd > po
	}
	return d.ID > o.ID
}

// IDPtr is a small helper for building nullable foreign keys.
func IDPtr(v uint64) *uint64 { return &v }

// SameID compares two nullable ids.
func SameID(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// MarshalText renders the kind by name in JSON.
func (k DetailKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText is the inverse of MarshalText.  Unknown names are an error.
func (k *DetailKind) UnmarshalText(b []byte) error {
	for _, c := range []DetailKind{KindInvalid, KindMallScope, KindBoutiqueScope, KindDesignerAssignment, KindProductAssignment} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown detail kind %q", b)
}
