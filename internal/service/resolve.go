package service

import (
	"sort"

	"github.com/iliyamo/mall-admin/internal/model"
)

// ResolvedAssignment is the current state of one boutique inside an
// (event, mall) scope, derived from all of its EventDetail rows.
type ResolvedAssignment struct {
	EventID    uint64            `json:"event_id"`
	MallID     *uint64           `json:"mall_id"`
	BoutiqueID uint64            `json:"boutique_id"`
	Current    model.EventDetail `json:"current"`
	Kind       model.DetailKind  `json:"kind"`
	DesignerID *uint64           `json:"designer_id"`
	ProductID  *uint64           `json:"product_id"`
	IsLocked   bool              `json:"is_locked"`
	RowCount   int               `json:"row_count"`
}

// ResolveAssignments groups rows by boutique and picks the current row of
// each: a product-bearing row beats a designer row, which beats a scope
// row, and the higher id wins among equals.  A boutique is locked when its
// current row carries a product or any other row of the same boutique and
// designer does.  Rows without a boutique (mall scope) are ignored.  The
// result is ordered by boutique id.  It never touches the store.
func ResolveAssignments(rows []model.EventDetail) []ResolvedAssignment {
	groups := make(map[uint64][]model.EventDetail)
	for _, r := range rows {
		if r.BoutiqueID == nil {
			continue
		}
		groups[*r.BoutiqueID] = append(groups[*r.BoutiqueID], r)
	}

	out := make([]ResolvedAssignment, 0, len(groups))
	for bid, group := range groups {
		cur := group[0]
		for _, r := range group[1:] {
			if r.Supersedes(cur) {
				cur = r
			}
		}
		locked := cur.HasProduct()
		if !locked && cur.DesignerID != nil {
			for _, r := range group {
				if r.HasProduct() && model.SameID(r.DesignerID, cur.DesignerID) {
					locked = true
					break
				}
			}
		}
		out = append(out, ResolvedAssignment{
			EventID:    cur.EventID,
			MallID:     cur.MallID,
			BoutiqueID: bid,
			Current:    cur,
			Kind:       cur.Kind(),
			DesignerID: cur.DesignerID,
			ProductID:  cur.ProductID,
			IsLocked:   locked,
			RowCount:   len(group),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoutiqueID < out[j].BoutiqueID })
	return out
}

// anyProduct reports whether any row carries a product.
func anyProduct(rows []model.EventDetail) bool {
	for _, r := range rows {
		if r.HasProduct() {
			return true
		}
	}
	return false
}
