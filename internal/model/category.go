package model

import "time"

// Category is a node of the product category tree.  A nil ParentID marks a
// root.  Product counts are derived from the products table and filled in
// only when the tree is loaded for display.
type Category struct {
	ID        uint64    `json:"id"`         // categories.id
	Name      string    `json:"name"`       // categories.name
	ParentID  *uint64   `json:"parent_id"`  // categories.parent_id (nullable)
	CreatedAt time.Time `json:"created_at"` // categories.created_at
	UpdatedAt time.Time `json:"updated_at"` // categories.updated_at
}

// CategoryNode is a Category with its counts and children, as rendered by
// the tree endpoint.
type CategoryNode struct {
	Category
	ProductCount int64           `json:"product_count"` // products directly in this category
	SubtreeCount int64           `json:"subtree_count"` // products in this category and below
	Children     []*CategoryNode `json:"children"`
}
