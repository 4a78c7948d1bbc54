package model

// Mall, Boutique, Designer and Product are owned by other services.  This
// service only reads the columns it needs to validate references.

// Mall is a physical or virtual shopping centre.
type Mall struct {
	ID   uint64 `json:"id"`   // malls.id
	Name string `json:"name"` // malls.name
}

// Boutique is a store inside exactly one mall.
type Boutique struct {
	ID     uint64 `json:"id"`      // boutiques.id
	MallID uint64 `json:"mall_id"` // boutiques.mall_id
	Name   string `json:"name"`    // boutiques.name
}

// Designer is a brand or creator that can be placed in a boutique for an event.
type Designer struct {
	ID   uint64 `json:"id"`   // designers.id
	Name string `json:"name"` // designers.name
}

// Product is only read for its category link.
type Product struct {
	ID         uint64  `json:"id"`          // products.id
	CategoryID *uint64 `json:"category_id"` // products.category_id (nullable)
}
