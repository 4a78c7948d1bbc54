// Package repository maps domain models onto store rows.  Every repository
// is a thin, stateless view over a store.Store, so the same code runs
// against the connection pool or inside a transaction.
package repository

import "github.com/iliyamo/mall-admin/internal/store"

// Table names.
const (
	TableCurrencies      = "currencies"
	TableProductVariants = "product_variants"
	TableEvents          = "events"
	TableEventDetails    = "event_details"
	TableMedia           = "media"
	TableEventMedia      = "event_media"
	TableCategories      = "categories"
	TableProducts        = "products"
	TableMalls           = "malls"
	TableBoutiques       = "boutiques"
	TableDesigners       = "designers"
)

var (
	created = store.Column{Name: "created_at", Kind: store.KindTime, Created: true}
	updated = store.Column{Name: "updated_at", Kind: store.KindTime, Updated: true}
)

// Schema describes every table this service touches.  It must stay in step
// with internal/database/schema.sql.
func Schema() store.Schema {
	return store.NewSchema(
		store.Table{Name: TableCurrencies, Columns: []store.Column{
			{Name: "name", Kind: store.KindString},
			{Name: "name_i18n", Kind: store.KindString, Nullable: true}, // JSON object
			{Name: "code", Kind: store.KindString, Unique: true},
			{Name: "numeric_code", Kind: store.KindString, Unique: true},
			{Name: "precision_digits", Kind: store.KindInt},
			{Name: "payment_enabled", Kind: store.KindBool},
			{Name: "is_pivot", Kind: store.KindBool},
			{Name: "rate", Kind: store.KindDecimal},
			created, updated,
		}},
		store.Table{Name: TableProductVariants, Columns: []store.Column{
			{Name: "product_id", Kind: store.KindInt},
			{Name: "currency_id", Kind: store.KindInt},
		}},
		store.Table{Name: TableEvents, Columns: []store.Column{
			{Name: "code", Kind: store.KindString, Unique: true},
			{Name: "name", Kind: store.KindString},
			{Name: "starts_at", Kind: store.KindTime},
			{Name: "ends_at", Kind: store.KindTime},
			created, updated,
		}},
		store.Table{Name: TableEventDetails, Columns: []store.Column{
			{Name: "event_id", Kind: store.KindInt},
			{Name: "mall_id", Kind: store.KindInt, Nullable: true},
			{Name: "boutique_id", Kind: store.KindInt, Nullable: true},
			{Name: "designer_id", Kind: store.KindInt, Nullable: true},
			{Name: "product_id", Kind: store.KindInt, Nullable: true},
			created,
		}},
		store.Table{Name: TableMedia, Columns: []store.Column{
			{Name: "url", Kind: store.KindString},
			created,
		}},
		store.Table{Name: TableEventMedia, Columns: []store.Column{
			{Name: "event_id", Kind: store.KindInt},
			{Name: "media_id", Kind: store.KindInt},
			{Name: "position", Kind: store.KindInt},
		}},
		store.Table{Name: TableCategories, Columns: []store.Column{
			{Name: "name", Kind: store.KindString},
			{Name: "parent_id", Kind: store.KindInt, Nullable: true},
			created, updated,
		}},
		store.Table{Name: TableProducts, Columns: []store.Column{
			{Name: "name", Kind: store.KindString},
			{Name: "category_id", Kind: store.KindInt, Nullable: true},
		}},
		store.Table{Name: TableMalls, Columns: []store.Column{
			{Name: "name", Kind: store.KindString},
		}},
		store.Table{Name: TableBoutiques, Columns: []store.Column{
			{Name: "mall_id", Kind: store.KindInt},
			{Name: "name", Kind: store.KindString},
		}},
		store.Table{Name: TableDesigners, Columns: []store.Column{
			{Name: "name", Kind: store.KindString},
		}},
	)
}

// Repos bundles every repository over one store handle.
type Repos struct {
	Currencies   *CurrencyRepo
	Events       *EventRepo
	EventDetails *EventDetailRepo
	Media        *MediaRepo
	Categories   *CategoryRepo
	Directory    *DirectoryRepo
}

// New builds the repository bundle for st.
func New(st store.Store) *Repos {
	return &Repos{
		Currencies:   NewCurrencyRepo(st),
		Events:       NewEventRepo(st),
		EventDetails: NewEventDetailRepo(st),
		Media:        NewMediaRepo(st),
		Categories:   NewCategoryRepo(st),
		Directory:    NewDirectoryRepo(st),
	}
}
