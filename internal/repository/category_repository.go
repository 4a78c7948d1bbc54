package repository

import (
	"context"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/store"
)

// CategoryRepo reads and writes the categories table.
type CategoryRepo struct {
	st store.Store
}

// NewCategoryRepo binds a CategoryRepo to a store handle.
func NewCategoryRepo(st store.Store) *CategoryRepo { return &CategoryRepo{st: st} }

// List returns every category ordered by id.
func (r *CategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.st.Find(ctx, TableCategories, nil, store.FindOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]model.Category, len(rows))
	for i, row := range rows {
		out[i] = categoryFromRow(row)
	}
	return out, nil
}

// Get returns one category.
func (r *CategoryRepo) Get(ctx context.Context, id uint64) (model.Category, error) {
	row, err := r.st.FindOne(ctx, TableCategories, store.Where(store.Eq("id", id)))
	if err != nil {
		return model.Category{}, err
	}
	return categoryFromRow(row), nil
}

// Create inserts a category.
func (r *CategoryRepo) Create(ctx context.Context, name string, parentID *uint64) (model.Category, error) {
	row, err := r.st.Insert(ctx, TableCategories, store.Row{"name": name, "parent_id": parentID})
	if err != nil {
		return model.Category{}, err
	}
	return categoryFromRow(row), nil
}

// Update rewrites name and parent.
func (r *CategoryRepo) Update(ctx context.Context, id uint64, name string, parentID *uint64) (model.Category, error) {
	row, err := r.st.Update(ctx, TableCategories, store.Where(store.Eq("id", id)),
		store.Row{"name": name, "parent_id": parentID})
	if err != nil {
		return model.Category{}, err
	}
	return categoryFromRow(row), nil
}

// Delete removes one category.
func (r *CategoryRepo) Delete(ctx context.Context, id uint64) (int64, error) {
	return r.st.Delete(ctx, TableCategories, store.Where(store.Eq("id", id)))
}

// ProductCounts returns the number of products per category id.  Categories
// without products are absent from the map.
func (r *CategoryRepo) ProductCounts(ctx context.Context) (map[uint64]int64, error) {
	rows, err := r.st.Find(ctx, TableProducts, store.Where(store.NotNull("category_id")), store.FindOptions{})
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]int64)
	for _, row := range rows {
		out[row.Uint64("category_id")]++
	}
	return out, nil
}

// CountProducts reports how many products sit directly in any of ids.
func (r *CategoryRepo) CountProducts(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.st.Count(ctx, TableProducts, store.Where(store.In("category_id", ids...)))
}

func categoryFromRow(row store.Row) model.Category {
	return model.Category{
		ID:        row.ID(),
		Name:      row.String("name"),
		ParentID:  row.NullUint64("parent_id"),
		CreatedAt: row.Time("created_at"),
		UpdatedAt: row.Time("updated_at"),
	}
}
