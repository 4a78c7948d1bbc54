package repository

import (
	"context"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/store"
)

// DirectoryRepo reads malls, boutiques and designers.  Those tables belong to
// other services; this service never writes them.
type DirectoryRepo struct {
	st store.Store
}

// NewDirectoryRepo binds a DirectoryRepo to a store handle.
func NewDirectoryRepo(st store.Store) *DirectoryRepo { return &DirectoryRepo{st: st} }

// Boutiques returns the boutiques with the given ids keyed by id.
func (r *DirectoryRepo) Boutiques(ctx context.Context, ids []uint64) (map[uint64]model.Boutique, error) {
	out := make(map[uint64]model.Boutique, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.st.Find(ctx, TableBoutiques, store.Where(store.In("id", ids...)), store.FindOptions{})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID()] = model.Boutique{ID: row.ID(), MallID: row.Uint64("mall_id"), Name: row.String("name")}
	}
	return out, nil
}

// MissingMalls returns the ids that are absent from the malls table.
func (r *DirectoryRepo) MissingMalls(ctx context.Context, ids []uint64) ([]uint64, error) {
	return r.missing(ctx, TableMalls, ids)
}

// DesignerExists reports whether designer id exists.
func (r *DirectoryRepo) DesignerExists(ctx context.Context, id uint64) (bool, error) {
	n, err := r.st.Count(ctx, TableDesigners, store.Where(store.Eq("id", id)))
	return n > 0, err
}

// Boutique returns one boutique.
func (r *DirectoryRepo) Boutique(ctx context.Context, id uint64) (model.Boutique, error) {
	row, err := r.st.FindOne(ctx, TableBoutiques, store.Where(store.Eq("id", id)))
	if err != nil {
		return model.Boutique{}, err
	}
	return model.Boutique{ID: row.ID(), MallID: row.Uint64("mall_id"), Name: row.String("name")}, nil
}

func (r *DirectoryRepo) missing(ctx context.Context, table string, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.st.Find(ctx, table, store.Where(store.In("id", ids...)), store.FindOptions{})
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64]bool, len(rows))
	for _, row := range rows {
		seen[row.ID()] = true
	}
	var out []uint64
	for _, id := range ids {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
