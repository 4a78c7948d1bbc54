package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/iliyamo/mall-admin/internal/model"
	"github.com/iliyamo/mall-admin/internal/queue"
	"github.com/iliyamo/mall-admin/internal/store"
)

// categoryTree is an arena of categories with a parent index and a
// children-by-parent index, built from one List call.
type categoryTree struct {
	nodes    []model.Category
	index    map[uint64]int   // id -> position in nodes
	children map[uint64][]int // parent id (0 for roots) -> positions
}

func buildCategoryTree(cats []model.Category) *categoryTree {
	t := &categoryTree{
		nodes:    cats,
		index:    make(map[uint64]int, len(cats)),
		children: make(map[uint64][]int),
	}
	for i, c := range cats {
		t.index[c.ID] = i
	}
	for i, c := range cats {
		t.children[t.parentOf(c)] = append(t.children[t.parentOf(c)], i)
	}
	return t
}

// parentOf returns the parent id, or 0 for roots and orphans.
func (t *categoryTree) parentOf(c model.Category) uint64 {
	if c.ParentID == nil {
		return 0
	}
	if _, ok := t.index[*c.ParentID]; !ok {
		return 0
	}
	return *c.ParentID
}

func (t *categoryTree) has(id uint64) bool {
	_, ok := t.index[id]
	return ok
}

// isAncestor reports whether ancestor appears on the parent chain of id,
// id itself included.  The walk stops on a repeated node so stored cycles
// cannot loop it.
func (t *categoryTree) isAncestor(ancestor, id uint64) bool {
	seen := idSet{}
	for cur := id; cur != 0 && !seen.has(cur); {
		if cur == ancestor {
			return true
		}
		seen.add(cur)
		i, ok := t.index[cur]
		if !ok {
			return false
		}
		cur = t.parentOf(t.nodes[i])
	}
	return false
}

// subtree returns id and all of its descendants, children before parents.
func (t *categoryTree) subtree(id uint64) []uint64 {
	var out []uint64
	seen := idSet{}
	var walk func(uint64)
	walk = func(cur uint64) {
		if seen.has(cur) {
			return
		}
		seen.add(cur)
		for _, ci := range t.children[cur] {
			walk(t.nodes[ci].ID)
		}
		out = append(out, cur)
	}
	walk(id)
	return out
}

// render turns the arena into nested nodes with product counts.  Nodes that
// are unreachable from a root (a stored cycle) are appended as extra roots.
func (t *categoryTree) render(counts map[uint64]int64) []*model.CategoryNode {
	seen := idSet{}
	var build func(i int) *model.CategoryNode
	build = func(i int) *model.CategoryNode {
		c := t.nodes[i]
		seen.add(c.ID)
		n := &model.CategoryNode{Category: c, ProductCount: counts[c.ID], Children: []*model.CategoryNode{}}
		n.SubtreeCount = n.ProductCount
		for _, ci := range t.children[c.ID] {
			if seen.has(t.nodes[ci].ID) {
				continue
			}
			child := build(ci)
			n.SubtreeCount += child.SubtreeCount
			n.Children = append(n.Children, child)
		}
		return n
	}
	roots := []*model.CategoryNode{}
	for _, i := range t.children[0] {
		roots = append(roots, build(i))
	}
	for i, c := range t.nodes {
		if !seen.has(c.ID) {
			roots = append(roots, build(i))
		}
	}
	return roots
}

// CategoryService manages the product category tree.
type CategoryService struct {
	core
}

// NewCategoryService returns a service over st.
func NewCategoryService(st store.Store, opts Options) *CategoryService {
	return &CategoryService{core: newCore(st, opts, "category", NamespaceCategories)}
}

// Tree returns the whole category forest with direct and subtree product
// counts.
func (s *CategoryService) Tree(ctx context.Context) ([]*model.CategoryNode, error) {
	r := s.repos()
	cats, err := r.Categories.List(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := r.Categories.ProductCounts(ctx)
	if err != nil {
		return nil, err
	}
	return buildCategoryTree(cats).render(counts), nil
}

// Get returns one category.
func (s *CategoryService) Get(ctx context.Context, id uint64) (model.Category, error) {
	return s.repos().Categories.Get(ctx, id)
}

// Create inserts a category under parentID (nil for a root).
func (s *CategoryService) Create(ctx context.Context, name string, parentID *uint64) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, invalid("name", "name is required")
	}
	var created model.Category
	seq, err := s.write(ctx, "create_category", "category:"+name, func(seq *sequence) error {
		if parentID != nil {
			if _, err := seq.Categories.Get(ctx, *parentID); store.IsNotFound(err) {
				return invalid("parent_id", "parent category %d does not exist", *parentID)
			} else if err != nil {
				return err
			}
		}
		return seq.exec("insert category", func() error {
			var err error
			created, err = seq.Categories.Create(ctx, name, parentID)
			return err
		})
	})
	if err != nil {
		return model.Category{}, err
	}
	s.after(ctx, seq, queue.KindCategoryCreated, subjectCategory(created.ID),
		map[string]any{"name": created.Name, "parent_id": created.ParentID})
	return created, nil
}

// Update renames or moves a category.  Moving a category under itself or
// under any of its descendants is refused.
func (s *CategoryService) Update(ctx context.Context, id uint64, name string, parentID *uint64) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, invalid("name", "name is required")
	}
	if parentID != nil && *parentID == id {
		return model.Category{}, invalid("parent_id", "a category cannot be its own parent")
	}
	var updated model.Category
	seq, err := s.write(ctx, "update_category", subjectCategory(id), func(seq *sequence) error {
		cats, err := seq.Categories.List(ctx)
		if err != nil {
			return err
		}
		t := buildCategoryTree(cats)
		if !t.has(id) {
			return &store.NotFoundError{Table: "categories", Filter: store.Where(store.Eq("id", id))}
		}
		if parentID != nil {
			if !t.has(*parentID) {
				return invalid("parent_id", "parent category %d does not exist", *parentID)
			}
			if t.isAncestor(id, *parentID) {
				return invalid("parent_id", "category %d is a descendant of %d; that would create a cycle", *parentID, id)
			}
		}
		return seq.execf(func() error {
			var err error
			updated, err = seq.Categories.Update(ctx, id, name, parentID)
			return err
		}, "update category %d", id)
	})
	if err != nil {
		return model.Category{}, err
	}
	s.after(ctx, seq, queue.KindCategoryUpdated, subjectCategory(id),
		map[string]any{"name": updated.Name, "parent_id": updated.ParentID})
	return updated, nil
}

// Delete removes a category and its descendants, deepest first.  It is
// refused while any category of the subtree holds products.
func (s *CategoryService) Delete(ctx context.Context, id uint64) error {
	var removed []uint64
	seq, err := s.write(ctx, "delete_category", subjectCategory(id), func(seq *sequence) error {
		cats, err := seq.Categories.List(ctx)
		if err != nil {
			return err
		}
		t := buildCategoryTree(cats)
		if !t.has(id) {
			return &store.NotFoundError{Table: "categories", Filter: store.Where(store.Eq("id", id))}
		}
		ids := t.subtree(id)
		n, err := seq.Categories.CountProducts(ctx, ids)
		if err != nil {
			return err
		}
		if n > 0 {
			return &InUseError{Entity: "category", ID: id, Dependent: "products", Count: n}
		}
		for _, cid := range ids {
			if err := seq.execf(func() error {
				_, err := seq.Categories.Delete(ctx, cid)
				return err
			}, "delete category %d", cid); err != nil {
				return err
			}
			removed = append(removed, cid)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.after(ctx, seq, queue.KindCategoryDeleted, subjectCategory(id),
		map[string]any{"removed": removed})
	return nil
}

func subjectCategory(id uint64) string { return fmt.Sprintf("category:%d", id) }
