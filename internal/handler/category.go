package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mall-admin/internal/service"
)

type CategoryHandler struct {
	S *service.CategoryService
}

func NewCategoryHandler(s *service.CategoryService) *CategoryHandler {
	if s == nil {
		panic("nil service passed to NewCategoryHandler")
	}
	return &CategoryHandler{S: s}
}

type categoryRequest struct {
	Name     string  `json:"name"`      // required, trimmed by the service
	ParentID *uint64 `json:"parent_id"` // null for a root category
}

// Tree handles GET /v1/categories.
func (h *CategoryHandler) Tree(c echo.Context) error {
	tree, err := h.S.Tree(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tree)
}

func (h *CategoryHandler) Create(c echo.Context) error {
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cat, err := h.S.Create(c.Request().Context(), req.Name, req.ParentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, cat)
}

// Update handles PUT /v1/categories/:id.  A null parent_id makes it a root.
func (h *CategoryHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	cat, err := h.S.Update(c.Request().Context(), id, req.Name, req.ParentID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *CategoryHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.S.Delete(c.Request().Context(), id); err != nil { // 409 while the subtree holds products
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
