package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mall-admin/internal/service"
)

// AssignmentHandler serves event scope and designer assignment routes.
type AssignmentHandler struct {
	M *service.AssignmentManager
}

func NewAssignmentHandler(m *service.AssignmentManager) *AssignmentHandler {
	if m == nil {
		panic("nil manager passed to NewAssignmentHandler")
	}
	return &AssignmentHandler{M: m}
}

// Current handles GET /v1/events/:id/malls/:mall_id/assignments.
func (h *AssignmentHandler) Current(c echo.Context) error {
	ids, bad, ok := pathIDs(c, "id", "mall_id") // event and mall ids from the URL
	if !ok {
		return badRequest(c, "invalid "+bad)
	}
	out, err := h.M.ResolveCurrentAssignment(c.Request().Context(), ids[0], ids[1]) // one entry per boutique
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Assign handles PUT .../boutiques/:boutique_id/designer.  A boutique whose
// current assignment is locked by products is refused before the manager
// is called.
func (h *AssignmentHandler) Assign(c echo.Context) error {
	ids, bad, ok := pathIDs(c, "id", "mall_id", "boutique_id") // event, mall and boutique ids from the URL
	if !ok {
		return badRequest(c, "invalid "+bad) // name the id that failed to parse
	}
	var body struct { // anonymous struct to bind incoming JSON
		DesignerID uint64 `json:"designer_id"` // designer to assign
	}
	if err := c.Bind(&body); err != nil { // attempt to bind the request body
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()
	eventID, mallID, boutiqueID := ids[0], ids[1], ids[2]

	cur, found, err := h.M.Resolve(ctx, eventID, mallID, boutiqueID) // current assignment of this boutique
	if err != nil {
		return writeError(c, err)
	}
	if found && cur.IsLocked { // products exist under the assignment: 423
		return writeError(c, &service.AssignmentLockedError{EventID: eventID, MallID: mallID, BoutiqueID: boutiqueID})
	}
	d, err := h.M.AssignDesigner(ctx, eventID, mallID, boutiqueID, body.DesignerID) // insert or rewrite the designer row
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d) // the row now holding the assignment
}

// Unassign handles DELETE .../boutiques/:boutique_id/designer.
func (h *AssignmentHandler) Unassign(c echo.Context) error {
	ids, bad, ok := pathIDs(c, "id", "mall_id", "boutique_id")
	if !ok {
		return badRequest(c, "invalid "+bad)
	}
	n, err := h.M.UnassignDesigner(c.Request().Context(), ids[0], ids[1], ids[2]) // product rows are kept
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": n}) // zero when nothing was assigned
}

func (h *AssignmentHandler) Scope(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	s, err := h.M.EventScope(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// UpdateScope handles PUT /v1/events/:id/scope with the full desired scope.
func (h *AssignmentHandler) UpdateScope(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var body struct { // full desired scope, not a delta
		MallIDs     []uint64 `json:"mall_ids"`     // participating malls
		BoutiqueIDs []uint64 `json:"boutique_ids"` // participating boutiques, each inside a listed mall
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	change, err := h.M.UpdateEventScope(c.Request().Context(), id, body.MallIDs, body.BoutiqueIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, change) // what was added and removed
}
