package handler // handler package contains the admin API handlers

import (
	"net/http" // http provides status code constants
	"strconv"  // strconv parses the currency ids used as rate keys

	"github.com/labstack/echo/v4"   // echo is the web framework used for handlers
	"github.com/shopspring/decimal" // decimal carries exchange rates without float rounding

	"github.com/iliyamo/mall-admin/internal/model"   // model holds the currency types
	"github.com/iliyamo/mall-admin/internal/service" // service holds the pivot manager
)

// CurrencyHandler serves /v1/currencies.
type CurrencyHandler struct {
	M *service.CurrencyPivotManager // manager owning every currency write
}

func NewCurrencyHandler(m *service.CurrencyPivotManager) *CurrencyHandler {
	if m == nil { // a handler without a manager cannot serve anything
		panic("nil manager passed to NewCurrencyHandler")
	}
	return &CurrencyHandler{M: m}
}

type currencyRequest struct { // body of POST /v1/currencies
	Name           string            `json:"name"`            // display name
	LocalizedNames map[string]string `json:"localized_names"` // names keyed by locale
	Code           string            `json:"code"`            // ISO 4217 alphabetic code
	NumericCode    string            `json:"numeric_code"`    // ISO 4217 numeric code
	Precision      int               `json:"precision"`       // display digits, 0 to 4
	PaymentEnabled bool              `json:"payment_enabled"` // whether checkout may charge in it
	IsPivot        bool              `json:"is_pivot"`        // create as the new pivot
	Rate           decimal.Decimal   `json:"rate"`            // units per one pivot unit
}

type setPivotRequest struct { // body of POST /v1/currencies/pivot
	CurrencyID uint64                     `json:"currency_id"` // currency becoming the pivot
	Rates      map[string]decimal.Decimal `json:"rates"`       // new rate per other currency id
}

// List handles GET /v1/currencies.
func (h *CurrencyHandler) List(c echo.Context) error {
	cs, err := h.M.List(c.Request().Context()) // every currency ordered by id
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cs)
}

// Pivot handles GET /v1/currencies/pivot.
func (h *CurrencyHandler) Pivot(c echo.Context) error {
	p, err := h.M.CurrentPivot(c.Request().Context()) // the reference currency
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *CurrencyHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id") // parse the currency id from the URL
	if !ok {
		return badRequest(c, "invalid id")
	}
	cur, err := h.M.Get(c.Request().Context(), id)
	if err != nil { // not found maps to 404 in writeError
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cur)
}

// Create handles POST /v1/currencies.
func (h *CurrencyHandler) Create(c echo.Context) error {
	var req currencyRequest
	if err := c.Bind(&req); err != nil { // bind the JSON body
		return badRequest(c, "invalid request body")
	}
	cur, err := h.M.CreateCurrency(c.Request().Context(), model.Currency{ // field checks happen in the manager
		Name:           req.Name,
		LocalizedNames: req.LocalizedNames,
		Code:           req.Code,
		NumericCode:    req.NumericCode,
		Precision:      req.Precision,
		PaymentEnabled: req.PaymentEnabled,
		IsPivot:        req.IsPivot,
		Rate:           req.Rate,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, cur) // 201 with the stored currency
}

// Update handles PATCH /v1/currencies/:id.  Absent fields are left alone.
func (h *CurrencyHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id") // parse the currency id from the URL
	if !ok {
		return badRequest(c, "invalid id")
	}
	var patch model.CurrencyPatch // nil fields mean "unchanged"
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	cur, err := h.M.UpdateCurrency(c.Request().Context(), id, patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cur)
}

func (h *CurrencyHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.M.DeleteCurrency(c.Request().Context(), id); err != nil { // pivot and in-use currencies are refused
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent) // 204 on success
}

// SetPivot handles POST /v1/currencies/pivot.  Rates are keyed by currency
// id and given as decimal strings.
func (h *CurrencyHandler) SetPivot(c echo.Context) error {
	var req setPivotRequest
	if err := c.Bind(&req); err != nil { // bind the JSON body
		return badRequest(c, "invalid request body")
	}
	if req.CurrencyID == 0 { // the target pivot is mandatory
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "currency_id is required", "field": "currency_id"})
	}
	rates := make(map[uint64]decimal.Decimal, len(req.Rates))
	for k, v := range req.Rates { // JSON object keys arrive as strings
		id, err := strconv.ParseUint(k, 10, 64)
		if err != nil || id == 0 { // reject keys that are not currency ids
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "rate keys must be currency ids, got " + strconv.Quote(k), "field": "rates"})
		}
		rates[id] = v
	}
	out, err := h.M.SetPivot(c.Request().Context(), req.CurrencyID, rates) // one rate per non-pivot currency
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out) // every currency after the switch
}
