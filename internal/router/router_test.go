package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mall-admin/internal/handler"
	"github.com/iliyamo/mall-admin/internal/repository"
	"github.com/iliyamo/mall-admin/internal/service"
	"github.com/iliyamo/mall-admin/internal/store"
	"github.com/iliyamo/mall-admin/internal/utils"
)

const secret = "router-test"

type fakeUploader struct{ files []string }

func (f *fakeUploader) Upload(_ context.Context, name, _ string, body io.Reader) (string, error) {
	b, _ := io.ReadAll(body)
	f.files = append(f.files, name+":"+string(b))
	return "https://cdn.example.com/media/" + name, nil
}

type app struct {
	t        *testing.T
	e        *echo.Echo
	mem      *store.MemStore
	token    string
	cachedNS []string
	uploads  *fakeUploader
}

func newApp(t *testing.T) *app {
	t.Helper()
	mem := store.NewMemStore(repository.Schema())
	logger := log.New("test")
	logger.SetOutput(io.Discard)
	opts := service.Options{Atomic: true, Logger: logger}

	a := &app{t: t, e: echo.New(), mem: mem, uploads: &fakeUploader{}}
	a.e.Logger.SetOutput(io.Discard)
	RegisterRoutes(a.e, handler.NewHealthHandler(mem))
	RegisterAdmin(a.e, Admin{
		JWTSecret:   secret,
		Currencies:  handler.NewCurrencyHandler(service.NewCurrencyPivotManager(mem, opts)),
		Events:      handler.NewEventHandler(service.NewEventService(mem, opts), a.uploads),
		Assignments: handler.NewAssignmentHandler(service.NewAssignmentManager(mem, opts)),
		Categories:  handler.NewCategoryHandler(service.NewCategoryService(mem, opts)),
		Cache: func(ns string) echo.MiddlewareFunc {
			a.cachedNS = append(a.cachedNS, ns)
			return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
		},
	})
	tok, err := utils.NewAccessToken(secret, "admin-1", "ADMIN", time.Hour)
	require.NoError(t, err)
	a.token = tok.Token
	return a
}

func (a *app) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(bs)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *app) decode(rec *httptest.ResponseRecorder, v any) {
	a.t.Helper()
	require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (a *app) seed(table string, row store.Row) uint64 {
	a.t.Helper()
	out, err := a.mem.Insert(context.Background(), table, row)
	require.NoError(a.t, err)
	return out.ID()
}

type idBody struct {
	ID    uint64 `json:"id"`
	Error string `json:"error"`
	Field string `json:"field"`
}

func TestProbesAndAuth(t *testing.T) {
	a := newApp(t)

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/currencies", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	owner, err := utils.NewAccessToken(secret, "u-2", "OWNER", time.Hour)
	require.NoError(t, err)
	a.token = owner.Token
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/currencies", nil).Code)

	sort.Strings(a.cachedNS)
	assert.Equal(t, []string{"categories", "currencies", "currencies", "currencies", "events", "events"}, a.cachedNS)
}

func TestCurrencyPivotFlow(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodPost, "/v1/currencies", map[string]any{
		"name": "US Dollar", "code": "usd", "numeric_code": "840", "precision": 2, "is_pivot": true, "rate": "1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var usd idBody
	a.decode(rec, &usd)

	rec = a.do(http.MethodPost, "/v1/currencies", map[string]any{
		"name": "Euro", "code": "EUR", "numeric_code": "978", "precision": 2, "rate": "0.9",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var eur idBody
	a.decode(rec, &eur)

	// a rate with 11 decimals is refused before any write
	rec = a.do(http.MethodPost, "/v1/currencies/pivot", map[string]any{
		"currency_id": eur.ID, "rates": map[string]string{fmt.Sprint(usd.ID): "1.11111111111"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/currencies/pivot", map[string]any{
		"currency_id": eur.ID, "rates": map[string]string{"abc": "1"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/v1/currencies/pivot", map[string]any{
		"currency_id": eur.ID, "rates": map[string]string{fmt.Sprint(usd.ID): "1.1111111111"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/v1/currencies/pivot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pivot struct {
		ID   uint64 `json:"id"`
		Code string `json:"code"`
		Rate string `json:"rate"`
	}
	a.decode(rec, &pivot)
	assert.Equal(t, "EUR", pivot.Code)
	assert.Equal(t, "1", pivot.Rate)

	rec = a.do(http.MethodDelete, fmt.Sprintf("/v1/currencies/%d", eur.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	a.seed(repository.TableProductVariants, store.Row{"product_id": 1, "currency_id": usd.ID})
	rec = a.do(http.MethodDelete, fmt.Sprintf("/v1/currencies/%d", usd.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "product variants")

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/currencies/999", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/currencies/zero", nil).Code)
}

func TestAssignmentFlow(t *testing.T) {
	a := newApp(t)
	mall := a.seed(repository.TableMalls, store.Row{"name": "Central"})
	boutique := a.seed(repository.TableBoutiques, store.Row{"mall_id": mall, "name": "B1"})
	d1 := a.seed(repository.TableDesigners, store.Row{"name": "Ada"})
	d2 := a.seed(repository.TableDesigners, store.Row{"name": "Grace"})

	rec := a.do(http.MethodPost, "/v1/events", map[string]any{
		"code": "SUMMER", "name": "Summer sale",
		"starts_at": "2024-06-01T00:00:00Z", "ends_at": "2024-06-30T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ev idBody
	a.decode(rec, &ev)

	scopePath := fmt.Sprintf("/v1/events/%d/scope", ev.ID)
	rec = a.do(http.MethodPut, scopePath, map[string]any{"mall_ids": []uint64{mall}, "boutique_ids": []uint64{boutique}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var change service.ScopeChange
	a.decode(rec, &change)
	assert.Equal(t, 2, change.Writes)

	designerPath := fmt.Sprintf("/v1/events/%d/malls/%d/boutiques/%d/designer", ev.ID, mall, boutique)
	rec = a.do(http.MethodPut, designerPath, map[string]any{"designer_id": d1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, fmt.Sprintf("/v1/events/%d/malls/%d/assignments", ev.ID, mall), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var current []service.ResolvedAssignment
	a.decode(rec, &current)
	require.Len(t, current, 1)
	require.NotNil(t, current[0].DesignerID)
	assert.Equal(t, d1, *current[0].DesignerID)
	assert.False(t, current[0].IsLocked)

	// a product under the assignment locks it
	a.seed(repository.TableEventDetails, store.Row{
		"event_id": ev.ID, "mall_id": mall, "boutique_id": boutique, "designer_id": d1, "product_id": 77,
	})
	rec = a.do(http.MethodPut, designerPath, map[string]any{"designer_id": d2})
	assert.Equal(t, http.StatusLocked, rec.Code)
	rec = a.do(http.MethodDelete, designerPath, nil)
	assert.Equal(t, http.StatusLocked, rec.Code)

	rec = a.do(http.MethodGet, scopePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var scope service.Scope
	a.decode(rec, &scope)
	assert.Equal(t, []uint64{boutique}, scope.LockedBoutiqueIDs)

	// the event cannot go while products are assigned
	assert.Equal(t, http.StatusConflict, a.do(http.MethodDelete, fmt.Sprintf("/v1/events/%d", ev.ID), nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPut, strings.Replace(designerPath, "/malls/", "/malls/x", 1), map[string]any{"designer_id": d2}).Code)
}

func TestCategoryRoutes(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodPost, "/v1/categories", map[string]any{"name": "Clothing"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var root idBody
	a.decode(rec, &root)

	rec = a.do(http.MethodPost, "/v1/categories", map[string]any{"name": "Shoes", "parent_id": root.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var child idBody
	a.decode(rec, &child)

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/categories/%d", root.ID), map[string]any{"name": "Clothing", "parent_id": child.ID})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var bad idBody
	a.decode(rec, &bad)
	assert.Equal(t, "parent_id", bad.Field)

	rec = a.do(http.MethodGet, "/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tree []struct {
		Name     string `json:"name"`
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	}
	a.decode(rec, &tree)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "Shoes", tree[0].Children[0].Name)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, fmt.Sprintf("/v1/categories/%d", root.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, fmt.Sprintf("/v1/categories/%d", child.ID), nil).Code)
}

func TestMediaRoutes(t *testing.T) {
	a := newApp(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "banner.png")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("png-bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/media", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+a.token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var media struct {
		ID  uint64 `json:"id"`
		URL string `json:"url"`
	}
	a.decode(rec, &media)
	assert.Equal(t, "https://cdn.example.com/media/banner.png", media.URL)
	assert.Equal(t, []string{"banner.png:png-bytes"}, a.uploads.files)

	rec = a.do(http.MethodPost, "/v1/media/link", map[string]any{"url": "ftp://example.com/x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = a.do(http.MethodPost, "/v1/media/link", map[string]any{"url": "s3://bucket/poster.jpg"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var linked idBody
	a.decode(rec, &linked)

	rec = a.do(http.MethodPost, "/v1/events", map[string]any{
		"code": "WINTER", "name": "Winter", "starts_at": "2024-12-01T00:00:00Z", "ends_at": "2024-12-24T00:00:00Z",
		"media_ids": []uint64{linked.ID, media.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ev struct {
		ID    uint64 `json:"id"`
		Media []struct {
			ID uint64 `json:"id"`
		} `json:"media"`
	}
	a.decode(rec, &ev)
	require.Len(t, ev.Media, 2)
	assert.Equal(t, linked.ID, ev.Media[0].ID)

	rec = a.do(http.MethodPut, fmt.Sprintf("/v1/events/%d/media", ev.ID), map[string]any{"media_ids": []uint64{media.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	a.decode(rec, &ev)
	require.Len(t, ev.Media, 1)
	assert.Equal(t, media.ID, ev.Media[0].ID)
}
