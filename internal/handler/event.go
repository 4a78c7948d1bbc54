package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/mall-admin/internal/service"
	"github.com/iliyamo/mall-admin/internal/storage"
)

// maxUploadBytes caps a single media upload.
const maxUploadBytes = 20 << 20

// MediaUploader stores an uploaded file and returns its URL.
type MediaUploader interface {
	Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

// EventHandler serves events and their media.
type EventHandler struct {
	S        *service.EventService
	Uploader MediaUploader // nil disables POST /v1/media
}

func NewEventHandler(s *service.EventService, up MediaUploader) *EventHandler {
	if s == nil {
		panic("nil service passed to NewEventHandler")
	}
	return &EventHandler{S: s, Uploader: up}
}

func (h *EventHandler) List(c echo.Context) error {
	es, err := h.S.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, es)
}

func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	e, err := h.S.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Create handles POST /v1/events.  Dates are RFC 3339.
func (h *EventHandler) Create(c echo.Context) error {
	var in service.EventInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	e, err := h.S.Create(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// Update handles PUT /v1/events/:id.  Omitting media_ids keeps the current
// media list.
func (h *EventHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var in service.EventInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	e, err := h.S.Update(c.Request().Context(), id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *EventHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	if err := h.S.Delete(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetMedia handles PUT /v1/events/:id/media with {"media_ids": [...]}.
func (h *EventHandler) SetMedia(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var body struct {
		MediaIDs []uint64 `json:"media_ids"` // new order; empty clears the list
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	e, err := h.S.SetMedia(c.Request().Context(), id, body.MediaIDs)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// LinkMedia handles POST /v1/media/link for files uploaded elsewhere.
func (h *EventHandler) LinkMedia(c echo.Context) error {
	var body struct {
		URL string `json:"url"` // absolute http(s) or s3 URL
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	m, err := h.S.RegisterMedia(c.Request().Context(), body.URL)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// UploadMedia handles multipart POST /v1/media (field "file").
func (h *EventHandler) UploadMedia(c echo.Context) error {
	if h.Uploader == nil { // no bucket configured
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": storage.ErrDisabled.Error()})
	}
	fh, err := c.FormFile("file") // multipart field holding the file
	if err != nil {
		return badRequest(c, "file is required")
	}
	if fh.Size > maxUploadBytes { // reject before reading the body
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "unreadable file")
	}
	defer f.Close() // release the temp file echo may have spooled

	ctx := c.Request().Context()
	url, err := h.Uploader.Upload(ctx, fh.Filename, fh.Header.Get(echo.HeaderContentType), f) // push to object storage
	if errors.Is(err, storage.ErrDisabled) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	}
	if err != nil { // storage failures are upstream errors: 502
		c.Logger().Errorj(log.JSON{"msg": "media upload failed", "file": fh.Filename, "error": err.Error()})
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "media upload failed"})
	}
	m, err := h.S.RegisterMedia(ctx, url) // record the URL so events can reference it
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, m) // 201 with {id, url}
}
