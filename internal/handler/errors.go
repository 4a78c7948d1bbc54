package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/mall-admin/internal/service"
	"github.com/iliyamo/mall-admin/internal/store"
)

// statusFor maps domain errors to HTTP statuses.  Unknown errors are 500.
func statusFor(err error) int {
	var (
		verr   *service.ValidationError
		inUse  *service.InUseError
		pivot  *service.PivotProtectedError
		locked *service.AssignmentLockedError
		taken  *service.DesignerAlreadyAssignedError
		nf     *store.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &inUse), errors.As(err, &pivot), errors.As(err, &taken):
		return http.StatusConflict
	case errors.As(err, &locked):
		return http.StatusLocked
	case errors.As(err, &nf):
		return http.StatusNotFound
	case store.IsDuplicate(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": ...}.  Store failures keep their
// message so the admin sees what the database said.
func writeError(c echo.Context, err error) error {
	status := statusFor(err)
	body := echo.Map{"error": err.Error()}

	var verr *service.ValidationError
	if errors.As(err, &verr) && verr.Field != "" {
		body["field"] = verr.Field
		body["error"] = verr.Message
	}
	var se *store.StoreError
	if status == http.StatusInternalServerError {
		fields := log.JSON{"msg": "request failed", "method": c.Request().Method, "path": c.Path(), "error": err.Error()}
		if !errors.As(err, &se) {
			body["error"] = "internal error"
		}
		c.Logger().Errorj(fields)
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// pathIDs parses several path parameters and reports the first bad one.
func pathIDs(c echo.Context, names ...string) ([]uint64, string, bool) {
	out := make([]uint64, len(names))
	for i, n := range names {
		id, ok := pathID(c, n)
		if !ok {
			return nil, n, false
		}
		out[i] = id
	}
	return out, "", true
}
