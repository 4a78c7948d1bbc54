// Package router wires handlers and middleware onto echo.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/mall-admin/internal/handler"
	"github.com/iliyamo/mall-admin/internal/middleware"
	"github.com/iliyamo/mall-admin/internal/service"
)

// Admin bundles everything the /v1 routes need.
type Admin struct {
	JWTSecret   string
	Currencies  *handler.CurrencyHandler
	Events      *handler.EventHandler
	Assignments *handler.AssignmentHandler
	Categories  *handler.CategoryHandler

	// Cache returns the response cache for a data namespace; nil disables it.
	Cache func(namespace string) echo.MiddlewareFunc
	// RateLimit runs after authentication so buckets can be keyed by admin.
	RateLimit echo.MiddlewareFunc
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", h.Ready)
}

// RegisterAdmin registers the /v1 admin API behind JWT + ADMIN role.
func RegisterAdmin(e *echo.Echo, a Admin) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(a.JWTSecret))
	g.Use(middleware.RequireRole(middleware.RoleAdmin))
	if a.RateLimit != nil {
		g.Use(a.RateLimit)
	}
	cached := func(ns string) []echo.MiddlewareFunc {
		if a.Cache == nil {
			return nil
		}
		return []echo.MiddlewareFunc{a.Cache(ns)}
	}

	cur := a.Currencies
	g.GET("/currencies", cur.List, cached(service.NamespaceCurrencies)...)
	g.GET("/currencies/pivot", cur.Pivot, cached(service.NamespaceCurrencies)...)
	g.GET("/currencies/:id", cur.Get, cached(service.NamespaceCurrencies)...)
	g.POST("/currencies", cur.Create)
	g.PATCH("/currencies/:id", cur.Update)
	g.DELETE("/currencies/:id", cur.Delete)
	g.POST("/currencies/pivot", cur.SetPivot)

	ev := a.Events
	g.GET("/events", ev.List, cached(service.NamespaceEvents)...)
	g.GET("/events/:id", ev.Get, cached(service.NamespaceEvents)...)
	g.POST("/events", ev.Create)
	g.PUT("/events/:id", ev.Update)
	g.DELETE("/events/:id", ev.Delete)
	g.PUT("/events/:id/media", ev.SetMedia)
	g.POST("/media", ev.UploadMedia)
	g.POST("/media/link", ev.LinkMedia)

	as := a.Assignments
	g.GET("/events/:id/scope", as.Scope)
	g.PUT("/events/:id/scope", as.UpdateScope)
	g.GET("/events/:id/malls/:mall_id/assignments", as.Current)
	g.PUT("/events/:id/malls/:mall_id/boutiques/:boutique_id/designer", as.Assign)
	g.DELETE("/events/:id/malls/:mall_id/boutiques/:boutique_id/designer", as.Unassign)

	cat := a.Categories
	g.GET("/categories", cat.Tree, cached(service.NamespaceCategories)...)
	g.POST("/categories", cat.Create)
	g.PUT("/categories/:id", cat.Update)
	g.DELETE("/categories/:id", cat.Delete)
}
