// Package server assembles the HTTP API shared by the long-running server and
// the Lambda entry point.
package server

import (
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clc-ministry/forms-backend/internal/admin"
	"github.com/clc-ministry/forms-backend/internal/auth"
	"github.com/clc-ministry/forms-backend/internal/exports"
	"github.com/clc-ministry/forms-backend/internal/middleware"
	"github.com/clc-ministry/forms-backend/internal/models"
	"github.com/clc-ministry/forms-backend/internal/records"
	"github.com/clc-ministry/forms-backend/internal/submissions"
	"github.com/clc-ministry/forms-backend/pkg/response"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Store       records.Store
	Collections records.Collections
	Verifier    auth.Verifier
	AdminGroup  string        // empty: any verified caller is an admin
	Login       *auth.Handler // nil: no local sign-in
	Jobs        exports.Jobs  // nil: exports answer 503
	CORSOrigins string
	Logger      *zap.Logger
}

// NewRouter builds the gin engine with every public and admin route.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public form submissions
	submissionHandler := submissions.NewHandler(d.Store, d.Collections, logger)
	router.POST("/workshop", submissionHandler.Submit(models.KindWorkshop))
	router.POST("/orders", submissionHandler.Submit(models.KindOrder))

	// Local sign-in (development)
	if d.Login != nil {
		router.POST("/auth/login", d.Login.Login)
	}

	// Admin API (bearer token required)
	guards := []gin.HandlerFunc{middleware.Bearer(d.Verifier)}
	if d.AdminGroup != "" {
		guards = append(guards, middleware.RequireGroup(d.AdminGroup))
	}
	adminHandler := admin.NewHandler(d.Store, d.Collections, logger)
	exportHandler := exports.NewHandler(d.Jobs, logger)
	workshop := models.KindWorkshop.Collection()
	orders := models.KindOrder.Collection()

	api := router.Group("", guards...)
	{
		api.Any("/admin/:collection", adminHandler.Dispatch)
		api.POST("/admin/:collection/export", exportHandler.Request)
		api.GET("/admin/:collection/export/:jobId", exportHandler.Status)

		// Routes of the first deployment, kept for the existing dashboard.
		api.GET("/workshop", adminHandler.Method(workshop, admin.MethodList))
		api.POST("/workshop/attendance", adminHandler.Method(workshop, admin.MethodAttendance))
		api.GET("/orders/admin", adminHandler.Method(orders, admin.MethodList))
	}

	return router
}
