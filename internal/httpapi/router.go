// Package httpapi serves the read-only operations endpoints: health, live
// mission status, survey reports and fleet listings.
package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"droneSurveyManagement/models"
	"droneSurveyManagement/repository"
)

// Pinger reports store health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Stores are the read paths the API needs.
type Stores struct {
	DB       Pinger
	Missions interface {
		GetByID(ctx context.Context, id string) (*models.Mission, error)
		List(ctx context.Context, limit, offset int) ([]*models.Mission, error)
	}
	Drones interface {
		List(ctx context.Context, p repository.ListDronesParams) ([]*models.Drone, error)
	}
	Statuses interface {
		GetByMissionID(ctx context.Context, missionID string) (*models.MissionStatus, error)
	}
	Reports interface {
		GetByID(ctx context.Context, id string) (*models.SurveyReport, error)
		ListByMission(ctx context.Context, missionID string) ([]*models.SurveyReport, error)
	}
}

// Registry exposes the scheduler's recurring registrations.
type Registry interface {
	Registered() []string
}

// NewRouter builds the gin engine.
func NewRouter(s Stores, reg Registry, log *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.With("component", "http")))

	h := &handler{stores: s, registry: reg}
	r.GET("/healthz", h.health)

	api := r.Group("/api")
	{
		api.GET("/missions", h.listMissions)
		api.GET("/missions/:missionId", h.getMission)
		api.GET("/mission-status/:missionId", h.getMissionStatus)
		api.GET("/reports", h.listReports)
		api.GET("/reports/:id", h.getReport)
		api.GET("/drones", h.listDrones)
		api.GET("/scheduler/recurring", h.recurring)
	}
	return r
}

// requestLogger logs one line per request.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
