package httpapi

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"droneSurveyManagement/models"
	"droneSurveyManagement/repository"
)

type handler struct {
	stores   Stores
	registry Registry
}

func fail(c *gin.Context, code int, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil && code < http.StatusInternalServerError {
		body["detail"] = err.Error()
	}
	if err != nil {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(code, body)
}

// health handles GET /healthz
func (h *handler) health(c *gin.Context) {
	if err := h.stores.DB.PingContext(c.Request.Context()); err != nil {
		fail(c, http.StatusServiceUnavailable, "database unavailable", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type pageQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// listMissions handles GET /api/missions
func (h *handler) listMissions(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}
	list, err := h.stores.Missions.List(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to list missions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(list)})
}

// getMission handles GET /api/missions/:missionId
func (h *handler) getMission(c *gin.Context) {
	m, err := h.stores.Missions.GetByID(c.Request.Context(), c.Param("missionId"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to get mission", err)
		return
	}
	if m == nil {
		fail(c, http.StatusNotFound, "mission not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": m, "plannedDistance": m.PlannedDistance()})
}

// getMissionStatus handles GET /api/mission-status/:missionId
func (h *handler) getMissionStatus(c *gin.Context) {
	st, err := h.stores.Statuses.GetByMissionID(c.Request.Context(), c.Param("missionId"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to get mission status", err)
		return
	}
	if st == nil {
		fail(c, http.StatusNotFound, "mission status not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": st})
}

type reportQuery struct {
	MissionID string `form:"missionId" binding:"required"`
}

// listReports handles GET /api/reports?missionId=
func (h *handler) listReports(c *gin.Context) {
	var q reportQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "missionId is required", err)
		return
	}
	list, err := h.stores.Reports.ListByMission(c.Request.Context(), q.MissionID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to list reports", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(list)})
}

// getReport handles GET /api/reports/:id
func (h *handler) getReport(c *gin.Context) {
	rep, err := h.stores.Reports.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to get report", err)
		return
	}
	if rep == nil {
		fail(c, http.StatusNotFound, "report not found", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rep})
}

type droneQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=available in-mission maintenance"`
	pageQuery
}

// listDrones handles GET /api/drones?status=
func (h *handler) listDrones(c *gin.Context) {
	var q droneQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}
	p := repository.ListDronesParams{PageSize: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		s := models.DroneStatus(q.Status)
		p.Status = &s
	}
	list, err := h.stores.Drones.List(c.Request.Context(), p)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to list drones", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(list)})
}

// recurring handles GET /api/scheduler/recurring
func (h *handler) recurring(c *gin.Context) {
	ids := []string{}
	if h.registry != nil {
		ids = append(ids, h.registry.Registered()...)
	}
	sort.Strings(ids)
	c.JSON(http.StatusOK, gin.H{"data": ids})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
