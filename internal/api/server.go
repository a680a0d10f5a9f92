package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"complyeye/internal/models"
	"complyeye/internal/report"
	"complyeye/internal/rule"
	"complyeye/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Server struct {
	engine  *rule.Engine
	rules   *store.RuleStore
	firings *store.FiringStore
	poams   *store.PoamStore
	reports *report.Generator
	log     *zap.Logger
	router  *gin.Engine
}

func NewServer(engine *rule.Engine, rules *store.RuleStore, firings *store.FiringStore, poams *store.PoamStore, reports *report.Generator, log *zap.Logger) *Server {
	server := &Server{
		engine:  engine,
		rules:   rules,
		firings: firings,
		poams:   poams,
		reports: reports,
		log:     log,
		router:  gin.Default(),
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	api.POST("/events", s.ingestEvent)

	rules := api.Group("/rules")
	{
		rules.GET("", s.listRules)
		rules.GET("/:id", s.getRule)
		rules.POST("", s.createRule)
		rules.PUT("/:id", s.updateRule)
		rules.DELETE("/:id", s.deleteRule)
		rules.PUT("/:id/enable", s.enableRule)
		rules.PUT("/:id/disable", s.disableRule)
	}

	firings := api.Group("/firings")
	{
		firings.GET("", s.listFirings)
		firings.GET("/:id", s.getFiring)
		firings.PUT("/:id/acknowledge", s.acknowledgeFiring)
		firings.PUT("/:id/resolve", s.resolveFiring)
	}

	poams := api.Group("/poams")
	{
		poams.GET("", s.listPoams)
		poams.GET("/:id", s.getPoam)
		poams.POST("", s.createPoam)
	}

	api.GET("/reports/summary", s.reportSummary)
}

func (s *Server) Start(port int) error {
	s.log.Info("starting http server", zap.Int("port", port))
	return s.router.Run(fmt.Sprintf(":%d", port))
}

type ingestRequest struct {
	TenantID  string         `json:"tenant_id" binding:"required"`
	Source    string         `json:"source" binding:"required"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data" binding:"required"`
}

func (s *Server) ingestEvent(c *gin.Context) {
	var req ingestRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := time.Now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	event := &models.Event{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		Source:    req.Source,
		Timestamp: ts,
		Data:      req.Data,
	}

	results, err := s.engine.Evaluate(c.Request.Context(), req.TenantID, event)
	if err != nil {
		var collab *rule.CollaboratorError
		if errors.As(err, &collab) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": collab.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"event_id": event.ID,
		"firings":  results,
	})
}

func (s *Server) listRules(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter required"})
		return
	}

	var enabled *bool
	if v := c.Query("enabled"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid enabled filter"})
			return
		}
		enabled = &b
	}

	rules, err := s.rules.ListRules(c.Request.Context(), tenantID, enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rules"})
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) getRule(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	r, err := s.rules.GetRule(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) createRule(c *gin.Context) {
	var r models.Rule
	if err := c.BindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if r.TenantID == "" || r.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id and name are required"})
		return
	}
	if err := s.rules.CreateRule(c.Request.Context(), &r); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rule"})
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	existing, err := s.rules.GetRule(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	var r models.Rule
	if err := c.BindJSON(&r); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r.ID = existing.ID
	r.TenantID = existing.TenantID
	r.TriggerCount = existing.TriggerCount
	r.LastTriggered = existing.LastTriggered

	if err := s.rules.UpdateRule(c.Request.Context(), &r); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update rule"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	if err := s.rules.DeleteRule(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete rule"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) enableRule(c *gin.Context) {
	s.setRuleEnabled(c, true)
}

func (s *Server) disableRule(c *gin.Context) {
	s.setRuleEnabled(c, false)
}

func (s *Server) setRuleEnabled(c *gin.Context, enabled bool) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	if err := s.rules.SetEnabled(c.Request.Context(), id, enabled); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
}

func (s *Server) listFirings(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter required"})
		return
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			limit = l
		}
	}

	recs, err := s.firings.ListFirings(c.Request.Context(), tenantID, models.FiringStatus(c.Query("status")), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list firings"})
		return
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) getFiring(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	rec, err := s.firings.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "firing not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type statusChangeRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) acknowledgeFiring(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	var req statusChangeRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.firings.Acknowledge(c.Request.Context(), id, req.UserID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) resolveFiring(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	var req statusChangeRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.firings.Resolve(c.Request.Context(), id, req.UserID)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) listPoams(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter required"})
		return
	}
	items, err := s.poams.List(c.Request.Context(), tenantID, models.PoamStatus(c.Query("status")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list poam items"})
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) getPoam(c *gin.Context) {
	id, ok := s.paramID(c)
	if !ok {
		return
	}
	item, err := s.poams.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "poam item not found"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) createPoam(c *gin.Context) {
	var item models.PoamItem
	if err := c.BindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if item.TenantID == "" || item.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id and title are required"})
		return
	}
	if err := s.poams.Create(c.Request.Context(), &item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create poam item"})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) reportSummary(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id query parameter required"})
		return
	}

	days := 7
	if v := c.Query("days"); v != "" {
		if d, err := strconv.Atoi(v); err == nil && d > 0 {
			days = d
		}
	}

	end := time.Now()
	summary, err := s.reports.BuildSummary(c.Request.Context(), tenantID, end.AddDate(0, 0, -days), end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}
