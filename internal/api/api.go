package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sliink/relay/internal/api/docs"
	"github.com/sliink/relay/internal/core"
	"github.com/sliink/relay/internal/model"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// MaxRecordSize bounds the body of POST /records
const MaxRecordSize = 32 << 20

// SourceID is the record source for records submitted over HTTP
const SourceID = "api"

// HeaderFilename carries the filename attribute of a submitted record
const HeaderFilename = "X-Filename"

// API represents the REST API of the scoring relay
type API struct {
	core   *core.Core
	router *gin.Engine
	server *http.Server
	port   int
	host   string
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// PluginInfo describes a registered plugin
type PluginInfo struct {
	ID            string                 `json:"id"`
	Name          string                 `json:"name"`
	Type          model.PluginType       `json:"type"`
	Status        model.ComponentStatus  `json:"status"`
	Config        map[string]interface{} `json:"config,omitempty"`
	Relationships []model.Relationship   `json:"relationships,omitempty"`
}

// RecordResponse is the outcome of POST /records
type RecordResponse struct {
	ID           string            `json:"id"`
	Relationship string            `json:"relationship"`
	Attributes   map[string]string `json:"attributes"`
	Payload      string            `json:"payload"`
}

// NewAPI creates a new API instance
// @title           Scoring Relay API
// @version         1.0
// @description     API for inspecting and controlling the scoring relay

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /
func NewAPI(c *core.Core, port int, host string) *API {
	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", host, port)
	docs.SwaggerInfo.Schemes = []string{"http"}

	api := &API{
		core:   c,
		router: gin.Default(),
		port:   port,
		host:   host,
	}
	api.setupRoutes()
	return api
}

// setupRoutes configures all the API routes
func (a *API) setupRoutes() {
	a.router.GET("/health", a.healthCheck)
	a.router.GET("/status", a.getStatus)

	plugins := a.router.Group("/plugins")
	{
		plugins.GET("", a.getPlugins)
		plugins.GET("/:id", a.getPlugin)
		plugins.PUT("/:id/properties", a.updateProperties)
		plugins.GET("/:id/stats", a.getPluginStats)
	}

	a.router.POST("/records", a.submitRecord)

	buffers := a.router.Group("/buffers")
	{
		buffers.GET("", a.getBuffers)
		buffers.POST("/:id/flush", a.flushBuffer)
	}

	a.router.GET("/config", a.getConfig)

	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler returns the HTTP handler serving the API
func (a *API) Handler() http.Handler {
	return a.router
}

// Addr returns the listen address
func (a *API) Addr() string {
	return fmt.Sprintf("%s:%d", a.host, a.port)
}

// Start serves the API until Stop is called
func (a *API) Start() error {
	a.server = &http.Server{
		Addr:    a.Addr(),
		Handler: a.router,
	}

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// healthCheck handles GET /health
// @Summary      Health check
// @Description  Aggregated health of the core components and plugins
// @Tags         system
// @Produce      json
// @Success      200  {object}  model.HealthStatus
// @Failure      503  {object}  model.HealthStatus
// @Router       /health [get]
func (a *API) healthCheck(c *gin.Context) {
	health := a.core.GetHealthMonitor().GetHealthStatus()
	code := http.StatusOK
	if health.Status == model.StatusError || health.Status == model.StatusStopped {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

// getStatus handles GET /status
// @Summary      Get system status
// @Description  Settings, flow, connections and counters of the relay
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /status [get]
func (a *API) getStatus(c *gin.Context) {
	flow := a.core.GetFlowRouter()
	settings := a.core.Settings()
	c.JSON(http.StatusOK, gin.H{
		"status": a.core.GetStatus(),
		"settings": gin.H{
			"poll_interval":    settings.PollInterval.String(),
			"flush_interval":   settings.FlushInterval.String(),
			"penalty_duration": settings.PenaltyDuration.String(),
			"buffer_size":      settings.BufferSize,
			"flush_batch":      settings.FlushBatch,
		},
		"flow":          flow.Flow(),
		"connections":   flow.Connections(),
		"relationships": flow.Relationships(),
		"counters":      a.core.GetHealthMonitor().Counters(),
		"plugins":       len(a.core.GetRegistry().GetAllPlugins()),
	})
}

func describe(p model.Plugin, withConfig bool) PluginInfo {
	info := PluginInfo{
		ID:     p.ID(),
		Name:   p.Name(),
		Type:   p.GetType(),
		Status: p.GetStatus(),
	}
	if processor, ok := p.(model.ProcessorPlugin); ok {
		info.Relationships = processor.Relationships()
	}
	if withConfig {
		if source, ok := p.(interface{ GetConfig() map[string]interface{} }); ok {
			info.Config = source.GetConfig()
		}
	}
	return info
}

// getPlugins handles GET /plugins
// @Summary      Get all plugins
// @Description  List every registered plugin
// @Tags         plugins
// @Produce      json
// @Success      200  {array}  PluginInfo
// @Router       /plugins [get]
func (a *API) getPlugins(c *gin.Context) {
	plugins := a.core.GetRegistry().GetAllPlugins()
	result := make([]PluginInfo, 0, len(plugins))
	for _, p := range plugins {
		result = append(result, describe(p, false))
	}
	c.JSON(http.StatusOK, result)
}

// getPlugin handles GET /plugins/:id
// @Summary      Get plugin
// @Description  Get a plugin with its configuration
// @Tags         plugins
// @Produce      json
// @Param        id   path      string  true  "Plugin id"
// @Success      200  {object}  PluginInfo
// @Failure      404  {object}  ErrorResponse
// @Router       /plugins/{id} [get]
func (a *API) getPlugin(c *gin.Context) {
	p, ok := a.core.GetRegistry().GetPlugin(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Plugin not found"})
		return
	}
	c.JSON(http.StatusOK, describe(p, true))
}

// updateProperties handles PUT /plugins/:id/properties
// @Summary      Update plugin properties
// @Description  Change configuration properties of a plugin; invalid values are rolled back
// @Tags         plugins
// @Accept       json
// @Produce      json
// @Param        id          path      string                  true  "Plugin id"
// @Param        properties  body      map[string]interface{}  true  "Properties to set"
// @Success      200  {object}  PluginInfo
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /plugins/{id}/properties [put]
func (a *API) updateProperties(c *gin.Context) {
	id := c.Param("id")
	p, ok := a.core.GetRegistry().GetPlugin(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Plugin not found"})
		return
	}

	var properties map[string]interface{}
	if err := c.ShouldBindJSON(&properties); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid properties format"})
		return
	}

	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := a.core.SetPluginProperty(id, key, properties[key]); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, describe(p, true))
}

// getPluginStats handles GET /plugins/:id/stats
// @Summary      Get plugin stats
// @Description  Runtime counters of a plugin
// @Tags         plugins
// @Produce      json
// @Param        id   path      string  true  "Plugin id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /plugins/{id}/stats [get]
func (a *API) getPluginStats(c *gin.Context) {
	stats, ok := a.core.PluginStats(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Plugin not found"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// submitRecord handles POST /records
// @Summary      Submit a record
// @Description  Run the request body through the flow as one record
// @Tags         records
// @Accept       */*
// @Produce      json
// @Param        X-Filename  header    string  false  "Filename attribute"
// @Success      200  {object}  RecordResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /records [post]
func (a *API) submitRecord(c *gin.Context) {
	if a.core.GetStatus() != model.StatusRunning {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Relay is not running"})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxRecordSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Failed to read record: " + err.Error()})
		return
	}

	record := model.NewRecord(SourceID, payload)
	if contentType := strings.TrimSpace(c.GetHeader("Content-Type")); contentType != "" {
		record.PutAttribute(model.AttrMimeType, contentType)
	}
	if filename := c.GetHeader(HeaderFilename); filename != "" {
		record.PutAttribute(model.AttrFilename, filename)
	}

	rel := a.core.ProcessRecord(c.Request.Context(), record)
	c.JSON(http.StatusOK, RecordResponse{
		ID:           record.ID,
		Relationship: rel.Name,
		Attributes:   record.Attributes,
		Payload:      string(record.Payload),
	})
}

// getBuffers handles GET /buffers
// @Summary      Get all buffers
// @Description  Queue status of every output buffer
// @Tags         buffers
// @Produce      json
// @Success      200  {object}  map[string]model.BufferStatus
// @Router       /buffers [get]
func (a *API) getBuffers(c *gin.Context) {
	c.JSON(http.StatusOK, a.core.GetBufferManager().GetBufferStatus())
}

// flushBuffer handles POST /buffers/:id/flush
// @Summary      Flush a buffer
// @Description  Send the ready records of one output now
// @Tags         buffers
// @Produce      json
// @Param        id   path      string  true  "Output id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /buffers/{id}/flush [post]
func (a *API) flushBuffer(c *gin.Context) {
	sent, ok := a.core.FlushOutput(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Buffer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Buffer flushed", "sent": sent})
}

// getConfig handles GET /config
// @Summary      Get configuration
// @Description  The loaded configuration document
// @Tags         config
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /config [get]
func (a *API) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, a.core.GetConfigManager().GetConfig("", nil))
}
