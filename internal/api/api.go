package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/sliink/capture/internal/analyze"
	"github.com/sliink/capture/internal/api/docs"
	"github.com/sliink/capture/internal/capture"
	"github.com/sliink/capture/internal/sink"
)

// ReportFunc builds an analysis report over the current local snapshot.
type ReportFunc func() (analyze.Report, error)

// API is the HTTP surface of the capture service: flow event intake for the
// interception host, plus status and report endpoints.
type API struct {
	handler *capture.Handler
	queue   *sink.Queue
	report  ReportFunc
	router  *gin.Engine
	server  *http.Server
	port    int
	host    string
}

// NewAPI creates the API around a flow handler and its persistence queue.
// @title           Traffic Capture API
// @version         1.0
// @description     Flow event intake, capture status and analysis reports

// @host      localhost:8080
// @BasePath  /
func NewAPI(handler *capture.Handler, queue *sink.Queue, report ReportFunc, port int, host string) *API {
	docs.SwaggerInfo.Title = "Traffic Capture API"
	docs.SwaggerInfo.Description = "Flow event intake, capture status and analysis reports"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = fmt.Sprintf("%s:%d", host, port)
	docs.SwaggerInfo.BasePath = ""
	docs.SwaggerInfo.Schemes = []string{"http"}

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	api := &API{
		handler: handler,
		queue:   queue,
		report:  report,
		router:  router,
		port:    port,
		host:    host,
	}

	api.setupRoutes()
	return api
}

// setupRoutes configures all the API routes
func (a *API) setupRoutes() {
	a.router.GET("/health", a.healthCheck)
	a.router.GET("/status", a.getStatus)
	a.router.GET("/report", a.getReport)

	flows := a.router.Group("/flows")
	{
		flows.POST("/request", a.postRequest)
		flows.POST("/response", a.postResponse)
	}

	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Start starts the API server
func (a *API) Start() error {
	addr := fmt.Sprintf("%s:%d", a.host, a.port)
	a.server = &http.Server{
		Addr:    addr,
		Handler: a.router,
	}
	return a.server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// Router exposes the gin engine for tests.
func (a *API) Router() http.Handler {
	return a.router
}

// healthCheck handles GET /health
// @Summary      Health check
// @Description  Check if the capture service is running
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (a *API) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now(),
	})
}

// getStatus handles GET /status
// @Summary      Capture status
// @Description  Capture counters and persistence queue state
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /status [get]
func (a *API) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"capture": a.handler.Stats(),
		"queue":   a.queue.Status(),
	})
}

// getReport handles GET /report
// @Summary      Analysis report
// @Description  Correlation and extraction report over the local snapshot
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  analyze.Report
// @Failure      500  {object}  map[string]interface{}
// @Router       /report [get]
func (a *API) getReport(c *gin.Context) {
	report, err := a.report()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// postRequest handles POST /flows/request
// @Summary      Observe a request
// @Description  Intake for the interception host's request callback
// @Tags         flows
// @Accept       json
// @Produce      json
// @Param        flow  body  capture.FlowRequest  true  "Observed request"
// @Success      202  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /flows/request [post]
func (a *API) postRequest(c *gin.Context) {
	var ev capture.FlowRequest
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.handler.OnRequest(ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// postResponse handles POST /flows/response
// @Summary      Observe a response
// @Description  Intake for the interception host's response callback
// @Tags         flows
// @Accept       json
// @Produce      json
// @Param        flow  body  capture.FlowResponse  true  "Observed response"
// @Success      202  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Router       /flows/response [post]
func (a *API) postResponse(c *gin.Context) {
	var ev capture.FlowResponse
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a.handler.OnResponse(ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
