package handlers

import (
	"context"
	"encoding/json"

	"model-artefact-registry/internal/adapters/primary/http/middleware"
	"model-artefact-registry/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	recordSvc   *services.ModelRecordService
	artefactSvc *services.ModelArtefactService
	checks      map[string]Pinger
}

func New(
	recordSvc *services.ModelRecordService,
	artefactSvc *services.ModelArtefactService,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		recordSvc:   recordSvc,
		artefactSvc: artefactSvc,
		checks:      checks,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Model Records
	r.GET("/models", h.ListModels)
	r.POST("/models", h.CreateModel)
	r.GET("/models/:id", h.GetModel)
	r.PUT("/models/:id", h.UpdateModel)
	r.DELETE("/models/:id", h.DeleteModel)

	// Model Artefacts
	r.POST("/models/:id/artefact", h.UploadArtefact)
	r.GET("/models/:id/artefact", h.DownloadArtefact)
}

// NewRouter assembles the engine: request id, logging, metrics and recovery
// on every route, the access gate on the model routes only.
func NewRouter(h *Handler, auth middleware.Authenticator) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logging(), middleware.Metrics(), gin.Recovery())

	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/", middleware.BasicAuth(auth))
	h.RegisterRoutes(api)

	return router
}

// bindJSON decodes the request body with integers kept as json.Number, so
// int64 tags survive exactly, then runs gin's struct validation.
func bindJSON(c *gin.Context, v interface{}) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(v)
}
