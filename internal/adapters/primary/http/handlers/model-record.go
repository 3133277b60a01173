package handlers

import (
	"errors"
	"net/http"

	"model-artefact-registry/internal/adapters/primary/http/dto"
	"model-artefact-registry/internal/core/domain"
	"model-artefact-registry/internal/metrics"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func modelNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"detail": domain.ErrModelNotFound.Error()})
}

func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.recordSvc.List(c.Request.Context())
	if err != nil {
		metrics.ModelOperations.WithLabelValues("list", "error").Inc()
		log.WithError(err).Error("list models failed")
		mapDomainError(c, err)
		return
	}
	metrics.ModelOperations.WithLabelValues("list", "ok").Inc()

	items := make([]dto.ModelRecordResponse, 0, len(models))
	for _, m := range models {
		items = append(items, dto.ToModelRecordResponse(m))
	}

	c.JSON(http.StatusOK, dto.ListModelRecordsResponse{
		Items: items,
		Total: len(items),
	})
}

func (h *Handler) CreateModel(c *gin.Context) {
	var req dto.CreateModelRecordRequest
	if err := bindJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	generated := req.ModelID == ""
	id := req.ModelID
	if generated {
		id = h.recordSvc.NewModelID()
	}

	model, err := h.recordSvc.Create(c.Request.Context(), id, req.Name, req.Description, domain.Tags(req.Tags))
	if generated && errors.Is(err, domain.ErrModelAlreadyExists) {
		// another replica issued the same timestamp id
		log.WithField("model_id", id).Warn("generated model id taken, retrying with a fresh one")
		id = h.recordSvc.NewModelID()
		model, err = h.recordSvc.Create(c.Request.Context(), id, req.Name, req.Description, domain.Tags(req.Tags))
	}
	if err != nil {
		metrics.ModelOperations.WithLabelValues("create", "error").Inc()
		log.WithError(err).WithField("model_id", id).Error("create model failed")
		mapDomainError(c, err)
		return
	}
	metrics.ModelOperations.WithLabelValues("create", "ok").Inc()

	c.JSON(http.StatusCreated, dto.ToModelRecordResponse(model))
}

func (h *Handler) GetModel(c *gin.Context) {
	id := c.Param("id")

	model, ok, err := h.recordSvc.Get(c.Request.Context(), id)
	if err != nil {
		metrics.ModelOperations.WithLabelValues("get", "error").Inc()
		log.WithError(err).WithField("model_id", id).Error("get model failed")
		mapDomainError(c, err)
		return
	}
	if !ok {
		metrics.ModelOperations.WithLabelValues("get", "absent").Inc()
		modelNotFound(c)
		return
	}
	metrics.ModelOperations.WithLabelValues("get", "ok").Inc()

	c.JSON(http.StatusOK, dto.ToModelRecordResponse(model))
}

// UpdateModel applies a partial update. The accepted body is
// {"name"?: string, "description"?: string|null, "tags"?: object|null}.
// It is decoded into a map so that omitted and null fields are left
// untouched while "" still clears a description, and so that unknown or
// immutable keys can be rejected.
func (h *Handler) UpdateModel(c *gin.Context) {
	id := c.Param("id")

	var updates map[string]interface{}
	if err := bindJSON(c, &updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	model, ok, err := h.recordSvc.Update(c.Request.Context(), id, updates)
	if err != nil {
		metrics.ModelOperations.WithLabelValues("update", "error").Inc()
		log.WithError(err).WithField("model_id", id).Error("update model failed")
		mapDomainError(c, err)
		return
	}
	if !ok {
		metrics.ModelOperations.WithLabelValues("update", "absent").Inc()
		modelNotFound(c)
		return
	}
	metrics.ModelOperations.WithLabelValues("update", "ok").Inc()

	c.JSON(http.StatusOK, dto.ToModelRecordResponse(model))
}

func (h *Handler) DeleteModel(c *gin.Context) {
	id := c.Param("id")

	model, ok, err := h.recordSvc.Delete(c.Request.Context(), id)
	if err != nil {
		metrics.ModelOperations.WithLabelValues("delete", "error").Inc()
		log.WithError(err).WithField("model_id", id).Error("delete model failed")
		mapDomainError(c, err)
		return
	}
	if !ok {
		metrics.ModelOperations.WithLabelValues("delete", "absent").Inc()
		modelNotFound(c)
		return
	}
	metrics.ModelOperations.WithLabelValues("delete", "ok").Inc()

	c.JSON(http.StatusOK, dto.ToModelRecordResponse(model))
}
