package handlers

import (
	"errors"
	"net/http"

	"model-artefact-registry/internal/core/domain"

	"github.com/gin-gonic/gin"
)

func mapDomainError(c *gin.Context, err error) {
	switch {
	// Not found errors
	case errors.Is(err, domain.ErrModelNotFound),
		errors.Is(err, domain.ErrArtefactNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": notFoundDetail(err)})

	// Conflict errors
	case errors.Is(err, domain.ErrModelAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"detail": domain.ErrModelAlreadyExists.Error()})

	// Bad request / validation errors
	case domain.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})

	// Access errors
	case errors.Is(err, domain.ErrUnauthorized):
		c.Header("WWW-Authenticate", "Basic")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": domain.ErrUnauthorized.Error()})
	case errors.Is(err, domain.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"detail": domain.ErrAccessDenied.Error()})

	// Service unavailable errors
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": domain.ErrStorageUnavailable.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}

func notFoundDetail(err error) string {
	if errors.Is(err, domain.ErrArtefactNotFound) {
		return domain.ErrArtefactNotFound.Error()
	}
	return domain.ErrModelNotFound.Error()
}
