package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"model-artefact-registry/internal/adapters/primary/http/dto"
	"model-artefact-registry/internal/core/domain"
	"model-artefact-registry/internal/metrics"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const artefactFormField = "artefact"

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// UploadArtefact streams the "artefact" multipart field straight to the
// store without buffering the whole file.
func (h *Handler) UploadArtefact(c *gin.Context) {
	id := c.Param("id")

	mr, err := c.Request.MultipartReader()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": domain.ErrMissingArtefact.Error()})
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": domain.ErrMissingArtefact.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
			return
		}
		if part.FormName() != artefactFormField {
			part.Close()
			continue
		}

		body := &countingReader{r: part}
		key, err := h.artefactSvc.Upload(c.Request.Context(), id, body)
		part.Close()
		if err != nil {
			log.WithError(err).WithField("model_id", id).Error("upload artefact failed")
			mapDomainError(c, err)
			return
		}
		metrics.ArtefactBytes.WithLabelValues("upload").Add(float64(body.n))

		c.JSON(http.StatusOK, dto.ArtefactUploadResponse{
			Message: fmt.Sprintf("Artefact %s uploaded successfully", key),
			Key:     key,
		})
		return
	}
}

func (h *Handler) DownloadArtefact(c *gin.Context) {
	id := c.Param("id")

	artefact, err := h.artefactSvc.Download(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, domain.ErrArtefactNotFound) {
			log.WithError(err).WithField("model_id", id).Error("download artefact failed")
		}
		mapDomainError(c, err)
		return
	}
	defer artefact.Body.Close()

	body := &countingReader{r: artefact.Body}
	c.DataFromReader(http.StatusOK, artefact.Size, "application/octet-stream", body, map[string]string{
		"Content-Disposition": `attachment; filename="artefact"`,
	})
	metrics.ArtefactBytes.WithLabelValues("download").Add(float64(body.n))
}
