package presigned

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"securedrive/internal/auth"
	"securedrive/internal/object"
)

// RegisterRoutes mounts the presigned link endpoint under the object tree.
func RegisterRoutes(group *gin.RouterGroup, objects *object.Service, service *Service) {
	handler := &httpHandler{objects: objects, service: service}
	group.GET("/objects/:objectID/presign", handler.presignDownload)
}

type httpHandler struct {
	objects *object.Service
	service *Service
}

func (h *httpHandler) presignDownload(c *gin.Context) {
	ownerID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	objectID, err := uuid.Parse(c.Param("objectID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object id"})
		return
	}

	meta, err := h.objects.Get(c.Request.Context(), ownerID, objectID)
	if err != nil {
		if errors.Is(err, object.ErrObjectNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve object"})
		return
	}

	link, err := h.service.DownloadLink(c.Request.Context(), meta.ObjectKey, meta.CurrentName)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to generate download link"})
		return
	}

	c.JSON(http.StatusOK, link)
}
