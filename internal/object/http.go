package object

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"securedrive/internal/auth"
	"securedrive/internal/metrics"
)

// RegisterRoutes mounts object operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}
	group.POST("/objects", handler.uploadObject)
	group.GET("/objects", handler.listObjects)
	group.GET("/objects/folders", handler.listFolders)
	group.GET("/objects/stats", handler.storageStats)
	group.GET("/objects/:objectID", handler.downloadObject)
	group.PATCH("/objects/:objectID", handler.updateObject)
	group.DELETE("/objects/:objectID", handler.deleteObject)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) uploadObject(c *gin.Context) {
	ownerID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}

	name := strings.TrimSpace(c.PostForm("logical_name"))
	if name == "" {
		name = fileHeader.Filename
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file payload"})
		return
	}
	defer file.Close()

	stored, err := h.service.Upload(c.Request.Context(), UploadInput{
		OwnerID:     ownerID,
		Name:        name,
		Folder:      c.PostForm("folder"),
		ContentType: fileHeader.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		respondServiceError(c, err, "failed to upload object")
		return
	}

	metrics.UploadsTotal.Inc()
	metrics.UploadedBytes.Add(float64(stored.SizeBytes))

	c.JSON(http.StatusCreated, stored)
}

func (h *httpHandler) listObjects(c *gin.Context) {
	ownerID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	query := ListQuery{
		Search:     c.Query("search"),
		SortBy:     ParseSortField(c.Query("sort_by")),
		Descending: strings.EqualFold(c.Query("sort_order"), "desc"),
		Limit:      intQuery(c, "limit", 0),
		Offset:     intQuery(c, "offset", 0),
	}
	if folder, present := c.GetQuery("folder"); present {
		query.Folder = &folder
	}

	page, err := h.service.List(c.Request.Context(), ownerID, query)
	if err != nil {
		respondServiceError(c, err, "failed to list objects")
		return
	}

	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) listFolders(c *gin.Context) {
	ownerID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	index, err := h.service.Folders(c.Request.Context(), ownerID)
	if err != nil {
		respondServiceError(c, err, "failed to list folders")
		return
	}

	c.JSON(http.StatusOK, index)
}

func (h *httpHandler) storageStats(c *gin.Context) {
	ownerID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), ownerID)
	if err != nil {
		respondServiceError(c, err, "failed to aggregate stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *httpHandler) downloadObject(c *gin.Context) {
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

	result, err := h.service.Download(c.Request.Context(), ownerID, objectID)
	if err != nil {
		respondServiceError(c, err, "failed to download object")
		return
	}
	defer result.Body.Close()

	meta := result.Object
	c.Header("Content-Type", meta.ContentType)
	c.Header("Content-Length", strconv.FormatInt(meta.SizeBytes, 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.CurrentName))
	c.Header("X-Checksum-Sha256", meta.SHA256Hex)

	written, err := io.Copy(c.Writer, result.Body)
	metrics.DownloadedBytes.Add(float64(written))
	if err != nil {
		// Headers and a partial body are already on the wire; the client
		// detects the truncation from the Content-Length mismatch. Abort
		// only stops the remaining handler chain.
		c.Abort()
		return
	}

	metrics.DownloadsTotal.Inc()
}

func (h *httpHandler) updateObject(c *gin.Context) {
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

	var payload struct {
		Name   *string `json:"name"`
		Folder *string `json:"folder"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if payload.Name == nil && payload.Folder == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	stored, err := h.service.Update(c.Request.Context(), ownerID, objectID, UpdateInput{
		Name:   payload.Name,
		Folder: payload.Folder,
	})
	if err != nil {
		respondServiceError(c, err, "failed to update object")
		return
	}

	c.JSON(http.StatusOK, stored)
}

func (h *httpHandler) deleteObject(c *gin.Context) {
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

	if err := h.service.Delete(c.Request.Context(), ownerID, objectID); err != nil {
		respondServiceError(c, err, "failed to delete object")
		return
	}

	c.Status(http.StatusNoContent)
}

func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrObjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "object not found"})
	case errors.Is(err, ErrInvalidObjectID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object id"})
	case errors.Is(err, ErrObjectTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": "object too large"})
	case errors.Is(err, ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "object storage unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
