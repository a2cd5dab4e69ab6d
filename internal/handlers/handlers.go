package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/pii-mask/internal/auth"
	"github.com/example/pii-mask/internal/upload"
)

// MaxUploadSize bounds multipart uploads; candidates above it fail the gate.
const MaxUploadSize = upload.MaxArtifactSize

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, tracker *upload.Tracker, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := router.Group("/", authMiddleware)

	authed.POST("/upload/select", func(c *gin.Context) {
		owner, ok := auth.GetOwner(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		file, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		candidate := upload.Candidate{
			Name:        file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Size:        file.Size,
			Data:        data,
		}

		snap, err := tracker.SelectCandidate(c.Request.Context(), owner, candidate)
		switch {
		case errors.Is(err, upload.ErrUnsupportedType):
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": snap.ErrorMessage, "state": snap})
		case errors.Is(err, upload.ErrArtifactTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": snap.ErrorMessage, "state": snap})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusAccepted, gin.H{"state": snap})
		}
	})

	authed.POST("/upload/submit", func(c *gin.Context) {
		owner, ok := auth.GetOwner(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		snap, err := tracker.Submit(c.Request.Context(), owner)
		if errors.Is(err, upload.ErrNotReady) {
			c.JSON(http.StatusConflict, gin.H{"error": "no submittable artifact", "state": snap})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"state": snap})
	})

	authed.POST("/upload/reset", func(c *gin.Context) {
		owner, ok := auth.GetOwner(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"state": tracker.Reset(owner)})
	})

	authed.GET("/upload/state", func(c *gin.Context) {
		owner, ok := auth.GetOwner(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"state": tracker.Snapshot(owner)})
	})

	authed.GET("/result/:id", func(c *gin.Context) {
		owner, ok := auth.GetOwner(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
			return
		}

		requestID := c.Param("id")
		if requestID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
			return
		}

		log, err := tracker.Result(c.Request.Context(), owner, requestID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"request_id": log.RequestID,
			"owner":      log.Owner,
			"success":    log.Success,
			"regions":    log.Regions,
			"sha1_hash":  log.SHA1Hash,
			"latency_ms": log.LatencyMs,
			"created_at": log.CreatedAt,
		})
	})

	authed.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := tracker.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}
