package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

type JobHandler struct {
	store        service.Store
	minioService *service.MinioService
}

func NewJobHandler(store service.Store, minioSvc *service.MinioService) *JobHandler {
	return &JobHandler{store: store, minioService: minioSvc}
}

type SubmitJobRequest struct {
	MenuID   string `json:"menu_id" binding:"required"`
	ImageURL string `json:"image_url" binding:"required,url"`
}

// Submit creates an extraction job from an already-uploaded image URL.
// The worker picks queued jobs up; this handler never processes inline.
func (h *JobHandler) Submit(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, CodeValidation, "menu_id and image_url are required")
		return
	}

	menu, err := h.store.GetMenu(c.Request.Context(), req.MenuID)
	if err != nil || menu.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}

	job := &model.ExtractionJob{
		ID:        uuid.New().String(),
		UserID:    middleware.GetUserID(c),
		MenuID:    req.MenuID,
		ImageURL:  req.ImageURL,
		Status:    model.JobQueued,
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create extraction job"})
		return
	}

	c.JSON(http.StatusCreated, job)
}

// Upload receives a menu photograph, stores it, and queues an extraction
// job against the presigned object URL in one round trip.
func (h *JobHandler) Upload(c *gin.Context) {
	menu, err := h.store.GetMenu(c.Request.Context(), c.PostForm("menu_id"))
	if err != nil || menu.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType, ok := imageContentTypes[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only JPEG, PNG, and WebP images are allowed"})
		return
	}

	jobID := uuid.New().String()
	objectName := fmt.Sprintf("uploads/%s/%s%s", menu.ID, jobID, ext)

	if err := h.minioService.UploadFile(c.Request.Context(), objectName, file, header.Size, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image: " + err.Error()})
		return
	}

	imageURL, err := h.minioService.GetPresignedURL(c.Request.Context(), objectName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate image URL"})
		return
	}

	job := &model.ExtractionJob{
		ID:        jobID,
		UserID:    menu.UserID,
		MenuID:    menu.ID,
		ImageURL:  imageURL,
		Status:    model.JobQueued,
		CreatedAt: time.Now(),
	}

	if err := h.store.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create extraction job"})
		return
	}

	c.JSON(http.StatusCreated, job)
}

var imageContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// Get returns the job's current state, result payload included once
// completed. Jobs are only visible to their owner.
func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.store.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil || job.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}
