package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

type AuthHandler struct {
	store  service.Store
	config *config.Config
}

func NewAuthHandler(store service.Store, cfg *config.Config) *AuthHandler {
	return &AuthHandler{store: store, config: cfg}
}

type RegisterRequest struct {
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	RestaurantName string `json:"restaurant_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	Plan      string `json:"plan"`
}

// Register creates a new account on the free plan
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, CodeValidation, "Invalid registration request")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	profile := &model.Profile{
		ID:             uuid.New().String(),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash:   string(hash),
		RestaurantName: req.RestaurantName,
		Plan:           model.PlanFree,
		CreatedAt:      time.Now(),
	}

	if err := h.store.CreateProfile(c.Request.Context(), profile); err != nil {
		if errors.Is(err, service.ErrDuplicateEmail) {
			apiError(c, http.StatusConflict, CodeDuplicateEmail, "Email is already registered")
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(profile.ID, profile.Email, profile.Plan, &h.config.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		UserID:    profile.ID,
		Email:     profile.Email,
		Plan:      profile.Plan,
	})
}

// Login authenticates an existing account
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, CodeValidation, "Invalid login request")
		return
	}

	profile, err := h.store.GetProfileByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, expiresAt, err := middleware.GenerateToken(profile.ID, profile.Email, profile.Plan, &h.config.Auth)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		UserID:    profile.ID,
		Email:     profile.Email,
		Plan:      profile.Plan,
	})
}

// GetCurrentUser returns the authenticated account's profile
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	profile, err := h.store.GetProfile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         profile.ID,
		"email":           profile.Email,
		"restaurant_name": profile.RestaurantName,
		"plan":            profile.Plan,
	})
}
