package handler

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

type MenuHandler struct {
	store service.Store
	qr    *service.QRService
}

func NewMenuHandler(store service.Store, qr *service.QRService) *MenuHandler {
	return &MenuHandler{store: store, qr: qr}
}

type CreateMenuRequest struct {
	Name       string `json:"name" binding:"required"`
	Currency   string `json:"currency"`
	ThemeColor string `json:"theme_color"`
}

type UpdateMenuRequest struct {
	Name       string `json:"name"`
	Currency   string `json:"currency"`
	ThemeColor string `json:"theme_color"`
	LogoURL    string `json:"logo_url"`
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a menu name into a URL-safe slug with a short random suffix
// to keep the public namespace collision-free
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStrip.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "menu"
	}
	return fmt.Sprintf("%s-%s", slug, uuid.New().String()[:8])
}

// Create creates a draft menu
func (h *MenuHandler) Create(c *gin.Context) {
	var req CreateMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, CodeValidation, "Menu name is required")
		return
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	menu := &model.Menu{
		ID:         uuid.New().String(),
		UserID:     middleware.GetUserID(c),
		Name:       req.Name,
		Slug:       slugify(req.Name),
		Currency:   currency,
		ThemeColor: req.ThemeColor,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := h.store.CreateMenu(c.Request.Context(), menu); err != nil {
		if errors.Is(err, service.ErrDuplicateSlug) {
			// Random suffix collided; one retry is plenty
			menu.Slug = slugify(req.Name)
			if err := h.store.CreateMenu(c.Request.Context(), menu); err == nil {
				c.JSON(http.StatusCreated, menu)
				return
			}
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create menu"})
		return
	}

	c.JSON(http.StatusCreated, menu)
}

// List returns the authenticated user's menus without their items
func (h *MenuHandler) List(c *gin.Context) {
	menus, err := h.store.ListMenus(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list menus"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"menus": menus})
}

// Get returns one menu with its items
func (h *MenuHandler) Get(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, menu)
}

// Update changes menu presentation fields. The slug is stable after
// creation; published QR codes must keep working.
func (h *MenuHandler) Update(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	var req UpdateMenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, CodeValidation, "Invalid menu update")
		return
	}

	if req.Name != "" {
		menu.Name = req.Name
	}
	if req.Currency != "" {
		menu.Currency = strings.ToUpper(req.Currency)
	}
	if req.ThemeColor != "" {
		menu.ThemeColor = req.ThemeColor
	}
	if req.LogoURL != "" {
		menu.LogoURL = req.LogoURL
	}
	menu.UpdatedAt = time.Now()

	if err := h.store.UpdateMenu(c.Request.Context(), menu); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update menu"})
		return
	}

	c.JSON(http.StatusOK, menu)
}

// Delete removes a menu and everything under it
func (h *MenuHandler) Delete(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	if err := h.store.DeleteMenu(c.Request.Context(), menu.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete menu"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Menu deleted"})
}

// Publish makes the menu publicly reachable and ensures its QR code exists
func (h *MenuHandler) Publish(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	if !menu.Published {
		now := time.Now()
		menu.Published = true
		menu.PublishedAt = &now
		menu.UpdatedAt = now
	}

	if menu.QRObjectName == "" && h.qr != nil {
		objectName, err := h.qr.GenerateAndStore(c.Request.Context(), menu.ID, menu.Slug)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
			return
		}
		menu.QRObjectName = objectName
	}

	if err := h.store.UpdateMenu(c.Request.Context(), menu); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to publish menu"})
		return
	}

	resp := gin.H{"menu": menu}
	if h.qr != nil {
		resp["public_url"] = h.qr.MenuURL(menu.Slug)
	}
	c.JSON(http.StatusOK, resp)
}

// Unpublish hides the menu from the public URL. The QR object is kept so
// republishing restores the same code.
func (h *MenuHandler) Unpublish(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	menu.Published = false
	menu.UpdatedAt = time.Now()

	if err := h.store.UpdateMenu(c.Request.Context(), menu); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unpublish menu"})
		return
	}

	c.JSON(http.StatusOK, menu)
}

// PublicBySlug serves a published menu to unauthenticated diners
func (h *MenuHandler) PublicBySlug(c *gin.Context) {
	menu, err := h.store.GetMenuBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil || !menu.Published {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return
	}

	// Public view hides account internals
	c.JSON(http.StatusOK, gin.H{
		"name":        menu.Name,
		"slug":        menu.Slug,
		"currency":    menu.Currency,
		"theme_color": menu.ThemeColor,
		"logo_url":    menu.LogoURL,
		"items":       availableItems(menu.Items),
	})
}

func availableItems(items []model.MenuItem) []model.MenuItem {
	out := make([]model.MenuItem, 0, len(items))
	for _, item := range items {
		if item.Available {
			out = append(out, item)
		}
	}
	return out
}

// ownedMenu loads the menu in the id param and enforces ownership. Menus
// belonging to someone else look like they do not exist.
func (h *MenuHandler) ownedMenu(c *gin.Context) (*model.Menu, bool) {
	menu, err := h.store.GetMenu(c.Request.Context(), c.Param("id"))
	if err != nil || menu.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return nil, false
	}
	return menu, true
}
