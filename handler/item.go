package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leonclem/one-minute-menu-sub003/extract"
	"github.com/leonclem/one-minute-menu-sub003/middleware"
	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/service"
)

type ItemHandler struct {
	store service.Store
}

func NewItemHandler(store service.Store) *ItemHandler {
	return &ItemHandler{store: store}
}

type ItemRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Price       *float64 `json:"price" binding:"required"`
	Category    string   `json:"category"`
	Available   *bool    `json:"available"`
}

// Create adds one item to a menu, enforcing the account plan's item cap
func (h *ItemHandler) Create(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.Price < 0 {
		apiError(c, http.StatusBadRequest, CodeValidation, "Item needs a name and a non-negative price")
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	item := &model.MenuItem{
		ID:          uuid.New().String(),
		MenuID:      menu.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Category:    req.Category,
		Available:   available,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	planLimit := model.PlanItemLimit(middleware.GetPlan(c))
	if err := h.store.CreateItem(c.Request.Context(), item, planLimit); err != nil {
		if errors.Is(err, service.ErrPlanLimit) {
			apiError(c, http.StatusForbidden, CodePlanLimit, "Your plan's item limit has been reached. Upgrade to add more items.")
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add item"})
		return
	}

	// Clients render whatever the server holds after the write, so the
	// response carries the refetched menu rather than the optimistic item
	updated, err := h.store.GetMenu(c.Request.Context(), menu.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load menu"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"item": item, "menu": updated})
}

// Update changes an existing item
func (h *ItemHandler) Update(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	itemID := c.Param("item_id")
	var existing *model.MenuItem
	for i := range menu.Items {
		if menu.Items[i].ID == itemID {
			existing = &menu.Items[i]
			break
		}
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	var req ItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.Price < 0 {
		apiError(c, http.StatusBadRequest, CodeValidation, "Item needs a name and a non-negative price")
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.Price = *req.Price
	existing.Category = req.Category
	if req.Available != nil {
		existing.Available = *req.Available
	}
	existing.UpdatedAt = time.Now()

	if err := h.store.UpdateItem(c.Request.Context(), existing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item"})
		return
	}

	c.JSON(http.StatusOK, existing)
}

// Delete removes one item
func (h *ItemHandler) Delete(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	if err := h.store.DeleteItem(c.Request.Context(), menu.ID, c.Param("item_id")); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
}

// MigrateCategories runs the one-shot legacy category rewrite for menus
// created before hierarchical labels. Safe to call repeatedly; the sentinel
// flag on the menu record makes it a no-op after the first run.
func (h *ItemHandler) MigrateCategories(c *gin.Context) {
	menu, ok := h.ownedMenu(c)
	if !ok {
		return
	}

	if menu.CategoriesMigrated {
		c.JSON(http.StatusOK, gin.H{"migrated": false, "menu": menu})
		return
	}

	migrated := extract.MigrateLegacyCategories(menu.Items)
	if err := h.store.ReplaceItems(c.Request.Context(), menu.ID, migrated); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to migrate categories"})
		return
	}

	menu.CategoriesMigrated = true
	menu.UpdatedAt = time.Now()
	if err := h.store.UpdateMenu(c.Request.Context(), menu); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record migration"})
		return
	}

	menu.Items = migrated
	c.JSON(http.StatusOK, gin.H{"migrated": true, "menu": menu})
}

func (h *ItemHandler) ownedMenu(c *gin.Context) (*model.Menu, bool) {
	menu, err := h.store.GetMenu(c.Request.Context(), c.Param("id"))
	if err != nil || menu.UserID != middleware.GetUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Menu not found"})
		return nil, false
	}
	return menu, true
}
