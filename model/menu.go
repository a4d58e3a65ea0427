package model

import (
	"time"
)

// Profile represents a restaurant account
type Profile struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	RestaurantName string    `json:"restaurant_name"`
	Plan           string    `json:"plan"` // free, pro
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Plan constants
const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// Menu represents a published or draft digital menu
type Menu struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	Currency           string     `json:"currency"`
	ThemeColor         string     `json:"theme_color,omitempty"`
	LogoURL            string     `json:"logo_url,omitempty"`
	Published          bool       `json:"published"`
	PublishedAt        *time.Time `json:"published_at,omitempty"`
	QRObjectName       string     `json:"qr_object_name,omitempty"`
	CategoriesMigrated bool       `json:"categories_migrated"`
	Items              []MenuItem `json:"items,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// MenuItem represents a single line on a menu
type MenuItem struct {
	ID          string    `json:"id"`
	MenuID      string    `json:"menu_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Available   bool      `json:"available"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// MenuItemDraft is the flattened, persistence-ready shape produced by
// reconciliation. It carries no identity; the store assigns one on insert.
type MenuItemDraft struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Available   bool    `json:"available"`
}

// PlanItemLimit returns the maximum items per menu for a plan, 0 = unlimited
func PlanItemLimit(plan string) int {
	switch plan {
	case PlanPro:
		return 0
	default:
		return 20
	}
}
