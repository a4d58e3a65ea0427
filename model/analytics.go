package model

import (
	"time"
)

// ScanEvent records a single view of a published menu (QR scan or direct link)
type ScanEvent struct {
	ID        string    `json:"id"`
	MenuID    string    `json:"menu_id"`
	Source    string    `json:"source"` // qr, link
	CreatedAt time.Time `json:"created_at"`
}

// ScanStats is an aggregated per-menu analytics view
type ScanStats struct {
	MenuID     string         `json:"menu_id"`
	TotalScans int            `json:"total_scans"`
	ByDay      []DayScanCount `json:"by_day"`
}

// DayScanCount is one day's scan total
type DayScanCount struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// Purchase records a fulfilled payment reported by the payment provider webhook
type Purchase struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Plan        string    `json:"plan"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	ProviderRef string    `json:"provider_ref"`
	CreatedAt   time.Time `json:"created_at"`
}
