package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/leonclem/one-minute-menu-sub003/model"
)

// Store errors handlers branch on
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDuplicateSlug  = errors.New("slug already taken")
	// ErrPlanLimit is returned when an item insert would exceed the
	// account plan's per-menu item cap.
	ErrPlanLimit = errors.New("plan item limit exceeded")
)

// Store is the persistence boundary. The production implementation is
// PGStore; handler tests use the in-memory MemStore.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p *model.Profile) error
	GetProfile(ctx context.Context, id string) (*model.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error)
	UpdateProfilePlan(ctx context.Context, id, plan string) error

	// Menus
	CreateMenu(ctx context.Context, m *model.Menu) error
	GetMenu(ctx context.Context, id string) (*model.Menu, error)
	GetMenuBySlug(ctx context.Context, slug string) (*model.Menu, error)
	ListMenus(ctx context.Context, userID string) ([]*model.Menu, error)
	UpdateMenu(ctx context.Context, m *model.Menu) error
	DeleteMenu(ctx context.Context, id string) error

	// Items. CreateItem enforces the plan's per-menu cap (0 = unlimited)
	// and appends at the end of the menu's ordering.
	CreateItem(ctx context.Context, item *model.MenuItem, planLimit int) error
	UpdateItem(ctx context.Context, item *model.MenuItem) error
	DeleteItem(ctx context.Context, menuID, itemID string) error
	ReplaceItems(ctx context.Context, menuID string, items []model.MenuItem) error

	// Extraction jobs. ClaimQueuedJob atomically flips one queued job to
	// processing and returns it, or nil when the queue is empty.
	CreateJob(ctx context.Context, job *model.ExtractionJob) error
	GetJob(ctx context.Context, id string) (*model.ExtractionJob, error)
	ClaimQueuedJob(ctx context.Context) (*model.ExtractionJob, error)
	CompleteJob(ctx context.Context, id string, result json.RawMessage, processingMS int64) error
	FailJob(ctx context.Context, id, errMsg string) error
	IncrementJobRetry(ctx context.Context, id string) (int, error)
	RequeueJob(ctx context.Context, id string) error

	// Analytics
	RecordScan(ctx context.Context, ev *model.ScanEvent) error
	GetScanStats(ctx context.Context, menuID string, days int) (*model.ScanStats, error)

	// Purchases
	CreatePurchase(ctx context.Context, p *model.Purchase) error
	ListPurchases(ctx context.Context, userID string) ([]*model.Purchase, error)
}
