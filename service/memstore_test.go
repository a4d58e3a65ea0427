package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/leonclem/one-minute-menu-sub003/model"
)

func newTestMenu(store *MemStore, t *testing.T, id, userID, slug string) *model.Menu {
	t.Helper()
	menu := &model.Menu{
		ID:        id,
		UserID:    userID,
		Name:      "Test Menu",
		Slug:      slug,
		Currency:  "USD",
		CreatedAt: time.Now(),
	}
	if err := store.CreateMenu(context.Background(), menu); err != nil {
		t.Fatalf("Failed to create menu: %v", err)
	}
	return menu
}

func TestMemStoreProfiles(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	profile := &model.Profile{
		ID:        "user-1",
		Email:     "owner@bistro.test",
		Plan:      model.PlanFree,
		CreatedAt: time.Now(),
	}
	if err := store.CreateProfile(ctx, profile); err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	// Duplicate email rejected, case-insensitive
	dup := &model.Profile{ID: "user-2", Email: "Owner@Bistro.Test"}
	if err := store.CreateProfile(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("Expected ErrDuplicateEmail, got %v", err)
	}

	got, err := store.GetProfileByEmail(ctx, "owner@bistro.test")
	if err != nil {
		t.Fatalf("Failed to get profile: %v", err)
	}
	if got.ID != "user-1" {
		t.Errorf("Expected user-1, got %s", got.ID)
	}

	if err := store.UpdateProfilePlan(ctx, "user-1", model.PlanPro); err != nil {
		t.Fatalf("Failed to update plan: %v", err)
	}
	got, _ = store.GetProfile(ctx, "user-1")
	if got.Plan != model.PlanPro {
		t.Errorf("Expected pro plan, got %s", got.Plan)
	}
}

func TestMemStoreCreateItemPlanLimit(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	newTestMenu(store, t, "menu-1", "user-1", "bistro")

	for i := 0; i < 3; i++ {
		item := &model.MenuItem{
			ID:     string(rune('a' + i)),
			MenuID: "menu-1",
			Name:   "Item",
			Price:  1,
		}
		if err := store.CreateItem(ctx, item, 3); err != nil {
			t.Fatalf("Item %d: unexpected error %v", i, err)
		}
	}

	over := &model.MenuItem{ID: "d", MenuID: "menu-1", Name: "Over", Price: 1}
	if err := store.CreateItem(ctx, over, 3); !errors.Is(err, ErrPlanLimit) {
		t.Errorf("Expected ErrPlanLimit, got %v", err)
	}

	// Unlimited plan (0) keeps accepting
	if err := store.CreateItem(ctx, over, 0); err != nil {
		t.Errorf("Expected unlimited insert to succeed, got %v", err)
	}

	menu, _ := store.GetMenu(ctx, "menu-1")
	if len(menu.Items) != 4 {
		t.Errorf("Expected 4 items, got %d", len(menu.Items))
	}
	for i, it := range menu.Items {
		if it.Position != i {
			t.Errorf("Item %d: expected position %d, got %d", i, i, it.Position)
		}
	}
}

func TestMemStoreClaimQueuedJobOrder(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"job-b", "job-a", "job-c"} {
		job := &model.ExtractionJob{
			ID:        id,
			MenuID:    "menu-1",
			Status:    model.JobQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatalf("Failed to create job: %v", err)
		}
	}

	// Oldest job first
	claimed, err := store.ClaimQueuedJob(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if claimed.ID != "job-b" {
		t.Errorf("Expected job-b (oldest), got %s", claimed.ID)
	}
	if claimed.Status != model.JobProcessing {
		t.Errorf("Expected claimed job to be processing, got %s", claimed.Status)
	}

	// Claimed job is not claimable again
	second, _ := store.ClaimQueuedJob(ctx)
	if second.ID == "job-b" {
		t.Error("Claimed the same job twice")
	}

	store.ClaimQueuedJob(ctx)
	empty, err := store.ClaimQueuedJob(ctx)
	if err != nil || empty != nil {
		t.Errorf("Expected empty claim (nil, nil), got %v, %v", empty, err)
	}
}

func TestMemStoreJobLifecycle(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	job := &model.ExtractionJob{
		ID:        "job-1",
		MenuID:    "menu-1",
		Status:    model.JobQueued,
		CreatedAt: time.Now(),
	}
	store.CreateJob(ctx, job)

	result := json.RawMessage(`{"menu":{"categories":[]}}`)
	if err := store.CompleteJob(ctx, "job-1", result, 1500); err != nil {
		t.Fatalf("Failed to complete job: %v", err)
	}

	got, _ := store.GetJob(ctx, "job-1")
	if got.Status != model.JobCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if string(got.Result) != string(result) {
		t.Errorf("Unexpected result: %s", got.Result)
	}
	if got.CompletedAt == nil {
		t.Error("Expected CompletedAt to be set")
	}

	// Retry accounting on a second job
	store.CreateJob(ctx, &model.ExtractionJob{ID: "job-2", Status: model.JobQueued, CreatedAt: time.Now()})
	count, err := store.IncrementJobRetry(ctx, "job-2")
	if err != nil || count != 1 {
		t.Errorf("Expected retry count 1, got %d (%v)", count, err)
	}
	if err := store.RequeueJob(ctx, "job-2"); err != nil {
		t.Fatalf("Failed to requeue: %v", err)
	}
	if err := store.FailJob(ctx, "job-2", "provider unreachable"); err != nil {
		t.Fatalf("Failed to fail job: %v", err)
	}
	got, _ = store.GetJob(ctx, "job-2")
	if got.Status != model.JobFailed || got.ErrorMsg != "provider unreachable" {
		t.Errorf("Unexpected failed job state: %+v", got)
	}
}

func TestMemStoreReplaceItems(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	newTestMenu(store, t, "menu-1", "user-1", "bistro")

	store.CreateItem(ctx, &model.MenuItem{ID: "a", MenuID: "menu-1", Name: "Old", Price: 1}, 0)

	replacement := []model.MenuItem{
		{ID: "x", MenuID: "menu-1", Name: "New 1", Price: 2, Category: "Mains"},
		{ID: "y", MenuID: "menu-1", Name: "New 2", Price: 3, Category: "Mains"},
	}
	if err := store.ReplaceItems(ctx, "menu-1", replacement); err != nil {
		t.Fatalf("Failed to replace items: %v", err)
	}

	menu, _ := store.GetMenu(ctx, "menu-1")
	if len(menu.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(menu.Items))
	}
	if menu.Items[0].Name != "New 1" || menu.Items[0].Position != 0 {
		t.Errorf("Unexpected first item: %+v", menu.Items[0])
	}
	if menu.Items[1].Position != 1 {
		t.Errorf("Expected position 1, got %d", menu.Items[1].Position)
	}
}

func TestMemStoreScanStats(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 3; i++ {
		store.RecordScan(ctx, &model.ScanEvent{
			ID:        string(rune('a' + i)),
			MenuID:    "menu-1",
			Source:    "qr",
			CreatedAt: now,
		})
	}
	store.RecordScan(ctx, &model.ScanEvent{ID: "z", MenuID: "menu-2", Source: "link", CreatedAt: now})

	stats, err := store.GetScanStats(ctx, "menu-1", 30)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.TotalScans != 3 {
		t.Errorf("Expected 3 scans, got %d", stats.TotalScans)
	}
	if len(stats.ByDay) != 1 || stats.ByDay[0].Count != 3 {
		t.Errorf("Unexpected by-day stats: %+v", stats.ByDay)
	}
}
