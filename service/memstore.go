package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leonclem/one-minute-menu-sub003/model"
)

// MemStore is an in-memory Store used by tests and local development.
// It mirrors PGStore semantics, including plan-limit enforcement and
// queued-job claiming.
type MemStore struct {
	mu        sync.RWMutex
	profiles  map[string]*model.Profile
	menus     map[string]*model.Menu
	items     map[string][]model.MenuItem // menuID -> ordered items
	jobs      map[string]*model.ExtractionJob
	scans     []model.ScanEvent
	purchases []model.Purchase
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	return &MemStore{
		profiles: make(map[string]*model.Profile),
		menus:    make(map[string]*model.Menu),
		items:    make(map[string][]model.MenuItem),
		jobs:     make(map[string]*model.ExtractionJob),
	}
}

func (s *MemStore) CreateProfile(_ context.Context, p *model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.profiles {
		if strings.EqualFold(existing.Email, p.Email) {
			return ErrDuplicateEmail
		}
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *MemStore) GetProfile(_ context.Context, id string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) GetProfileByEmail(_ context.Context, email string) (*model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if strings.EqualFold(p.Email, email) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) UpdateProfilePlan(_ context.Context, id, plan string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Plan = plan
	p.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) CreateMenu(_ context.Context, m *model.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.menus {
		if existing.Slug == m.Slug {
			return ErrDuplicateSlug
		}
	}
	cp := *m
	cp.Items = nil
	s.menus[m.ID] = &cp
	s.items[m.ID] = []model.MenuItem{}
	return nil
}

func (s *MemStore) GetMenu(_ context.Context, id string) (*model.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.menus[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.menuWithItems(m), nil
}

func (s *MemStore) GetMenuBySlug(_ context.Context, slug string) (*model.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.menus {
		if m.Slug == slug {
			return s.menuWithItems(m), nil
		}
	}
	return nil, ErrNotFound
}

// menuWithItems copies a menu and attaches its ordered items.
// Must be called with the lock held.
func (s *MemStore) menuWithItems(m *model.Menu) *model.Menu {
	cp := *m
	items := make([]model.MenuItem, len(s.items[m.ID]))
	copy(items, s.items[m.ID])
	cp.Items = items
	return &cp
}

func (s *MemStore) ListMenus(_ context.Context, userID string) ([]*model.Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var menus []*model.Menu
	for _, m := range s.menus {
		if m.UserID == userID {
			menus = append(menus, s.menuWithItems(m))
		}
	}
	sort.Slice(menus, func(i, j int) bool {
		return menus[i].CreatedAt.Before(menus[j].CreatedAt)
	})
	return menus, nil
}

func (s *MemStore) UpdateMenu(_ context.Context, m *model.Menu) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.menus[m.ID]
	if !ok {
		return ErrNotFound
	}
	for _, other := range s.menus {
		if other.ID != m.ID && other.Slug == m.Slug {
			return ErrDuplicateSlug
		}
	}
	cp := *m
	cp.Items = nil
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	s.menus[m.ID] = &cp
	return nil
}

func (s *MemStore) DeleteMenu(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.menus[id]; !ok {
		return ErrNotFound
	}
	delete(s.menus, id)
	delete(s.items, id)
	return nil
}

func (s *MemStore) CreateItem(_ context.Context, item *model.MenuItem, planLimit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.menus[item.MenuID]; !ok {
		return ErrNotFound
	}
	existing := s.items[item.MenuID]
	if planLimit > 0 && len(existing) >= planLimit {
		return ErrPlanLimit
	}
	item.Position = len(existing)
	s.items[item.MenuID] = append(existing, *item)
	return nil
}

func (s *MemStore) UpdateItem(_ context.Context, item *model.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items[item.MenuID]
	for i := range items {
		if items[i].ID == item.ID {
			item.Position = items[i].Position
			item.CreatedAt = items[i].CreatedAt
			item.UpdatedAt = time.Now()
			items[i] = *item
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) DeleteItem(_ context.Context, menuID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items[menuID]
	for i := range items {
		if items[i].ID == itemID {
			s.items[menuID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemStore) ReplaceItems(_ context.Context, menuID string, items []model.MenuItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.menus[menuID]; !ok {
		return ErrNotFound
	}
	replaced := make([]model.MenuItem, len(items))
	for i, it := range items {
		it.Position = i
		replaced[i] = it
	}
	s.items[menuID] = replaced
	return nil
}

func (s *MemStore) CreateJob(_ context.Context, job *model.ExtractionJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemStore) GetJob(_ context.Context, id string) (*model.ExtractionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *MemStore) ClaimQueuedJob(_ context.Context) (*model.ExtractionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var oldest *model.ExtractionJob
	for _, job := range s.jobs {
		if job.Status != model.JobQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}
	oldest.Status = model.JobProcessing
	cp := *oldest
	return &cp, nil
}

func (s *MemStore) CompleteJob(_ context.Context, id string, result json.RawMessage, processingMS int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	job.Status = model.JobCompleted
	job.Result = result
	job.ProcessingMS = processingMS
	job.CompletedAt = &now
	return nil
}

func (s *MemStore) FailJob(_ context.Context, id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	job.Status = model.JobFailed
	job.ErrorMsg = errMsg
	job.CompletedAt = &now
	return nil
}

func (s *MemStore) IncrementJobRetry(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return 0, ErrNotFound
	}
	job.RetryCount++
	return job.RetryCount, nil
}

func (s *MemStore) RequeueJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = model.JobQueued
	return nil
}

func (s *MemStore) RecordScan(_ context.Context, ev *model.ScanEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans = append(s.scans, *ev)
	return nil
}

func (s *MemStore) GetScanStats(_ context.Context, menuID string, days int) (*model.ScanStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &model.ScanStats{MenuID: menuID}
	since := time.Now().AddDate(0, 0, -days)
	byDay := make(map[string]int)
	for _, ev := range s.scans {
		if ev.MenuID != menuID {
			continue
		}
		stats.TotalScans++
		if ev.CreatedAt.After(since) {
			byDay[ev.CreatedAt.Format("2006-01-02")]++
		}
	}
	keys := make([]string, 0, len(byDay))
	for d := range byDay {
		keys = append(keys, d)
	}
	sort.Strings(keys)
	for _, d := range keys {
		stats.ByDay = append(stats.ByDay, model.DayScanCount{Day: d, Count: byDay[d]})
	}
	return stats, nil
}

func (s *MemStore) CreatePurchase(_ context.Context, p *model.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = append(s.purchases, *p)
	return nil
}

func (s *MemStore) ListPurchases(_ context.Context, userID string) ([]*model.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*model.Purchase
	for i := len(s.purchases) - 1; i >= 0; i-- {
		if s.purchases[i].UserID == userID {
			cp := s.purchases[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}
