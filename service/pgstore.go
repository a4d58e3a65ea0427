package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leonclem/one-minute-menu-sub003/config"
	"github.com/leonclem/one-minute-menu-sub003/model"
)

// PGStore implements Store on a pgx connection pool. Schema ownership sits
// with the managed database; db/schema.sql documents the expected tables.
type PGStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// OpenPGStore connects a pgx pool and wraps it as a Store
func OpenPGStore(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*PGStore, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime.Std()
	pc.ConnConfig.RuntimeParams["application_name"] = "one-minute-menu"

	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout.Std())
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	logger.Info("connected to database")
	return &PGStore{pool: pool, log: logger}, nil
}

// Close releases the underlying pool
func (s *PGStore) Close() {
	s.pool.Close()
}

// Ping checks connectivity, used at startup and by the health endpoint
func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation &&
		(constraint == "" || pgErr.ConstraintName == constraint)
}

// --- Profiles ---

func (s *PGStore) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (id, email, password_hash, restaurant_name, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		p.ID, p.Email, p.PasswordHash, p.RestaurantName, p.Plan, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateEmail
		}
		s.log.Error("profile insert failed", "email", p.Email, "error", err)
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *PGStore) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	return s.scanProfile(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, restaurant_name, plan, created_at, updated_at
		FROM profiles WHERE id = $1`, id))
}

func (s *PGStore) GetProfileByEmail(ctx context.Context, email string) (*model.Profile, error) {
	return s.scanProfile(s.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, restaurant_name, plan, created_at, updated_at
		FROM profiles WHERE email = $1`, email))
}

func (s *PGStore) scanProfile(row pgx.Row) (*model.Profile, error) {
	var p model.Profile
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.RestaurantName, &p.Plan, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}

func (s *PGStore) UpdateProfilePlan(ctx context.Context, id, plan string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE profiles SET plan = $2, updated_at = NOW() WHERE id = $1`, id, plan)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Menus ---

func (s *PGStore) CreateMenu(ctx context.Context, m *model.Menu) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO menus (id, user_id, name, slug, currency, theme_color, logo_url,
			published, categories_migrated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`,
		m.ID, m.UserID, m.Name, m.Slug, m.Currency, m.ThemeColor, m.LogoURL,
		m.Published, m.CategoriesMigrated, m.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateSlug
		}
		s.log.Error("menu insert failed", "menu_id", m.ID, "error", err)
		return fmt.Errorf("insert menu: %w", err)
	}
	return nil
}

const menuColumns = `id, user_id, name, slug, currency, COALESCE(theme_color, ''),
	COALESCE(logo_url, ''), published, published_at, COALESCE(qr_object_name, ''),
	categories_migrated, created_at, updated_at`

func (s *PGStore) GetMenu(ctx context.Context, id string) (*model.Menu, error) {
	m, err := s.scanMenu(s.pool.QueryRow(ctx,
		`SELECT `+menuColumns+` FROM menus WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PGStore) GetMenuBySlug(ctx context.Context, slug string) (*model.Menu, error) {
	m, err := s.scanMenu(s.pool.QueryRow(ctx,
		`SELECT `+menuColumns+` FROM menus WHERE slug = $1`, slug))
	if err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PGStore) scanMenu(row pgx.Row) (*model.Menu, error) {
	var m model.Menu
	err := row.Scan(&m.ID, &m.UserID, &m.Name, &m.Slug, &m.Currency, &m.ThemeColor,
		&m.LogoURL, &m.Published, &m.PublishedAt, &m.QRObjectName,
		&m.CategoriesMigrated, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan menu: %w", err)
	}
	return &m, nil
}

func (s *PGStore) loadItems(ctx context.Context, m *model.Menu) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id, menu_id, name, COALESCE(description, ''), price, category,
			available, position, created_at, updated_at
		FROM menu_items WHERE menu_id = $1 ORDER BY position ASC`, m.ID)
	if err != nil {
		return fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	m.Items = []model.MenuItem{}
	for rows.Next() {
		var it model.MenuItem
		if err := rows.Scan(&it.ID, &it.MenuID, &it.Name, &it.Description, &it.Price,
			&it.Category, &it.Available, &it.Position, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return fmt.Errorf("scan item: %w", err)
		}
		m.Items = append(m.Items, it)
	}
	return rows.Err()
}

func (s *PGStore) ListMenus(ctx context.Context, userID string) ([]*model.Menu, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+menuColumns+` FROM menus WHERE user_id = $1 ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query menus: %w", err)
	}
	defer rows.Close()

	var menus []*model.Menu
	for rows.Next() {
		m, err := s.scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

func (s *PGStore) UpdateMenu(ctx context.Context, m *model.Menu) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE menus SET name = $2, slug = $3, currency = $4, theme_color = $5,
			logo_url = $6, published = $7, published_at = $8, qr_object_name = $9,
			categories_migrated = $10, updated_at = NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.Slug, m.Currency, m.ThemeColor, m.LogoURL,
		m.Published, m.PublishedAt, m.QRObjectName, m.CategoriesMigrated)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("update menu: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteMenu(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM menus WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete menu: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Items ---

// CreateItem appends an item, locking the menu row so the plan-limit count
// cannot race with concurrent inserts.
func (s *PGStore) CreateItem(ctx context.Context, item *model.MenuItem, planLimit int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var menuID string
	err = tx.QueryRow(ctx, `SELECT id FROM menus WHERE id = $1 FOR UPDATE`, item.MenuID).Scan(&menuID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock menu: %w", err)
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM menu_items WHERE menu_id = $1`, item.MenuID).Scan(&count); err != nil {
		return fmt.Errorf("count items: %w", err)
	}
	if planLimit > 0 && count >= planLimit {
		return ErrPlanLimit
	}

	item.Position = count
	_, err = tx.Exec(ctx, `
		INSERT INTO menu_items (id, menu_id, name, description, price, category,
			available, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		item.ID, item.MenuID, item.Name, item.Description, item.Price, item.Category,
		item.Available, item.Position, item.CreatedAt)
	if err != nil {
		s.log.Error("item insert failed", "menu_id", item.MenuID, "error", err)
		return fmt.Errorf("insert item: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PGStore) UpdateItem(ctx context.Context, item *model.MenuItem) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE menu_items SET name = $3, description = $4, price = $5, category = $6,
			available = $7, updated_at = NOW()
		WHERE id = $1 AND menu_id = $2`,
		item.ID, item.MenuID, item.Name, item.Description, item.Price, item.Category, item.Available)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteItem(ctx context.Context, menuID, itemID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM menu_items WHERE id = $1 AND menu_id = $2`, itemID, menuID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceItems swaps a menu's full item list in one transaction, preserving
// the order of the given slice. Used by the legacy category migration.
func (s *PGStore) ReplaceItems(ctx context.Context, menuID string, items []model.MenuItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM menu_items WHERE menu_id = $1`, menuID); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	for i := range items {
		it := &items[i]
		it.Position = i
		_, err := tx.Exec(ctx, `
			INSERT INTO menu_items (id, menu_id, name, description, price, category,
				available, position, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
			it.ID, menuID, it.Name, it.Description, it.Price, it.Category,
			it.Available, it.Position, it.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// --- Extraction jobs ---

func (s *PGStore) CreateJob(ctx context.Context, job *model.ExtractionJob) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO extraction_jobs (id, user_id, menu_id, image_url, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6)`,
		job.ID, job.UserID, job.MenuID, job.ImageURL, job.Status, job.CreatedAt)
	if err != nil {
		s.log.Error("job insert failed", "menu_id", job.MenuID, "error", err)
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PGStore) GetJob(ctx context.Context, id string) (*model.ExtractionJob, error) {
	var job model.ExtractionJob
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, menu_id, image_url, status, COALESCE(result, 'null'),
			COALESCE(error_message, ''), COALESCE(retry_count, 0),
			COALESCE(processing_ms, 0), created_at, completed_at
		FROM extraction_jobs WHERE id = $1`, id).
		Scan(&job.ID, &job.UserID, &job.MenuID, &job.ImageURL, &job.Status, &job.Result,
			&job.ErrorMsg, &job.RetryCount, &job.ProcessingMS, &job.CreatedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if string(job.Result) == "null" {
		job.Result = nil
	}
	return &job, nil
}

// ClaimQueuedJob claims the oldest queued job. SKIP LOCKED keeps concurrent
// workers from fighting over the same row.
func (s *PGStore) ClaimQueuedJob(ctx context.Context) (*model.ExtractionJob, error) {
	var job model.ExtractionJob
	err := s.pool.QueryRow(ctx, `
		UPDATE extraction_jobs
		SET status = 'processing'
		WHERE id = (
			SELECT id FROM extraction_jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, user_id, menu_id, image_url, status, COALESCE(retry_count, 0), created_at`).
		Scan(&job.ID, &job.UserID, &job.MenuID, &job.ImageURL, &job.Status, &job.RetryCount, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return &job, nil
}

func (s *PGStore) CompleteJob(ctx context.Context, id string, result json.RawMessage, processingMS int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs
		SET status = 'completed', result = $2, processing_ms = $3, completed_at = NOW()
		WHERE id = $1`, id, result, processingMS)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) FailJob(ctx context.Context, id, errMsg string) error {
	if len(errMsg) > 2000 {
		errMsg = errMsg[:2000]
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE extraction_jobs SET status = 'failed', error_message = $2, completed_at = NOW()
		WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) IncrementJobRetry(ctx context.Context, id string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		UPDATE extraction_jobs SET retry_count = COALESCE(retry_count, 0) + 1
		WHERE id = $1
		RETURNING retry_count`, id).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment retry: %w", err)
	}
	return count, nil
}

func (s *PGStore) RequeueJob(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs SET status = 'queued' WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("requeue job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Analytics ---

func (s *PGStore) RecordScan(ctx context.Context, ev *model.ScanEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scan_events (id, menu_id, source, created_at)
		VALUES ($1, $2, $3, $4)`,
		ev.ID, ev.MenuID, ev.Source, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert scan event: %w", err)
	}
	return nil
}

func (s *PGStore) GetScanStats(ctx context.Context, menuID string, days int) (*model.ScanStats, error) {
	stats := &model.ScanStats{MenuID: menuID}

	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM scan_events WHERE menu_id = $1`, menuID).Scan(&stats.TotalScans); err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}

	since := time.Now().AddDate(0, 0, -days)
	rows, err := s.pool.Query(ctx, `
		SELECT TO_CHAR(created_at::date, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM scan_events
		WHERE menu_id = $1 AND created_at >= $2
		GROUP BY day ORDER BY day ASC`, menuID, since)
	if err != nil {
		return nil, fmt.Errorf("query scan days: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.DayScanCount
		if err := rows.Scan(&d.Day, &d.Count); err != nil {
			return nil, fmt.Errorf("scan day row: %w", err)
		}
		stats.ByDay = append(stats.ByDay, d)
	}
	return stats, rows.Err()
}

// --- Purchases ---

func (s *PGStore) CreatePurchase(ctx context.Context, p *model.Purchase) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO purchases (id, user_id, plan, amount_cents, currency, provider_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.UserID, p.Plan, p.AmountCents, p.Currency, p.ProviderRef, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (s *PGStore) ListPurchases(ctx context.Context, userID string) ([]*model.Purchase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, plan, amount_cents, currency, provider_ref, created_at
		FROM purchases WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.Plan, &p.AmountCents, &p.Currency,
			&p.ProviderRef, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		purchases = append(purchases, &p)
	}
	return purchases, rows.Err()
}
