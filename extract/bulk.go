package extract

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/leonclem/one-minute-menu-sub003/model"
	"github.com/leonclem/one-minute-menu-sub003/pkg/retry"
)

// BulkReport summarizes a bulk add: how many drafts were attempted, how many
// landed, whether the run stopped early on the plan limit, and the refetched
// menu as the source of truth for whatever the caller renders next.
type BulkReport struct {
	Requested    int             `json:"requested"`
	Added        int             `json:"added"`
	Skipped      []SkippedDraft  `json:"skipped,omitempty"`
	PlanLimitHit bool            `json:"plan_limit_hit"`
	Menu         *model.Menu     `json:"menu"`
}

// SkippedDraft records a draft that failed to persist without stopping the
// batch
type SkippedDraft struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// BulkAddItems persists reconciled drafts one at a time, in order. A
// plan-limit error stops the run immediately but keeps what was already
// added; any other per-draft failure is recorded and skipped. After the
// batch the menu is refetched so the report reflects the server's state, not
// the client's optimistic view.
func (c *Client) BulkAddItems(ctx context.Context, menuID string, drafts []model.MenuItemDraft, logger *slog.Logger) (*BulkReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := &BulkReport{Requested: len(drafts)}

	for _, draft := range drafts {
		if draft.Name == "" || draft.Price < 0 {
			report.Skipped = append(report.Skipped, SkippedDraft{Name: draft.Name, Reason: "invalid draft"})
			continue
		}
		if err := c.createItem(ctx, menuID, draft); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			if retry.CodeOf(err) == retry.CodePlanLimit {
				report.PlanLimitHit = true
				logger.Warn("bulk add stopped at plan limit",
					"menu_id", menuID,
					"added", report.Added,
					"remaining", report.Requested-report.Added)
				break
			}
			logger.Warn("skipping item that failed to persist",
				"menu_id", menuID,
				"item", draft.Name,
				"error", err)
			report.Skipped = append(report.Skipped, SkippedDraft{Name: draft.Name, Reason: err.Error()})
			continue
		}
		report.Added++
	}

	menu, err := c.GetMenu(ctx, menuID)
	if err != nil {
		// The adds above already happened; report them even when the
		// refetch fails
		logger.Error("failed to refetch menu after bulk add", "menu_id", menuID, "error", err)
		return report, err
	}
	report.Menu = menu
	return report, nil
}

func (c *Client) createItem(ctx context.Context, menuID string, draft model.MenuItemDraft) error {
	_, err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) (struct{}, error) {
		err := c.doJSON(ctx, http.MethodPost, "/api/menus/"+menuID+"/items", draft, nil)
		return struct{}{}, err
	})
	return err
}

// GetMenu fetches the authoritative menu, items included
func (c *Client) GetMenu(ctx context.Context, menuID string) (*model.Menu, error) {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) (*model.Menu, error) {
		var menu model.Menu
		if err := c.doJSON(ctx, http.MethodGet, "/api/menus/"+menuID, nil, &menu); err != nil {
			return nil, err
		}
		return &menu, nil
	})
}
