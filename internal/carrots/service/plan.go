package service

import "carrotreset/internal/carrots/model"

// PagePlan is what one page of users contributes to a run.
type PagePlan struct {
	NextCursor string
	Scanned    int
	Eligible   int
	// Resets is empty in dry-run mode.
	Resets []model.Reset
}

// PlanPage evaluates a page without touching the store. The cursor always
// moves to the last user of the page, eligible or not.
func PlanPage(page []model.UserRecord, dryRun bool) PagePlan {
	plan := PagePlan{Scanned: len(page)}
	if len(page) == 0 {
		return plan
	}
	plan.NextCursor = page[len(page)-1].ID

	for _, user := range page {
		if user.IsPremium() {
			continue
		}
		plan.Eligible++
		if dryRun {
			continue
		}
		plan.Resets = append(plan.Resets, model.Reset{
			UserID: user.ID,
			Amount: user.ResetAmount(),
		})
	}
	return plan
}
