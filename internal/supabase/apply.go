package supabase

import (
	"context"

	"github.com/madamis-ops/gmsync/internal/domain"
)

// Failure is one scenario whose update returned an error.
type Failure struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Error string `json:"error"`
}

// Tally counts the outcome of a batch of live updates.
type Tally struct {
	Attempted        int       `json:"attempted"`
	ScenariosUpdated int       `json:"scenarios_updated"`
	MastersUpdated   int       `json:"masters_updated"`
	NoRows           int       `json:"no_rows"`
	Skipped          int       `json:"skipped"`
	Failures         []Failure `json:"failures,omitempty"`
	Canceled         bool      `json:"canceled,omitempty"`
}

// ApplyUpdates sends updates one at a time. A failed row is logged with its
// title and counted; the batch goes on. Nothing is rolled back. A canceled
// context stops the batch before the next row.
func (c *Client) ApplyUpdates(ctx context.Context, updates []domain.ScenarioUpdate) Tally {
	var t Tally
	for _, u := range updates {
		if ctx.Err() != nil {
			t.Canceled = true
			break
		}
		if u.Empty() {
			t.Skipped++
			continue
		}

		t.Attempted++
		out, err := c.UpdateScenario(ctx, u)
		t.ScenariosUpdated += min(out.Scenarios, 1)
		t.MastersUpdated += min(out.Masters, 1)

		if err != nil {
			c.logger.Error("scenario update failed", "title", u.Title, "id", u.ID, "error", err)
			t.Failures = append(t.Failures, Failure{ID: u.ID, Title: u.Title, Error: err.Error()})
			continue
		}
		if out.Scenarios == 0 {
			c.logger.Warn("scenario update matched no rows", "title", u.Title, "id", u.ID)
			t.NoRows++
			continue
		}
		c.logger.Info("scenario updated", "title", u.Title, "masters", out.Masters)
	}
	return t
}
