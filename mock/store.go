package mock

import (
	"context"

	"github.com/fwojciec/relay"
)

// Interface compliance checks.
var (
	_ relay.HistoryStore = (*HistoryStore)(nil)
	_ relay.Reporter     = (*Reporter)(nil)
)

// HistoryStore is a test double for relay.HistoryStore.
// Set the function fields for the methods you need.
type HistoryStore struct {
	LoadFn  func(ctx context.Context, id string) (relay.Session, error)
	SaveFn  func(ctx context.Context, s relay.Session) error
	ResetFn func(ctx context.Context, id string) error
}

// Load delegates to LoadFn.
func (h *HistoryStore) Load(ctx context.Context, id string) (relay.Session, error) {
	return h.LoadFn(ctx, id)
}

// Save delegates to SaveFn.
func (h *HistoryStore) Save(ctx context.Context, s relay.Session) error {
	return h.SaveFn(ctx, s)
}

// Reset delegates to ResetFn.
func (h *HistoryStore) Reset(ctx context.Context, id string) error {
	return h.ResetFn(ctx, id)
}

// Reporter is a test double for relay.Reporter. A nil ReportFn discards
// reports.
type Reporter struct {
	ReportFn func(ctx context.Context, r relay.Report)
}

// Report delegates to ReportFn.
func (r *Reporter) Report(ctx context.Context, rep relay.Report) {
	if r.ReportFn != nil {
		r.ReportFn(ctx, rep)
	}
}
