// Package activity derives approval state and the most recent actor of a pull
// request from its activity trail.
package activity

import (
	"context"
	"log/slog"

	"github.com/h0rv/prwatch/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds parallel timeline fetches within one cycle.
const DefaultConcurrency = 8

// TimelineFetcher returns an item's activity trail ordered oldest to newest.
type TimelineFetcher interface {
	Timeline(ctx context.Context, repo domain.RepoRef, number int) ([]domain.ActivityEvent, error)
}

// stateChanging lists the kinds whose actor can become the last actor.
var stateChanging = map[domain.ActionKind]bool{
	domain.ActionReviewSubmitted:    true,
	domain.ActionCommitPushed:       true,
	domain.ActionCommentPosted:      true,
	domain.ActionBranchSynchronized: true,
}

// Scan walks events from newest to oldest.
//
// The last actor is the actor of the newest state-changing event that has one.
// Approval is decided by the newest review submission alone: an older approval
// is superseded by any newer review with a different outcome.
// The two scans are independent and may stop at different events.
func Scan(events []domain.ActivityEvent) domain.Activity {
	var result domain.Activity

	actorFound := false
	approvalDecided := false
	for i := len(events) - 1; i >= 0 && !(actorFound && approvalDecided); i-- {
		ev := events[i]

		if !actorFound && ev.Actor != "" && stateChanging[ev.Kind] {
			result.LastActor = ev.Actor
			actorFound = true
		}

		if !approvalDecided && ev.Kind == domain.ActionReviewSubmitted {
			result.Approved = ev.ReviewState == domain.ReviewApproved
			approvalDecided = true
		}
	}

	return result
}

// Resolver enriches items with activity derived from their timelines.
type Resolver struct {
	fetcher     TimelineFetcher
	logger      *slog.Logger
	concurrency int
}

// NewResolver creates a resolver. A concurrency below 1 uses DefaultConcurrency.
func NewResolver(fetcher TimelineFetcher, logger *slog.Logger, concurrency int) *Resolver {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Resolver{fetcher: fetcher, logger: logger, concurrency: concurrency}
}

// Resolve fetches and scans one item's timeline.
// On failure it returns the degraded zero Activity together with an
// *domain.ActivityResolutionError describing why.
func (r *Resolver) Resolve(ctx context.Context, item domain.Item) (domain.Activity, error) {
	events, err := r.fetcher.Timeline(ctx, item.Repo, item.Number)
	if err != nil {
		return domain.Activity{}, &domain.ActivityResolutionError{ItemID: item.ID, Err: err}
	}
	return Scan(events), nil
}

// ResolveAll returns a copy of items with Approved and LastActor filled in.
// Timelines are fetched concurrently. Failures degrade the affected item only
// and are logged; the only error returned is context cancellation.
func (r *Resolver) ResolveAll(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	out := make([]domain.Item, len(items))
	copy(out, items)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i := range out {
		g.Go(func() error {
			activity, err := r.Resolve(gctx, out[i])
			if err != nil {
				r.logger.Warn("activity resolution degraded",
					"item", out[i].ID,
					"repo", out[i].Repo.String(),
					"number", out[i].Number,
					"err", err)
			}
			out[i].Approved = activity.Approved
			out[i].LastActor = activity.LastActor
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
