package completeness

import (
	"context"

	"alcyxob/program-studio/internal/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

// Reconciler fills the flag cache for entities that have no stored flag.
// Every child is checked concurrently; one failing check does not abort the
// batch, it is resolved with the failure policy instead.
type Reconciler struct {
	eval  *Evaluator
	cache *FlagCache
	log   *logger.Logger
}

func NewReconciler(eval *Evaluator, cache *FlagCache, log *logger.Logger) *Reconciler {
	return &Reconciler{eval: eval, cache: cache, log: log.With("component", "completeness.reconciler")}
}

// maxConcurrentChecks bounds the per-pass fan-out against the document store.
const maxConcurrentChecks = 8

type checkFunc func(ctx context.Context, id primitive.ObjectID) (bool, map[string]bool, error)

// Sessions recomputes the given sessions and merges the results.
func (r *Reconciler) Sessions(ctx context.Context, ids []primitive.ObjectID) (map[string]bool, error) {
	return r.run(ctx, "session", ids, func(ctx context.Context, id primitive.ObjectID) (bool, map[string]bool, error) {
		incomplete, err := r.eval.SessionIncomplete(ctx, id)
		return incomplete, nil, err
	})
}

// Modules recomputes the given modules. Session flags found on the way are
// merged as well.
func (r *Reconciler) Modules(ctx context.Context, ids []primitive.ObjectID) (map[string]bool, error) {
	return r.run(ctx, "module", ids, r.eval.ModuleFlags)
}

func (r *Reconciler) run(ctx context.Context, kind string, ids []primitive.ObjectID, check checkFunc) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	type outcome struct {
		incomplete bool
		children   map[string]bool
	}
	outcomes := make([]outcome, len(ids))

	var g errgroup.Group
	g.SetLimit(maxConcurrentChecks)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			incomplete, children, err := check(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				incomplete = r.eval.Policy().OnError()
				children = nil
				r.log.Warn("completeness check failed",
					"kind", kind, "id", id.Hex(), "recorded_incomplete", incomplete, "error", err)
			}
			outcomes[i] = outcome{incomplete: incomplete, children: children}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]bool, len(ids))
	for i, id := range ids {
		for childID, v := range outcomes[i].children {
			merged[childID] = v
		}
		merged[id.Hex()] = outcomes[i].incomplete
	}
	// Cancelled passes are discarded, never merged.
	if !r.cache.MergeUnlessDone(ctx, merged) {
		return nil, ctx.Err()
	}
	r.log.Debug("reconciled", "kind", kind, "count", len(ids))
	return merged, nil
}
