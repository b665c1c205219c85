package group

import (
	"context"
	"log"
	"time"
)

// ReconcileReport summarizes one reconcile pass.
type ReconcileReport struct {
	Subscribed   int
	Unsubscribed int
	Discarded    int
	Failed       int
}

// Reconcile brings backplane subscriptions in line with local membership:
// every trip with local members is subscribed, every other trip is not, and
// empty groups are dropped. Failures are counted and retried on the next pass.
func (r *Registry) Reconcile(ctx context.Context) ReconcileReport {
	var report ReconcileReport

	trips := make(map[string]struct{})
	for _, id := range r.Groups() {
		trips[id] = struct{}{}
	}
	if r.backplane != nil {
		for _, id := range r.backplane.Subscriptions() {
			trips[id] = struct{}{}
		}
	}

	for tripID := range trips {
		if r.backplane != nil {
			r.syncTrip(ctx, tripID, &report)
		}
		if r.discardIfEmpty(tripID) {
			report.Discarded++
		}
	}

	return report
}

func (r *Registry) syncTrip(ctx context.Context, tripID string, report *ReconcileReport) {
	r.mu.Lock()
	if _, ok := r.groups[tripID]; !ok {
		// Holding the registry lock keeps a concurrent Join from recreating
		// the group while the stale subscription is dropped.
		defer r.mu.Unlock()
		if r.backplane.Subscribed(tripID) {
			r.unsubscribe(ctx, tripID, report)
		}
		return
	}
	r.mu.Unlock()

	g := r.lockGroup(tripID, false)
	if g == nil {
		return
	}
	defer g.mu.Unlock()

	want := len(g.members) > 0
	have := r.backplane.Subscribed(tripID)
	switch {
	case want && !have:
		if err := r.backplane.Subscribe(ctx, tripID); err != nil {
			log.Printf("[GROUP] reconcile subscribe failed: trip=%s err=%v", tripID, err)
			report.Failed++
			return
		}
		report.Subscribed++
	case !want && have:
		r.unsubscribe(ctx, tripID, report)
	}
}

func (r *Registry) unsubscribe(ctx context.Context, tripID string, report *ReconcileReport) {
	if err := r.backplane.Unsubscribe(ctx, tripID); err != nil {
		log.Printf("[GROUP] reconcile unsubscribe failed: trip=%s err=%v", tripID, err)
		report.Failed++
		return
	}
	report.Unsubscribed++
}

// Reconciler runs Registry.Reconcile on a fixed interval.
type Reconciler struct {
	registry *Registry
	interval time.Duration
}

// NewReconciler creates a new Reconciler.
func NewReconciler(registry *Registry, interval time.Duration) *Reconciler {
	return &Reconciler{registry: registry, interval: interval}
}

// Run reconciles until ctx is cancelled.
func (c *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report := c.registry.Reconcile(ctx)
			if report.Subscribed+report.Unsubscribed+report.Failed > 0 {
				log.Printf("[GROUP] reconcile: subscribed=%d unsubscribed=%d discarded=%d failed=%d",
					report.Subscribed, report.Unsubscribed, report.Discarded, report.Failed)
			}
		}
	}
}
