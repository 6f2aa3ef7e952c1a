package tracker

import (
	"context"
	"log"
	"time"
)

// WalletSource supplies the desired watch set: enabled wallet addresses of
// enabled users.
type WalletSource interface {
	EnabledWalletAddresses() (map[string]struct{}, error)
}

// Registry is the mutable set of running listeners, keyed by address.
// Satisfied by *Manager.
type Registry interface {
	Track(ctx context.Context, addr string) error
	Untrack(ctx context.Context, addr string) error
	List() []string
}

// Reconciler converges the set of running subscribers onto the desired set
// on a fixed interval. It is the sole owner of subscriber lifecycle: a
// listener exists for an address iff the address was in the desired set on
// the last completed tick.
type Reconciler struct {
	src      WalletSource
	reg      Registry
	interval time.Duration
}

// NewReconciler binds a reconcile loop to a wallet source and a registry.
func NewReconciler(src WalletSource, reg Registry, interval time.Duration) *Reconciler {
	return &Reconciler{src: src, reg: reg, interval: interval}
}

// Run reconciles immediately, then on every tick until ctx is done. Ticks
// never overlap: a slow tick delays the next one rather than running
// concurrently with it.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one reconciliation pass. A store read failure skips the
// pass; the stale watch set persists until the next tick.
func (r *Reconciler) Tick(ctx context.Context) {
	desired, err := r.src.EnabledWalletAddresses()
	if err != nil {
		log.Printf("[reconciler] desired set read failed, keeping current set: %v", err)
		return
	}

	// Track is a no-op for addresses with a live subscriber and restarts
	// ones whose listener terminated since the last pass.
	for addr := range desired {
		if err := r.reg.Track(ctx, addr); err != nil {
			log.Printf("[reconciler] track %s: %v", addr, err)
		}
	}

	for _, addr := range r.reg.List() {
		if _, ok := desired[addr]; !ok {
			if err := r.reg.Untrack(ctx, addr); err != nil {
				log.Printf("[reconciler] untrack %s: %v", addr, err)
			}
		}
	}
}
