package storefront

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// RemoteCartStore is the part of RemoteCart the reconciler needs.
type RemoteCartStore interface {
	Fetch(ctx context.Context) (CartSnapshot, error)
	SyncFrom(ctx context.Context, lines []CartLine) ([]CartLine, error)
}

// Reconciler moves the guest cart into the signed-in cart once per login.
type Reconciler struct {
	local  *LocalStorageCart
	remote RemoteCartStore
	bus    *EventBus

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]struct{}
}

func NewReconciler(local *LocalStorageCart, remote RemoteCartStore, bus *EventBus) *Reconciler {
	return &Reconciler{local: local, remote: remote, bus: bus, done: map[string]struct{}{}}
}

// Reconcile returns the cart to display for session. For a signed-in user
// whose login has not been reconciled yet, a non-empty guest cart is synced
// and then cleared, in that order. A failed sync leaves the guest cart as it
// was and still returns the server cart. Lines the server refuses stay in the
// guest cart and are named in a warning notice.
func (r *Reconciler) Reconcile(ctx context.Context, session Session) (CartSnapshot, error) {
	if !session.Authenticated() {
		return r.local.Load(ctx), nil
	}
	v, err, _ := r.group.Do(session.UserID, func() (any, error) {
		if !r.reconciled(session.UserID) {
			r.migrate(ctx)
			r.markReconciled(session.UserID)
		}
		return r.remote.Fetch(ctx)
	})
	if err != nil {
		return CartSnapshot{}, err
	}
	return v.(CartSnapshot), nil
}

func (r *Reconciler) migrate(ctx context.Context) {
	guest := r.local.Load(ctx)
	if guest.IsEmpty() {
		return
	}
	skipped, err := r.remote.SyncFrom(ctx, guest.Lines)
	if err != nil {
		r.bus.notice(NoticeWarning, "Cart not synced", "We couldn't move your saved cart items to your account. They are still saved on this device.")
		return
	}
	if len(skipped) > 0 {
		if err := r.local.Save(ctx, NewSnapshot(skipped)); err != nil {
			r.bus.notice(NoticeWarning, "Some items not moved",
				fmt.Sprintf("%s could not be added to your account cart and could not be kept on this device.", lineNames(skipped)))
			return
		}
		r.bus.notice(NoticeWarning, "Some items not moved",
			fmt.Sprintf("%s could not be added to your account cart because they are unavailable or sold out. They are still saved on this device.", lineNames(skipped)))
		return
	}
	if err := r.local.Clear(ctx); err != nil {
		// The server already holds the lines and merges idempotently, so a
		// leftover local record is harmless.
		r.bus.notice(NoticeWarning, "Cart", "Your saved cart could not be cleared from this device.")
	}
}

// Logout forgets userID so the next login reconciles again.
func (r *Reconciler) Logout(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.done, userID)
}

func (r *Reconciler) reconciled(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.done[userID]
	return ok
}

func (r *Reconciler) markReconciled(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done[userID] = struct{}{}
}

func lineNames(lines []CartLine) string {
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			pid, _ := line.ResolveProductID()
			name = fmt.Sprintf("Item %d", pid)
		}
		if line.Size != "" {
			name += " (size " + line.Size + ")"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
