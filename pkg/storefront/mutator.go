package storefront

import (
	"context"
	"errors"
	"sync"
)

// QuantityMutator applies quantity changes to the authoritative cart and
// keeps the displayed snapshot in step with it.
type QuantityMutator struct {
	repo     CartRepository
	bus      *EventBus
	inFlight *InFlightSet

	mu       sync.Mutex
	snapshot CartSnapshot
}

func NewQuantityMutator(repo CartRepository, bus *EventBus) *QuantityMutator {
	return &QuantityMutator{repo: repo, bus: bus, inFlight: NewInFlightSet()}
}

// Refresh reloads the snapshot from the repository.
func (m *QuantityMutator) Refresh(ctx context.Context) (CartSnapshot, error) {
	snap, err := m.repo.Fetch(ctx)
	if err != nil {
		return m.Snapshot(), err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	selected := m.snapshot.SelectedIDs()
	m.snapshot = snap
	m.snapshot.Select(selected...)
	return m.snapshot.clone(), nil
}

// Snapshot returns a copy of the displayed cart.
func (m *QuantityMutator) Snapshot() CartSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.clone()
}

// Select marks lines for checkout on the displayed cart.
func (m *QuantityMutator) Select(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.Select(ids...)
}

// Increment adds one unit. At the stock ceiling it is a no-op that emits
// EventStockLimitReached. While another increment for the same line is
// running the call is dropped with ErrInFlight.
func (m *QuantityMutator) Increment(ctx context.Context, lineID string) (CartSnapshot, error) {
	line, err := m.line(lineID)
	if err != nil {
		return m.Snapshot(), err
	}
	if line.AtCeiling() {
		m.bus.Publish(Event{Kind: EventStockLimitReached, LineID: lineID, Message: "You've reached the maximum available stock for this item."})
		return m.Snapshot(), nil
	}
	if !m.inFlight.TryAcquire(lineID) {
		return m.Snapshot(), ErrInFlight
	}
	defer m.inFlight.Release(lineID)
	return m.apply(ctx, line, line.Quantity+1)
}

// Decrement removes one unit, never below one.
func (m *QuantityMutator) Decrement(ctx context.Context, lineID string) (CartSnapshot, error) {
	line, err := m.line(lineID)
	if err != nil {
		return m.Snapshot(), err
	}
	if line.Quantity <= 1 {
		return m.Snapshot(), nil
	}
	return m.apply(ctx, line, line.Quantity-1)
}

// Remove deletes the line and broadcasts the new item count.
func (m *QuantityMutator) Remove(ctx context.Context, lineID string) (CartSnapshot, error) {
	if err := m.repo.Remove(ctx, lineID); err != nil {
		m.bus.notice(NoticeError, "Error", UserMessage(err))
		return m.Snapshot(), err
	}
	m.mu.Lock()
	m.snapshot = m.snapshot.without(lineID)
	snap := m.snapshot.clone()
	m.mu.Unlock()
	m.bus.cartChanged(snap.TotalItemCount())
	return snap, nil
}

func (m *QuantityMutator) apply(ctx context.Context, line CartLine, quantity int) (CartSnapshot, error) {
	updated, err := m.repo.UpdateQuantity(ctx, line.ID, quantity)
	if err != nil {
		m.reportFailure(err)
		snap, _ := m.Refresh(ctx)
		return snap, err
	}

	if updated.ID == "" {
		updated = line
	}
	if updated.Quantity == 0 {
		updated.Quantity = quantity
	}
	if updated.StockCeiling == nil {
		updated.StockCeiling = line.StockCeiling
	}
	m.mu.Lock()
	m.snapshot = m.snapshot.withLine(mergeDisplay(line, updated))
	snap := m.snapshot.clone()
	m.mu.Unlock()
	m.bus.cartChanged(snap.TotalItemCount())
	return snap, nil
}

func (m *QuantityMutator) reportFailure(err error) {
	if errors.Is(err, ErrStockExceeded) {
		m.bus.notice(NoticeWarning, "Stock limit", UserMessage(err))
		return
	}
	m.bus.notice(NoticeError, "Error", UserMessage(err))
}

func (m *QuantityMutator) line(id string) (CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.snapshot.Line(id)
	if !ok {
		return CartLine{}, &Error{Kind: KindNotFound, Message: "Cart item not found."}
	}
	return line, nil
}

// mergeDisplay keeps display fields the update response may omit.
func mergeDisplay(prev, next CartLine) CartLine {
	if next.Name == "" {
		next.Name = prev.Name
	}
	if next.ImageURL == "" {
		next.ImageURL = prev.ImageURL
	}
	if next.UnitPrice.IsZero() {
		next.UnitPrice = prev.UnitPrice
	}
	if next.ProductID == "" {
		next.ProductID = prev.ProductID
	}
	return next
}
