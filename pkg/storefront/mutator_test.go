package storefront

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	mu        sync.Mutex
	lines     []CartLine
	updates   []int
	updateErr error
	fetches   int
	block     chan struct{}
	entered   chan struct{}
}

func (s *stubRepo) Fetch(context.Context) (CartSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return NewSnapshot(append([]CartLine(nil), s.lines...)), nil
}

func (s *stubRepo) Add(_ context.Context, line CartLine) (CartLine, error) {
	return line, nil
}

func (s *stubRepo) UpdateQuantity(_ context.Context, id string, quantity int) (CartLine, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return CartLine{}, s.updateErr
	}
	s.updates = append(s.updates, quantity)
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines[i].Quantity = quantity
			return s.lines[i], nil
		}
	}
	return CartLine{}, &Error{Kind: KindNotFound}
}

func (s *stubRepo) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return nil
		}
	}
	return &Error{Kind: KindNotFound}
}

func newMutator(t *testing.T, repo *stubRepo) (*QuantityMutator, *[]Event) {
	t.Helper()
	bus := NewEventBus()
	events := &[]Event{}
	var mu sync.Mutex
	bus.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, e)
	})
	m := NewQuantityMutator(repo, bus)
	_, err := m.Refresh(context.Background())
	require.NoError(t, err)
	return m, events
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestIncrementAtCeilingIsNoop(t *testing.T) {
	repo := &stubRepo{lines: []CartLine{{ID: "1", ProductID: "7", Quantity: 3, StockCeiling: intPtr(3)}}}
	m, events := newMutator(t, repo)

	snap, err := m.Increment(context.Background(), "1")
	require.NoError(t, err)

	line, _ := snap.Line("1")
	require.Equal(t, 3, line.Quantity)
	require.Empty(t, repo.updates)
	require.Equal(t, []EventKind{EventStockLimitReached}, kinds(*events))
	require.Equal(t, "1", (*events)[0].LineID)
}

func TestIncrementBroadcastsCount(t *testing.T) {
	repo := &stubRepo{lines: []CartLine{
		{ID: "1", ProductID: "7", Quantity: 1, StockCeiling: intPtr(5)},
		{ID: "2", ProductID: "8", Quantity: 2},
	}}
	m, events := newMutator(t, repo)

	snap, err := m.Increment(context.Background(), "1")
	require.NoError(t, err)
	line, _ := snap.Line("1")
	require.Equal(t, 2, line.Quantity)
	require.Equal(t, []int{2}, repo.updates)
	require.Equal(t, EventCartChanged, (*events)[0].Kind)
	require.Equal(t, 4, (*events)[0].TotalCount)
}

func TestDecrementAtOneIsNoop(t *testing.T) {
	repo := &stubRepo{lines: []CartLine{{ID: "1", ProductID: "7", Quantity: 1}}}
	m, events := newMutator(t, repo)

	snap, err := m.Decrement(context.Background(), "1")
	require.NoError(t, err)
	line, _ := snap.Line("1")
	require.Equal(t, 1, line.Quantity)
	require.Empty(t, repo.updates)
	require.Empty(t, *events)
}

func TestDecrementLowersQuantity(t *testing.T) {
	repo := &stubRepo{lines: []CartLine{{ID: "1", ProductID: "7", Quantity: 4}}}
	m, _ := newMutator(t, repo)

	snap, err := m.Decrement(context.Background(), "1")
	require.NoError(t, err)
	line, _ := snap.Line("1")
	require.Equal(t, 3, line.Quantity)
}

func TestConcurrentIncrementsApplyOnce(t *testing.T) {
	repo := &stubRepo{
		lines:   []CartLine{{ID: "1", ProductID: "7", Quantity: 1, StockCeiling: intPtr(10)}},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	m, _ := newMutator(t, repo)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Increment(context.Background(), "1")
		firstDone <- err
	}()
	<-repo.entered

	_, err := m.Increment(context.Background(), "1")
	require.ErrorIs(t, err, ErrInFlight)

	close(repo.block)
	require.NoError(t, <-firstDone)

	require.Equal(t, []int{2}, repo.updates)
	line, _ := m.Snapshot().Line("1")
	require.Equal(t, 2, line.Quantity)
	require.False(t, m.inFlight.Busy("1"))
}

func TestIncrementFailureNotifiesAndRefetches(t *testing.T) {
	repo := &stubRepo{lines: []CartLine{{ID: "1", ProductID: "7", Quantity: 2}}}
	m, events := newMutator(t, repo)
	fetchesBefore := repo.fetches

	repo.updateErr = &Error{Kind: KindStockExceeded, Message: "Only 2 left"}
	_, err := m.Increment(context.Background(), "1")
	require.ErrorIs(t, err, ErrStockExceeded)
	require.Equal(t, fetchesBefore+1, repo.fetches)
	require.Len(t, *events, 1)
	require.Equal(t, NoticeWarning, (*events)[0].Level)
	require.Equal(t, "Only 2 left", (*events)[0].Message)

	repo.updateErr = errors.New("connection reset")
	_, err = m.Decrement(context.Background(), "1")
	require.Error(t, err)
	require.Equal(t, NoticeError, (*events)[1].Level)
	require.Equal(t, FallbackMessage, (*events)[1].Message)
}

func TestRemoveBroadcastsCountAndPrunesSelection(t *testing.T) {
	repo := &stubRepo{lines: []CartLine{
		{ID: "1", ProductID: "7", Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
		{ID: "2", ProductID: "8", Quantity: 3},
	}}
	m, events := newMutator(t, repo)
	m.Select("1", "2")

	snap, err := m.Remove(context.Background(), "1")
	require.NoError(t, err)
	require.Equal(t, []string{"2"}, snap.SelectedIDs())
	require.Equal(t, EventCartChanged, (*events)[0].Kind)
	require.Equal(t, 3, (*events)[0].TotalCount)
}

func TestGuestMutationsUseLocalCart(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStorageCart(NewMemoryStore())
	_, err := local.Add(ctx, CartLine{ID: "7-42-black", ProductID: "7", Quantity: 1, StockCeiling: intPtr(2)})
	require.NoError(t, err)

	repo := CartSelector{Local: local}.For(Session{})
	m := NewQuantityMutator(repo, nil)
	_, err = m.Refresh(ctx)
	require.NoError(t, err)

	_, err = m.Increment(ctx, "7-42-black")
	require.NoError(t, err)
	_, err = m.Increment(ctx, "7-42-black")
	require.NoError(t, err)

	line, _ := local.Load(ctx).Line("7-42-black")
	require.Equal(t, 2, line.Quantity)
}
