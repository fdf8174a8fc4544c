package storefront

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// fakeCartServer is a minimal in-memory cart API keyed by product id.
type fakeCartServer struct {
	mu       sync.Mutex
	items    map[uint64]int
	soldOut  map[uint64]bool
	syncErr  bool
	syncHits int
	requests int
}

func newFakeCartServer(t *testing.T) (*fakeCartServer, *httptest.Server) {
	t.Helper()
	f := &fakeCartServer{items: map[uint64]int{}, soldOut: map[uint64]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests++
		items := []map[string]any{}
		for pid, qty := range f.items {
			items = append(items, map[string]any{"id": pid * 100, "product_id": pid, "name": "Runner", "price": "1200.00", "quantity": qty})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	})
	mux.HandleFunc("POST /api/cart/sync", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests++
		f.syncHits++
		if f.syncErr {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "database unavailable"})
			return
		}
		var body struct {
			Items []struct {
				ProductID uint64 `json:"product_id"`
				Quantity  int    `json:"quantity"`
			} `json:"items"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		skipped := []map[string]any{}
		for _, item := range body.Items {
			if f.soldOut[item.ProductID] {
				skipped = append(skipped, map[string]any{"product_id": item.ProductID, "quantity": item.Quantity})
				continue
			}
			f.items[item.ProductID] = max(f.items[item.ProductID], item.Quantity)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "skipped": skipped})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func newSignedInClient(t *testing.T, baseURL string) *APIClient {
	t.Helper()
	client, err := NewAPIClient(baseURL)
	require.NoError(t, err)
	client.SetSession(Session{UserID: "u-1", Token: "tok"})
	return client
}

func TestGuestLineReconciledIntoRemoteCart(t *testing.T) {
	ctx := context.Background()
	server, srv := newFakeCartServer(t)

	local := NewLocalStorageCart(NewMemoryStore())
	_, err := local.Add(ctx, CartLine{ID: "7", Name: "Runner", UnitPrice: decimal.NewFromInt(1200), Quantity: 2})
	require.NoError(t, err)

	remote := NewRemoteCart(newSignedInClient(t, srv.URL))
	rec := NewReconciler(local, remote, NewEventBus())

	snap, err := rec.Reconcile(ctx, Session{UserID: "u-1", Token: "tok"})
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	require.Equal(t, "7", snap.Lines[0].ProductID)
	require.Equal(t, 2, snap.Lines[0].Quantity)
	require.Equal(t, 2, server.items[7])
	require.True(t, local.Load(ctx).IsEmpty())
}

type fakeRemote struct {
	mu        sync.Mutex
	lines     map[string]CartLine
	syncErr   error
	syncCalls int
	order     []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{lines: map[string]CartLine{}}
}

func (f *fakeRemote) Fetch(context.Context) (CartSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, "fetch")
	lines := make([]CartLine, 0, len(f.lines))
	for _, l := range f.lines {
		lines = append(lines, l)
	}
	return NewSnapshot(lines), nil
}

func (f *fakeRemote) SyncFrom(_ context.Context, lines []CartLine) ([]CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls++
	f.order = append(f.order, "sync")
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	for _, l := range lines {
		pid, _ := l.ResolveProductID()
		l.ProductID = strconv.FormatUint(pid, 10)
		f.lines[l.ProductID] = l
	}
	return nil, nil
}

func seedGuestCart(t *testing.T, local *LocalStorageCart, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		pid := strconv.Itoa(i)
		_, err := local.Add(context.Background(), CartLine{
			ID:        GuestLineID(pid, "42", "black"),
			ProductID: pid,
			Name:      "Shoe " + pid,
			UnitPrice: decimal.NewFromInt(100),
			Quantity:  i,
		})
		require.NoError(t, err)
	}
}

func TestReconcileMovesEveryGuestLine(t *testing.T) {
	for _, n := range []int{1, 3, 8} {
		local := NewLocalStorageCart(NewMemoryStore())
		seedGuestCart(t, local, n)
		remote := newFakeRemote()

		snap, err := NewReconciler(local, remote, nil).Reconcile(context.Background(), Session{UserID: "u", Token: "t"})
		require.NoError(t, err)
		require.Len(t, snap.Lines, n)
		require.Len(t, remote.lines, n)
		require.True(t, local.Load(context.Background()).IsEmpty())
		require.Equal(t, []string{"sync", "fetch"}, remote.order)
	}
}

func TestReconcileKeepsLocalCartWhenSyncFails(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStorageCart(NewMemoryStore())
	seedGuestCart(t, local, 3)
	before := local.Load(ctx)

	remote := newFakeRemote()
	remote.syncErr = &Error{Kind: KindNetworkOrServer, Message: "down"}
	remote.lines["99"] = CartLine{ID: "990", ProductID: "99", Quantity: 1}

	bus := NewEventBus()
	var notices []Event
	bus.Subscribe(func(e Event) {
		if e.Kind == EventNotice {
			notices = append(notices, e)
		}
	})

	snap, err := NewReconciler(local, remote, bus).Reconcile(ctx, Session{UserID: "u", Token: "t"})
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1, "server cart is still shown")
	require.Equal(t, before.Lines, local.Load(ctx).Lines)
	require.Len(t, notices, 1)
	require.Equal(t, NoticeWarning, notices[0].Level)
}

func TestReconcileKeepsLinesTheServerSkipped(t *testing.T) {
	ctx := context.Background()
	server, srv := newFakeCartServer(t)
	server.soldOut[7] = true

	local := NewLocalStorageCart(NewMemoryStore())
	_, err := local.Add(ctx, CartLine{ID: "7", Name: "Court Runner", Size: "42", UnitPrice: decimal.NewFromInt(1200), Quantity: 2})
	require.NoError(t, err)
	_, err = local.Add(ctx, CartLine{ID: "8", Name: "Trail Blazer", UnitPrice: decimal.NewFromInt(900), Quantity: 1})
	require.NoError(t, err)

	bus := NewEventBus()
	var notices []Event
	bus.Subscribe(func(e Event) {
		if e.Kind == EventNotice {
			notices = append(notices, e)
		}
	})

	remote := NewRemoteCart(newSignedInClient(t, srv.URL))
	snap, err := NewReconciler(local, remote, bus).Reconcile(ctx, Session{UserID: "u-1", Token: "tok"})
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	require.Equal(t, "8", snap.Lines[0].ProductID)

	kept := local.Load(ctx)
	require.Len(t, kept.Lines, 1)
	require.Equal(t, "7", kept.Lines[0].ID)
	require.Equal(t, 2, kept.Lines[0].Quantity)

	require.Len(t, notices, 1)
	require.Equal(t, NoticeWarning, notices[0].Level)
	require.Contains(t, notices[0].Message, "Court Runner")
}

func TestReconcileRunsOncePerLogin(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStorageCart(NewMemoryStore())
	seedGuestCart(t, local, 1)
	remote := newFakeRemote()
	rec := NewReconciler(local, remote, nil)
	session := Session{UserID: "u", Token: "t"}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = rec.Reconcile(ctx, session)
		}()
	}
	wg.Wait()
	require.Equal(t, 1, remote.syncCalls)

	seedGuestCart(t, local, 1)
	_, err := rec.Reconcile(ctx, session)
	require.NoError(t, err)
	require.Equal(t, 1, remote.syncCalls, "no re-sync within the same login")

	rec.Logout("u")
	_, err = rec.Reconcile(ctx, session)
	require.NoError(t, err)
	require.Equal(t, 2, remote.syncCalls)
}

func TestReconcileGuestReadsLocal(t *testing.T) {
	local := NewLocalStorageCart(NewMemoryStore())
	seedGuestCart(t, local, 2)
	remote := newFakeRemote()
	snap, err := NewReconciler(local, remote, nil).Reconcile(context.Background(), Session{})
	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)
	require.Zero(t, remote.syncCalls)
}

func TestLocalCartToleratesCorruptRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, LocalCartKey, "{not json"))
	require.True(t, NewLocalStorageCart(store).Load(ctx).IsEmpty())

	require.NoError(t, store.Set(ctx, LocalCartKey, `[{"id":"5-40-red","product_id":5,"name":"Court","price":"₱1,250.50","quantity":2}]`))
	snap := NewLocalStorageCart(store).Load(ctx)
	require.Len(t, snap.Lines, 1)
	require.Equal(t, "5", snap.Lines[0].ProductID)
	require.True(t, snap.Lines[0].UnitPrice.Equal(decimal.RequireFromString("1250.50")))
}

func TestLocalCartAddClampsToCeiling(t *testing.T) {
	ctx := context.Background()
	local := NewLocalStorageCart(NewMemoryStore())
	line := CartLine{ID: "3-41-white", ProductID: "3", Quantity: 2, StockCeiling: intPtr(3)}
	_, err := local.Add(ctx, line)
	require.NoError(t, err)
	got, err := local.Add(ctx, line)
	require.NoError(t, err)
	require.Equal(t, 3, got.Quantity)
	require.Equal(t, 3, local.Load(ctx).TotalItemCount())
}

func TestLocalCartUpdateAndLoadClampToCeiling(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	local := NewLocalStorageCart(store)
	_, err := local.Add(ctx, CartLine{ID: "3-41-white", ProductID: "3", Quantity: 1, StockCeiling: intPtr(3)})
	require.NoError(t, err)

	got, err := local.UpdateQuantity(ctx, "3-41-white", 9)
	require.NoError(t, err)
	require.Equal(t, 3, got.Quantity)
	got, err = local.UpdateQuantity(ctx, "3-41-white", 0)
	require.NoError(t, err)
	require.Equal(t, 1, got.Quantity)

	// A record written before the ceiling dropped.
	require.NoError(t, store.Set(ctx, LocalCartKey, `[{"id":"5-40-black","product_id":"5","quantity":8,"stock_ceiling":2}]`))
	snap := local.Load(ctx)
	require.Len(t, snap.Lines, 1)
	require.Equal(t, 2, snap.Lines[0].Quantity)
}

func TestCoercePrice(t *testing.T) {
	cases := map[string]struct {
		in   any
		want string
	}{
		"number":         {in: 1200.5, want: "1200.5"},
		"plain string":   {in: "500", want: "500"},
		"currency":       {in: "PHP 1,299.00", want: "1299"},
		"garbage":        {in: "free!", want: "0"},
		"two points":     {in: "1.2.3", want: "0"},
		"negative float": {in: -3.0, want: "0"},
		"nil":            {in: nil, want: "0"},
		"raw json":       {in: json.RawMessage(`"₱300"`), want: "300"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.True(t, CoercePrice(tc.in).Equal(decimal.RequireFromString(tc.want)), "got %s", CoercePrice(tc.in))
		})
	}
}

func TestFormatPeso(t *testing.T) {
	require.Equal(t, "₱0.00", FormatPeso(decimal.Zero))
	require.Equal(t, "₱950.50", FormatPeso(decimal.RequireFromString("950.5")))
	require.Equal(t, "₱1,200.00", FormatPeso(decimal.NewFromInt(1200)))
	require.Equal(t, "₱1,234,567.89", FormatPeso(decimal.RequireFromString("1234567.891")))
	require.Equal(t, "-₱100.00", FormatPeso(decimal.NewFromInt(-100)))
}

func TestSnapshotSelectionStaysSubset(t *testing.T) {
	snap := NewSnapshot([]CartLine{{ID: "a", Quantity: 1}, {ID: "b", Quantity: 2}})
	snap.Select("a", "zzz")
	require.Equal(t, []string{"a"}, snap.SelectedIDs())

	snap = snap.without("a")
	require.Empty(t, snap.SelectedIDs())
	require.Equal(t, 2, snap.TotalItemCount())
}

func TestAPIClientMapsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/cart/update":
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"message":"Only 2 left in stock","code":"STOCK_EXCEEDED"}`))
		case "/api/cart/remove":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"Cart item not found","code":"NOT_FOUND"}`))
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	client := newSignedInClient(t, srv.URL)
	_, err := client.UpdateCartItem(context.Background(), "12", 5)
	require.ErrorIs(t, err, ErrStockExceeded)
	require.Equal(t, "Only 2 left in stock", UserMessage(err))

	err = client.RemoveCartItem(context.Background(), "12")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "Cart item not found", UserMessage(err))

	err = client.ConfirmDelivery(context.Background(), 1)
	require.ErrorIs(t, err, ErrNetworkOrServer)
	require.Equal(t, FallbackMessage, UserMessage(err))
}

func TestAPIClientSendsCSRFFromCookieExchange(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/csrf-token" {
			http.SetCookie(w, &http.Cookie{Name: "solespace_csrf", Value: "abc", Path: "/"})
			_, _ = w.Write([]byte(`{"csrf_token":"abc"}`))
			return
		}
		cookie, err := r.Cookie("solespace_csrf")
		if err != nil || cookie.Value != r.Header.Get("X-CSRF-TOKEN") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"message":"CSRF token mismatch","code":"CSRF_TOKEN_MISMATCH"}`))
			return
		}
		seen = r.Header.Get("X-CSRF-TOKEN")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := newSignedInClient(t, srv.URL)
	err := client.RemoveCartItem(context.Background(), "1")
	require.Error(t, err, "missing token is rejected, not a crash")
	require.Equal(t, "CSRF token mismatch", UserMessage(err))

	require.NoError(t, client.RefreshCSRF(context.Background()))
	require.NoError(t, client.RemoveCartItem(context.Background(), "1"))
	require.Equal(t, "abc", seen)
}

func TestSyncRefusesLinesWithoutProductID(t *testing.T) {
	server, srv := newFakeCartServer(t)
	client := newSignedInClient(t, srv.URL)
	_, err := client.SyncCart(context.Background(), []CartLine{{ID: "x-40-red", Quantity: 1}})
	require.ErrorIs(t, err, ErrMissingProductID)
	require.Zero(t, server.syncHits)
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, ok, err := fs.Get(ctx, LocalCartKey)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, fs.Set(ctx, LocalCartKey, `[]`))
	v, ok, err := fs.Get(ctx, LocalCartKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", v)

	require.NoError(t, fs.Delete(ctx, LocalCartKey))
	require.NoError(t, fs.Delete(ctx, LocalCartKey))
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	var got []string
	unsubscribe := bus.Subscribe(func(e Event) { got = append(got, string(e.Kind)) })
	bus.Publish(Event{Kind: EventCartChanged})
	unsubscribe()
	bus.Publish(Event{Kind: EventNotice})
	require.Equal(t, []string{"cart_changed"}, got)

	var nilBus *EventBus
	require.NotPanics(t, func() { nilBus.Publish(Event{}) })
}

func TestEventBusUnsubscribePrunesOrder(t *testing.T) {
	bus := NewEventBus()
	var got []int
	keep := bus.Subscribe(func(Event) { got = append(got, 1) })
	for i := 0; i < 50; i++ {
		bus.Subscribe(func(Event) { got = append(got, 2) })()
	}
	last := bus.Subscribe(func(Event) { got = append(got, 3) })
	require.Len(t, bus.order, 2)

	bus.Publish(Event{Kind: EventCartChanged})
	require.Equal(t, []int{1, 3}, got)

	keep()
	keep()
	last()
	require.Empty(t, bus.order)
	require.Empty(t, bus.subs)
}

func TestErrorKindsMatchSentinels(t *testing.T) {
	err := &Error{Kind: KindOrderCreationFailed, Message: "Only 1 left", Cause: &Error{Kind: KindStockExceeded}}
	require.ErrorIs(t, err, ErrOrderCreationFailed)
	require.ErrorIs(t, err, ErrStockExceeded)
	require.NotErrorIs(t, err, ErrPaymentLinkFailed)
	require.True(t, strings.Contains(err.Error(), "Only 1 left"))
}
