package storefront

import (
	"context"
	"encoding/json"
	"sync"
)

// LocalCartKey is the single record holding the guest cart.
const LocalCartKey = "solespace_cart"

// LocalStorageCart is the guest cart: a JSON array of lines under one key.
type LocalStorageCart struct {
	store KeyValueStore
	mu    sync.Mutex
}

func NewLocalStorageCart(store KeyValueStore) *LocalStorageCart {
	return &LocalStorageCart{store: store}
}

// Load never fails. A missing, unreadable or corrupt record is an empty cart.
// Stored quantities above a line's stock ceiling are clamped on the way out.
func (c *LocalStorageCart) Load(ctx context.Context) CartSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *LocalStorageCart) load(ctx context.Context) CartSnapshot {
	raw, ok, err := c.store.Get(ctx, LocalCartKey)
	if err != nil || !ok || raw == "" {
		return CartSnapshot{}
	}
	var lines []CartLine
	if err := json.Unmarshal([]byte(raw), &lines); err != nil {
		return CartSnapshot{}
	}
	valid := lines[:0]
	for _, line := range lines {
		if line.ID == "" || line.Quantity < 1 {
			continue
		}
		line.Quantity = clampQuantity(line.Quantity, line.StockCeiling)
		valid = append(valid, line)
	}
	return NewSnapshot(valid)
}

func (c *LocalStorageCart) Save(ctx context.Context, snapshot CartSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, snapshot)
}

func (c *LocalStorageCart) save(ctx context.Context, snapshot CartSnapshot) error {
	lines := snapshot.Lines
	if lines == nil {
		lines = []CartLine{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, LocalCartKey, string(data))
}

func (c *LocalStorageCart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(ctx, LocalCartKey)
}

// Fetch is Load for the CartRepository contract.
func (c *LocalStorageCart) Fetch(ctx context.Context) (CartSnapshot, error) {
	return c.Load(ctx), nil
}

// Add merges line into the guest cart by id, clamping to the stock ceiling.
func (c *LocalStorageCart) Add(ctx context.Context, line CartLine) (CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	snapshot := c.load(ctx)
	if existing, ok := snapshot.Line(line.ID); ok {
		line.Quantity += existing.Quantity
		if line.StockCeiling == nil {
			line.StockCeiling = existing.StockCeiling
		}
	}
	line.Quantity = clampQuantity(line.Quantity, line.StockCeiling)
	if err := c.save(ctx, snapshot.withLine(line)); err != nil {
		return CartLine{}, err
	}
	return line, nil
}

// UpdateQuantity sets the line's quantity, clamped to between one and the
// stock ceiling.
func (c *LocalStorageCart) UpdateQuantity(ctx context.Context, id string, quantity int) (CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := c.load(ctx)
	line, ok := snapshot.Line(id)
	if !ok {
		return CartLine{}, &Error{Kind: KindNotFound, Message: "Cart item not found."}
	}
	line.Quantity = clampQuantity(quantity, line.StockCeiling)
	if err := c.save(ctx, snapshot.withLine(line)); err != nil {
		return CartLine{}, err
	}
	return line, nil
}

func (c *LocalStorageCart) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, c.load(ctx).without(id))
}

func clampQuantity(quantity int, ceiling *int) int {
	if ceiling != nil && quantity > *ceiling {
		quantity = *ceiling
	}
	return max(quantity, 1)
}
