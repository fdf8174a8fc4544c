package storefront

import "context"

// RemoteCart is the signed-in cart held by the server.
type RemoteCart struct {
	client *APIClient
}

func NewRemoteCart(client *APIClient) *RemoteCart {
	return &RemoteCart{client: client}
}

func (r *RemoteCart) Fetch(ctx context.Context) (CartSnapshot, error) {
	lines, err := r.client.GetCart(ctx)
	if err != nil {
		return CartSnapshot{}, err
	}
	return NewSnapshot(lines), nil
}

func (r *RemoteCart) Add(ctx context.Context, line CartLine) (CartLine, error) {
	return r.client.AddToCart(ctx, line)
}

func (r *RemoteCart) UpdateQuantity(ctx context.Context, id string, quantity int) (CartLine, error) {
	return r.client.UpdateCartItem(ctx, id, quantity)
}

func (r *RemoteCart) Remove(ctx context.Context, id string) error {
	return r.client.RemoveCartItem(ctx, id)
}

// SyncFrom merges guest lines into the server cart and returns the lines it
// could not place. Repeating it with the same lines leaves the server cart
// unchanged.
func (r *RemoteCart) SyncFrom(ctx context.Context, lines []CartLine) ([]CartLine, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	return r.client.SyncCart(ctx, lines)
}
