package storefront

import "context"

// CartRepository is the authoritative cart for the current session: the
// guest LocalStorageCart or the signed-in RemoteCart.
type CartRepository interface {
	Fetch(ctx context.Context) (CartSnapshot, error)
	Add(ctx context.Context, line CartLine) (CartLine, error)
	UpdateQuantity(ctx context.Context, id string, quantity int) (CartLine, error)
	Remove(ctx context.Context, id string) error
}

var (
	_ CartRepository = (*LocalStorageCart)(nil)
	_ CartRepository = (*RemoteCart)(nil)
)

// CartSelector picks the repository for a session.
type CartSelector struct {
	Local  *LocalStorageCart
	Remote *RemoteCart
}

func (s CartSelector) For(session Session) CartRepository {
	if session.Authenticated() && s.Remote != nil {
		return s.Remote
	}
	return s.Local
}
