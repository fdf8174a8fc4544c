// Command storefront drives a running SoleSpace API the way the web client
// does: a guest cart kept on disk, sign-in with cart reconciliation, quantity
// changes and checkout through a PayMongo link.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/solespace/solespace-backend/pkg/auth"
	"github.com/solespace/solespace-backend/pkg/config"
	"github.com/solespace/solespace-backend/pkg/enums"
	"github.com/solespace/solespace-backend/pkg/storefront"
)

const sessionKey = "solespace_cli_session"

type app struct {
	client  *storefront.APIClient
	store   *storefront.FileStore
	bus     *storefront.EventBus
	local   *storefront.LocalStorageCart
	remote  *storefront.RemoteCart
	session storefront.Session
}

func main() {
	_ = godotenv.Load()

	global := flag.NewFlagSet("storefront", flag.ExitOnError)
	baseURL := global.String("api", envOr("SOLESPACE_API_URL", "http://localhost:8080"), "API base url")
	stateDir := global.String("state", defaultStateDir(), "directory holding the guest cart and session")
	timeout := global.Duration("timeout", storefront.DefaultTimeout, "per-request timeout")
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	a, err := newApp(ctx, *baseURL, *stateDir, *timeout)
	if err != nil {
		fail(err)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "products":
		err = a.products(ctx)
	case "cart":
		err = a.showCart(ctx)
	case "add":
		err = a.add(ctx, rest)
	case "inc", "dec", "rm":
		err = a.mutate(ctx, cmd, rest)
	case "login":
		err = a.login(ctx, rest)
	case "logout":
		err = a.logout(ctx)
	case "checkout":
		err = a.checkout(ctx, rest)
	case "complete":
		err = a.complete(ctx)
	case "orders":
		err = a.orders(ctx)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func newApp(ctx context.Context, baseURL, stateDir string, timeout time.Duration) (*app, error) {
	client, err := storefront.NewAPIClient(baseURL, storefront.WithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	store, err := storefront.NewFileStore(stateDir)
	if err != nil {
		return nil, err
	}
	bus := storefront.NewEventBus()
	bus.Subscribe(func(evt storefront.Event) {
		switch evt.Kind {
		case storefront.EventNotice:
			fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", evt.Level, evt.Title, evt.Message)
		case storefront.EventStockLimitReached:
			fmt.Fprintf(os.Stderr, "stock limit reached for %s\n", evt.LineID)
		}
	})

	a := &app{
		client: client,
		store:  store,
		bus:    bus,
		local:  storefront.NewLocalStorageCart(store),
		remote: storefront.NewRemoteCart(client),
	}
	if raw, ok, err := store.Get(ctx, sessionKey); err == nil && ok {
		_ = json.Unmarshal([]byte(raw), &a.session)
	}
	if a.session.Authenticated() {
		client.SetSession(a.session)
		if err := client.RefreshCSRF(ctx); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *app) repository() storefront.CartRepository {
	return storefront.CartSelector{Local: a.local, Remote: a.remote}.For(a.session)
}

func (a *app) products(ctx context.Context) error {
	list, err := a.client.ListProducts(ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		fmt.Printf("%d\t%s %s\t%s\n", p.ID, p.Brand, p.Name, storefront.FormatPeso(p.Price))
		for _, v := range p.Variants {
			fmt.Printf("\t  size=%s color=%s stock=%d\n", v.Size, v.Color, v.Stock)
		}
	}
	return nil
}

func (a *app) showCart(ctx context.Context) error {
	snapshot, err := a.repository().Fetch(ctx)
	if err != nil {
		return err
	}
	if snapshot.IsEmpty() {
		fmt.Println("cart is empty")
		return nil
	}
	for _, line := range snapshot.Lines {
		ceiling := "-"
		if line.StockCeiling != nil {
			ceiling = strconv.Itoa(*line.StockCeiling)
		}
		fmt.Printf("%s\t%s (%s/%s)\tx%d\tmax %s\t%s\n", line.ID, line.Name, line.Size, line.Color, line.Quantity, ceiling, storefront.FormatPeso(line.Subtotal()))
	}
	fmt.Printf("%d item(s)\n", snapshot.TotalItemCount())
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	productID := fs.Uint64("product", 0, "product id")
	size := fs.String("size", "", "size")
	color := fs.String("color", "", "color")
	qty := fs.Int("qty", 1, "quantity")
	_ = fs.Parse(args)
	if *productID == 0 {
		return errors.New("-product is required")
	}

	product, err := a.client.GetProduct(ctx, *productID)
	if err != nil {
		return err
	}
	pid := strconv.FormatUint(product.ID, 10)
	line := storefront.CartLine{
		ID:        storefront.GuestLineID(pid, *size, *color),
		ProductID: pid,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  *qty,
		Size:      *size,
		Color:     *color,
		ImageURL:  product.ImageURL,
	}
	if v, ok := product.Variant(*size, *color); ok {
		stock := v.Stock
		line.StockCeiling = &stock
	}
	added, err := a.repository().Add(ctx, line)
	if err != nil {
		return err
	}
	fmt.Printf("added %s x%d\n", added.Name, added.Quantity)
	return nil
}

func (a *app) mutate(ctx context.Context, cmd string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <line-id>", cmd)
	}
	mutator := storefront.NewQuantityMutator(a.repository(), a.bus)
	if _, err := mutator.Refresh(ctx); err != nil {
		return err
	}
	var err error
	switch cmd {
	case "inc":
		_, err = mutator.Increment(ctx, args[0])
	case "dec":
		_, err = mutator.Decrement(ctx, args[0])
	default:
		_, err = mutator.Remove(ctx, args[0])
	}
	if err != nil {
		return err
	}
	return a.showCart(ctx)
}

// login mints a development access token locally; the API never issues
// tokens itself.
func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("user", "", "user uuid (random when empty)")
	admin := fs.Bool("admin", false, "mint an admin token")
	_ = fs.Parse(args)

	var jwtCfg config.JWTConfig
	if err := envconfig.Process(config.EnvPrefix, &jwtCfg); err != nil {
		return fmt.Errorf("jwt config: %w", err)
	}
	userID := uuid.New()
	if *user != "" {
		parsed, err := uuid.Parse(*user)
		if err != nil {
			return fmt.Errorf("invalid -user: %w", err)
		}
		userID = parsed
	}
	role := enums.RoleCustomer
	if *admin {
		role = enums.RoleAdmin
	}
	token, err := auth.MintAccessToken(jwtCfg, time.Now(), auth.AccessTokenPayload{UserID: userID, Role: role})
	if err != nil {
		return err
	}

	a.session = storefront.Session{UserID: userID.String(), Token: token}
	data, _ := json.Marshal(a.session)
	if err := a.store.Set(ctx, sessionKey, string(data)); err != nil {
		return err
	}
	a.client.SetSession(a.session)
	if err := a.client.RefreshCSRF(ctx); err != nil {
		return err
	}

	snapshot, err := storefront.NewReconciler(a.local, a.remote, a.bus).Reconcile(ctx, a.session)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s; cart has %d item(s)\n", userID, snapshot.TotalItemCount())
	return nil
}

func (a *app) logout(ctx context.Context) error {
	a.session = storefront.Session{}
	a.client.SetSession(a.session)
	return a.store.Delete(ctx, sessionKey)
}

func (a *app) checkout(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	selected := fs.String("select", "", "comma separated line ids (all when empty)")
	name := fs.String("name", "", "customer name")
	email := fs.String("email", "", "customer email")
	phone := fs.String("phone", "", "customer phone")
	addressID := fs.Uint64("address-id", 0, "saved address id")
	addressLine := fs.String("address", "", "free-text shipping address")
	compensate := fs.Bool("compensate", false, "cancel the order when no payment link can be created")
	_ = fs.Parse(args)

	if !a.session.Authenticated() {
		return errors.New("sign in first: storefront login")
	}
	snapshot, err := a.remote.Fetch(ctx)
	if err != nil {
		return err
	}
	ids := splitIDs(*selected)
	if len(ids) == 0 {
		for _, line := range snapshot.Lines {
			ids = append(ids, line.ID)
		}
	}

	choice := storefront.AddressChoice{Fallback: storefront.ShippingFields{Name: *name, Phone: *phone, AddressLine: *addressLine}}
	if *addressID != 0 {
		addresses, err := a.client.ListAddresses(ctx)
		if err != nil {
			return err
		}
		for i := range addresses {
			if addresses[i].ID == *addressID {
				choice.Selected = &addresses[i]
			}
		}
		if choice.Selected == nil {
			return fmt.Errorf("address %d not found", *addressID)
		}
	}

	opts := []storefront.OrchestratorOption{storefront.WithEventBus(a.bus)}
	if *compensate {
		opts = append(opts, storefront.WithCompensation())
	}
	nav := storefront.NavigatorFunc(func(_ context.Context, url string) error {
		fmt.Println("pay at:", url)
		return nil
	})
	placed, err := storefront.NewOrchestrator(a.client, a.store, nav, opts...).
		Checkout(ctx, snapshot, ids, choice, storefront.Contact{Name: *name, Email: *email, Phone: *phone})
	if err != nil {
		return err
	}
	fmt.Printf("order %s placed (%s)\n", placed.Order.OrderNumber, storefront.FormatPeso(placed.Order.TotalAmount))
	return nil
}

func (a *app) complete(ctx context.Context) error {
	order, err := storefront.NewOrchestrator(a.client, a.store, nil).CompleteOrder(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("order %s is %s (payment %s)\n", order.OrderNumber, order.Status, order.PaymentStatus)
	return nil
}

func (a *app) orders(ctx context.Context) error {
	list, err := a.client.ListOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range list {
		fmt.Printf("%d\t%s\t%s\t%s\n", o.ID, o.OrderNumber, o.Status, storefront.FormatPeso(o.TotalAmount))
	}
	return nil
}

func splitIDs(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "solespace")
	}
	return ".solespace"
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: storefront [-api url] [-state dir] <command> [flags]

commands:
  products                      list the catalog with variant stock
  cart                          show the current cart
  add -product ID [-size] [-color] [-qty]
  inc|dec|rm LINE_ID            change a cart line
  login [-user UUID] [-admin]   sign in with a locally minted dev token
  logout
  checkout -name -email -phone (-address-id ID | -address TEXT) [-select ids] [-compensate]
  complete                      show the order from the last checkout
  orders                        list your orders`)
}

func fail(err error) {
	if msg := storefront.UserMessage(err); msg != "" {
		fmt.Fprintln(os.Stderr, "error:", msg)
	} else {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(1)
}
