package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"storefront/internal/api"
	"storefront/internal/cart"
	"storefront/internal/orders"
	"storefront/internal/products"
)

var errUsage = errors.New("usage")

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":    {"login EMAIL PASSWORD", cmdLogin},
	"signup":   {"signup NAME EMAIL PASSWORD [PHONE]", cmdSignup},
	"logout":   {"logout", cmdLogout},
	"whoami":   {"whoami", cmdWhoami},
	"products": {"products [CATEGORY] [-limit N] [-page N]", cmdProducts},
	"search":   {"search QUERY", cmdSearch},
	"cart":     {"cart", cmdCart},
	"add":      {"add [-size S] [-color C] CATEGORY PRODUCT_ID [QTY]", cmdAdd},
	"qty":      {"qty ITEM_ID QTY", cmdQuantity},
	"rm":       {"rm ITEM_ID", cmdRemove},
	"clear":    {"clear", cmdClear},
	"wishlist": {"wishlist", cmdWishlist},
	"wish":     {"wish [-category C] PRODUCT_ID", cmdWish},
	"unwish":   {"unwish PRODUCT_ID", cmdUnwish},
	"checkout": {"checkout -name N -phone P -address A -city C -state S -pincode Z [-payment COD]", cmdCheckout},
	"track":    {"track [-watch] ORDER_ID", cmdTrack},
}

var commandOrder = []string{
	"login", "signup", "logout", "whoami", "products", "search", "cart", "add", "qty", "rm",
	"clear", "wishlist", "wish", "unwish", "checkout", "track",
}

// dispatch runs one command line against a.
func (a *app) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	err := cmd.run(ctx, a, args[1:])
	if errors.Is(err, errUsage) {
		return fmt.Errorf("usage: storefront %s", cmd.usage)
	}
	return err
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	user, err := a.session.Login(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	a.printf("signed in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func cmdSignup(ctx context.Context, a *app, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return errUsage
	}
	req := api.SignupRequest{Name: args[0], Email: args[1], Password: args[2]}
	if len(args) == 4 {
		req.Phone = args[3]
	}
	user, err := a.session.Signup(ctx, req)
	if err != nil {
		return err
	}
	a.printf("welcome, %s\n", user.Name)
	return nil
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	a.session.Logout(ctx)
	a.printf("signed out\n")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	user := a.session.User()
	if user == nil {
		a.printf("not signed in\n")
		return nil
	}
	a.printf("%s <%s>\n", user.Name, user.Email)
	return nil
}

func cmdProducts(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("products")
	var q api.ListQuery
	fs.IntVar(&q.Limit, "limit", 20, "products per page")
	fs.IntVar(&q.Page, "page", 1, "page number")
	if err := fs.Parse(args); err != nil || fs.NArg() > 1 {
		return errUsage
	}
	list, err := a.client.Products(ctx, fs.Arg(0), q)
	if err != nil {
		return err
	}
	a.printProducts(list)
	return nil
}

func cmdSearch(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	list, err := a.client.Search(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	a.printProducts(list)
	return nil
}

func (a *app) printProducts(list []products.Raw) {
	if len(list) == 0 {
		a.printf("no products\n")
		return
	}
	for _, raw := range list {
		p := products.Normalize(raw)
		a.printf("%s\t%s\t%s\n", p.ID, a.money.Format(p.EffectivePrice()), p.Name)
	}
}

func cmdCart(_ context.Context, a *app, _ []string) error {
	items := a.cart.Items()
	if len(items) == 0 {
		a.printf("cart is empty\n")
		return nil
	}
	for _, item := range items {
		a.printf("%s\t%d x %s\t%s\n", item.ID, item.Quantity, a.money.Format(item.Product.EffectivePrice()), item.Product.Name)
	}
	a.printf("%d items, total %s\n", cart.Count(items), a.money.Format(cart.Total(items)))
	return nil
}

func cmdAdd(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("add")
	size := fs.String("size", "", "size")
	color := fs.String("color", "", "color")
	if err := fs.Parse(args); err != nil || fs.NArg() < 2 || fs.NArg() > 3 {
		return errUsage
	}
	quantity := 1
	if fs.NArg() == 3 {
		n, err := strconv.Atoi(fs.Arg(2))
		if err != nil {
			return errUsage
		}
		quantity = n
	}
	raw, err := a.client.Product(ctx, fs.Arg(0), fs.Arg(1))
	if err != nil {
		return err
	}
	if err := a.cart.Add(ctx, raw, quantity, *size, *color); err != nil {
		return err
	}
	return cmdCart(ctx, a, nil)
}

func cmdQuantity(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	quantity, err := strconv.Atoi(args[1])
	if err != nil {
		return errUsage
	}
	a.cart.UpdateQuantity(ctx, args[0], quantity)
	return cmdCart(ctx, a, nil)
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	a.cart.Remove(ctx, args[0])
	return cmdCart(ctx, a, nil)
}

func cmdClear(ctx context.Context, a *app, _ []string) error {
	if err := a.cart.Clear(ctx); err != nil {
		return err
	}
	return cmdCart(ctx, a, nil)
}

func cmdWishlist(ctx context.Context, a *app, _ []string) error {
	a.wishlist.Hydrate(ctx, a.lookupProduct)
	items := a.wishlist.Items()
	if len(items) == 0 {
		a.printf("wishlist is empty\n")
		return nil
	}
	for _, item := range items {
		name := item.Product.Name
		if name == "" {
			name = "(details unavailable)"
		}
		a.printf("%s\t%s\n", item.ProductID(), name)
	}
	return nil
}

func cmdWish(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("wish")
	category := fs.String("category", "", "category to fetch product details from")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	productID := fs.Arg(0)

	var snapshot *products.Product
	if *category != "" {
		raw, err := a.client.Product(ctx, *category, productID)
		if err != nil {
			return err
		}
		p := products.Normalize(raw)
		snapshot = &p
	}
	if err := a.wishlist.Add(ctx, productID, snapshot); err != nil {
		return err
	}
	a.printf("saved %s\n", productID)
	return nil
}

func cmdUnwish(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	a.wishlist.Remove(ctx, args[0])
	if a.wishlist.Contains(args[0]) {
		return fmt.Errorf("could not remove %s from the wishlist", args[0])
	}
	a.printf("removed %s\n", args[0])
	return nil
}

func cmdCheckout(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("checkout")
	var addr api.ShippingAddress
	fs.StringVar(&addr.Name, "name", "", "full name")
	fs.StringVar(&addr.Phone, "phone", "", "phone number")
	fs.StringVar(&addr.Address, "address", "", "street address")
	fs.StringVar(&addr.City, "city", "", "city")
	fs.StringVar(&addr.State, "state", "", "state")
	fs.StringVar(&addr.Pincode, "pincode", "", "pincode")
	payment := fs.String("payment", orders.PaymentCOD, "payment method")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return errUsage
	}

	total := a.cart.Total()
	order, err := a.orders.Checkout(ctx, addr, *payment)
	if err != nil {
		return err
	}
	a.printf("order %s placed, %s to pay on delivery\n", order.ID, a.money.Format(total))
	return nil
}

func cmdTrack(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("track")
	watch := fs.Bool("watch", false, "follow live updates until delivery")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	orderID := fs.Arg(0)

	tracking, err := a.orders.Track(ctx, orderID)
	if err != nil {
		return err
	}
	a.printTracking(*tracking)
	if !*watch || orders.Final(tracking.Status) {
		return nil
	}
	return a.watcher.Watch(ctx, orderID, func(update api.Tracking) error {
		a.printTracking(update)
		return nil
	})
}

func (a *app) printTracking(t api.Tracking) {
	step := orders.StepIndex(t.Status)
	progress := ""
	if step >= 0 {
		progress = fmt.Sprintf(" (%d/%d)", step+1, len(orders.Steps))
	}
	a.printf("order %s: %s%s\n", t.OrderID, orders.Label(t.Status), progress)
	if t.TrackingNumber != "" {
		a.printf("  tracking number %s\n", t.TrackingNumber)
	}
	if t.EstimatedDelivery != "" {
		a.printf("  estimated delivery %s\n", t.EstimatedDelivery)
	}
}
