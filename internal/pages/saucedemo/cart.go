package saucedemo

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
)

var (
	cartList         = locator.Class("cart_list")
	continueShopping = locator.ID("continue-shopping")
	checkoutButton   = locator.ID("checkout")
)

// CartLine is one row of the cart.
type CartLine struct {
	ProductName string
	UnitPrice   float64
	Quantity    int
}

// CartSnapshot is the cart as rendered on one surface at one moment. It is
// not refreshed; read a new one after the page changes.
type CartSnapshot struct {
	SurfaceID string
	ReadAt    time.Time
	Lines     []CartLine
}

// Total sums price times quantity over every line.
func (s CartSnapshot) Total() float64 {
	var t float64
	for _, l := range s.Lines {
		t += l.UnitPrice * float64(l.Quantity)
	}
	return math.Round(t*100) / 100
}

// Names lists the products in display order.
func (s CartSnapshot) Names() []string {
	out := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		out[i] = l.ProductName
	}
	return out
}

// Contains reports whether a line for name exists.
func (s CartSnapshot) Contains(name string) bool {
	return slices.ContainsFunc(s.Lines, func(l CartLine) bool { return l.ProductName == name })
}

// Count is the number of items, quantities included.
func (s CartSnapshot) Count() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// PriceEqual compares amounts within one cent.
func PriceEqual(a, b float64) bool {
	// Compared in whole cents.
	return math.Round(math.Abs(a-b)*100) <= PriceTolerance*100
}

// PriceTolerance is how far two amounts may differ and still match.
const PriceTolerance = 0.01

// Cart is the cart listing.
type Cart struct{ Header }

// Open navigates straight to the cart.
func (c *Cart) Open(ctx context.Context) error {
	if err := c.Goto(ctx, c.url(pathCart)); err != nil {
		return err
	}
	return c.arrive(ctx, pathCart, cartList)
}

// Snapshot reads every line from the live page.
func (c *Cart) Snapshot(ctx context.Context) (CartSnapshot, error) {
	return readLines(ctx, c.Base)
}

func readLines(ctx context.Context, b *page.Base) (CartSnapshot, error) {
	snap := CartSnapshot{SurfaceID: b.Surface().ID(), ReadAt: time.Now()}
	ns, err := b.Texts(ctx, locator.CSS(".cart_item .inventory_item_name"))
	if err != nil {
		return snap, err
	}
	prices, err := b.Texts(ctx, locator.CSS(".cart_item .inventory_item_price"))
	if err != nil {
		return snap, err
	}
	qtys, err := b.Texts(ctx, locator.CSS(".cart_item .cart_quantity"))
	if err != nil {
		return snap, err
	}
	if len(prices) != len(ns) || len(qtys) != len(ns) {
		return snap, fmt.Errorf("cart re-rendered while reading: %d names, %d prices, %d quantities", len(ns), len(prices), len(qtys))
	}
	for i, name := range ns {
		price, err := parsePrice(prices[i])
		if err != nil {
			return snap, err
		}
		var qty int
		if _, err := fmt.Sscanf(qtys[i], "%d", &qty); err != nil {
			return snap, fmt.Errorf("quantity %q of %s: %w", qtys[i], name, err)
		}
		snap.Lines = append(snap.Lines, CartLine{ProductName: name, UnitPrice: price, Quantity: qty})
	}
	return snap, nil
}

// ItemCount returns the number of rendered lines.
func (c *Cart) ItemCount(ctx context.Context) (int, error) {
	return c.Count(ctx, cartItem)
}

// Total is the sum of the rendered line prices.
func (c *Cart) Total(ctx context.Context) (float64, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Total(), nil
}

// Remove removes the named line and waits for it to disappear and for the
// badge to follow.
func (c *Cart) Remove(ctx context.Context, name string) error {
	before, err := c.CartCount(ctx)
	if err != nil {
		return err
	}
	if err := c.Click(ctx, buttonRef("remove-", name)); err != nil {
		return err
	}
	if err := c.WaitCount(ctx, cartItem.Has(itemName.WithText(name)), 0); err != nil {
		return err
	}
	return c.WaitCartCount(ctx, max(before-1, 0))
}

// RemoveAll empties the cart line by line.
func (c *Cart) RemoveAll(ctx context.Context) error {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, n := range snap.Names() {
		if err := c.Remove(ctx, n); err != nil {
			return err
		}
	}
	if err := c.WaitCount(ctx, cartItem, 0); err != nil {
		return err
	}
	return c.WaitCartCount(ctx, 0)
}

// ContinueShopping returns to the listing.
func (c *Cart) ContinueShopping(ctx context.Context) (*Inventory, error) {
	if err := c.Click(ctx, continueShopping); err != nil {
		return nil, err
	}
	inv := &Inventory{Header: c.Header}
	return inv, inv.WaitLoaded(ctx)
}

// Checkout starts the checkout.
func (c *Cart) Checkout(ctx context.Context) (*CheckoutInfo, error) {
	if err := c.Click(ctx, checkoutButton); err != nil {
		return nil, err
	}
	ci := &CheckoutInfo{Header: c.Header}
	if err := ci.arrive(ctx, pathCheckoutOne, firstName); err != nil {
		return nil, err
	}
	return ci, nil
}

// VerifyContains checks every name has a line.
func (c *Cart) VerifyContains(ctx context.Context, names ...string) error {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		if !snap.Contains(n) {
			return page.Mismatch("cart contains "+n, true, snap.Names())
		}
	}
	return nil
}

// VerifyNotContains checks name has no line.
func (c *Cart) VerifyNotContains(ctx context.Context, name string) error {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}
	if snap.Contains(name) {
		return page.Mismatch("cart contains "+name, false, snap.Names())
	}
	return nil
}

// VerifyEmpty checks the cart has no lines and the header no badge.
func (c *Cart) VerifyEmpty(ctx context.Context) error {
	n, err := c.ItemCount(ctx)
	if err != nil {
		return err
	}
	if n != 0 {
		return page.Mismatch("cart lines", 0, n)
	}
	return c.VerifyCartCount(ctx, 0)
}

// VerifyTotal checks the rendered line prices add up to want.
func (c *Cart) VerifyTotal(ctx context.Context, want float64) error {
	got, err := c.Total(ctx)
	if err != nil {
		return err
	}
	if !PriceEqual(got, want) {
		return page.Mismatch("cart total", fmt.Sprintf("%.2f", want), fmt.Sprintf("%.2f", got))
	}
	return nil
}
