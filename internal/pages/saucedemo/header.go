// Package saucedemo holds the page objects of the SauceDemo store:
// Login → Inventory → Cart → CheckoutInfo → CheckoutReview →
// CheckoutComplete, plus the product detail page.
package saucedemo

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
	"github.com/v0xg/uiharness/internal/testdata"
	"github.com/v0xg/uiharness/internal/wait"
)

const (
	pathInventory   = "/inventory.html"
	pathProduct     = "/inventory-item.html"
	pathCart        = "/cart.html"
	pathCheckoutOne = "/checkout-step-one.html"
	pathCheckoutTwo = "/checkout-step-two.html"
	pathComplete    = "/checkout-complete.html"
)

var (
	cartLink   = locator.Class("shopping_cart_link")
	cartBadge  = locator.Class("shopping_cart_badge")
	cartItem   = locator.Class("cart_item")
	menuButton = locator.ID("react-burger-menu-btn")
	menuClose  = locator.ID("react-burger-cross-btn")
	menuAll    = locator.ID("inventory_sidebar_link")
	menuAbout  = locator.ID("about_sidebar_link")
	menuLogout = locator.ID("logout_sidebar_link")
	menuReset  = locator.ID("reset_sidebar_link")
	appLogo    = locator.Class("app_logo")
)

// app is what every SauceDemo page object carries.
type app struct {
	*page.Base
	baseURL string
}

func (a app) url(path string) string { return strings.TrimSuffix(a.baseURL, "/") + path }

// arrive waits for the destination URL and a marker element.
func (a app) arrive(ctx context.Context, path string, marker locator.Ref) error {
	if err := a.WaitURL(ctx, path); err != nil {
		return err
	}
	return a.WaitVisible(ctx, marker)
}

// Header is the bar shared by every page behind the login: logo, cart link
// and badge, burger menu.
type Header struct{ app }

// ReconcileCartCount derives the cart count from what the header shows. A
// badge wins; without one, the cart listing's line count is used when the
// current page is the cart, otherwise the count is zero.
func ReconcileCartCount(badge string, badgePresent, onCartPage bool, cartLines int) (int, error) {
	if badgePresent {
		n, err := strconv.Atoi(strings.TrimSpace(badge))
		if err != nil {
			return 0, fmt.Errorf("cart badge %q: %w", badge, err)
		}
		return n, nil
	}
	if onCartPage {
		return cartLines, nil
	}
	return 0, nil
}

// CartCount reads the current cart count.
func (h Header) CartCount(ctx context.Context) (int, error) {
	n, err := h.Count(ctx, cartBadge)
	if err != nil {
		return 0, err
	}
	var badge string
	if n > 0 {
		texts, err := h.Texts(ctx, cartBadge)
		if err != nil {
			return 0, err
		}
		if len(texts) > 0 {
			badge = texts[0]
		}
	}
	u, err := h.URL(ctx)
	if err != nil {
		return 0, err
	}
	onCart := strings.Contains(u, pathCart)
	lines := 0
	if onCart {
		if lines, err = h.Count(ctx, cartItem); err != nil {
			return 0, err
		}
	}
	return ReconcileCartCount(badge, n > 0, onCart, lines)
}

// WaitCartCount waits for the header to show n items.
func (h Header) WaitCartCount(ctx context.Context, n int, opts ...wait.Option) error {
	var last int
	err := h.Await(ctx, h.Until(fmt.Sprintf("cart count == %d", n), func(ctx context.Context) (bool, error) {
		got, err := h.CartCount(ctx)
		last = got
		return got == n, err
	}, opts...))
	if err != nil {
		return fmt.Errorf("%w (last count %d)", err, last)
	}
	return nil
}

// VerifyCartCount checks the count without waiting.
func (h Header) VerifyCartCount(ctx context.Context, n int) error {
	got, err := h.CartCount(ctx)
	if err != nil {
		return err
	}
	if got != n {
		return page.Mismatch("cart count", n, got)
	}
	return nil
}

// Logo returns the header title.
func (h Header) Logo(ctx context.Context) (string, error) {
	return h.Text(ctx, appLogo)
}

// OpenCart follows the cart link.
func (h Header) OpenCart(ctx context.Context) (*Cart, error) {
	if err := h.Click(ctx, cartLink); err != nil {
		return nil, err
	}
	c := &Cart{Header: h}
	if err := c.arrive(ctx, pathCart, cartList); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenMenu opens the burger menu and waits for its links.
func (h Header) OpenMenu(ctx context.Context) error {
	visible, err := h.IsVisible(ctx, menuLogout)
	if err != nil || visible {
		return err
	}
	if err := h.Click(ctx, menuButton); err != nil {
		return err
	}
	return h.WaitVisible(ctx, menuLogout)
}

// CloseMenu closes the burger menu.
func (h Header) CloseMenu(ctx context.Context) error {
	if err := h.Click(ctx, menuClose); err != nil {
		return err
	}
	return h.WaitHidden(ctx, menuLogout)
}

// AllItems goes back to the inventory through the menu.
func (h Header) AllItems(ctx context.Context) (*Inventory, error) {
	if err := h.OpenMenu(ctx); err != nil {
		return nil, err
	}
	if err := h.Click(ctx, menuAll); err != nil {
		return nil, err
	}
	inv := &Inventory{Header: h}
	return inv, inv.WaitLoaded(ctx)
}

// Logout signs out through the menu.
func (h Header) Logout(ctx context.Context) (*Login, error) {
	if err := h.OpenMenu(ctx); err != nil {
		return nil, err
	}
	if err := h.Click(ctx, menuLogout); err != nil {
		return nil, err
	}
	l := &Login{app: h.app}
	return l, l.WaitLoaded(ctx)
}

// ResetAppState clears the cart through the menu. The product buttons keep
// their state until the page renders again; see Inventory.VerifyNotInCart.
func (h Header) ResetAppState(ctx context.Context) error {
	if err := h.OpenMenu(ctx); err != nil {
		return err
	}
	if err := h.Click(ctx, menuReset); err != nil {
		return err
	}
	return h.WaitCount(ctx, cartBadge, 0)
}

// About follows the menu's About link and returns the URL it landed on.
func (h Header) About(ctx context.Context) (string, error) {
	if err := h.OpenMenu(ctx); err != nil {
		return "", err
	}
	if err := h.Click(ctx, menuAbout); err != nil {
		return "", err
	}
	if err := h.WaitURL(ctx, "saucelabs.com"); err != nil {
		return "", err
	}
	return h.URL(ctx)
}

// buttonRef addresses a per-product button, e.g. add-to-cart-<slug>.
func buttonRef(prefix, name string) locator.Ref {
	id := prefix + testdata.Product{Name: name}.Slug()
	return locator.CSS(fmt.Sprintf("[id=%q]", id))
}

// parsePrice reads "$29.99" or "Item total: $29.99".
func parsePrice(s string) (float64, error) {
	i := strings.LastIndex(s, "$")
	if i < 0 {
		return 0, fmt.Errorf("no price in %q", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s[i+1:]), 64)
	if err != nil {
		return 0, fmt.Errorf("price %q: %w", s, err)
	}
	return v, nil
}
