package saucedemo

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
	"github.com/v0xg/uiharness/internal/wait"
)

var (
	inventoryList  = locator.Class("inventory_list")
	inventoryItem  = locator.Class("inventory_item")
	itemName       = locator.Class("inventory_item_name")
	itemPrice      = locator.Class("inventory_item_price")
	itemDesc       = locator.Class("inventory_item_desc")
	itemImage      = locator.CSS("img.inventory_item_img")
	sortSelect     = locator.TestID("product-sort-container")
	sortActive     = locator.Class("active_option")
	addToCartAny   = locator.CSS(`[data-test^="add-to-cart"]`)
	removeFromCart = locator.CSS(`[data-test^="remove"]`)
)

// SortMode is a value of the product sort dropdown.
type SortMode string

const (
	SortNameAZ       SortMode = "az"
	SortNameZA       SortMode = "za"
	SortPriceLowHigh SortMode = "lohi"
	SortPriceHighLow SortMode = "hilo"
)

// SortModes lists every mode in dropdown order.
var SortModes = []SortMode{SortNameAZ, SortNameZA, SortPriceLowHigh, SortPriceHighLow}

// Label is the option text the dropdown shows for m.
func (m SortMode) Label() string {
	switch m {
	case SortNameAZ:
		return "Name (A to Z)"
	case SortNameZA:
		return "Name (Z to A)"
	case SortPriceLowHigh:
		return "Price (low to high)"
	case SortPriceHighLow:
		return "Price (high to low)"
	}
	return string(m)
}

// Compare orders two products under m.
func (m SortMode) Compare(a, b Product) int {
	switch m {
	case SortNameZA:
		return strings.Compare(b.Name, a.Name)
	case SortPriceLowHigh:
		return cmp.Compare(a.Price, b.Price)
	case SortPriceHighLow:
		return cmp.Compare(b.Price, a.Price)
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

// ParseSortMode accepts a mode value.
func ParseSortMode(s string) (SortMode, error) {
	m := SortMode(s)
	if !slices.Contains(SortModes, m) {
		return "", fmt.Errorf("unknown sort mode %q", s)
	}
	return m, nil
}

// Product is one rendered product card.
type Product struct {
	Name        string
	Description string
	Price       float64
}

// CheckSorted compares rendered with its stable sort under m. The returned
// error is a *page.MismatchError listing both orders.
func CheckSorted(m SortMode, rendered []Product) error {
	want := slices.Clone(rendered)
	slices.SortStableFunc(want, m.Compare)
	if slices.EqualFunc(rendered, want, func(a, b Product) bool { return a.Name == b.Name }) {
		return nil
	}
	return page.Mismatch("order by "+m.Label(), names(want), names(rendered))
}

func names(ps []Product) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return out
}

// Inventory is the product listing.
type Inventory struct{ Header }

// WaitLoaded waits for the listing URL and the product list.
func (p *Inventory) WaitLoaded(ctx context.Context) error {
	return p.arrive(ctx, pathInventory, inventoryList)
}

// Open navigates straight to the listing; the session must be signed in.
func (p *Inventory) Open(ctx context.Context) error {
	if err := p.Goto(ctx, p.url(pathInventory)); err != nil {
		return err
	}
	return p.WaitLoaded(ctx)
}

// ProductNames returns the rendered names in display order.
func (p *Inventory) ProductNames(ctx context.Context) ([]string, error) {
	return p.Texts(ctx, itemName)
}

// ProductPrices returns the rendered prices in display order.
func (p *Inventory) ProductPrices(ctx context.Context) ([]float64, error) {
	texts, err := p.Texts(ctx, itemPrice)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		if out[i], err = parsePrice(t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Products reads every card in display order.
func (p *Inventory) Products(ctx context.Context) ([]Product, error) {
	ns, err := p.ProductNames(ctx)
	if err != nil {
		return nil, err
	}
	prices, err := p.ProductPrices(ctx)
	if err != nil {
		return nil, err
	}
	descs, err := p.Texts(ctx, itemDesc)
	if err != nil {
		return nil, err
	}
	if len(prices) != len(ns) || len(descs) != len(ns) {
		return nil, fmt.Errorf("inventory re-rendered while reading: %d names, %d prices, %d descriptions", len(ns), len(prices), len(descs))
	}
	out := make([]Product, len(ns))
	for i := range ns {
		out[i] = Product{Name: ns[i], Description: descs[i], Price: prices[i]}
	}
	return out, nil
}

// ProductCount returns how many cards are rendered.
func (p *Inventory) ProductCount(ctx context.Context) (int, error) {
	return p.Count(ctx, inventoryItem)
}

// ImageSources returns the src of every product image.
func (p *Inventory) ImageSources(ctx context.Context) ([]string, error) {
	n, err := p.Count(ctx, itemImage)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := range n {
		src, _, err := p.Attribute(ctx, itemImage.Nth(i), "src")
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// ProductInfo reads the card of the named product.
func (p *Inventory) ProductInfo(ctx context.Context, name string) (Product, error) {
	if err := p.WaitVisible(ctx, inventoryItem.Has(itemName.WithText(name))); err != nil {
		return Product{}, err
	}
	products, err := p.Products(ctx)
	if err != nil {
		return Product{}, err
	}
	i := slices.IndexFunc(products, func(pr Product) bool { return pr.Name == name })
	if i < 0 {
		return Product{}, page.Mismatch("product listed", name, names(products))
	}
	return products[i], nil
}

// SortBy picks m in the dropdown and waits until the active label and the
// rendered order both reflect it.
func (p *Inventory) SortBy(ctx context.Context, m SortMode) error {
	if err := p.Select(ctx, sortSelect, string(m)); err != nil {
		return err
	}
	if err := p.WaitText(ctx, sortActive, m.Label()); err != nil {
		return err
	}
	return p.Await(ctx, p.Until("products sorted by "+m.Label(), func(ctx context.Context) (bool, error) {
		if err := p.VerifySorted(ctx, m); err != nil {
			return false, err
		}
		return true, nil
	}))
}

// ActiveSort returns the label of the selected sort mode.
func (p *Inventory) ActiveSort(ctx context.Context) (string, error) {
	return p.Text(ctx, sortActive)
}

// VerifySorted checks the rendered order against m without waiting.
func (p *Inventory) VerifySorted(ctx context.Context, m SortMode) error {
	products, err := p.Products(ctx)
	if err != nil {
		return err
	}
	return CheckSorted(m, products)
}

// AddToCart adds the named product and waits for its button to flip and
// the badge to count it.
func (p *Inventory) AddToCart(ctx context.Context, name string) error {
	before, err := p.CartCount(ctx)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, buttonRef("add-to-cart-", name)); err != nil {
		return err
	}
	if err := p.WaitVisible(ctx, buttonRef("remove-", name)); err != nil {
		return err
	}
	return p.WaitCartCount(ctx, before+1)
}

// AddManyToCart adds each product in order.
func (p *Inventory) AddManyToCart(ctx context.Context, names ...string) error {
	for _, n := range names {
		if err := p.AddToCart(ctx, n); err != nil {
			return fmt.Errorf("add %q: %w", n, err)
		}
	}
	return nil
}

// AddAllToCart clicks every add button on the page.
func (p *Inventory) AddAllToCart(ctx context.Context) error {
	total, err := p.ProductCount(ctx)
	if err != nil {
		return err
	}
	for {
		n, err := p.Count(ctx, addToCartAny)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		if err := p.Click(ctx, addToCartAny.First()); err != nil {
			return err
		}
		if err := p.WaitCount(ctx, addToCartAny, n-1); err != nil {
			return err
		}
	}
	return p.WaitCartCount(ctx, total)
}

// RemoveFromCart removes the named product from the listing.
func (p *Inventory) RemoveFromCart(ctx context.Context, name string) error {
	before, err := p.CartCount(ctx)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, buttonRef("remove-", name)); err != nil {
		return err
	}
	if err := p.WaitVisible(ctx, buttonRef("add-to-cart-", name)); err != nil {
		return err
	}
	return p.WaitCartCount(ctx, max(before-1, 0))
}

// IsInCart reports whether the product card shows its Remove button.
func (p *Inventory) IsInCart(ctx context.Context, name string) (bool, error) {
	return p.IsVisible(ctx, buttonRef("remove-", name))
}

// InCartCount counts the Remove buttons on the listing.
func (p *Inventory) InCartCount(ctx context.Context) (int, error) {
	return p.Count(ctx, removeFromCart)
}

// VerifyNotInCart waits for the product's Add button. After a reset of the
// app state the buttons only update on the next render; recover reloads
// the page once when the first window expires.
func (p *Inventory) VerifyNotInCart(ctx context.Context, name string, recover bool) error {
	var opts []wait.Option
	if recover {
		opts = append(opts, p.ReloadRecovery())
	}
	return p.WaitVisible(ctx, buttonRef("add-to-cart-", name), opts...)
}

// VerifyAllProductsDisplayed checks the listing shows exactly want, in any
// order.
func (p *Inventory) VerifyAllProductsDisplayed(ctx context.Context, want []string) error {
	got, err := p.ProductNames(ctx)
	if err != nil {
		return err
	}
	a, b := slices.Sorted(slices.Values(got)), slices.Sorted(slices.Values(want))
	if !slices.Equal(a, b) {
		return page.Mismatch("displayed products", b, a)
	}
	return nil
}

// OpenProduct follows the product's title link.
func (p *Inventory) OpenProduct(ctx context.Context, name string) (*ProductPage, error) {
	if err := p.Click(ctx, itemName.WithText(name)); err != nil {
		return nil, err
	}
	pp := &ProductPage{Header: p.Header}
	if err := pp.arrive(ctx, pathProduct, detailName); err != nil {
		return nil, err
	}
	return pp, nil
}
