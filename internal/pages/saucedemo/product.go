package saucedemo

import (
	"context"

	"github.com/v0xg/uiharness/internal/locator"
)

var (
	detailName   = locator.Class("inventory_details_name")
	detailPrice  = locator.Class("inventory_details_price")
	detailDesc   = locator.Class("inventory_details_desc")
	detailAdd    = locator.ID("add-to-cart")
	detailRemove = locator.ID("remove")
	backToList   = locator.ID("back-to-products")
)

// ProductPage is the detail page of one product.
type ProductPage struct{ Header }

// Info reads the product shown.
func (p *ProductPage) Info(ctx context.Context) (Product, error) {
	name, err := p.Text(ctx, detailName)
	if err != nil {
		return Product{}, err
	}
	desc, err := p.Text(ctx, detailDesc)
	if err != nil {
		return Product{}, err
	}
	priceText, err := p.Text(ctx, detailPrice)
	if err != nil {
		return Product{}, err
	}
	price, err := parsePrice(priceText)
	if err != nil {
		return Product{}, err
	}
	return Product{Name: name, Description: desc, Price: price}, nil
}

// AddToCart adds the product shown.
func (p *ProductPage) AddToCart(ctx context.Context) error {
	before, err := p.CartCount(ctx)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, detailAdd); err != nil {
		return err
	}
	if err := p.WaitVisible(ctx, detailRemove); err != nil {
		return err
	}
	return p.WaitCartCount(ctx, before+1)
}

// RemoveFromCart removes the product shown.
func (p *ProductPage) RemoveFromCart(ctx context.Context) error {
	before, err := p.CartCount(ctx)
	if err != nil {
		return err
	}
	if err := p.Click(ctx, detailRemove); err != nil {
		return err
	}
	if err := p.WaitVisible(ctx, detailAdd); err != nil {
		return err
	}
	return p.WaitCartCount(ctx, max(before-1, 0))
}

// BackToProducts returns to the listing.
func (p *ProductPage) BackToProducts(ctx context.Context) (*Inventory, error) {
	if err := p.Click(ctx, backToList); err != nil {
		return nil, err
	}
	inv := &Inventory{Header: p.Header}
	return inv, inv.WaitLoaded(ctx)
}
