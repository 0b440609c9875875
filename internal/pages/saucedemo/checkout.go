package saucedemo

import (
	"context"
	"fmt"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
	"github.com/v0xg/uiharness/internal/testdata"
)

var (
	firstName        = locator.ID("first-name")
	lastName         = locator.ID("last-name")
	postalCode       = locator.ID("postal-code")
	continueButton   = locator.ID("continue")
	cancelButton     = locator.ID("cancel")
	checkoutError    = locator.TestID("error")
	summarySubtotal  = locator.Class("summary_subtotal_label")
	summaryTax       = locator.Class("summary_tax_label")
	summaryTotal     = locator.Class("summary_total_label")
	finishButton     = locator.ID("finish")
	completeHeader   = locator.Class("complete-header")
	completeBackHome = locator.ID("back-to-products")
)

// CheckoutInfo is the customer information form.
type CheckoutInfo struct{ Header }

// Fill enters info.
func (c *CheckoutInfo) Fill(ctx context.Context, info testdata.CheckoutInfo) error {
	if err := c.Base.Fill(ctx, firstName, info.FirstName); err != nil {
		return err
	}
	if err := c.Base.Fill(ctx, lastName, info.LastName); err != nil {
		return err
	}
	return c.Base.Fill(ctx, postalCode, info.PostalCode)
}

// Continue submits the form and waits for the overview.
func (c *CheckoutInfo) Continue(ctx context.Context) (*CheckoutReview, error) {
	if err := c.Click(ctx, continueButton); err != nil {
		return nil, err
	}
	r := &CheckoutReview{Header: c.Header}
	if err := r.arrive(ctx, pathCheckoutTwo, finishButton); err != nil {
		return nil, err
	}
	return r, nil
}

// ContinueExpectingError submits an incomplete form and returns the error.
func (c *CheckoutInfo) ContinueExpectingError(ctx context.Context) (string, error) {
	if err := c.Click(ctx, continueButton); err != nil {
		return "", err
	}
	if err := c.WaitVisible(ctx, checkoutError); err != nil {
		return "", err
	}
	return c.Text(ctx, checkoutError)
}

// Cancel returns to the cart.
func (c *CheckoutInfo) Cancel(ctx context.Context) (*Cart, error) {
	if err := c.Click(ctx, cancelButton); err != nil {
		return nil, err
	}
	cart := &Cart{Header: c.Header}
	return cart, cart.arrive(ctx, pathCart, cartList)
}

// Summary is the price block of the overview.
type Summary struct {
	Subtotal float64
	Tax      float64
	Total    float64
}

// CheckoutReview is the order overview.
type CheckoutReview struct{ Header }

// Items reads the lines being ordered.
func (r *CheckoutReview) Items(ctx context.Context) (CartSnapshot, error) {
	return readLines(ctx, r.Base)
}

// Summary reads subtotal, tax and total.
func (r *CheckoutReview) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	for _, f := range []struct {
		ref locator.Ref
		dst *float64
	}{{summarySubtotal, &s.Subtotal}, {summaryTax, &s.Tax}, {summaryTotal, &s.Total}} {
		text, err := r.Text(ctx, f.ref)
		if err != nil {
			return s, err
		}
		if *f.dst, err = parsePrice(text); err != nil {
			return s, err
		}
	}
	return s, nil
}

// VerifySummary checks the subtotal matches the lines and the total adds
// subtotal and tax.
func (r *CheckoutReview) VerifySummary(ctx context.Context) (Summary, error) {
	s, err := r.Summary(ctx)
	if err != nil {
		return s, err
	}
	items, err := r.Items(ctx)
	if err != nil {
		return s, err
	}
	if !PriceEqual(items.Total(), s.Subtotal) {
		return s, page.Mismatch("item total", fmt.Sprintf("%.2f", items.Total()), fmt.Sprintf("%.2f", s.Subtotal))
	}
	if !PriceEqual(s.Subtotal+s.Tax, s.Total) {
		return s, page.Mismatch("order total", fmt.Sprintf("%.2f", s.Subtotal+s.Tax), fmt.Sprintf("%.2f", s.Total))
	}
	return s, nil
}

// Finish places the order.
func (r *CheckoutReview) Finish(ctx context.Context) (*CheckoutComplete, error) {
	if err := r.Click(ctx, finishButton); err != nil {
		return nil, err
	}
	c := &CheckoutComplete{Header: r.Header}
	if err := c.arrive(ctx, pathComplete, completeHeader); err != nil {
		return nil, err
	}
	return c, nil
}

// Cancel abandons the order and returns to the listing.
func (r *CheckoutReview) Cancel(ctx context.Context) (*Inventory, error) {
	if err := r.Click(ctx, cancelButton); err != nil {
		return nil, err
	}
	inv := &Inventory{Header: r.Header}
	return inv, inv.WaitLoaded(ctx)
}

// CheckoutComplete is the confirmation page.
type CheckoutComplete struct{ Header }

// Heading returns the confirmation headline.
func (c *CheckoutComplete) Heading(ctx context.Context) (string, error) {
	return c.Text(ctx, completeHeader)
}

// BackHome returns to the listing.
func (c *CheckoutComplete) BackHome(ctx context.Context) (*Inventory, error) {
	if err := c.Click(ctx, completeBackHome); err != nil {
		return nil, err
	}
	inv := &Inventory{Header: c.Header}
	return inv, inv.WaitLoaded(ctx)
}
