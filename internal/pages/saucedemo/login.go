package saucedemo

import (
	"context"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
)

var (
	loginUsername = locator.ID("user-name")
	loginPassword = locator.ID("password")
	loginButton   = locator.ID("login-button")
	loginError    = locator.TestID("error")
)

// Login is the store's landing page.
type Login struct{ app }

// NewLogin binds the login page to b. baseURL is the store root, e.g.
// https://www.saucedemo.com.
func NewLogin(b *page.Base, baseURL string) *Login {
	return &Login{app: app{Base: b, baseURL: baseURL}}
}

// Open navigates to the login page.
func (l *Login) Open(ctx context.Context) error {
	if err := l.Goto(ctx, l.url("/")); err != nil {
		return err
	}
	return l.WaitLoaded(ctx)
}

// WaitLoaded waits for the login form.
func (l *Login) WaitLoaded(ctx context.Context) error {
	return l.WaitVisible(ctx, loginButton)
}

// IsDisplayed reports whether the login form is showing.
func (l *Login) IsDisplayed(ctx context.Context) (bool, error) {
	return l.IsVisible(ctx, loginButton)
}

func (l *Login) submit(ctx context.Context, username, password string) error {
	if err := l.Fill(ctx, loginUsername, username); err != nil {
		return err
	}
	if err := l.Fill(ctx, loginPassword, password); err != nil {
		return err
	}
	return l.Click(ctx, loginButton)
}

// LoginAs signs in and waits for the inventory.
func (l *Login) LoginAs(ctx context.Context, username, password string) (*Inventory, error) {
	if err := l.submit(ctx, username, password); err != nil {
		return nil, err
	}
	inv := &Inventory{Header: Header{app: l.app}}
	if err := inv.WaitLoaded(ctx); err != nil {
		return nil, err
	}
	return inv, nil
}

// LoginExpectingError submits the form and returns the error banner. The
// page stays on Login.
func (l *Login) LoginExpectingError(ctx context.Context, username, password string) (string, error) {
	if err := l.submit(ctx, username, password); err != nil {
		return "", err
	}
	if err := l.WaitVisible(ctx, loginError); err != nil {
		return "", err
	}
	return l.ErrorMessage(ctx)
}

// ErrorMessage returns the error banner text.
func (l *Login) ErrorMessage(ctx context.Context) (string, error) {
	return l.Text(ctx, loginError)
}

// VerifyError checks the banner shows want.
func (l *Login) VerifyError(ctx context.Context, want string) error {
	got, err := l.ErrorMessage(ctx)
	if err != nil {
		return err
	}
	if got != want {
		return page.Mismatch("login error", want, got)
	}
	return nil
}

// PasswordMasked types sample into the password field and reports whether
// the field masks its input while keeping the typed value.
func (l *Login) PasswordMasked(ctx context.Context, sample string) (bool, error) {
	if err := l.Fill(ctx, loginPassword, sample); err != nil {
		return false, err
	}
	typ, _, err := l.Attribute(ctx, loginPassword, "type")
	if err != nil {
		return false, err
	}
	value, _, err := l.Attribute(ctx, loginPassword, "value")
	if err != nil {
		return false, err
	}
	return typ == "password" && value == sample, nil
}
