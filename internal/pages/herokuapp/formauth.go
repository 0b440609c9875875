package herokuapp

import (
	"context"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
)

var (
	authUsername = locator.ID("username")
	authPassword = locator.ID("password")
	authSubmit   = locator.CSS(`#login button[type="submit"]`)
	flash        = locator.ID("flash")
	secureTitle  = locator.CSS("h2").WithText("Secure Area")
	logoutLink   = locator.Role("link", "Logout")
)

// FormAuth is the /login example and the secure area behind it.
type FormAuth struct{ app }

// Open navigates to the login form.
func (f *FormAuth) Open(ctx context.Context) error {
	return f.open(ctx, "/login", authSubmit)
}

func (f *FormAuth) submit(ctx context.Context, username, password string) error {
	if err := f.Fill(ctx, authUsername, username); err != nil {
		return err
	}
	if err := f.Fill(ctx, authPassword, password); err != nil {
		return err
	}
	return f.Click(ctx, authSubmit)
}

// Login signs in and waits for the secure area.
func (f *FormAuth) Login(ctx context.Context, username, password string) error {
	if err := f.submit(ctx, username, password); err != nil {
		return err
	}
	if err := f.WaitURL(ctx, "/secure"); err != nil {
		return err
	}
	return f.WaitVisible(ctx, secureTitle)
}

// LoginExpectingFailure submits bad credentials and returns the flash.
func (f *FormAuth) LoginExpectingFailure(ctx context.Context, username, password string) (string, error) {
	if err := f.submit(ctx, username, password); err != nil {
		return "", err
	}
	if err := f.WaitVisible(ctx, flash); err != nil {
		return "", err
	}
	return f.Flash(ctx)
}

// Flash returns the flash message without its close glyph.
func (f *FormAuth) Flash(ctx context.Context) (string, error) {
	text, err := f.Text(ctx, flash)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimSuffix(text, "×")), nil
}

// VerifyFlashContains checks the flash mentions want.
func (f *FormAuth) VerifyFlashContains(ctx context.Context, want string) error {
	got, err := f.Flash(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(got, want) {
		return page.Mismatch("flash message", want, got)
	}
	return nil
}

// InSecureArea reports whether the secure area is showing.
func (f *FormAuth) InSecureArea(ctx context.Context) (bool, error) {
	return f.IsVisible(ctx, secureTitle)
}

// Logout leaves the secure area and waits for the login form.
func (f *FormAuth) Logout(ctx context.Context) error {
	if err := f.Click(ctx, logoutLink); err != nil {
		return err
	}
	if err := f.WaitURL(ctx, "/login"); err != nil {
		return err
	}
	return f.WaitVisible(ctx, authSubmit)
}
