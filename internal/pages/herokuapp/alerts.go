package herokuapp

import (
	"context"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/surface"
)

const (
	AlertMessage   = "I am a JS Alert"
	ConfirmMessage = "I am a JS Confirm"
	PromptMessage  = "I am a JS prompt"
)

var (
	jsAlertButton   = locator.CSS(`[onclick="jsAlert()"]`)
	jsConfirmButton = locator.CSS(`[onclick="jsConfirm()"]`)
	jsPromptButton  = locator.CSS(`[onclick="jsPrompt()"]`)
	alertResult     = locator.ID("result")
)

// JavaScriptAlerts is the /javascript_alerts example.
type JavaScriptAlerts struct{ app }

// Open navigates to the example.
func (a *JavaScriptAlerts) Open(ctx context.Context) error {
	return a.open(ctx, "/javascript_alerts", jsAlertButton)
}

func (a *JavaScriptAlerts) raise(ctx context.Context, button locator.Ref, exp surface.DialogExpectation) (*surface.DialogRequest, error) {
	return a.Coordinator().ResolveDialog(ctx, a.Surface(), exp, func(ctx context.Context) error {
		return a.Click(ctx, button)
	})
}

// Alert raises the alert and accepts it.
func (a *JavaScriptAlerts) Alert(ctx context.Context) (*surface.DialogRequest, error) {
	return a.raise(ctx, jsAlertButton, surface.DialogExpectation{
		Kind:       engine.DialogAlert,
		Message:    AlertMessage,
		Resolution: surface.Accept(""),
	})
}

// Confirm raises the confirm and accepts or dismisses it.
func (a *JavaScriptAlerts) Confirm(ctx context.Context, accept bool) (*surface.DialogRequest, error) {
	res := surface.Dismiss()
	if accept {
		res = surface.Accept("")
	}
	return a.raise(ctx, jsConfirmButton, surface.DialogExpectation{
		Kind:       engine.DialogConfirm,
		Message:    ConfirmMessage,
		Resolution: res,
	})
}

// Prompt raises the prompt and resolves it with res.
func (a *JavaScriptAlerts) Prompt(ctx context.Context, res surface.Resolution) (*surface.DialogRequest, error) {
	return a.raise(ctx, jsPromptButton, surface.DialogExpectation{
		Kind:       engine.DialogPrompt,
		Message:    PromptMessage,
		Resolution: res,
	})
}

// Result returns the line the page prints after a dialog closes.
func (a *JavaScriptAlerts) Result(ctx context.Context) (string, error) {
	return a.Text(ctx, alertResult)
}

// WaitResult waits for the result line to read want.
func (a *JavaScriptAlerts) WaitResult(ctx context.Context, want string) error {
	return a.WaitText(ctx, alertResult, want)
}
