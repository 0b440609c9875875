package surface

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/observability"
)

// Resolution is how a native dialog gets closed.
type Resolution struct {
	accept bool
	text   string
}

// Accept resolves with OK. text is only used by prompt dialogs.
func Accept(text string) Resolution { return Resolution{accept: true, text: text} }

// Dismiss resolves with Cancel.
func Dismiss() Resolution { return Resolution{} }

func (r Resolution) Accepted() bool { return r.accept }
func (r Resolution) Text() string   { return r.text }

func (r Resolution) String() string {
	if !r.accept {
		return "dismiss"
	}
	if r.text != "" {
		return fmt.Sprintf("accept(%q)", r.text)
	}
	return "accept"
}

// DialogExpectation describes the dialog an action should raise. Empty
// Kind or Message are not checked.
type DialogExpectation struct {
	Kind       engine.DialogKind
	Message    string
	Resolution Resolution
}

// DialogRequest is one observed dialog. It can be resolved exactly once.
type DialogRequest struct {
	dialog engine.Dialog

	mu         sync.Mutex
	resolved   bool
	resolution Resolution
}

func newDialogRequest(d engine.Dialog) *DialogRequest {
	return &DialogRequest{dialog: d}
}

func (r *DialogRequest) Kind() engine.DialogKind { return r.dialog.Kind() }
func (r *DialogRequest) Message() string         { return r.dialog.Message() }
func (r *DialogRequest) DefaultPrompt() string   { return r.dialog.DefaultPrompt() }

// Resolution returns how the dialog was resolved and whether it was.
func (r *DialogRequest) Resolution() (Resolution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolution, r.resolved
}

// Resolve closes the dialog. A second call returns ErrDialogAlreadyResolved
// without touching the engine.
func (r *DialogRequest) Resolve(ctx context.Context, res Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return ErrDialogAlreadyResolved
	}
	r.resolved = true
	r.resolution = res

	var err error
	if res.accept {
		err = r.dialog.Accept(ctx, res.text)
	} else {
		err = r.dialog.Dismiss(ctx)
	}
	if err != nil {
		return fmt.Errorf("%s %s dialog: %w", res, r.dialog.Kind(), err)
	}
	return nil
}

func (r *DialogRequest) check(exp DialogExpectation) error {
	kind, msg := r.Kind(), r.Message()
	if (exp.Kind != "" && exp.Kind != kind) || (exp.Message != "" && exp.Message != msg) {
		return &DialogMismatchError{
			ExpectedKind:    exp.Kind,
			ActualKind:      kind,
			ExpectedMessage: exp.Message,
			ActualMessage:   msg,
		}
	}
	return nil
}

// ResolveDialog runs trigger on from, waits for the dialog it raises and
// resolves it with exp.Resolution. The dialog is resolved even when it does
// not match exp; the mismatch is then returned next to the request.
func (c *Coordinator) ResolveDialog(ctx context.Context, from *Surface, exp DialogExpectation, trigger Trigger) (_ *DialogRequest, err error) {
	ctx, span := observability.StartSpan(ctx, "surface.dialog",
		attribute.String("expected_kind", string(exp.Kind)),
		attribute.String("resolution", exp.Resolution.String()))
	defer func() {
		c.metrics.RecordSpawn(string(SpawnDialog), err)
		observability.EndSpan(span, err)
	}()

	if err := from.CheckAttached(ctx); err != nil {
		return nil, err
	}

	// The triggering click only returns once the dialog is closed, so the
	// wait side resolves it inside the race.
	var req *DialogRequest
	var resolveErr error
	arm := func(gctx context.Context) func() (*DialogRequest, error) {
		wait := from.page.ExpectDialog(gctx)
		return func() (*DialogRequest, error) {
			d, err := wait()
			if err != nil {
				return nil, err
			}
			req = newDialogRequest(d)
			resolveErr = req.Resolve(ctx, exp.Resolution)
			return req, nil
		}
	}

	_, err = race(ctx, c.timeout, SpawnDialog, arm, trigger)
	if req == nil {
		return nil, err
	}
	if resolveErr != nil {
		return req, resolveErr
	}
	if err != nil {
		return req, err
	}

	c.logger.Debug("dialog resolved",
		zap.String("kind", string(req.Kind())),
		zap.String("message", req.Message()),
		zap.Stringer("resolution", exp.Resolution))
	if mismatch := req.check(exp); mismatch != nil {
		return req, mismatch
	}
	return req, nil
}
