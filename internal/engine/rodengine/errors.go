package rodengine

import (
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/v0xg/uiharness/internal/engine"
)

// wrap maps rod and CDP failures onto the engine sentinels so the harness
// can tell detachment and staleness apart from real errors.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var (
		notFound  *rod.ObjectNotFoundError
		elMissing *rod.ElementNotFoundError
		covered   *rod.CoveredError
		invisible *rod.InvisibleShapeError
		notInter  *rod.NotInteractableError
		noPointer *rod.NoPointerEventsError
	)
	switch {
	case errors.Is(err, cdp.ErrSessionNotFound),
		errors.Is(err, cdp.ErrNotAttachedToActivePage),
		errors.Is(err, cdp.ErrCtxNotFound):
		return fmt.Errorf("%w: %v", engine.ErrDetached, err)
	case errors.Is(err, cdp.ErrCtxDestroyed),
		errors.Is(err, cdp.ErrObjNotFound),
		errors.As(err, &notFound):
		return fmt.Errorf("stale element: %w: %v", engine.ErrNoElement, err)
	case errors.As(err, &elMissing):
		return fmt.Errorf("%w: %v", engine.ErrNoElement, err)
	case errors.As(err, &covered), errors.As(err, &invisible), errors.As(err, &notInter),
		errors.As(err, &noPointer):
		return fmt.Errorf("%w: %v", engine.ErrNotInteractable, err)
	}
	return err
}
