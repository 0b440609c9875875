package rodengine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/uiharness/internal/engine"
)

// Element wraps a rod element. Every call rebinds it to the caller's ctx.
type Element struct {
	page *Page
	rod  *rod.Element
}

var _ engine.Element = (*Element)(nil)

func (e *Element) on(ctx context.Context) *rod.Element { return e.rod.Context(ctx) }

func (e *Element) Click(ctx context.Context) error {
	if err := e.glide(ctx); err != nil {
		return err
	}
	return wrap(e.on(ctx).Click(proto.InputMouseButtonLeft, 1))
}

// Fill replaces the element's value. An empty text clears it.
func (e *Element) Fill(ctx context.Context, text string) error {
	el := e.on(ctx)
	if err := el.SelectAllText(); err != nil {
		return wrap(err)
	}
	if text == "" {
		return wrap(e.page.rod.Context(ctx).Keyboard.Type(input.Backspace))
	}
	return wrap(el.Input(text))
}

// Select picks an option by value, falling back to its visible label.
func (e *Element) Select(ctx context.Context, value string) error {
	el := e.on(ctx)
	err := el.Select([]string{fmt.Sprintf("option[value=%q]", value)}, true, rod.SelectorTypeCSSSector)
	if err == nil {
		return nil
	}
	label := "^" + regexp.QuoteMeta(value) + "$"
	if lerr := el.Select([]string{label}, true, rod.SelectorTypeText); lerr != nil {
		return fmt.Errorf("select %q: %w", value, wrap(err))
	}
	return nil
}

func (e *Element) Hover(ctx context.Context) error {
	if err := e.glide(ctx); err != nil {
		return err
	}
	return wrap(e.on(ctx).Hover())
}

// dragIntercept bounds the wait for Chrome to report an HTML5 drag after
// the pointer leaves the source.
const dragIntercept = 500 * time.Millisecond

// DragTo drags with the real mouse. HTML5 drags are intercepted and
// replayed as drag events on the target, since Chrome does not run them
// for synthetic input.
func (e *Element) DragTo(ctx context.Context, target engine.Element) error {
	dst, ok := target.(*Element)
	if !ok || dst.page != e.page {
		return errors.New("drop target is not on the same page")
	}
	if err := e.on(ctx).ScrollIntoView(); err != nil {
		return wrap(err)
	}
	x0, y0, err := e.Center(ctx)
	if err != nil {
		return err
	}
	x1, y1, err := dst.Center(ctx)
	if err != nil {
		return err
	}

	p := e.page.rod.Context(ctx)
	if err := (proto.InputSetInterceptDrags{Enabled: true}).Call(p); err != nil {
		return wrap(err)
	}
	defer func() { _ = proto.InputSetInterceptDrags{Enabled: false}.Call(e.page.rod) }()

	wctx, cancel := context.WithTimeout(ctx, dragIntercept)
	defer cancel()
	var drag proto.InputDragIntercepted
	intercepted := p.Context(wctx).WaitEvent(&drag)

	mouse := p.Mouse
	from, to := proto.Point{X: x0, Y: y0}, proto.Point{X: x1, Y: y1}
	if err := mouse.MoveTo(from); err != nil {
		return wrap(err)
	}
	if err := mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return wrap(err)
	}
	for _, pt := range path(from, to, 4) {
		if err := mouse.MoveTo(pt); err != nil {
			return wrap(err)
		}
	}
	intercepted()
	if drag.Data != nil {
		for _, typ := range []proto.InputDispatchDragEventType{
			proto.InputDispatchDragEventTypeDragEnter,
			proto.InputDispatchDragEventTypeDragOver,
			proto.InputDispatchDragEventTypeDrop,
		} {
			ev := proto.InputDispatchDragEvent{Type: typ, X: x1, Y: y1, Data: drag.Data}
			if err := ev.Call(p); err != nil {
				return wrap(err)
			}
		}
	}
	return wrap(mouse.Up(proto.InputMouseButtonLeft, 1))
}

func (e *Element) SetFiles(ctx context.Context, paths []string) error {
	return wrap(e.on(ctx).SetFiles(paths))
}

func (e *Element) Text(ctx context.Context) (string, error) {
	s, err := e.on(ctx).Text()
	return s, wrap(err)
}

// Attribute reads name from the element. "value" and the boolean form
// states read the live property so user input is visible.
func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	el := e.on(ctx)
	switch name {
	case "checked", "disabled", "selected":
		v, err := el.Property(name)
		if err != nil {
			return "", false, wrap(err)
		}
		if !v.Bool() {
			return "", false, nil
		}
		return name, true, nil
	case "value":
		v, err := el.Property("value")
		if err != nil {
			return "", false, wrap(err)
		}
		if v.Nil() {
			return "", false, nil
		}
		return v.Str(), true, nil
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, wrap(err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	ok, err := e.on(ctx).Visible()
	return ok, wrap(err)
}

func (e *Element) WaitActionable(ctx context.Context) error {
	el := e.on(ctx)
	if err := el.WaitVisible(); err != nil {
		return wrap(err)
	}
	return wrap(el.WaitEnabled())
}

func (e *Element) Center(ctx context.Context) (float64, float64, error) {
	shape, err := e.on(ctx).Shape()
	if err != nil {
		return 0, 0, wrap(err)
	}
	if len(shape.Quads) == 0 {
		return 0, 0, fmt.Errorf("element has no box: %w", engine.ErrNotInteractable)
	}
	x, y := quadCenter(shape.Quads[0])
	return x, y, nil
}

func (e *Element) Query(ctx context.Context, selector string) (engine.Element, error) {
	has, el, err := e.on(ctx).Has(selector)
	if err != nil {
		return nil, wrap(err)
	}
	if !has {
		return nil, engine.ErrNoElement
	}
	return e.page.element(el), nil
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]engine.Element, error) {
	els, err := e.on(ctx).Elements(selector)
	if err != nil {
		return nil, wrap(err)
	}
	return e.page.elements(els), nil
}

func (e *Element) Frame(ctx context.Context) (engine.Page, error) {
	el := e.on(ctx)
	tag, err := el.Eval(`() => this.tagName`)
	if err != nil {
		return nil, wrap(err)
	}
	if t := strings.ToLower(tag.Value.Str()); t != "iframe" && t != "frame" {
		return nil, engine.ErrNotFrame
	}
	fp, err := el.Frame()
	if err != nil {
		return nil, wrap(err)
	}
	return e.page.ctx.wrapPage(fp.Context(context.Background()), true), nil
}

// glide moves the pointer to the element in eased steps when pointer
// animation is on. Frame documents click without it: their mouse lives
// on the top page.
func (e *Element) glide(ctx context.Context) error {
	steps := e.page.ctx.browser.opts.PointerSteps
	if steps <= 0 || e.page.frame {
		return nil
	}
	el := e.on(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return wrap(err)
	}
	x, y, err := e.Center(ctx)
	if err != nil {
		return err
	}
	mouse := e.page.rod.Context(ctx).Mouse
	for _, pt := range path(mouse.Position(), proto.Point{X: x, Y: y}, steps) {
		if err := mouse.MoveTo(pt); err != nil {
			return wrap(err)
		}
	}
	return nil
}

// path returns steps eased points from 'from' to 'to', ending on 'to'.
func path(from, to proto.Point, steps int) []proto.Point {
	pts := make([]proto.Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := easeInOutQuad(float64(i) / float64(steps))
		pts = append(pts, proto.Point{
			X: from.X + t*(to.X-from.X),
			Y: from.Y + t*(to.Y-from.Y),
		})
	}
	return pts
}

func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - (-2*t+2)*(-2*t+2)/2
}

// quadCenter averages the four corners of a content quad.
func quadCenter(q proto.DOMQuad) (float64, float64) {
	return (q[0] + q[2] + q[4] + q[6]) / 4, (q[1] + q[3] + q[5] + q[7]) / 4
}
