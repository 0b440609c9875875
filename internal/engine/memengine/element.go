package memengine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/v0xg/uiharness/internal/engine"
)

var (
	errNotVisible = fmt.Errorf("%w: not visible", engine.ErrNotInteractable)
	errDisabled   = fmt.Errorf("%w: disabled", engine.ErrNotInteractable)
)

// Element is a node of a Page document. It goes stale when the page
// renders a new document.
type Element struct {
	p   *Page
	sel *goquery.Selection
	gen int64
}

var _ engine.Element = (*Element)(nil)

// lock takes the page lock and checks the node still belongs to the live
// document. On success the caller must unlock.
func (e *Element) lock() error {
	e.p.mu.Lock()
	if e.p.detached() {
		e.p.mu.Unlock()
		return engine.ErrDetached
	}
	if e.gen != e.p.gen.Load() {
		e.p.mu.Unlock()
		return fmt.Errorf("%w: stale element", engine.ErrNoElement)
	}
	return nil
}

func (e *Element) actionable() error {
	if !visible(e.sel) {
		return errNotVisible
	}
	if _, off := e.sel.Attr("disabled"); off {
		return errDisabled
	}
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.p.mu.Unlock()
	if err := e.actionable(); err != nil {
		return err
	}
	return e.p.dispatch(Event{Type: EventClick, Target: e.sel})
}

func (e *Element) Fill(ctx context.Context, text string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.p.mu.Unlock()
	if err := e.actionable(); err != nil {
		return err
	}
	switch goquery.NodeName(e.sel) {
	case "textarea":
		e.sel.SetText(text)
	case "input":
		switch typ, _ := e.sel.Attr("type"); typ {
		case "checkbox", "radio", "file", "submit", "button":
			return fmt.Errorf("cannot fill input of type %s", typ)
		}
		e.sel.SetAttr("value", text)
	default:
		return fmt.Errorf("cannot fill <%s>", goquery.NodeName(e.sel))
	}
	return e.p.dispatch(Event{Type: EventInput, Target: e.sel, Value: text})
}

func (e *Element) Select(ctx context.Context, value string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.p.mu.Unlock()
	if err := e.actionable(); err != nil {
		return err
	}
	if goquery.NodeName(e.sel) != "select" {
		return fmt.Errorf("cannot select on <%s>", goquery.NodeName(e.sel))
	}
	options := e.sel.Find("option")
	match := options.FilterFunction(func(_ int, o *goquery.Selection) bool {
		v, ok := o.Attr("value")
		return (ok && v == value) || strings.TrimSpace(o.Text()) == value
	}).First()
	if match.Length() == 0 {
		return fmt.Errorf("no option %q", value)
	}
	options.RemoveAttr("selected")
	match.SetAttr("selected", "selected")
	v, ok := match.Attr("value")
	if !ok {
		v = strings.TrimSpace(match.Text())
	}
	return e.p.dispatch(Event{Type: EventChange, Target: e.sel, Value: v})
}

func (e *Element) Hover(ctx context.Context) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.p.mu.Unlock()
	if !visible(e.sel) {
		return errNotVisible
	}
	return e.p.dispatch(Event{Type: EventHover, Target: e.sel})
}

// DragTo drops e on target. Both must be visible nodes of the same live
// document.
func (e *Element) DragTo(ctx context.Context, target engine.Element) error {
	dst, ok := target.(*Element)
	if !ok || dst.p != e.p {
		return errors.New("drop target is not on the same page")
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.p.mu.Unlock()
	if dst.gen != e.gen {
		return fmt.Errorf("%w: stale drop target", engine.ErrNoElement)
	}
	if err := e.actionable(); err != nil {
		return err
	}
	if !visible(dst.sel) {
		return errNotVisible
	}
	return e.p.dispatch(Event{Type: EventDrop, Target: dst.sel, Source: e.sel})
}

func (e *Element) SetFiles(ctx context.Context, paths []string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.p.mu.Unlock()
	if typ, _ := e.sel.Attr("type"); goquery.NodeName(e.sel) != "input" || typ != "file" {
		return errors.New("element is not a file input")
	}
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = filepath.Base(path)
	}
	e.sel.SetAttr(filesAttr, strings.Join(names, "\n"))
	return e.p.dispatch(Event{Type: EventChange, Target: e.sel})
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if err := e.lock(); err != nil {
		return "", err
	}
	defer e.p.mu.Unlock()
	return e.sel.Text(), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	if err := e.lock(); err != nil {
		return "", false, err
	}
	defer e.p.mu.Unlock()
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if err := e.lock(); err != nil {
		return false, err
	}
	defer e.p.mu.Unlock()
	return visible(e.sel), nil
}

func (e *Element) WaitActionable(ctx context.Context) error {
	for {
		if err := e.lock(); err != nil {
			return err
		}
		err := e.actionable()
		e.p.mu.Unlock()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", err, ctx.Err())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Center lays elements out in document order, one row each.
func (e *Element) Center(ctx context.Context) (float64, float64, error) {
	if err := e.lock(); err != nil {
		return 0, 0, err
	}
	defer e.p.mu.Unlock()
	opts := e.p.ctx.browser.opts
	idx := e.p.doc.Find("body *").IndexOfSelection(e.sel)
	if idx < 0 {
		idx = 0
	}
	return float64(opts.Width) / 2, float64(8 + (idx*12)%(opts.Height-8)), nil
}

func (e *Element) Query(ctx context.Context, selector string) (engine.Element, error) {
	els, err := e.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", engine.ErrNoElement, selector)
	}
	return els[0], nil
}

func (e *Element) QueryAll(ctx context.Context, selector string) ([]engine.Element, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.p.mu.Unlock()
	return e.p.wrap(e.sel.Find(selector)), nil
}

func (e *Element) Frame(ctx context.Context) (engine.Page, error) {
	if err := e.lock(); err != nil {
		return nil, err
	}
	defer e.p.mu.Unlock()
	switch goquery.NodeName(e.sel) {
	case "iframe", "frame":
		return e.p.childFor(e.sel.Nodes[0]), nil
	}
	return nil, engine.ErrNotFrame
}

// visible walks up from the node looking for anything that hides it.
func visible(s *goquery.Selection) bool {
	if s.Length() == 0 {
		return false
	}
	for n := s.Nodes[0]; n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		if n.Data == "head" || n.Data == "script" || n.Data == "style" {
			return false
		}
		for _, a := range n.Attr {
			switch a.Key {
			case "hidden":
				return false
			case "style":
				if strings.Contains(strings.ReplaceAll(strings.ToLower(a.Val), " ", ""), "display:none") {
					return false
				}
			case "class":
				for _, c := range strings.Fields(a.Val) {
					if c == "hidden" {
						return false
					}
				}
			case "type":
				if n.Data == "input" && a.Val == "hidden" {
					return false
				}
			}
		}
	}
	return true
}
