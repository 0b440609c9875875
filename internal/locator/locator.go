// Package locator builds semantic element references and resolves them
// against a surface. A Ref is never a live handle: every Resolve queries
// the current document again.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/surface"
)

// ErrNoMatch matches every NoMatchError.
var ErrNoMatch = errors.New("locator matched no element")

// NoMatchError reports a Ref with no candidates on its surface.
type NoMatchError struct {
	Ref     Ref
	Surface string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("%s matched nothing on %s", e.Ref, e.Surface)
}

func (e *NoMatchError) Is(target error) bool { return target == ErrNoMatch }

// Ref is a re-resolvable element reference.
type Ref struct {
	selector string
	hasText  string
	exact    bool
	has      *Ref
	nth      int
	scope    *surface.Surface
	desc     string
}

// CSS references elements matching a CSS selector.
func CSS(selector string) Ref { return Ref{selector: selector, nth: -1} }

// ID references #id.
func ID(id string) Ref {
	r := CSS("#" + id)
	r.desc = "id=" + id
	return r
}

// Class references .name.
func Class(name string) Ref {
	r := CSS("." + name)
	r.desc = "class=" + name
	return r
}

// TestID references the data-test attribute the SauceDemo markup carries.
func TestID(id string) Ref {
	r := CSS(fmt.Sprintf("[data-test=%q]", id))
	r.desc = "data-test=" + id
	return r
}

// Role references elements by ARIA role, implicit for the common tags,
// optionally narrowed by accessible text.
func Role(role, name string) Ref {
	sel, ok := implicitRoles[role]
	if !ok {
		sel = fmt.Sprintf("[role=%q]", role)
	}
	r := CSS(sel)
	r.hasText = name
	r.exact = name != ""
	r.desc = fmt.Sprintf("role=%s[name=%q]", role, name)
	return r
}

// Text references elements whose trimmed text equals text.
func Text(text string) Ref {
	r := CSS("a, button, span, div, p, h1, h2, h3, h4, h5, li, label, td")
	r.hasText = text
	r.exact = true
	r.desc = fmt.Sprintf("text=%q", text)
	return r
}

var implicitRoles = map[string]string{
	"button":   `button, input[type="button"], input[type="submit"], [role="button"]`,
	"link":     `a[href], [role="link"]`,
	"textbox":  `input:not([type]), input[type="text"], input[type="password"], input[type="email"], textarea, [role="textbox"]`,
	"checkbox": `input[type="checkbox"], [role="checkbox"]`,
	"heading":  `h1, h2, h3, h4, h5, h6, [role="heading"]`,
	"combobox": `select, [role="combobox"]`,
}

// WithText keeps candidates whose text contains text.
func (r Ref) WithText(text string) Ref {
	r.hasText = text
	r.exact = false
	r.desc = ""
	return r
}

// Has keeps candidates with a descendant matching child.
func (r Ref) Has(child Ref) Ref {
	c := child
	c.scope = nil
	r.has = &c
	r.desc = ""
	return r
}

// Nth picks the i-th candidate, zero based.
func (r Ref) Nth(i int) Ref {
	r.nth = i
	return r
}

// First is Nth(0).
func (r Ref) First() Ref { return r.Nth(0) }

// In scopes the Ref to a surface. Unscoped Refs resolve against whatever
// surface the caller passes.
func (r Ref) In(s *surface.Surface) Ref {
	r.scope = s
	return r
}

// Scope returns the surface the Ref is bound to, if any.
func (r Ref) Scope() *surface.Surface { return r.scope }

// Selector returns the underlying CSS selector.
func (r Ref) Selector() string { return r.selector }

func (r Ref) String() string {
	var b strings.Builder
	if r.desc != "" {
		b.WriteString(r.desc)
	} else {
		b.WriteString(r.selector)
		if r.hasText != "" {
			fmt.Fprintf(&b, " >> text=%q", r.hasText)
		}
		if r.has != nil {
			fmt.Fprintf(&b, " >> has(%s)", r.has)
		}
	}
	if r.nth >= 0 {
		fmt.Fprintf(&b, " >> nth=%d", r.nth)
	}
	return b.String()
}

// target picks the Ref's own scope over the fallback.
func (r Ref) target(fallback *surface.Surface) *surface.Surface {
	if r.scope != nil {
		return r.scope
	}
	return fallback
}

type queryer interface {
	QueryAll(ctx context.Context, selector string) ([]engine.Element, error)
}

// ResolveAll returns every element matching r on s, in document order.
func ResolveAll(ctx context.Context, s *surface.Surface, r Ref) ([]engine.Element, error) {
	s = r.target(s)
	if err := s.CheckAttached(ctx); err != nil {
		return nil, err
	}
	els, err := r.collect(ctx, s.Page())
	if err != nil {
		if surface.IsDetached(err) {
			return nil, &surface.DetachedError{Surface: s.String(), Cause: err}
		}
		return nil, fmt.Errorf("resolve %s: %w", r, err)
	}
	if r.nth >= 0 {
		if r.nth >= len(els) {
			return nil, nil
		}
		return els[r.nth : r.nth+1], nil
	}
	return els, nil
}

// Resolve returns the single element r designates on s: the nth candidate
// when Nth was set, the first otherwise.
func Resolve(ctx context.Context, s *surface.Surface, r Ref) (engine.Element, error) {
	els, err := ResolveAll(ctx, s, r)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, &NoMatchError{Ref: r, Surface: r.target(s).String()}
	}
	return els[0], nil
}

// Count returns how many elements r matches on s.
func Count(ctx context.Context, s *surface.Surface, r Ref) (int, error) {
	els, err := ResolveAll(ctx, s, r)
	return len(els), err
}

func (r Ref) collect(ctx context.Context, q queryer) ([]engine.Element, error) {
	cands, err := q.QueryAll(ctx, r.selector)
	if err != nil {
		return nil, err
	}
	if r.hasText == "" && r.has == nil {
		return cands, nil
	}
	out := cands[:0:0]
	for _, el := range cands {
		ok, err := r.filter(ctx, el)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, el)
		}
	}
	return out, nil
}

func (r Ref) filter(ctx context.Context, el engine.Element) (bool, error) {
	if r.hasText != "" {
		text, err := accessibleText(ctx, el)
		if err != nil {
			return false, err
		}
		if r.exact && text != r.hasText {
			return false, nil
		}
		if !r.exact && !strings.Contains(text, r.hasText) {
			return false, nil
		}
	}
	if r.has != nil {
		// nth on a child filter selects among the child's matches.
		child := *r.has
		child.nth = -1
		kids, err := child.collect(ctx, el)
		if err != nil {
			return false, err
		}
		if r.has.nth >= 0 {
			return len(kids) > r.has.nth, nil
		}
		return len(kids) > 0, nil
	}
	return true, nil
}

// accessibleText is the element text, falling back to the value and
// aria-label attributes for elements without text content.
func accessibleText(ctx context.Context, el engine.Element) (string, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	if text = strings.TrimSpace(text); text != "" {
		return text, nil
	}
	for _, attr := range []string{"value", "aria-label"} {
		v, ok, err := el.Attribute(ctx, attr)
		if err != nil {
			return "", err
		}
		if ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", nil
}
