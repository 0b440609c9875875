package memengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/v0xg/uiharness/internal/engine"
)

const maxRedirects = 10

// maxFrameDepth caps frame nesting; deeper frames stay blank.
const maxFrameDepth = 16

// Page is a top-level page, popup or frame. Site handlers run with mu
// held; only ShowDialog releases it while the dialog is open.
type Page struct {
	id     string
	ctx    *Context
	opener *Page

	// Frames only.
	parent    *Page
	parentGen int64
	frameNode *html.Node

	name   string
	closed atomic.Bool
	gen    atomic.Int64
	ev     events

	mu       sync.Mutex
	url      *url.URL
	doc      *goquery.Document
	children map[*html.Node]*Page
	timers   map[*time.Timer]struct{}
	pending  atomic.Int32
	// repaint is a re-render requested by the document being rendered.
	repaint time.Duration
}

var _ engine.Page = (*Page)(nil)

func newPage(c *Context, parent, opener *Page) *Page {
	p := &Page{
		id:       uuid.NewString(),
		ctx:      c,
		parent:   parent,
		opener:   opener,
		url:      &url.URL{Scheme: "about", Opaque: "blank"},
		children: make(map[*html.Node]*Page),
		timers:   make(map[*time.Timer]struct{}),
	}
	p.doc, _ = goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body></body></html>"))
	if parent != nil {
		p.parentGen = parent.gen.Load()
	}
	return p
}

func (p *Page) ID() string { return p.id }

// Opener returns the page that opened this popup, if any.
func (p *Page) Opener() *Page { return p.opener }

func (p *Page) Name(ctx context.Context) (string, error) {
	if p.detached() {
		return "", engine.ErrDetached
	}
	return p.name, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if p.detached() {
		return "", engine.ErrDetached
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url.String(), nil
}

func (p *Page) Navigate(ctx context.Context, raw string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached() {
		return engine.ErrDetached
	}
	return p.navigate(raw)
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached() {
		return engine.ErrDetached
	}
	return p.navigate(p.url.String())
}

// WaitIdle waits until no timer of the current document is pending.
func (p *Page) WaitIdle(ctx context.Context) error {
	for {
		if p.detached() {
			return engine.ErrDetached
		}
		if p.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (p *Page) Query(ctx context.Context, selector string) (engine.Element, error) {
	els, err := p.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", engine.ErrNoElement, selector)
	}
	return els[0], nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]engine.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached() {
		return nil, engine.ErrDetached
	}
	return p.wrap(p.doc.Find(selector)), nil
}

func (p *Page) wrap(s *goquery.Selection) []engine.Element {
	gen := p.gen.Load()
	out := make([]engine.Element, 0, s.Length())
	s.Each(func(_ int, one *goquery.Selection) {
		out = append(out, &Element{p: p, sel: one, gen: gen})
	})
	return out
}

func (p *Page) ChildFrames(ctx context.Context) ([]engine.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.detached() {
		return nil, engine.ErrDetached
	}
	var out []engine.Page
	p.doc.Find("iframe, frame").Each(func(_ int, s *goquery.Selection) {
		out = append(out, p.childFor(s.Nodes[0]))
	})
	return out, nil
}

// childFor returns the frame page of node, loading it on first use.
func (p *Page) childFor(node *html.Node) *Page {
	if c, ok := p.children[node]; ok {
		return c
	}
	c := newPage(p.ctx, p, nil)
	c.frameNode = node
	s := goquery.NewDocumentFromNode(node).Selection
	c.name, _ = s.Attr("name")
	p.children[node] = c

	c.mu.Lock()
	defer c.mu.Unlock()
	if doc, ok := s.Attr("srcdoc"); ok {
		c.url = p.url
		c.setDoc(c.url, doc, true)
	} else if src, ok := s.Attr("src"); ok && src != "" {
		target := p.resolve(src)
		if reason := p.frameBlocked(target); reason != "" {
			p.ctx.browser.logger.Debug("frame not loaded", zap.String("src", src), zap.String("reason", reason))
			return c
		}
		if err := c.navigate(target); err != nil {
			p.ctx.browser.logger.Debug("frame load failed", zap.String("src", src), zap.Error(err))
		}
	}
	return c
}

// frameBlocked reports why a child frame of p must not load target: the
// nesting is too deep or target is already loaded by p or an ancestor.
func (p *Page) frameBlocked(target string) string {
	depth := 0
	for a := p; a != nil; a = a.parent {
		depth++
		if a.url != nil && a.url.String() == target {
			return "recursive frame"
		}
	}
	if depth >= maxFrameDepth {
		return "frame nesting too deep"
	}
	return ""
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	key := fmt.Sprintf("%s#%d", p.url, p.gen.Load())
	p.mu.Unlock()
	if p.detached() {
		return nil, engine.ErrDetached
	}

	h := fnv.New32a()
	h.Write([]byte(key))
	sum := h.Sum32()
	opts := p.ctx.browser.opts
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	fill := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Page) Detached(ctx context.Context) bool { return p.detached() }

func (p *Page) detached() bool {
	if p.closed.Load() {
		return true
	}
	if p.parent != nil {
		return p.parent.detached() || p.parent.gen.Load() != p.parentGen
	}
	return false
}

func (p *Page) Close(ctx context.Context) error {
	p.close()
	return nil
}

func (p *Page) close() {
	if p.closed.Swap(true) {
		return
	}
	p.mu.Lock()
	p.stopTimers()
	p.mu.Unlock()
}

func (p *Page) top() *Page {
	t := p
	for t.parent != nil {
		t = t.parent
	}
	return t
}

func (p *Page) resolve(raw string) string {
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return p.url.ResolveReference(ref).String()
}

// navigate loads raw, following site redirects. mu must be held.
func (p *Page) navigate(raw string) error { return p.load(raw, true) }

// load renders raw into the page. A fresh load attaches every frame of the
// new document; a repaint only attaches frames the old one lacked.
func (p *Page) load(raw string, fresh bool) error {
	target := p.resolve(raw)
	for i := 0; i < maxRedirects; i++ {
		u, err := url.Parse(target)
		if err != nil {
			return fmt.Errorf("parse url %q: %w", target, err)
		}
		if u.Scheme == "about" {
			p.setDoc(u, "<html><head></head><body></body></html>", fresh)
			return nil
		}
		site, ok := p.ctx.browser.site(u)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, target)
		}
		p.repaint = 0
		doc, err := site.Render(p.tab(site), u)
		var redirect *Redirect
		if errors.As(err, &redirect) {
			next, perr := url.Parse(redirect.URL)
			if perr != nil {
				return fmt.Errorf("bad redirect from %s: %w", target, perr)
			}
			target = u.ResolveReference(next).String()
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", target, err)
		}
		p.setDoc(u, doc, fresh)
		return nil
	}
	return fmt.Errorf("too many redirects loading %s", raw)
}

// setDoc replaces the document. Elements and frames of the old document
// go stale, its timers are cancelled and frames are announced: all of them
// on a fresh load, the newly appearing ones on a repaint. mu must be held.
func (p *Page) setDoc(u *url.URL, markup string, fresh bool) {
	before := map[string]bool{}
	if !fresh {
		before = frameKeys(p.doc)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	}
	p.stopTimers()
	p.url = u
	p.doc = doc
	p.gen.Add(1)
	p.children = make(map[*html.Node]*Page)

	doc.Find("iframe, frame").Each(func(_ int, s *goquery.Selection) {
		if before[frameKey(s)] {
			return
		}
		child := p.childFor(s.Nodes[0])
		p.top().ev.deliver(kindFrame, child)
	})

	if d := p.repaint; d > 0 {
		p.repaint = 0
		p.tab(p.siteNow()).Later(d, func(t *Tab) { _ = t.Rerender() })
	}
}

func frameKeys(doc *goquery.Document) map[string]bool {
	keys := make(map[string]bool)
	if doc == nil {
		return keys
	}
	doc.Find("iframe, frame").Each(func(_ int, s *goquery.Selection) {
		keys[frameKey(s)] = true
	})
	return keys
}

func frameKey(s *goquery.Selection) string {
	name, _ := s.Attr("name")
	src, _ := s.Attr("src")
	return name + "|" + src
}

func (p *Page) stopTimers() {
	for t := range p.timers {
		if t.Stop() {
			p.pending.Add(-1)
		}
	}
	p.timers = make(map[*time.Timer]struct{})
}

func (p *Page) tab(site Site) *Tab { return &Tab{p: p, site: site} }

func (p *Page) siteNow() Site {
	s, _ := p.ctx.browser.site(p.url)
	return s
}

// dispatch runs ev through the site and falls back to the default action.
// mu must be held.
func (p *Page) dispatch(ev Event) error {
	if site := p.siteNow(); site != nil {
		handled, err := site.Handle(p.tab(site), ev)
		if err != nil || handled {
			return err
		}
	}
	return p.defaultAction(ev)
}

func (p *Page) defaultAction(ev Event) error {
	if ev.Type != EventClick {
		return nil
	}
	t := ev.Target
	if link := t.Closest("a"); link.Length() > 0 {
		href, ok := link.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return nil
		}
		if target, _ := link.Attr("target"); target == "_blank" {
			return p.tab(p.siteNow()).OpenPopup(href, "")
		}
		return p.navigate(href)
	}
	switch goquery.NodeName(t) {
	case "input":
		switch typ, _ := t.Attr("type"); typ {
		case "checkbox":
			if _, on := t.Attr("checked"); on {
				t.RemoveAttr("checked")
			} else {
				t.SetAttr("checked", "checked")
			}
			return p.dispatch(Event{Type: EventChange, Target: t})
		case "radio":
			name, _ := t.Attr("name")
			p.doc.Find(fmt.Sprintf("input[type=radio][name=%q]", name)).RemoveAttr("checked")
			t.SetAttr("checked", "checked")
			return p.dispatch(Event{Type: EventChange, Target: t})
		case "submit":
			return p.submit(t)
		}
	case "button":
		if typ, ok := t.Attr("type"); !ok || typ == "submit" {
			return p.submit(t)
		}
	}
	return nil
}

func (p *Page) submit(t *goquery.Selection) error {
	form := t.Closest("form")
	if form.Length() == 0 {
		return nil
	}
	return p.dispatch(Event{Type: EventSubmit, Target: form})
}
