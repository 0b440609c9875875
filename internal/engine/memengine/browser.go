// Package memengine is an in-memory engine.Browser. Pages are goquery
// documents rendered by simulated Sites, so suites and the harness itself
// can be exercised without launching Chromium.
package memengine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/engine"
)

// EventType is a DOM event dispatched to a Site.
type EventType string

const (
	EventClick  EventType = "click"
	EventInput  EventType = "input"
	EventChange EventType = "change"
	EventSubmit EventType = "submit"
	EventHover  EventType = "hover"
	EventDrop   EventType = "drop"
)

// Event is one user interaction. Target is the element the event fired on.
// For drops Target is the drop zone and Source the dragged element.
type Event struct {
	Type   EventType
	Target *goquery.Selection
	Source *goquery.Selection
	Value  string
}

// Site simulates one web application.
type Site interface {
	// Host is matched against the host of navigated URLs.
	Host() string
	// NewState returns the per-context state, e.g. cookies and storage.
	NewState() any
	// Render returns the HTML document for u. Returning a *Redirect
	// navigates elsewhere instead.
	Render(t *Tab, u *url.URL) (string, error)
	// Handle reacts to an event. Unhandled events get the default action
	// (links navigate, checkboxes toggle).
	Handle(t *Tab, ev Event) (bool, error)
}

// Redirect is returned by Site.Render to send the tab to URL.
type Redirect struct{ URL string }

func (r *Redirect) Error() string { return "redirect to " + r.URL }

// ErrNotFound is returned for URLs no site serves.
var ErrNotFound = errors.New("no site serves url")

// Options configures a Browser.
type Options struct {
	Width, Height int
	Logger        *zap.Logger
}

// Browser hosts a fixed set of Sites.
type Browser struct {
	sites  map[string]Site
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	contexts []*Context
	closed   bool
}

var _ engine.Browser = (*Browser)(nil)

// New returns a Browser serving sites.
func New(opts Options, sites ...Site) *Browser {
	if opts.Width <= 0 {
		opts.Width = 320
	}
	if opts.Height <= 0 {
		opts.Height = 200
	}
	b := &Browser{sites: make(map[string]Site), opts: opts, logger: opts.Logger}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	for _, s := range sites {
		b.sites[s.Host()] = s
	}
	return b
}

// NewContext returns an isolated context with fresh site state.
func (b *Browser) NewContext(ctx context.Context) (engine.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("new context: %w", engine.ErrDetached)
	}
	c := &Context{browser: b, state: make(map[string]any)}
	b.contexts = append(b.contexts, c)
	return c, nil
}

// Close closes every context.
func (b *Browser) Close() error {
	b.mu.Lock()
	contexts := b.contexts
	b.contexts = nil
	b.closed = true
	b.mu.Unlock()

	var errs []error
	for _, c := range contexts {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (b *Browser) site(u *url.URL) (Site, bool) {
	s, ok := b.sites[u.Host]
	return s, ok
}

// Context is an isolated set of pages sharing site state.
type Context struct {
	browser *Browser

	mu     sync.Mutex
	state  map[string]any
	pages  []*Page
	closed bool
}

var _ engine.Context = (*Context)(nil)

// NewPage opens a blank top-level page.
func (c *Context) NewPage(ctx context.Context) (engine.Page, error) {
	return c.newPage(nil)
}

func (c *Context) newPage(opener *Page) (*Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, fmt.Errorf("new page: %w", engine.ErrDetached)
	}
	p := newPage(c, nil, opener)
	c.pages = append(c.pages, p)
	return p, nil
}

// Close closes every page of the context.
func (c *Context) Close() error {
	c.mu.Lock()
	pages := c.pages
	c.pages = nil
	c.closed = true
	c.mu.Unlock()

	for _, p := range pages {
		p.close()
	}
	return nil
}

// Pages lists the open top-level pages, popups included.
func (c *Context) Pages() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Page, 0, len(c.pages))
	for _, p := range c.pages {
		if !p.closed.Load() {
			out = append(out, p)
		}
	}
	return out
}

func (c *Context) siteState(s Site) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.state[s.Host()]
	if !ok {
		st = s.NewState()
		c.state[s.Host()] = st
	}
	return st
}
