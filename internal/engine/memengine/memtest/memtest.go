// Package memtest provides a scriptable memengine site for package tests.
package memtest

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/engine/memengine"
)

// Host is the default host of a Site.
const Host = "lab.test"

// Site serves Pages by path. Dynamic pages get the number of times the
// path has been rendered, starting at 1. Clicks maps element ids to
// handlers; Drops maps drop zone ids to handlers given the dragged id.
type Site struct {
	Name    string
	Pages   map[string]string
	Dynamic map[string]func(n int) string
	Clicks  map[string]func(t *memengine.Tab) error
	Drops   map[string]func(t *memengine.Tab, source string) error

	mu      sync.Mutex
	renders map[string]int
}

var _ memengine.Site = (*Site)(nil)

func (s *Site) Host() string {
	if s.Name == "" {
		return Host
	}
	return s.Name
}

func (s *Site) NewState() any { return nil }

// URL returns the absolute URL of path on this site.
func (s *Site) URL(path string) string { return "https://" + s.Host() + path }

// Renders reports how often path has been rendered.
func (s *Site) Renders(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renders[path]
}

func (s *Site) Render(t *memengine.Tab, u *url.URL) (string, error) {
	s.mu.Lock()
	if s.renders == nil {
		s.renders = make(map[string]int)
	}
	s.renders[u.Path]++
	n := s.renders[u.Path]
	s.mu.Unlock()

	if fn, ok := s.Dynamic[u.Path]; ok {
		return fn(n), nil
	}
	if doc, ok := s.Pages[u.Path]; ok {
		return doc, nil
	}
	return "<html><body><h1>Not Found</h1></body></html>", nil
}

func (s *Site) Handle(t *memengine.Tab, ev memengine.Event) (bool, error) {
	id, _ := ev.Target.Attr("id")
	if ev.Type == memengine.EventDrop {
		h, ok := s.Drops[id]
		if !ok {
			return false, nil
		}
		src, _ := ev.Source.Attr("id")
		return true, h(t, src)
	}
	if ev.Type != memengine.EventClick {
		return false, nil
	}
	h, ok := s.Clicks[id]
	if !ok {
		return false, nil
	}
	return true, h(t)
}

// Open starts a browser serving sites and returns a fresh page at raw.
func Open(tb testing.TB, raw string, sites ...memengine.Site) engine.Page {
	tb.Helper()
	b := memengine.New(memengine.Options{}, sites...)
	tb.Cleanup(func() { _ = b.Close() })

	c, err := b.NewContext(context.Background())
	require.NoError(tb, err)
	p, err := c.NewPage(context.Background())
	require.NoError(tb, err)
	require.NoError(tb, p.Navigate(context.Background(), raw))
	return p
}
