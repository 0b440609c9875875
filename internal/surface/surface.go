// Package surface tracks the browsing contexts a test touches (the top page,
// frames and popups) and correlates dialogs, popups and downloads with the
// actions that spawned them.
package surface

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/v0xg/uiharness/internal/engine"
)

// Kind classifies a Surface.
type Kind int

const (
	KindTop Kind = iota
	KindFrame
	KindPopup
)

func (k Kind) String() string {
	switch k {
	case KindTop:
		return "top"
	case KindFrame:
		return "frame"
	case KindPopup:
		return "popup"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Surface is one addressable browsing context.
type Surface struct {
	id     string
	kind   Kind
	parent *Surface
	name   string
	page   engine.Page
	closed atomic.Bool
}

func (s *Surface) ID() string        { return s.id }
func (s *Surface) Kind() Kind        { return s.kind }
func (s *Surface) Parent() *Surface  { return s.parent }
func (s *Surface) Name() string      { return s.name }
func (s *Surface) Page() engine.Page { return s.page }

// Closed reports whether the surface was closed. Frames close with their
// parent; popups outlive their opener.
func (s *Surface) Closed() bool {
	if s.closed.Load() {
		return true
	}
	if s.kind == KindFrame && s.parent != nil {
		return s.parent.Closed()
	}
	return false
}

// CheckAttached returns a DetachedError when the surface is closed or the
// engine reports its context gone.
func (s *Surface) CheckAttached(ctx context.Context) error {
	if s.Closed() {
		return &DetachedError{Surface: s.String()}
	}
	if s.page.Detached(ctx) {
		s.closed.Store(true)
		return &DetachedError{Surface: s.String(), Cause: engine.ErrDetached}
	}
	return nil
}

func (s *Surface) String() string {
	short := s.id
	if len(short) > 8 {
		short = short[:8]
	}
	if s.name != "" {
		return fmt.Sprintf("%s:%s(%s)", s.kind, short, s.name)
	}
	return fmt.Sprintf("%s:%s", s.kind, short)
}

type pageKey struct {
	parent string
	page   string
}

// Registry is the set of surfaces of one test. It is owned by a
// Coordinator; page objects only hold references to its surfaces.
type Registry struct {
	mu     sync.Mutex
	root   *Surface
	byID   map[string]*Surface
	byPage map[pageKey]*Surface
	order  []*Surface
}

// NewRegistry starts a registry rooted at the test's top-level page.
func NewRegistry(root engine.Page) *Registry {
	r := &Registry{
		byID:   make(map[string]*Surface),
		byPage: make(map[pageKey]*Surface),
	}
	r.root = r.track(KindTop, nil, "", root)
	return r
}

// Root returns the top-level surface.
func (r *Registry) Root() *Surface { return r.root }

// Get looks a surface up by id.
func (r *Registry) Get(id string) (*Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

// Surfaces lists the open surfaces in creation order.
func (r *Registry) Surfaces() []*Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Surface, 0, len(r.order))
	for _, s := range r.order {
		if !s.Closed() {
			out = append(out, s)
		}
	}
	return out
}

// track registers page under parent, returning the existing surface when
// the same engine context was already tracked there.
func (r *Registry) track(kind Kind, parent *Surface, name string, page engine.Page) *Surface {
	key := pageKey{page: page.ID()}
	if parent != nil {
		key.parent = parent.id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byPage[key]; ok && !s.Closed() {
		return s
	}
	s := &Surface{
		id:     uuid.NewString(),
		kind:   kind,
		parent: parent,
		name:   name,
		page:   page,
	}
	r.byID[s.id] = s
	r.byPage[key] = s
	r.order = append(r.order, s)
	return s
}

// all returns every surface, closed ones included, newest first.
func (r *Registry) all() []*Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Surface, len(r.order))
	for i, s := range r.order {
		out[len(r.order)-1-i] = s
	}
	return out
}
