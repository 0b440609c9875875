package memengine

import (
	"context"
	"sync"

	"github.com/v0xg/uiharness/internal/engine"
)

type eventKind int

const (
	kindPopup eventKind = iota
	kindFrame
	kindDialog
	kindDownload
)

type listener struct {
	ctx context.Context
	ch  chan any
	dir string
}

// events holds one-shot listeners armed by the Expect* methods.
type events struct {
	mu     sync.Mutex
	byKind map[eventKind][]*listener
}

func (e *events) add(ctx context.Context, kind eventKind, dir string) *listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.byKind == nil {
		e.byKind = make(map[eventKind][]*listener)
	}
	l := &listener{ctx: ctx, ch: make(chan any, 1), dir: dir}
	e.byKind[kind] = append(e.byKind[kind], l)
	return l
}

func (e *events) remove(kind eventKind, l *listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.byKind[kind]
	for i, x := range ls {
		if x == l {
			e.byKind[kind] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// take pops the oldest listener whose context is still live.
func (e *events) take(kind eventKind) *listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.byKind[kind]) > 0 {
		l := e.byKind[kind][0]
		e.byKind[kind] = e.byKind[kind][1:]
		if l.ctx.Err() == nil {
			return l
		}
	}
	return nil
}

// deliver hands v to the oldest listener. It reports false when nobody
// was listening.
func (e *events) deliver(kind eventKind, v any) bool {
	l := e.take(kind)
	if l == nil {
		return false
	}
	l.ch <- v
	return true
}

func await[T any](e *events, ctx context.Context, kind eventKind, dir string) func() (T, error) {
	l := e.add(ctx, kind, dir)
	return func() (T, error) {
		var zero T
		select {
		case v := <-l.ch:
			return v.(T), nil
		case <-ctx.Done():
			e.remove(kind, l)
			// A delivery may have raced the cancellation.
			select {
			case v := <-l.ch:
				return v.(T), nil
			default:
			}
			return zero, ctx.Err()
		}
	}
}

func (p *Page) ExpectPopup(ctx context.Context) func() (engine.Page, error) {
	return await[engine.Page](&p.top().ev, ctx, kindPopup, "")
}

func (p *Page) ExpectFrame(ctx context.Context) func() (engine.Page, error) {
	return await[engine.Page](&p.top().ev, ctx, kindFrame, "")
}

func (p *Page) ExpectDialog(ctx context.Context) func() (engine.Dialog, error) {
	return await[engine.Dialog](&p.top().ev, ctx, kindDialog, "")
}

func (p *Page) ExpectDownload(ctx context.Context, dir string) func() (*engine.Download, error) {
	return await[*engine.Download](&p.top().ev, ctx, kindDownload, dir)
}
