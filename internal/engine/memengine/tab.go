package memengine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/engine"
)

// filesAttr carries the names set through SetFiles.
const filesAttr = "data-mem-files"

// Tab is the handle a Site uses to read and drive the page it renders.
// Its methods must only be called from Render, Handle or a Later callback.
type Tab struct {
	p    *Page
	site Site
}

// URL is the current document URL.
func (t *Tab) URL() *url.URL { return t.p.url }

// Doc is the current document.
func (t *Tab) Doc() *goquery.Document { return t.p.doc }

// IsFrame reports whether the tab is a frame document.
func (t *Tab) IsFrame() bool { return t.p.parent != nil }

// State returns the site's state for this browser context.
func (t *Tab) State() any {
	if t.site == nil {
		return nil
	}
	return t.p.ctx.siteState(t.site)
}

// Logger returns the browser logger.
func (t *Tab) Logger() *zap.Logger { return t.p.ctx.browser.logger }

// Navigate loads raw, relative to the current URL.
func (t *Tab) Navigate(raw string) error { return t.p.navigate(raw) }

// Rerender repaints the current URL from site state. Frames that survive
// the repaint are not announced again.
func (t *Tab) Rerender() error { return t.p.load(t.p.url.String(), false) }

// RepaintAfter asks for the document being rendered to be repainted after
// d. Call it from Render when the markup depends on the clock.
func (t *Tab) RepaintAfter(d time.Duration) {
	if d > t.p.repaint {
		t.p.repaint = d
	}
}

// Value returns the value attribute of the first element matching sel.
func (t *Tab) Value(sel string) string {
	v, _ := t.p.doc.Find(sel).First().Attr("value")
	return v
}

// Files returns the file names set on the file input matching sel.
func (t *Tab) Files(sel string) []string {
	v, ok := t.p.doc.Find(sel).First().Attr(filesAttr)
	if !ok || v == "" {
		return nil
	}
	return strings.Split(v, "\n")
}

// Later runs fn after d unless the document is replaced first. Pending
// callbacks keep WaitIdle blocked.
func (t *Tab) Later(d time.Duration, fn func(*Tab)) {
	p, site, gen := t.p, t.site, t.p.gen.Load()
	p.pending.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		defer p.pending.Add(-1)
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.timers, timer)
		if p.detached() || p.gen.Load() != gen {
			return
		}
		fn(p.tab(site))
	})
	p.timers[timer] = struct{}{}
}

// ShowDialog opens a native dialog and blocks until it is resolved. With no
// listener armed the dialog is dismissed at once.
func (t *Tab) ShowDialog(kind engine.DialogKind, message, defaultPrompt string) (accepted bool, text string) {
	d := &dialog{kind: kind, message: message, defaultPrompt: defaultPrompt, done: make(chan dialogResult, 1)}
	l := t.p.top().ev.take(kindDialog)
	if l == nil {
		t.Logger().Debug("dialog dismissed without listener", zap.String("kind", string(kind)), zap.String("message", message))
		return false, ""
	}
	l.ch <- d

	t.p.mu.Unlock()
	defer t.p.mu.Lock()
	select {
	case r := <-d.done:
		return r.accepted, r.text
	case <-l.ctx.Done():
		return false, ""
	}
}

// OpenPopup opens raw in a new top-level page of the same context.
func (t *Tab) OpenPopup(raw, name string) error {
	opener := t.p.top()
	np, err := t.p.ctx.newPage(opener)
	if err != nil {
		return err
	}
	np.name = name
	np.mu.Lock()
	err = np.navigate(t.p.resolve(raw))
	np.mu.Unlock()
	if err != nil {
		return fmt.Errorf("open popup: %w", err)
	}
	opener.ev.deliver(kindPopup, np)
	return nil
}

// Download hands content to the armed download listener. Without one the
// download is dropped.
func (t *Tab) Download(suggested string, content []byte) error {
	l := t.p.top().ev.take(kindDownload)
	if l == nil {
		t.Logger().Debug("download dropped without listener", zap.String("file", suggested))
		return nil
	}
	path := filepath.Join(l.dir, uuid.NewString())
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write download: %w", err)
	}
	l.ch <- &engine.Download{
		URL:               t.p.resolve(suggested),
		SuggestedFilename: suggested,
		Path:              path,
	}
	return nil
}

type dialogResult struct {
	accepted bool
	text     string
}

type dialog struct {
	kind          engine.DialogKind
	message       string
	defaultPrompt string

	once sync.Once
	done chan dialogResult
}

var errDialogClosed = errors.New("dialog already closed")

func (d *dialog) Kind() engine.DialogKind { return d.kind }
func (d *dialog) Message() string         { return d.message }
func (d *dialog) DefaultPrompt() string   { return d.defaultPrompt }

func (d *dialog) Accept(ctx context.Context, text string) error {
	return d.resolve(dialogResult{accepted: true, text: text})
}

func (d *dialog) Dismiss(ctx context.Context) error {
	return d.resolve(dialogResult{})
}

func (d *dialog) resolve(r dialogResult) error {
	err := errDialogClosed
	d.once.Do(func() {
		d.done <- r
		err = nil
	})
	return err
}
