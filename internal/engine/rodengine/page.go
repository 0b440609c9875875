package rodengine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/engine"
)

// Page wraps a rod page. Frames are rod pages too, rooted at the frame's
// document.
type Page struct {
	ctx    *Context
	rod    *rod.Page
	frame  bool
	logger *zap.Logger
}

var _ engine.Page = (*Page)(nil)

func (p *Page) ID() string {
	if p.rod.FrameID != "" {
		return string(p.rod.FrameID)
	}
	return string(p.rod.TargetID)
}

func (p *Page) evalString(ctx context.Context, js string) (string, error) {
	obj, err := p.rod.Context(ctx).Eval(js)
	if err != nil {
		return "", wrap(err)
	}
	return obj.Value.Str(), nil
}

func (p *Page) Name(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => window.name`)
}

func (p *Page) URL(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => window.location.href`)
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	rp := p.rod.Context(ctx)
	if err := rp.Navigate(url); err != nil {
		return wrap(err)
	}
	return wrap(rp.WaitLoad())
}

func (p *Page) Reload(ctx context.Context) error {
	rp := p.rod.Context(ctx)
	if err := rp.Reload(); err != nil {
		return wrap(err)
	}
	return wrap(rp.WaitLoad())
}

// WaitIdle waits for the load event and then for the network to stay
// quiet, capped at the idle timeout. Hitting the cap is not an error:
// pages with persistent connections never go idle.
func (p *Page) WaitIdle(ctx context.Context) error {
	if err := p.rod.Context(ctx).WaitLoad(); err != nil {
		return wrap(err)
	}
	p.rod.Context(ctx).Timeout(p.ctx.browser.opts.IdleTimeout).WaitRequestIdle(300*time.Millisecond, nil, nil, nil)()
	return ctx.Err()
}

func (p *Page) Query(ctx context.Context, selector string) (engine.Element, error) {
	has, el, err := p.rod.Context(ctx).Has(selector)
	if err != nil {
		return nil, wrap(err)
	}
	if !has {
		return nil, engine.ErrNoElement
	}
	return p.element(el), nil
}

func (p *Page) QueryAll(ctx context.Context, selector string) ([]engine.Element, error) {
	els, err := p.rod.Context(ctx).Elements(selector)
	if err != nil {
		return nil, wrap(err)
	}
	return p.elements(els), nil
}

func (p *Page) element(el *rod.Element) *Element {
	return &Element{page: p, rod: el.Context(context.Background())}
}

func (p *Page) elements(els rod.Elements) []engine.Element {
	out := make([]engine.Element, len(els))
	for i, el := range els {
		out[i] = p.element(el)
	}
	return out
}

// ChildFrames returns the documents of the page's iframe and frame
// elements, in document order.
func (p *Page) ChildFrames(ctx context.Context) ([]engine.Page, error) {
	els, err := p.rod.Context(ctx).Elements("iframe, frame")
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]engine.Page, 0, len(els))
	for _, el := range els {
		fp, err := el.Context(ctx).Frame()
		if err != nil {
			// A frame still loading has no document yet.
			p.logger.Debug("skip frame without document", zap.Error(err))
			continue
		}
		out = append(out, p.ctx.wrapPage(fp.Context(context.Background()), true))
	}
	return out, nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := p.rod.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	return data, wrap(err)
}

// Detached reports whether the target, or for frames the frame document,
// is gone.
func (p *Page) Detached(ctx context.Context) bool {
	if p.frame {
		_, err := p.rod.Context(ctx).Eval(`() => document.readyState`)
		return err != nil && ctx.Err() == nil
	}
	_, err := p.rod.Context(ctx).Info()
	return err != nil && ctx.Err() == nil
}

// Close closes a top-level page. Frames close with their parent.
func (p *Page) Close(ctx context.Context) error {
	if p.frame {
		return nil
	}
	return wrap(p.rod.Context(ctx).Close())
}

func (p *Page) ExpectPopup(ctx context.Context) func() (engine.Page, error) {
	wait := p.rod.Context(ctx).WaitOpen()
	return func() (engine.Page, error) {
		np, err := wait()
		if err != nil {
			return nil, wrap(err)
		}
		return p.ctx.wrapPage(np.Context(context.Background()), false), nil
	}
}

// ExpectFrame waits for a frame to attach anywhere below p and returns the
// frame once its element is in the document.
func (p *Page) ExpectFrame(ctx context.Context) func() (engine.Page, error) {
	var ev proto.PageFrameAttached
	wait := p.rod.Context(ctx).WaitEvent(&ev)
	return func() (engine.Page, error) {
		wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			if fp := p.findFrame(ctx, ev.FrameID); fp != nil {
				return fp, nil
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

func (p *Page) findFrame(ctx context.Context, id proto.PageFrameID) engine.Page {
	els, err := p.rod.Context(ctx).Elements("iframe, frame")
	if err != nil {
		return nil
	}
	for _, el := range els {
		fp, err := el.Context(ctx).Frame()
		if err == nil && fp.FrameID == id {
			return p.ctx.wrapPage(fp.Context(context.Background()), true)
		}
	}
	return nil
}

func (p *Page) ExpectDialog(ctx context.Context) func() (engine.Dialog, error) {
	wait, handle := p.rod.Context(ctx).HandleDialog()
	return func() (engine.Dialog, error) {
		ev := wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Dialog{ev: ev, handle: handle}, nil
	}
}

// ExpectDownload waits for the next download of the context. Chromium
// stores the file under its download GUID in dir.
func (p *Page) ExpectDownload(ctx context.Context, dir string) func() (*engine.Download, error) {
	wait := p.ctx.rod.Context(ctx).WaitDownload(dir)
	return func() (*engine.Download, error) {
		info := wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if info == nil {
			return nil, fmt.Errorf("download did not complete")
		}
		return &engine.Download{
			URL:               info.URL,
			SuggestedFilename: info.SuggestedFilename,
			Path:              filepath.Join(dir, info.GUID),
		}, nil
	}
}

// Dialog is an open JavaScript dialog.
type Dialog struct {
	ev     *proto.PageJavascriptDialogOpening
	handle func(*proto.PageHandleJavaScriptDialog) error
}

var _ engine.Dialog = (*Dialog)(nil)

func (d *Dialog) Kind() engine.DialogKind { return engine.DialogKind(d.ev.Type) }
func (d *Dialog) Message() string         { return d.ev.Message }
func (d *Dialog) DefaultPrompt() string   { return d.ev.DefaultPrompt }

func (d *Dialog) Accept(ctx context.Context, promptText string) error {
	return wrap(d.handle(&proto.PageHandleJavaScriptDialog{Accept: true, PromptText: promptText}))
}

func (d *Dialog) Dismiss(ctx context.Context) error {
	return wrap(d.handle(&proto.PageHandleJavaScriptDialog{Accept: false}))
}
