package memengine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/uiharness/internal/engine"
)

// stubSite serves fixed documents by path and delegates events to onEvent.
type stubSite struct {
	docs    map[string]string
	onEvent func(t *Tab, ev Event) (bool, error)
	renders atomic.Int32
}

func (s *stubSite) Host() string  { return "stub.test" }
func (s *stubSite) NewState() any { return new(int) }

func (s *stubSite) Render(t *Tab, u *url.URL) (string, error) {
	s.renders.Add(1)
	if u.Path == "/old" {
		return "", &Redirect{URL: "/"}
	}
	doc, ok := s.docs[u.Path]
	if !ok {
		return "<html><body><h1>missing</h1></body></html>", nil
	}
	return doc, nil
}

func (s *stubSite) Handle(t *Tab, ev Event) (bool, error) {
	if s.onEvent == nil {
		return false, nil
	}
	return s.onEvent(t, ev)
}

func openStub(t *testing.T, site *stubSite, path string) (*Browser, *Page) {
	t.Helper()
	b := New(Options{}, site)
	t.Cleanup(func() { _ = b.Close() })
	c, err := b.NewContext(context.Background())
	require.NoError(t, err)
	pg, err := c.NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, pg.Navigate(context.Background(), "https://stub.test"+path))
	return b, pg.(*Page)
}

func TestNavigateFollowsRedirect(t *testing.T) {
	site := &stubSite{docs: map[string]string{"/": "<html><body><p id=home>home</p></body></html>"}}
	_, p := openStub(t, site, "/old")

	u, err := p.URL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://stub.test/", u)

	el, err := p.Query(context.Background(), "#home")
	require.NoError(t, err)
	text, err := el.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "home", text)
}

func TestNavigateUnknownHost(t *testing.T) {
	_, p := openStub(t, &stubSite{docs: map[string]string{}}, "/")
	err := p.Navigate(context.Background(), "https://elsewhere.test/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryNoMatch(t *testing.T) {
	_, p := openStub(t, &stubSite{docs: map[string]string{"/": "<html><body></body></html>"}}, "/")
	_, err := p.Query(context.Background(), ".nothing")
	assert.ErrorIs(t, err, engine.ErrNoElement)
}

func TestElementGoesStaleOnRender(t *testing.T) {
	site := &stubSite{docs: map[string]string{"/": `<html><body><button id=b>go</button></body></html>`}}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	el, err := p.Query(ctx, "#b")
	require.NoError(t, err)
	require.NoError(t, p.Reload(ctx))

	_, err = el.Text(ctx)
	assert.ErrorIs(t, err, engine.ErrNoElement)

	require.NoError(t, p.Close(ctx))
	_, err = p.Query(ctx, "#b")
	assert.ErrorIs(t, err, engine.ErrDetached)
	assert.True(t, p.Detached(ctx))
}

func TestVisibility(t *testing.T) {
	site := &stubSite{docs: map[string]string{"/": `<html><body>
<p id=shown>a</p>
<p id=attr hidden>b</p>
<div style="display: none"><p id=nested>c</p></div>
<p id=cls class="x hidden">d</p>
<input id=h type=hidden>
<button id=off disabled>e</button>
</body></html>`}}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	for sel, want := range map[string]bool{"#shown": true, "#attr": false, "#nested": false, "#cls": false, "#h": false, "#off": true} {
		el, err := p.Query(ctx, sel)
		require.NoError(t, err, sel)
		got, err := el.Visible(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got, sel)
	}

	el, err := p.Query(ctx, "#off")
	require.NoError(t, err)
	assert.ErrorIs(t, el.Click(ctx), errDisabled)

	short, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, el.WaitActionable(short), context.DeadlineExceeded)
}

func TestFillSelectAndSubmit(t *testing.T) {
	var submitted string
	site := &stubSite{docs: map[string]string{"/": `<html><body><form>
<input id=name type=text>
<select id=pick><option value=a>Alpha</option><option value=b>Beta</option></select>
<button id=go>Send</button>
</form></body></html>`}}
	var changed string
	site.onEvent = func(tab *Tab, ev Event) (bool, error) {
		switch ev.Type {
		case EventSubmit:
			submitted = tab.Value("#name")
			return true, nil
		case EventChange:
			changed = ev.Value
			return true, nil
		}
		return false, nil
	}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	name, err := p.Query(ctx, "#name")
	require.NoError(t, err)
	require.NoError(t, name.Fill(ctx, "gopher"))

	pick, err := p.Query(ctx, "#pick")
	require.NoError(t, err)
	require.NoError(t, pick.Select(ctx, "Beta"))
	assert.Equal(t, "b", changed)
	assert.Error(t, pick.Select(ctx, "Gamma"))

	btn, err := p.Query(ctx, "#go")
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))
	assert.Equal(t, "gopher", submitted)
}

func TestLinkNavigatesAndOpensPopup(t *testing.T) {
	site := &stubSite{docs: map[string]string{
		"/":    `<html><body><a id=next href="/next">next</a><a id=pop href="/next" target="_blank">pop</a></body></html>`,
		"/next": `<html><body><h3>Next</h3></body></html>`,
	}}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	wait := p.ExpectPopup(ctx)
	pop, err := p.Query(ctx, "#pop")
	require.NoError(t, err)
	require.NoError(t, pop.Click(ctx))
	popup, err := wait()
	require.NoError(t, err)
	u, err := popup.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://stub.test/next", u)
	assert.Same(t, p, popup.(*Page).Opener())

	link, err := p.Query(ctx, "#next")
	require.NoError(t, err)
	require.NoError(t, link.Click(ctx))
	u, err = p.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://stub.test/next", u)
}

func TestExpectPopupTimesOut(t *testing.T) {
	_, p := openStub(t, &stubSite{docs: map[string]string{}}, "/")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.ExpectPopup(ctx)()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFramesAreLoadedAndAnnounced(t *testing.T) {
	site := &stubSite{docs: map[string]string{
		"/":      `<html><body><button id=add>add</button></body></html>`,
		"/framed": `<html><body><iframe name=inner src="/inner"></iframe></body></html>`,
		"/inner": `<html><body><p id=msg>inside</p></body></html>`,
	}}
	site.onEvent = func(tab *Tab, ev Event) (bool, error) {
		if id, _ := ev.Target.Attr("id"); id == "add" {
			return true, tab.Navigate("/framed")
		}
		return false, nil
	}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	wait := p.ExpectFrame(ctx)
	btn, err := p.Query(ctx, "#add")
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))
	frame, err := wait()
	require.NoError(t, err)

	name, err := frame.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inner", name)
	msg, err := frame.Query(ctx, "#msg")
	require.NoError(t, err)
	text, err := msg.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inside", text)

	frames, err := p.ChildFrames(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, frame.ID(), frames[0].ID())

	el, err := p.Query(ctx, "iframe")
	require.NoError(t, err)
	viaEl, err := el.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame.ID(), viaEl.ID())

	require.NoError(t, p.Reload(ctx))
	assert.True(t, frame.Detached(ctx))
}

func TestDialogResolution(t *testing.T) {
	site := &stubSite{docs: map[string]string{"/": `<html><body><button id=ask>ask</button><p id=out></p></body></html>`}}
	site.onEvent = func(tab *Tab, ev Event) (bool, error) {
		if id, _ := ev.Target.Attr("id"); id != "ask" {
			return false, nil
		}
		ok, text := tab.ShowDialog(engine.DialogPrompt, "name?", "anon")
		tab.Doc().Find("#out").SetText(map[bool]string{true: "got " + text, false: "dismissed"}[ok])
		return true, nil
	}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	// No listener: the dialog is dismissed immediately.
	btn, err := p.Query(ctx, "#ask")
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))
	assertText(t, p, "#out", "dismissed")

	wait := p.ExpectDialog(ctx)
	done := make(chan error, 1)
	go func() { done <- btn.Click(ctx) }()
	d, err := wait()
	require.NoError(t, err)
	assert.Equal(t, engine.DialogPrompt, d.Kind())
	assert.Equal(t, "name?", d.Message())
	assert.Equal(t, "anon", d.DefaultPrompt())
	require.NoError(t, d.Accept(ctx, "gopher"))
	assert.Error(t, d.Dismiss(ctx))
	require.NoError(t, <-done)
	assertText(t, p, "#out", "got gopher")
}

func TestDownloadWritesToListenerDir(t *testing.T) {
	site := &stubSite{docs: map[string]string{"/": `<html><body><a id=dl href="#">file</a></body></html>`}}
	site.onEvent = func(tab *Tab, ev Event) (bool, error) {
		return true, tab.Download("report.txt", []byte("hello"))
	}
	_, p := openStub(t, site, "/")
	ctx := context.Background()
	dir := t.TempDir()

	wait := p.ExpectDownload(ctx, dir)
	el, err := p.Query(ctx, "#dl")
	require.NoError(t, err)
	require.NoError(t, el.Click(ctx))
	dl, err := wait()
	require.NoError(t, err)
	assert.Equal(t, "report.txt", dl.SuggestedFilename)
	data, err := os.ReadFile(dl.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestLaterIsCancelledByNavigation(t *testing.T) {
	site := &stubSite{docs: map[string]string{
		"/":      `<html><body><button id=slow>slow</button><p id=out>idle</p></body></html>`,
		"/other": `<html><body></body></html>`,
	}}
	var fired atomic.Bool
	site.onEvent = func(tab *Tab, ev Event) (bool, error) {
		tab.Later(30*time.Millisecond, func(tab *Tab) {
			fired.Store(true)
			tab.Doc().Find("#out").SetText("done")
		})
		return true, nil
	}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	btn, err := p.Query(ctx, "#slow")
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))
	require.NoError(t, p.WaitIdle(ctx))
	assertText(t, p, "#out", "done")

	btn, err = p.Query(ctx, "#slow")
	require.NoError(t, err)
	fired.Store(false)
	require.NoError(t, btn.Click(ctx))
	require.NoError(t, p.Navigate(ctx, "/other"))
	require.NoError(t, p.WaitIdle(ctx))
	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired.Load())
}

func TestContextsIsolateState(t *testing.T) {
	site := &stubSite{docs: map[string]string{"/": "<html><body></body></html>"}}
	var states []any
	site.onEvent = func(tab *Tab, ev Event) (bool, error) {
		states = append(states, tab.State())
		return true, nil
	}
	b := New(Options{}, site)
	defer b.Close()
	ctx := context.Background()

	for range 2 {
		c, err := b.NewContext(ctx)
		require.NoError(t, err)
		for range 2 {
			pg, err := c.NewPage(ctx)
			require.NoError(t, err)
			require.NoError(t, pg.Navigate(ctx, "https://stub.test/"))
			body, err := pg.Query(ctx, "body")
			require.NoError(t, err)
			require.NoError(t, body.Click(ctx))
		}
	}
	require.Len(t, states, 4)
	assert.Same(t, states[0], states[1])
	assert.Same(t, states[2], states[3])
	assert.NotSame(t, states[0], states[2])
}

func TestScreenshotIsPNG(t *testing.T) {
	_, p := openStub(t, &stubSite{docs: map[string]string{"/": "<html><body></body></html>"}}, "/")
	data, err := p.Screenshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func assertText(t *testing.T, p *Page, sel, want string) {
	t.Helper()
	el, err := p.Query(context.Background(), sel)
	require.NoError(t, err)
	got, err := el.Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// nestSite frames /nest/n+1 inside every /nest/n.
type nestSite struct{ renders atomic.Int32 }

func (s *nestSite) Host() string                     { return "nest.test" }
func (s *nestSite) NewState() any                    { return nil }
func (s *nestSite) Handle(*Tab, Event) (bool, error) { return false, nil }

func (s *nestSite) Render(t *Tab, u *url.URL) (string, error) {
	s.renders.Add(1)
	var n int
	_, _ = fmt.Sscanf(u.Path, "/nest/%d", &n)
	return fmt.Sprintf(`<html><body><iframe name="f%d" src="/nest/%d"></iframe></body></html>`, n+1, n+1), nil
}

func TestFrameNestingIsCapped(t *testing.T) {
	site := &nestSite{}
	b := New(Options{}, site)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()
	c, err := b.NewContext(ctx)
	require.NoError(t, err)
	p, err := c.NewPage(ctx)
	require.NoError(t, err)
	require.NoError(t, p.Navigate(ctx, "https://nest.test/nest/0"))

	assert.EqualValues(t, maxFrameDepth, site.renders.Load())

	depth := 0
	cur := p
	for {
		frames, err := cur.ChildFrames(ctx)
		require.NoError(t, err)
		if len(frames) == 0 {
			break
		}
		cur = frames[0]
		depth++
	}
	assert.Equal(t, maxFrameDepth, depth)
	u, err := cur.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "about:blank", u)
}

func TestRecursiveFrameStaysBlank(t *testing.T) {
	site := &stubSite{docs: map[string]string{
		"/": `<html><body><iframe name=self src="/"></iframe></body></html>`,
	}}
	_, p := openStub(t, site, "/")
	ctx := context.Background()

	assert.EqualValues(t, 1, site.renders.Load())
	frames, err := p.ChildFrames(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	u, err := frames[0].URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "about:blank", u)
}

func TestReloadAnnouncesFramesAgain(t *testing.T) {
	site := &stubSite{docs: map[string]string{
		"/framed": `<html><body><button id=repaint>repaint</button><iframe name=inner src="/inner"></iframe></body></html>`,
		"/inner":  `<html><body><p id=msg>inside</p></body></html>`,
	}}
	site.onEvent = func(tab *Tab, ev Event) (bool, error) {
		return true, tab.Rerender()
	}
	_, p := openStub(t, site, "/framed")
	ctx := context.Background()

	wait := p.ExpectFrame(ctx)
	require.NoError(t, p.Reload(ctx))
	frame, err := wait()
	require.NoError(t, err)
	name, err := frame.Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "inner", name)

	// A repaint keeps the same frames and announces nothing.
	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	wait = p.ExpectFrame(short)
	btn, err := p.Query(ctx, "#repaint")
	require.NoError(t, err)
	require.NoError(t, btn.Click(ctx))
	_, err = wait()
	assert.Error(t, err)
}
