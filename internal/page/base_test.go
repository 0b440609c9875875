package page

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/uiharness/internal/config"
	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/engine/memengine"
	"github.com/v0xg/uiharness/internal/engine/memengine/memtest"
	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/recording"
	"github.com/v0xg/uiharness/internal/surface"
	"github.com/v0xg/uiharness/internal/wait"
)

const home = `<html><body>
<input id=name type=text>
<select id=size><option value=s>Small</option><option value=l>Large</option></select>
<button id=show>show</button>
<button id=late hidden>late</button>
<button id=never hidden>never</button>
<button id=next>next</button>
<ul><li class=row>one</li><li class=row>two</li></ul>
<p id=out>idle</p>
</body></html>`

func fixture(t *testing.T, rec *recording.Recorder) (*Base, *memtest.Site) {
	t.Helper()
	site := &memtest.Site{
		Pages: map[string]string{
			"/":     home,
			"/next": `<html><body><h1 id=title>Next</h1></body></html>`,
		},
		Clicks: map[string]func(t *memengine.Tab) error{
			"show": func(t *memengine.Tab) error {
				t.Later(40*time.Millisecond, func(t *memengine.Tab) {
					t.Doc().Find("#late").RemoveAttr("hidden")
					t.Doc().Find(".row").First().Remove()
					t.Doc().Find("#out").SetText("shown")
				})
				return nil
			},
			"late": func(t *memengine.Tab) error {
				t.Doc().Find("#out").SetText("late clicked")
				return nil
			},
			"next": func(t *memengine.Tab) error {
				t.Later(30*time.Millisecond, func(t *memengine.Tab) { _ = t.Navigate("/next") })
				return nil
			},
		},
	}
	p := memtest.Open(t, site.URL("/"), site)
	coord := surface.NewCoordinator(surface.NewRegistry(p), surface.Options{})
	b := New(coord, coord.Root(), Options{
		Timeouts: config.TimeoutConfig{
			Action:     time.Second,
			Wait:       time.Second,
			Poll:       5 * time.Millisecond,
			Navigation: time.Second,
		},
		ThumbnailWidth: 32,
		Logger:         zaptest.NewLogger(t),
		Metrics:        metrics.New(),
		Recorder:       rec,
	})
	return b, site
}

func TestClickWaitsForElementToBecomeActionable(t *testing.T) {
	b, _ := fixture(t, nil)
	ctx := context.Background()

	require.NoError(t, b.Click(ctx, locator.ID("show")))
	require.NoError(t, b.Click(ctx, locator.ID("late")))

	text, err := b.Text(ctx, locator.ID("out"))
	require.NoError(t, err)
	assert.Equal(t, "late clicked", text)
}

func TestClickNotActionable(t *testing.T) {
	b, _ := fixture(t, nil)
	b.opts.Timeouts.Action = 50 * time.Millisecond

	err := b.Click(context.Background(), locator.ID("never"))
	require.ErrorIs(t, err, ErrNotActionable)
	var na *NotActionableError
	require.ErrorAs(t, err, &na)
	assert.Equal(t, "click", na.Action)
	assert.Equal(t, "id=never", na.Locator)
	assert.Error(t, na.Cause)

	err = b.Click(context.Background(), locator.ID("missing"))
	require.ErrorIs(t, err, ErrNotActionable)
	assert.ErrorIs(t, err, locator.ErrNoMatch)
}

// failingPage fails every query with err.
type failingPage struct {
	engine.Page
	err error
}

func (p failingPage) QueryAll(context.Context, string) ([]engine.Element, error) {
	return nil, p.err
}

func TestClickFailsFastOnEngineError(t *testing.T) {
	errBroken := errors.New("renderer crashed")
	site := &memtest.Site{Pages: map[string]string{"/": home}}
	p := memtest.Open(t, site.URL("/"), site)
	coord := surface.NewCoordinator(surface.NewRegistry(failingPage{Page: p, err: errBroken}), surface.Options{})
	b := New(coord, coord.Root(), Options{
		Timeouts: config.TimeoutConfig{Action: 5 * time.Second, Poll: 5 * time.Millisecond},
		Logger:   zaptest.NewLogger(t),
	})

	start := time.Now()
	err := b.Click(context.Background(), locator.ID("show"))
	require.ErrorIs(t, err, errBroken)
	assert.NotErrorIs(t, err, ErrNotActionable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestActionsOnClosedSurface(t *testing.T) {
	b, _ := fixture(t, nil)
	ctx := context.Background()
	require.NoError(t, b.Surface().Page().Close(ctx))

	err := b.Click(ctx, locator.ID("show"))
	assert.ErrorIs(t, err, surface.ErrDetached)
	assert.NotErrorIs(t, err, ErrNotActionable)

	_, err = b.URL(ctx)
	assert.ErrorIs(t, err, surface.ErrDetached)
}

func TestFillSelectAndRead(t *testing.T) {
	b, _ := fixture(t, nil)
	ctx := context.Background()

	require.NoError(t, b.Fill(ctx, locator.ID("name"), "gopher"))
	v, ok, err := b.Attribute(ctx, locator.ID("name"), "value")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gopher", v)

	require.NoError(t, b.Select(ctx, locator.ID("size"), "Large"))
	_, ok, err = b.Attribute(ctx, locator.CSS("#size option[value=l]"), "selected")
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := b.Texts(ctx, locator.Class("row"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, rows)

	visible, err := b.IsVisible(ctx, locator.ID("missing"))
	require.NoError(t, err)
	assert.False(t, visible)
	visible, err = b.IsVisible(ctx, locator.ID("never"))
	require.NoError(t, err)
	assert.False(t, visible)
}

const form = `<html><body>
<input id=terms type=checkbox>
<input id=news type=checkbox checked>
<input id=red type=radio name=color checked>
<input id=blue type=radio name=color>
<input id=locked type=text disabled>
<div id=a draggable=true>A</div>
<div id=b draggable=true>B</div>
<div id=hidden-zone hidden>Z</div>
</body></html>`

func formBase(t *testing.T, site *memtest.Site) *Base {
	t.Helper()
	p := memtest.Open(t, site.URL("/"), site)
	coord := surface.NewCoordinator(surface.NewRegistry(p), surface.Options{})
	return New(coord, coord.Root(), Options{
		Timeouts: config.TimeoutConfig{Action: 200 * time.Millisecond, Poll: 5 * time.Millisecond},
		Logger:   zaptest.NewLogger(t),
	})
}

func TestCheckUncheckAndRadio(t *testing.T) {
	b := formBase(t, &memtest.Site{Pages: map[string]string{"/": form}})
	ctx := context.Background()

	require.NoError(t, b.Check(ctx, locator.ID("terms")))
	require.NoError(t, b.Check(ctx, locator.ID("terms")))
	on, err := b.IsChecked(ctx, locator.ID("terms"))
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, b.Uncheck(ctx, locator.ID("news")))
	on, err = b.IsChecked(ctx, locator.ID("news"))
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, b.Check(ctx, locator.ID("blue")))
	on, err = b.IsChecked(ctx, locator.ID("red"))
	require.NoError(t, err)
	assert.False(t, on)

	// A checked radio cannot be unchecked by clicking it.
	err = b.Uncheck(ctx, locator.ID("blue"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotActionable)

	enabled, err := b.IsEnabled(ctx, locator.ID("locked"))
	require.NoError(t, err)
	assert.False(t, enabled)
	enabled, err = b.IsEnabled(ctx, locator.ID("terms"))
	require.NoError(t, err)
	assert.True(t, enabled)
	enabled, err = b.IsEnabled(ctx, locator.ID("missing"))
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestDragSwapsColumns(t *testing.T) {
	var dropped []string
	site := &memtest.Site{
		Pages: map[string]string{"/": form},
		Drops: map[string]func(t *memengine.Tab, source string) error{
			"b": func(t *memengine.Tab, source string) error {
				dropped = append(dropped, source+">b")
				a, b := t.Doc().Find("#a"), t.Doc().Find("#b")
				at, bt := a.Text(), b.Text()
				a.SetText(bt)
				b.SetText(at)
				return nil
			},
		},
	}
	b := formBase(t, site)
	ctx := context.Background()

	require.NoError(t, b.Drag(ctx, locator.ID("a"), locator.ID("b")))
	assert.Equal(t, []string{"a>b"}, dropped)
	text, err := b.Text(ctx, locator.ID("a"))
	require.NoError(t, err)
	assert.Equal(t, "B", text)

	err = b.Drag(ctx, locator.ID("a"), locator.ID("hidden-zone"))
	require.ErrorIs(t, err, ErrNotActionable)
	err = b.Drag(ctx, locator.ID("a"), locator.ID("nowhere"))
	assert.ErrorIs(t, err, locator.ErrNoMatch)
	assert.Len(t, dropped, 1)
}

func TestWaitHelpers(t *testing.T) {
	b, _ := fixture(t, nil)
	ctx := context.Background()

	require.NoError(t, b.Click(ctx, locator.ID("show")))
	require.NoError(t, b.WaitVisible(ctx, locator.ID("late")))
	require.NoError(t, b.WaitCount(ctx, locator.Class("row"), 1))
	require.NoError(t, b.WaitText(ctx, locator.ID("out"), "shown"))
	require.NoError(t, b.WaitHidden(ctx, locator.ID("never")))

	err := b.WaitText(ctx, locator.ID("out"), "other", wait.Timeout(30*time.Millisecond))
	require.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), `last text "shown"`)
}

func TestWaitURL(t *testing.T) {
	b, _ := fixture(t, nil)
	ctx := context.Background()

	require.NoError(t, b.Click(ctx, locator.ID("next")))
	require.NoError(t, b.WaitURL(ctx, "/next"))
	require.NoError(t, b.WaitText(ctx, locator.ID("title"), "Next"))

	err := b.WaitURL(ctx, "/elsewhere", wait.Timeout(30*time.Millisecond))
	require.ErrorIs(t, err, wait.ErrTimeout)
	assert.Contains(t, err.Error(), "https://lab.test/next")
}

func TestReloadRecoveryOption(t *testing.T) {
	b, site := fixture(t, nil)
	b.opts.Timeouts.Recovery = 50 * time.Millisecond

	err := b.WaitVisible(context.Background(), locator.ID("never"), wait.Timeout(20*time.Millisecond), b.ReloadRecovery())
	var te *wait.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Recovered)
	assert.Equal(t, 2, site.Renders("/"))
}

func TestGotoAndOn(t *testing.T) {
	b, site := fixture(t, nil)
	ctx := context.Background()

	require.NoError(t, b.Goto(ctx, site.URL("/next")))
	u, err := b.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://lab.test/next", u)

	other := b.On(b.Coordinator().Root())
	assert.Same(t, b.Surface(), other.Surface())
	assert.Equal(t, b.Timeouts(), other.Timeouts())
}

func TestScreenshotWritesThumbnail(t *testing.T) {
	b, _ := fixture(t, nil)
	path := filepath.Join(t.TempDir(), "shots", "home.png")

	require.NoError(t, b.Screenshot(context.Background(), path))
	assert.FileExists(t, path)
	assert.FileExists(t, filepath.Join(filepath.Dir(path), "home.thumb.png"))
}

func TestActionsFeedRecorder(t *testing.T) {
	rec := recording.NewRecorder(10)
	b, _ := fixture(t, rec)
	ctx := context.Background()

	require.NoError(t, b.Fill(ctx, locator.ID("name"), "x"))
	require.NoError(t, b.Click(ctx, locator.ID("show")))
	assert.Equal(t, 2, rec.Len())
}
