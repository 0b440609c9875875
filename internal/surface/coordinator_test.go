package surface

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/engine/memengine"
	"github.com/v0xg/uiharness/internal/engine/memengine/memtest"
	"github.com/v0xg/uiharness/internal/metrics"
)

const labHome = `<html><body>
<button id=popup>popup</button>
<button id=frame>frame</button>
<button id=alert>alert</button>
<button id=confirm>confirm</button>
<button id=download>download</button>
<button id=nothing>nothing</button>
<p id=out></p>
</body></html>`

func lab() *memtest.Site {
	return &memtest.Site{
		Pages: map[string]string{
			"/":       labHome,
			"/child":  `<html><body><h3>Child</h3></body></html>`,
			"/framed": `<html><body><iframe name=late src="/child"></iframe></body></html>`,
			"/frames": `<html><body><iframe name=a src="/a"></iframe><iframe name=side src="/child"></iframe></body></html>`,
			"/a":      `<html><body><iframe name=b src="/b"></iframe></body></html>`,
			"/b":      `<html><body><iframe name=c src="/c"></iframe></body></html>`,
			"/c":      `<html><body><p id=deep>deep</p></body></html>`,
		},
		Clicks: map[string]func(t *memengine.Tab) error{
			"popup": func(t *memengine.Tab) error { return t.OpenPopup("/child", "child") },
			"frame": func(t *memengine.Tab) error { return t.Navigate("/framed") },
			"alert": func(t *memengine.Tab) error {
				t.ShowDialog(engine.DialogAlert, "hello", "")
				return nil
			},
			"confirm": func(t *memengine.Tab) error {
				ok, _ := t.ShowDialog(engine.DialogConfirm, "sure?", "")
				t.Doc().Find("#out").SetText(map[bool]string{true: "ok", false: "cancel"}[ok])
				return nil
			},
			"download": func(t *memengine.Tab) error { return t.Download("data.csv", []byte("a,b\n")) },
			"nothing":  func(t *memengine.Tab) error { return nil },
		},
	}
}

func newCoordinator(t *testing.T, path string) (*Coordinator, *memtest.Site) {
	t.Helper()
	site := lab()
	page := memtest.Open(t, site.URL(path), site)
	c := NewCoordinator(NewRegistry(page), Options{
		SpawnTimeout: time.Second,
		DownloadDir:  t.TempDir(),
		Logger:       zaptest.NewLogger(t),
		Metrics:      metrics.New(),
	})
	return c, site
}

func clickOn(s *Surface, sel string) Trigger {
	return func(ctx context.Context) error {
		el, err := s.Page().Query(ctx, sel)
		if err != nil {
			return err
		}
		return el.Click(ctx)
	}
}

func TestSpawnPopupTracksChild(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	ctx := context.Background()

	popup, err := c.SpawnAndTrack(ctx, c.Root(), SpawnPopup, clickOn(c.Root(), "#popup"))
	require.NoError(t, err)

	assert.Equal(t, KindPopup, popup.Kind())
	assert.Same(t, c.Root(), popup.Parent())
	assert.Equal(t, "child", popup.Name())
	got, ok := c.Registry().Get(popup.ID())
	require.True(t, ok)
	assert.Same(t, popup, got)
	assert.Len(t, c.Registry().Surfaces(), 2)

	u, err := popup.Page().URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://lab.test/child", u)
}

func TestSpawnTimesOutWithoutRetrying(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	c.timeout = 50 * time.Millisecond

	calls := 0
	trigger := func(ctx context.Context) error {
		calls++
		return clickOn(c.Root(), "#nothing")(ctx)
	}
	_, err := c.SpawnAndTrack(context.Background(), c.Root(), SpawnPopup, trigger)
	require.ErrorIs(t, err, ErrSpawnTimeout)
	var te *SpawnTimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, SpawnPopup, te.Kind)
	assert.Equal(t, 1, calls)
	assert.Len(t, c.Registry().Surfaces(), 1)
}

func TestSpawnTriggerErrorIsReturned(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	_, err := c.SpawnAndTrack(context.Background(), c.Root(), SpawnPopup, clickOn(c.Root(), "#missing"))
	assert.ErrorIs(t, err, engine.ErrNoElement)
	assert.NotErrorIs(t, err, ErrSpawnTimeout)
}

func TestSpawnFrame(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	frame, err := c.SpawnAndTrack(context.Background(), c.Root(), SpawnFrame, clickOn(c.Root(), "#frame"))
	require.NoError(t, err)
	assert.Equal(t, KindFrame, frame.Kind())
	assert.Equal(t, "late", frame.Name())
}

func TestSpawnRejectsDialogKind(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	_, err := c.SpawnAndTrack(context.Background(), c.Root(), SpawnDialog, clickOn(c.Root(), "#alert"))
	assert.Error(t, err)
}

func TestFindFrameBreadthFirst(t *testing.T) {
	c, _ := newCoordinator(t, "/frames")
	ctx := context.Background()

	deep, err := c.FindFrame(ctx, c.Root(), "c", 0)
	require.NoError(t, err)
	assert.Equal(t, "c", deep.Name())
	assert.Equal(t, "b", deep.Parent().Name())
	assert.Equal(t, "a", deep.Parent().Parent().Name())

	el, err := deep.Page().Query(ctx, "#deep")
	require.NoError(t, err)
	text, err := el.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "deep", text)

	again, err := c.FindFrame(ctx, c.Root(), "c", 0)
	require.NoError(t, err)
	assert.Same(t, deep, again)
	count := len(c.Registry().Surfaces())

	_, err = c.FindFrame(ctx, c.Root(), "side", 0)
	require.NoError(t, err)
	assert.Len(t, c.Registry().Surfaces(), count)
}

func TestFindFrameRespectsDepth(t *testing.T) {
	c, _ := newCoordinator(t, "/frames")
	ctx := context.Background()

	_, err := c.FindFrame(ctx, c.Root(), "c", 2)
	require.ErrorIs(t, err, ErrNotFound)
	var nf *FrameNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "c", nf.Name)
	assert.Equal(t, 2, nf.MaxDepth)

	_, err = c.FindFrame(ctx, c.Root(), "c", 3)
	assert.NoError(t, err)

	_, err = c.FindFrame(ctx, c.Root(), "nope", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFramesDetachWithParent(t *testing.T) {
	c, _ := newCoordinator(t, "/frames")
	ctx := context.Background()

	a, err := c.FindFrame(ctx, c.Root(), "a", 0)
	require.NoError(t, err)
	require.NoError(t, a.CheckAttached(ctx))

	require.NoError(t, c.Root().Page().Reload(ctx))
	err = a.CheckAttached(ctx)
	require.ErrorIs(t, err, ErrDetached)
	assert.True(t, a.Closed())

	_, err = c.FindFrame(ctx, a, "b", 0)
	assert.ErrorIs(t, err, ErrDetached)
}

func TestResolveDialogAccept(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	ctx := context.Background()

	req, err := c.ResolveDialog(ctx, c.Root(), DialogExpectation{
		Kind:       engine.DialogConfirm,
		Message:    "sure?",
		Resolution: Accept(""),
	}, clickOn(c.Root(), "#confirm"))
	require.NoError(t, err)
	res, ok := req.Resolution()
	require.True(t, ok)
	assert.True(t, res.Accepted())

	el, err := c.Root().Page().Query(ctx, "#out")
	require.NoError(t, err)
	text, err := el.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	assert.ErrorIs(t, req.Resolve(ctx, Dismiss()), ErrDialogAlreadyResolved)
}

func TestResolveDialogMismatchStillResolves(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	ctx := context.Background()

	req, err := c.ResolveDialog(ctx, c.Root(), DialogExpectation{
		Kind:       engine.DialogConfirm,
		Message:    "other",
		Resolution: Dismiss(),
	}, clickOn(c.Root(), "#confirm"))
	require.ErrorIs(t, err, ErrDialogMismatch)
	require.NotNil(t, req)
	assert.Equal(t, "sure?", req.Message())
	res, ok := req.Resolution()
	require.True(t, ok)
	assert.False(t, res.Accepted())

	var mm *DialogMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, "other", mm.ExpectedMessage)
	assert.Equal(t, "sure?", mm.ActualMessage)
}

func TestResolveDialogTimeout(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	c.timeout = 50 * time.Millisecond
	req, err := c.ResolveDialog(context.Background(), c.Root(), DialogExpectation{Resolution: Accept("")}, clickOn(c.Root(), "#nothing"))
	assert.Nil(t, req)
	assert.ErrorIs(t, err, ErrSpawnTimeout)
}

func TestAwaitDownload(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	dest := filepath.Join(t.TempDir(), "nested", "saved.csv")

	rec, err := c.AwaitDownload(context.Background(), c.Root(), DownloadExpectation{Filename: "data.csv", SaveAs: dest}, clickOn(c.Root(), "#download"))
	require.NoError(t, err)
	assert.Equal(t, "data.csv", rec.SuggestedFilename)
	assert.Equal(t, dest, rec.SavedPath)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestAwaitDownloadMismatchKeepsFile(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	dest := filepath.Join(t.TempDir(), "saved.csv")

	rec, err := c.AwaitDownload(context.Background(), c.Root(), DownloadExpectation{Filename: "other.csv", SaveAs: dest}, clickOn(c.Root(), "#download"))
	require.ErrorIs(t, err, ErrDownloadMismatch)
	assert.Equal(t, "data.csv", rec.SuggestedFilename)
	assert.FileExists(t, dest)
}

func TestCloseTearsDownEverySurface(t *testing.T) {
	c, _ := newCoordinator(t, "/")
	ctx := context.Background()

	popup, err := c.SpawnAndTrack(ctx, c.Root(), SpawnPopup, clickOn(c.Root(), "#popup"))
	require.NoError(t, err)
	require.NoError(t, c.CloseSurface(ctx, popup))
	assert.ErrorIs(t, popup.CheckAttached(ctx), ErrDetached)
	require.NoError(t, c.CloseSurface(ctx, popup))

	_, err = c.SpawnAndTrack(ctx, popup, SpawnPopup, clickOn(popup, "#popup"))
	assert.ErrorIs(t, err, ErrDetached)

	require.NoError(t, c.Close(ctx))
	assert.True(t, c.Root().Closed())
	assert.True(t, c.Root().Page().Detached(ctx))
	assert.Empty(t, c.Registry().Surfaces())
}

func TestFindFrameOverCyclicFrames(t *testing.T) {
	site := &memtest.Site{Pages: map[string]string{
		"/self": `<html><body><iframe name="self" src="/self"></iframe></body></html>`,
		"/ping": `<html><body><iframe name="pong" src="/pong"></iframe></body></html>`,
		"/pong": `<html><body><iframe name="ping" src="/ping"></iframe><p id="leaf">pong</p></body></html>`,
	}}
	ctx := context.Background()

	page := memtest.Open(t, site.URL("/self"), site)
	c := NewCoordinator(NewRegistry(page), Options{Logger: zaptest.NewLogger(t)})
	self, err := c.FindFrame(ctx, c.Root(), "self", 0)
	require.NoError(t, err)
	u, err := self.Page().URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "about:blank", u)
	_, err = c.FindFrame(ctx, self, "self", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	page = memtest.Open(t, site.URL("/ping"), site)
	c = NewCoordinator(NewRegistry(page), Options{Logger: zaptest.NewLogger(t)})
	pong, err := c.FindFrame(ctx, c.Root(), "pong", 0)
	require.NoError(t, err)
	el, err := pong.Page().Query(ctx, "#leaf")
	require.NoError(t, err)
	text, err := el.Text(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong", text)

	ping, err := c.FindFrame(ctx, c.Root(), "ping", 0)
	require.NoError(t, err)
	assert.Same(t, pong, ping.Parent())
	again, err := c.FindFrame(ctx, c.Root(), "ping", 0)
	require.NoError(t, err)
	assert.Same(t, ping, again)
	assert.Equal(t, 1, site.Renders("/ping"), "the nested ping frame must not load")
}
