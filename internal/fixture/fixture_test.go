package fixture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/v0xg/uiharness/internal/config"
	"github.com/v0xg/uiharness/internal/engine/memengine"
	"github.com/v0xg/uiharness/internal/engine/memengine/sites"
	"github.com/v0xg/uiharness/internal/metrics"
	"github.com/v0xg/uiharness/internal/surface"
	"github.com/v0xg/uiharness/internal/testdata"
)

func testBrowser(t *testing.T) *memengine.Browser {
	t.Helper()
	all, err := sites.All(sites.Options{})
	require.NoError(t, err)
	b := memengine.New(memengine.Options{Logger: zaptest.NewLogger(t)}, all...)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testOptions(t *testing.T) Options {
	return Options{
		Timeouts: config.TimeoutConfig{
			Action:     2 * time.Second,
			Wait:       time.Second,
			Poll:       5 * time.Millisecond,
			Spawn:      time.Second,
			Navigation: 2 * time.Second,
		},
		Targets: config.TargetsConfig{
			SauceDemo: "https://www.saucedemo.com",
			HerokuApp: "https://the-internet.herokuapp.com",
		},
		DownloadDir: t.TempDir(),
		Logger:      zaptest.NewLogger(t),
		Metrics:     metrics.New(),
	}
}

func TestSessionPageObjects(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, testBrowser(t), testOptions(t))
	require.NoError(t, err)
	defer s.Close(ctx)

	users := testdata.MustUsers()
	login := s.SauceDemo()
	require.NoError(t, login.Open(ctx))
	inv, err := login.LoginAs(ctx, users.Standard.Username, users.Standard.Password)
	require.NoError(t, err)
	n, err := inv.ProductCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(testdata.MustCatalogue().Products), n)

	w := s.HerokuApp().Windows()
	require.NoError(t, w.Open(ctx))
	popup, err := w.OpenNewWindow(ctx)
	require.NoError(t, err)
	assert.Len(t, s.Coordinator().Registry().Surfaces(), 2)
	assert.Same(t, s.Root(), popup.Surface().Parent())
}

func TestCloseTearsDownEverySurface(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, testBrowser(t), testOptions(t))
	require.NoError(t, err)

	w := s.HerokuApp().Windows()
	require.NoError(t, w.Open(ctx))
	popup, err := w.OpenNewWindow(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Close(ctx))
	assert.Empty(t, s.Coordinator().Registry().Surfaces())
	assert.True(t, s.Root().Closed())
	assert.True(t, popup.Surface().Closed())
	assert.True(t, s.Root().Page().Detached(ctx))

	require.NoError(t, s.Close(ctx), "second close is a no-op")

	err = s.Base().Goto(ctx, "https://www.saucedemo.com/")
	assert.ErrorIs(t, err, surface.ErrDetached)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	b := testBrowser(t)
	users := testdata.MustUsers()

	a, err := Open(ctx, b, testOptions(t))
	require.NoError(t, err)
	defer a.Close(ctx)
	require.NoError(t, a.SauceDemo().Open(ctx))
	_, err = a.SauceDemo().LoginAs(ctx, users.Standard.Username, users.Standard.Password)
	require.NoError(t, err)

	other, err := Open(ctx, b, testOptions(t))
	require.NoError(t, err)
	defer other.Close(ctx)
	require.NoError(t, other.Base().Goto(ctx, "https://www.saucedemo.com/inventory.html"))
	login := other.SauceDemo()
	require.NoError(t, login.WaitLoaded(ctx))
	require.NoError(t, login.VerifyError(ctx, "Epic sadface: You can only access '/inventory.html' when you are logged in."))
}

func TestOpenOnClosedBrowser(t *testing.T) {
	b := testBrowser(t)
	require.NoError(t, b.Close())
	_, err := Open(context.Background(), b, testOptions(t))
	require.Error(t, err)
}

func TestTeardownKeepsOriginalFailure(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, testBrowser(t), testOptions(t))
	require.NoError(t, err)

	caseErr := errors.New("case failed")
	err = caseErr
	Teardown(ctx, s, &err)
	assert.Same(t, caseErr, err)

	var none error
	Teardown(ctx, s, &none)
	assert.NoError(t, none)
}
