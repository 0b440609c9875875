package rodengine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/uiharness/internal/engine"
)

func TestEaseInOutQuad(t *testing.T) {
	assert.Equal(t, 0.0, easeInOutQuad(0))
	assert.Equal(t, 0.5, easeInOutQuad(0.5))
	assert.Equal(t, 1.0, easeInOutQuad(1))
	assert.Less(t, easeInOutQuad(0.25), 0.25)
	assert.Greater(t, easeInOutQuad(0.75), 0.75)
}

func TestPathEndsOnTarget(t *testing.T) {
	pts := path(proto.Point{X: 0, Y: 100}, proto.Point{X: 200, Y: 0}, 8)
	require.Len(t, pts, 8)
	assert.Equal(t, proto.Point{X: 200, Y: 0}, pts[7])
	for i := 1; i < len(pts); i++ {
		assert.GreaterOrEqual(t, pts[i].X, pts[i-1].X)
		assert.LessOrEqual(t, pts[i].Y, pts[i-1].Y)
	}
}

func TestQuadCenter(t *testing.T) {
	x, y := quadCenter(proto.DOMQuad{10, 20, 110, 20, 110, 60, 10, 60})
	assert.Equal(t, 60.0, x)
	assert.Equal(t, 40.0, y)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, wrap(nil))

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"session gone", fmt.Errorf("call: %w", cdp.ErrSessionNotFound), engine.ErrDetached},
		{"context destroyed", cdp.ErrCtxDestroyed, engine.ErrNoElement},
		{"object gone", &rod.ObjectNotFoundError{}, engine.ErrNoElement},
		{"element missing", &rod.ElementNotFoundError{}, engine.ErrNoElement},
		{"not interactable", fmt.Errorf("click: %w", &rod.NotInteractableError{}), engine.ErrNotInteractable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, wrap(tc.err), tc.want)
		})
	}

	other := errors.New("boom")
	assert.Same(t, other, wrap(other))
}
