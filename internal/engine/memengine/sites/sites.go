package sites

import (
	"net/url"

	"github.com/v0xg/uiharness/internal/engine/memengine"
)

// About simulates the saucelabs.com landing page the SauceDemo menu links to.
type About struct{}

func (About) Host() string  { return "saucelabs.com" }
func (About) NewState() any { return nil }

func (About) Render(t *memengine.Tab, u *url.URL) (string, error) {
	return `<html><head><title>Sauce Labs: Cross Browser Testing</title></head><body>
<h1>Build it right with Sauce Labs</h1></body></html>`, nil
}

func (About) Handle(t *memengine.Tab, ev memengine.Event) (bool, error) { return false, nil }

// Options configures the default site set.
type Options struct {
	SauceDemo SauceDemoOptions
	Downloads map[string][]byte
}

// All returns every simulated site.
func All(opts Options) ([]memengine.Site, error) {
	sd, err := NewSauceDemo(opts.SauceDemo)
	if err != nil {
		return nil, err
	}
	ti, err := NewTheInternet(opts.Downloads)
	if err != nil {
		return nil, err
	}
	return []memengine.Site{sd, ti, About{}}, nil
}
