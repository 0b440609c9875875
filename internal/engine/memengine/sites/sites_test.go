package sites

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/uiharness/internal/engine"
	"github.com/v0xg/uiharness/internal/engine/memengine"
)

func open(t *testing.T, raw string) engine.Page {
	t.Helper()
	all, err := All(Options{SauceDemo: SauceDemoOptions{Latency: 10 * time.Millisecond, GlitchDelay: 40 * time.Millisecond}})
	require.NoError(t, err)
	b := memengine.New(memengine.Options{}, all...)
	t.Cleanup(func() { _ = b.Close() })
	c, err := b.NewContext(context.Background())
	require.NoError(t, err)
	p, err := c.NewPage(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Navigate(context.Background(), raw))
	return p
}

func do(t *testing.T, p engine.Page, sel string, fn func(engine.Element) error) {
	t.Helper()
	el, err := p.Query(context.Background(), sel)
	require.NoError(t, err, sel)
	require.NoError(t, fn(el), sel)
}

func click(ctx context.Context) func(engine.Element) error {
	return func(el engine.Element) error { return el.Click(ctx) }
}

func fill(ctx context.Context, v string) func(engine.Element) error {
	return func(el engine.Element) error { return el.Fill(ctx, v) }
}

func text(t *testing.T, p engine.Page, sel string) string {
	t.Helper()
	el, err := p.Query(context.Background(), sel)
	require.NoError(t, err, sel)
	s, err := el.Text(context.Background())
	require.NoError(t, err)
	return s
}

func pageURL(t *testing.T, p engine.Page) string {
	t.Helper()
	u, err := p.URL(context.Background())
	require.NoError(t, err)
	return u
}

func login(t *testing.T, p engine.Page, user, pass string) {
	ctx := context.Background()
	do(t, p, "#user-name", fill(ctx, user))
	do(t, p, "#password", fill(ctx, pass))
	do(t, p, "#login-button", click(ctx))
}

func TestSauceDemoGuardsInventory(t *testing.T) {
	p := open(t, "https://www.saucedemo.com/inventory.html")
	assert.Equal(t, "https://www.saucedemo.com/", pageURL(t, p))
	assert.Equal(t, "Epic sadface: You can only access '/inventory.html' when you are logged in.", text(t, p, `[data-test="error"]`))
}

func TestSauceDemoLoginErrors(t *testing.T) {
	cases := map[string][2]string{
		"Epic sadface: Username is required":                                        {"", "x"},
		"Epic sadface: Password is required":                                        {"standard_user", ""},
		"Epic sadface: Sorry, this user has been locked out.":                       {"locked_out_user", "secret_sauce"},
		"Epic sadface: Username and password do not match any user in this service": {"invalid_user", "invalid_password"},
	}
	for want, creds := range cases {
		p := open(t, "https://www.saucedemo.com/")
		login(t, p, creds[0], creds[1])
		assert.Equal(t, want, text(t, p, `[data-test="error"]`))
	}
}

func TestSauceDemoCartBadgeLags(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://www.saucedemo.com/")
	login(t, p, "standard_user", "secret_sauce")
	require.Equal(t, "https://www.saucedemo.com/inventory.html", pageURL(t, p))

	do(t, p, "#add-to-cart-sauce-labs-backpack", click(ctx))
	_, err := p.Query(ctx, "#remove-sauce-labs-backpack")
	require.NoError(t, err)

	require.NoError(t, p.WaitIdle(ctx))
	assert.Equal(t, "1", text(t, p, ".shopping_cart_badge"))

	do(t, p, "#remove-sauce-labs-backpack", click(ctx))
	require.NoError(t, p.WaitIdle(ctx))
	_, err = p.Query(ctx, ".shopping_cart_badge")
	assert.ErrorIs(t, err, engine.ErrNoElement)
}

func TestSauceDemoBadgeSettlesAcrossNavigation(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://www.saucedemo.com/")
	login(t, p, "standard_user", "secret_sauce")

	do(t, p, "#add-to-cart-sauce-labs-backpack", click(ctx))
	do(t, p, "#add-to-cart-sauce-labs-onesie", click(ctx))
	do(t, p, "#remove-sauce-labs-backpack", click(ctx))
	// Leave before the badge has caught up.
	require.NoError(t, p.Navigate(ctx, "https://www.saucedemo.com/cart.html"))
	require.NoError(t, p.WaitIdle(ctx))
	assert.Equal(t, "1", text(t, p, ".shopping_cart_badge"))

	do(t, p, "#remove-sauce-labs-onesie", click(ctx))
	require.NoError(t, p.Navigate(ctx, "https://www.saucedemo.com/inventory.html"))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, p.Navigate(ctx, "https://www.saucedemo.com/cart.html"))
	_, err := p.Query(ctx, ".shopping_cart_badge")
	assert.ErrorIs(t, err, engine.ErrNoElement)
	items, err := p.QueryAll(ctx, ".cart_item")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSauceDemoResetLeavesStaleButtons(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://www.saucedemo.com/")
	login(t, p, "standard_user", "secret_sauce")
	do(t, p, "#add-to-cart-sauce-labs-bike-light", click(ctx))
	require.NoError(t, p.WaitIdle(ctx))

	do(t, p, "#react-burger-menu-btn", click(ctx))
	require.NoError(t, p.WaitIdle(ctx))
	do(t, p, "#reset_sidebar_link", click(ctx))

	_, err := p.Query(ctx, ".shopping_cart_badge")
	assert.ErrorIs(t, err, engine.ErrNoElement)
	_, err = p.Query(ctx, "#remove-sauce-labs-bike-light")
	assert.NoError(t, err, "button is stale until the next render")

	require.NoError(t, p.Reload(ctx))
	_, err = p.Query(ctx, "#add-to-cart-sauce-labs-bike-light")
	assert.NoError(t, err)
}

func TestSauceDemoSortAndCheckout(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://www.saucedemo.com/")
	login(t, p, "standard_user", "secret_sauce")

	do(t, p, `[data-test="product-sort-container"]`, func(el engine.Element) error { return el.Select(ctx, "lohi") })
	require.NoError(t, p.WaitIdle(ctx))
	assert.Equal(t, "Price (low to high)", text(t, p, ".active_option"))
	assert.Equal(t, "Sauce Labs Onesie", text(t, p, ".inventory_item_name"))

	do(t, p, "#add-to-cart-sauce-labs-backpack", click(ctx))
	do(t, p, "#add-to-cart-sauce-labs-bike-light", click(ctx))
	require.NoError(t, p.WaitIdle(ctx))
	do(t, p, ".shopping_cart_link", click(ctx))
	assert.Equal(t, "https://www.saucedemo.com/cart.html", pageURL(t, p))
	items, err := p.QueryAll(ctx, ".cart_item")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	do(t, p, "#checkout", click(ctx))
	do(t, p, "#continue", click(ctx))
	assert.Equal(t, "Error: First Name is required", text(t, p, `[data-test="error"]`))

	do(t, p, "#first-name", fill(ctx, "John"))
	do(t, p, "#last-name", fill(ctx, "Doe"))
	do(t, p, "#postal-code", fill(ctx, "12345"))
	do(t, p, "#continue", click(ctx))
	assert.Equal(t, "Item total: $39.98", text(t, p, ".summary_subtotal_label"))
	assert.Equal(t, "Tax: $3.20", text(t, p, ".summary_tax_label"))
	assert.Equal(t, "Total: $43.18", text(t, p, ".summary_total_label"))

	do(t, p, "#finish", click(ctx))
	assert.Equal(t, "Thank you for your order!", text(t, p, ".complete-header"))
}

func TestSauceDemoPerformanceGlitch(t *testing.T) {
	p := open(t, "https://www.saucedemo.com/")
	login(t, p, "performance_glitch_user", "secret_sauce")
	assert.Equal(t, "https://www.saucedemo.com/", pageURL(t, p))
	require.NoError(t, p.WaitIdle(context.Background()))
	assert.Equal(t, "https://www.saucedemo.com/inventory.html", pageURL(t, p))
}

func TestTheInternetFormAuth(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://the-internet.herokuapp.com/login")
	do(t, p, "#username", fill(ctx, "tomsmith"))
	do(t, p, "#password", fill(ctx, "wrong"))
	do(t, p, "button.radius", click(ctx))
	assert.Contains(t, text(t, p, "#flash"), "Your password is invalid!")

	do(t, p, "#username", fill(ctx, "tomsmith"))
	do(t, p, "#password", fill(ctx, "SuperSecretPassword!"))
	do(t, p, "button.radius", click(ctx))
	assert.Equal(t, "https://the-internet.herokuapp.com/secure", pageURL(t, p))
	assert.Contains(t, text(t, p, "#flash"), "You logged into a secure area!")

	do(t, p, `a[href="/logout"]`, click(ctx))
	assert.Equal(t, "https://the-internet.herokuapp.com/login", pageURL(t, p))
	assert.Contains(t, text(t, p, "#flash"), "You logged out of a secure area!")
}

func TestTheInternetPrompt(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://the-internet.herokuapp.com/javascript_alerts")
	wait := p.ExpectDialog(ctx)
	done := make(chan error, 1)
	go func() {
		el, err := p.Query(ctx, `[onclick="jsPrompt()"]`)
		if err == nil {
			err = el.Click(ctx)
		}
		done <- err
	}()
	d, err := wait()
	require.NoError(t, err)
	assert.Equal(t, "I am a JS prompt", d.Message())
	require.NoError(t, d.Accept(ctx, "hello"))
	require.NoError(t, <-done)
	assert.Equal(t, "You entered: hello", text(t, p, "#result"))
}

func TestTheInternetNestedFrames(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://the-internet.herokuapp.com/nested_frames")
	frames, err := p.ChildFrames(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	inner, err := frames[0].ChildFrames(ctx)
	require.NoError(t, err)
	require.Len(t, inner, 3)
	name, err := inner[1].Name(ctx)
	require.NoError(t, err)
	assert.Equal(t, "frame-middle", name)
	assert.Equal(t, "MIDDLE", text(t, inner[1], "#content"))
	assert.Equal(t, "BOTTOM", text(t, frames[1], "body"))
}

func TestTheInternetUpload(t *testing.T) {
	ctx := context.Background()
	p := open(t, "https://the-internet.herokuapp.com/upload")
	do(t, p, "#file-upload", func(el engine.Element) error { return el.SetFiles(ctx, []string{"/tmp/x/upload.txt"}) })
	do(t, p, "#file-submit", click(ctx))
	assert.Equal(t, "File Uploaded!", text(t, p, "h3"))
	assert.Equal(t, "upload.txt", text(t, p, "#uploaded-files"))
}

func TestTheInternetDynamicControls(t *testing.T) {
	p := open(t, "https://the-internet.herokuapp.com/dynamic_controls")
	ctx := context.Background()

	input, err := p.Query(ctx, "#input-example input[type=text]")
	require.NoError(t, err)
	_, off, err := input.Attribute(ctx, "disabled")
	require.NoError(t, err)
	assert.True(t, off)

	button, err := p.Query(ctx, "#input-example button")
	require.NoError(t, err)
	auto, _, err := button.Attribute(ctx, "autocomplete")
	require.NoError(t, err)
	assert.Equal(t, "off", auto)
	require.NoError(t, button.Click(ctx))

	// The button stays disabled while the spinner runs.
	assert.ErrorIs(t, button.Click(ctx), engine.ErrNotInteractable)
	require.NoError(t, input.WaitActionable(ctx))
	require.NoError(t, input.Fill(ctx, "typed"))
	assert.Equal(t, "It's enabled!", text(t, p, "#input-example #message"))
	assert.Equal(t, "Disable", text(t, p, "#input-example button"))

	do(t, p, "#checkbox-example button", click(ctx))
	require.NoError(t, p.WaitIdle(ctx))
	_, err = p.Query(ctx, "#checkbox")
	assert.ErrorIs(t, err, engine.ErrNoElement)
	assert.Equal(t, "It's gone!", text(t, p, "#checkbox-example #message"))

	do(t, p, "#checkbox-example button", click(ctx))
	require.NoError(t, p.WaitIdle(ctx))
	_, err = p.Query(ctx, "input#checkbox")
	require.NoError(t, err)
	assert.Equal(t, "It's back!", text(t, p, "#checkbox-example #message"))
}

func TestTheInternetDragAndDrop(t *testing.T) {
	p := open(t, "https://the-internet.herokuapp.com/drag_and_drop")
	ctx := context.Background()

	a, err := p.Query(ctx, "#column-a")
	require.NoError(t, err)
	b, err := p.Query(ctx, "#column-b header")
	require.NoError(t, err)
	require.NoError(t, a.DragTo(ctx, b))
	assert.Equal(t, "B", text(t, p, "#column-a header"))
	assert.Equal(t, "A", text(t, p, "#column-b header"))

	require.NoError(t, a.DragTo(ctx, a))
	assert.Equal(t, "B", text(t, p, "#column-a header"))
}

func TestTheInternetCheckboxesAndDropdown(t *testing.T) {
	p := open(t, "https://the-internet.herokuapp.com/checkboxes")
	ctx := context.Background()

	boxes, err := p.QueryAll(ctx, "#checkboxes input")
	require.NoError(t, err)
	require.Len(t, boxes, 2)
	require.NoError(t, boxes[0].Click(ctx))
	_, on, err := boxes[0].Attribute(ctx, "checked")
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, p.Navigate(ctx, "https://the-internet.herokuapp.com/dropdown"))
	do(t, p, "#dropdown", func(el engine.Element) error { return el.Select(ctx, "Option 2") })
	_, on, err = mustQuery(t, p, "#dropdown option[value='2']").Attribute(ctx, "selected")
	require.NoError(t, err)
	assert.True(t, on)
	_, on, err = mustQuery(t, p, "#dropdown option[value='']").Attribute(ctx, "selected")
	require.NoError(t, err)
	assert.False(t, on)
}

func mustQuery(t *testing.T, p engine.Page, sel string) engine.Element {
	t.Helper()
	el, err := p.Query(context.Background(), sel)
	require.NoError(t, err, sel)
	return el
}
