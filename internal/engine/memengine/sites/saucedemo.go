// Package sites simulates the applications the suites target, for the
// in-memory engine.
package sites

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/v0xg/uiharness/internal/engine/memengine"
	"github.com/v0xg/uiharness/internal/testdata"
)

// SauceDemoOptions tunes the simulated store.
type SauceDemoOptions struct {
	// Latency delays badge and sort re-renders, like the real client.
	Latency time.Duration
	// GlitchDelay is how long performance_glitch_user logins take.
	GlitchDelay time.Duration
}

// SauceDemo simulates www.saucedemo.com.
type SauceDemo struct {
	opts  SauceDemoOptions
	users testdata.Users
	cat   testdata.Catalogue
}

var _ memengine.Site = (*SauceDemo)(nil)

// NewSauceDemo builds the store from the embedded catalogue.
func NewSauceDemo(opts SauceDemoOptions) (*SauceDemo, error) {
	users, err := testdata.LoadUsers()
	if err != nil {
		return nil, err
	}
	cat, err := testdata.LoadCatalogue()
	if err != nil {
		return nil, err
	}
	return &SauceDemo{opts: opts, users: users, cat: cat}, nil
}

func (s *SauceDemo) Host() string { return "www.saucedemo.com" }

type sauceState struct {
	mu        sync.Mutex
	user      string
	cart      []int
	badge     badge
	sort      string
	menuOpen  bool
	formError string
	info      testdata.CheckoutInfo
}

// badge is the cart count the header shows. A change becomes visible only
// after its due time; renders before that still show the old count.
type badge struct {
	shown, next int
	due         time.Time
}

func (b badge) at(now time.Time) int {
	if now.Before(b.due) {
		return b.shown
	}
	return b.next
}

func (b *badge) set(n int, due time.Time) {
	b.shown = b.at(time.Now())
	b.next, b.due = n, due
}

func (b *badge) reset(n int) { *b = badge{shown: n, next: n} }

func (s *SauceDemo) NewState() any { return &sauceState{sort: "az"} }

var sortLabels = map[string]string{
	"az":   "Name (A to Z)",
	"za":   "Name (Z to A)",
	"lohi": "Price (low to high)",
	"hilo": "Price (high to low)",
}

func (s *SauceDemo) Render(t *memengine.Tab, u *url.URL) (string, error) {
	st := t.State().(*sauceState)
	st.mu.Lock()
	defer st.mu.Unlock()

	path := u.Path
	if path == "" {
		path = "/"
	}
	if path != "/" && st.user == "" {
		st.formError = fmt.Sprintf("Epic sadface: You can only access '%s' when you are logged in.", path)
		return "", &memengine.Redirect{URL: "/"}
	}

	now := time.Now()
	if pending := st.badge.due.Sub(now); pending > 0 {
		t.RepaintAfter(pending)
	}
	data := map[string]any{
		"MenuOpen": st.menuOpen,
		"Badge":    st.badge.at(now),
		"Sort":     st.sort,
		"Labels":   sortLabels,
	}
	switch path {
	case "/":
		data["Error"] = st.formError
		st.formError = ""
		return render("login", data)
	case "/inventory.html":
		data["Items"] = s.items(st)
		return render("inventory", data)
	case "/inventory-item.html":
		id, err := strconv.Atoi(u.Query().Get("id"))
		p, ok := s.cat.ByID(id)
		if err != nil || !ok {
			return render("notfound", data)
		}
		data["Item"] = s.item(st, p)
		return render("detail", data)
	case "/cart.html":
		data["Items"] = s.cartItems(st)
		return render("cart", data)
	case "/checkout-step-one.html":
		data["Error"] = st.formError
		st.formError = ""
		return render("step-one", data)
	case "/checkout-step-two.html":
		items := s.cartItems(st)
		var subtotal float64
		for _, it := range items {
			subtotal += it.Price
		}
		tax := round2(subtotal * s.cat.TaxRate)
		data["Items"] = items
		data["Subtotal"] = fmt.Sprintf("%.2f", subtotal)
		data["Tax"] = fmt.Sprintf("%.2f", tax)
		data["Total"] = fmt.Sprintf("%.2f", subtotal+tax)
		return render("step-two", data)
	case "/checkout-complete.html":
		return render("complete", data)
	}
	return render("notfound", data)
}

func round2(f float64) float64 {
	v, _ := strconv.ParseFloat(fmt.Sprintf("%.2f", f), 64)
	return v
}

type itemView struct {
	ID       int
	Name     string
	Slug     string
	Desc     string
	Price    float64
	PriceStr string
	InCart   bool
	Img      string
}

func (s *SauceDemo) item(st *sauceState, p testdata.Product) itemView {
	img := fmt.Sprintf("/static/media/%s.jpg", p.Slug())
	if st.user == s.users.Problem.Username {
		img = "/static/media/sl-404.168b1cce.jpg"
	}
	return itemView{
		ID:       p.ID,
		Name:     p.Name,
		Slug:     p.Slug(),
		Desc:     p.Description,
		Price:    p.Price,
		PriceStr: fmt.Sprintf("%.2f", p.Price),
		InCart:   slices.Contains(st.cart, p.ID),
		Img:      img,
	}
}

func (s *SauceDemo) items(st *sauceState) []itemView {
	out := make([]itemView, 0, len(s.cat.Products))
	for _, p := range s.cat.Products {
		out = append(out, s.item(st, p))
	}
	slices.SortStableFunc(out, func(a, b itemView) int {
		switch st.sort {
		case "za":
			return strings.Compare(b.Name, a.Name)
		case "lohi":
			return compareFloat(a.Price, b.Price)
		case "hilo":
			return compareFloat(b.Price, a.Price)
		default:
			return strings.Compare(a.Name, b.Name)
		}
	})
	return out
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (s *SauceDemo) cartItems(st *sauceState) []itemView {
	out := make([]itemView, 0, len(st.cart))
	for _, id := range st.cart {
		if p, ok := s.cat.ByID(id); ok {
			out = append(out, s.item(st, p))
		}
	}
	return out
}

func (s *SauceDemo) Handle(t *memengine.Tab, ev memengine.Event) (bool, error) {
	st := t.State().(*sauceState)
	switch ev.Type {
	case memengine.EventSubmit:
		return s.submit(t, st)
	case memengine.EventChange:
		if dt, _ := ev.Target.Attr("data-test"); dt == "product-sort-container" {
			st.mu.Lock()
			st.sort = ev.Value
			st.mu.Unlock()
			t.Later(s.opts.Latency, func(t *memengine.Tab) { _ = t.Rerender() })
			return true, nil
		}
	case memengine.EventClick:
		id, _ := ev.Target.Attr("id")
		return s.click(t, st, id)
	}
	return false, nil
}

func (s *SauceDemo) click(t *memengine.Tab, st *sauceState, id string) (bool, error) {
	switch {
	case id == "react-burger-menu-btn":
		st.mu.Lock()
		st.menuOpen = true
		st.mu.Unlock()
		t.Later(s.opts.Latency, func(t *memengine.Tab) { _ = t.Rerender() })
		return true, nil
	case id == "react-burger-cross-btn":
		st.mu.Lock()
		st.menuOpen = false
		st.mu.Unlock()
		return true, t.Rerender()
	case id == "logout_sidebar_link":
		st.mu.Lock()
		st.user, st.menuOpen = "", false
		st.mu.Unlock()
		return true, t.Navigate("/")
	case id == "inventory_sidebar_link":
		st.mu.Lock()
		st.menuOpen = false
		st.mu.Unlock()
		return true, t.Navigate("/inventory.html")
	case id == "reset_sidebar_link":
		st.mu.Lock()
		st.cart = nil
		st.badge.reset(0)
		st.mu.Unlock()
		// The real client drops the badge but leaves the product buttons
		// as they were until the next render.
		t.Doc().Find(".shopping_cart_badge").Remove()
		return true, nil
	case id == "continue-shopping" || id == "back-to-products":
		return true, t.Navigate("/inventory.html")
	case id == "checkout":
		return true, t.Navigate("/checkout-step-one.html")
	case id == "cancel":
		if strings.Contains(t.URL().Path, "step-two") {
			return true, t.Navigate("/inventory.html")
		}
		return true, t.Navigate("/cart.html")
	case id == "finish":
		st.mu.Lock()
		st.cart = nil
		st.badge.reset(0)
		st.mu.Unlock()
		return true, t.Navigate("/checkout-complete.html")
	case id == "add-to-cart" || id == "remove":
		pid, _ := strconv.Atoi(t.URL().Query().Get("id"))
		return true, s.toggle(t, st, pid, id == "add-to-cart")
	case strings.HasPrefix(id, "add-to-cart-"):
		return true, s.toggleSlug(t, st, strings.TrimPrefix(id, "add-to-cart-"), true)
	case strings.HasPrefix(id, "remove-"):
		return true, s.toggleSlug(t, st, strings.TrimPrefix(id, "remove-"), false)
	}
	return false, nil
}

func (s *SauceDemo) toggleSlug(t *memengine.Tab, st *sauceState, slug string, add bool) error {
	for _, p := range s.cat.Products {
		if p.Slug() == slug {
			return s.toggle(t, st, p.ID, add)
		}
	}
	return fmt.Errorf("unknown product %q", slug)
}

// toggle updates the cart and the buttons at once; the badge follows after
// the client latency.
func (s *SauceDemo) toggle(t *memengine.Tab, st *sauceState, id int, add bool) error {
	st.mu.Lock()
	if add && !slices.Contains(st.cart, id) {
		st.cart = append(st.cart, id)
	}
	if !add {
		st.cart = slices.DeleteFunc(st.cart, func(x int) bool { return x == id })
	}
	st.badge.set(len(st.cart), time.Now().Add(s.opts.Latency))
	st.mu.Unlock()

	return t.Rerender()
}

func (s *SauceDemo) submit(t *memengine.Tab, st *sauceState) (bool, error) {
	switch t.URL().Path {
	case "/", "":
		return true, s.login(t, st)
	case "/checkout-step-one.html":
		info := testdata.CheckoutInfo{
			FirstName:  t.Value("#first-name"),
			LastName:   t.Value("#last-name"),
			PostalCode: t.Value("#postal-code"),
		}
		st.mu.Lock()
		switch {
		case info.FirstName == "":
			st.formError = "Error: First Name is required"
		case info.LastName == "":
			st.formError = "Error: Last Name is required"
		case info.PostalCode == "":
			st.formError = "Error: Postal Code is required"
		default:
			st.info = info
		}
		failed := st.formError != ""
		st.mu.Unlock()
		if failed {
			return true, t.Rerender()
		}
		return true, t.Navigate("/checkout-step-two.html")
	}
	return false, nil
}

func (s *SauceDemo) login(t *memengine.Tab, st *sauceState) error {
	user, pass := t.Value("#user-name"), t.Value("#password")
	known := []testdata.User{s.users.Standard, s.users.LockedOut, s.users.Problem, s.users.PerformanceGlitch}

	var msg string
	switch {
	case user == "":
		msg = "Epic sadface: Username is required"
	case pass == "":
		msg = "Epic sadface: Password is required"
	case user == s.users.LockedOut.Username && pass == s.users.LockedOut.Password:
		msg = s.users.LockedOut.ExpectedError
	case !slices.ContainsFunc(known, func(u testdata.User) bool { return u.Username == user && u.Password == pass }):
		msg = "Epic sadface: Username and password do not match any user in this service"
	}

	st.mu.Lock()
	if msg != "" {
		st.formError = msg
		st.mu.Unlock()
		return t.Rerender()
	}
	st.user = user
	st.badge.reset(len(st.cart))
	st.mu.Unlock()

	if user == s.users.PerformanceGlitch.Username && s.opts.GlitchDelay > 0 {
		t.Later(s.opts.GlitchDelay, func(t *memengine.Tab) { _ = t.Navigate("/inventory.html") })
		return nil
	}
	return t.Navigate("/inventory.html")
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := sauceTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

var sauceTemplates = template.Must(template.New("sauce").Parse(`
{{define "header"}}
<div class="primary_header">
  <div id="menu_button_container">
    <button id="react-burger-menu-btn" type="button">Open Menu</button>
    <div class="bm-menu-wrap"{{if not .MenuOpen}} hidden{{end}}>
      <nav class="bm-item-list">
        <a id="inventory_sidebar_link" class="bm-item menu-item" href="#">All Items</a>
        <a id="about_sidebar_link" class="bm-item menu-item" href="https://saucelabs.com/">About</a>
        <a id="logout_sidebar_link" class="bm-item menu-item" href="#">Logout</a>
        <a id="reset_sidebar_link" class="bm-item menu-item" href="#">Reset App State</a>
      </nav>
      <button id="react-burger-cross-btn" type="button">Close Menu</button>
    </div>
  </div>
  <div class="app_logo">Swag Labs</div>
  <div id="shopping_cart_container" class="shopping_cart_container">
    <a class="shopping_cart_link" data-test="shopping-cart-link" href="./cart.html">{{if gt .Badge 0}}<span class="shopping_cart_badge" data-test="shopping-cart-badge">{{.Badge}}</span>{{end}}</a>
  </div>
</div>
{{end}}

{{define "login"}}<html><head><title>Swag Labs</title></head><body>
<div class="login_logo">Swag Labs</div>
<form id="login_form">
  <input id="user-name" name="user-name" data-test="username" type="text" placeholder="Username" value="">
  <input id="password" name="password" data-test="password" type="password" placeholder="Password" value="">
  {{if .Error}}<div class="error-message-container error"><h3 data-test="error">{{.Error}}</h3></div>{{end}}
  <input id="login-button" name="login-button" data-test="login-button" type="submit" class="submit-button btn_action" value="Login">
</form>
</body></html>{{end}}

{{define "inventory"}}<html><head><title>Swag Labs</title></head><body>
{{template "header" .}}
<div class="header_secondary_container">
  <span class="title" data-test="title">Products</span>
  <span class="select_container">
    <span class="active_option" data-test="active-option">{{index .Labels .Sort}}</span>
    <select class="product_sort_container" data-test="product-sort-container">
      <option value="az"{{if eq .Sort "az"}} selected{{end}}>Name (A to Z)</option>
      <option value="za"{{if eq .Sort "za"}} selected{{end}}>Name (Z to A)</option>
      <option value="lohi"{{if eq .Sort "lohi"}} selected{{end}}>Price (low to high)</option>
      <option value="hilo"{{if eq .Sort "hilo"}} selected{{end}}>Price (high to low)</option>
    </select>
  </span>
</div>
<div class="inventory_list" data-test="inventory-list">
{{range .Items}}
  <div class="inventory_item" data-test="inventory-item">
    <div class="inventory_item_img"><a id="item_{{.ID}}_img_link" href="./inventory-item.html?id={{.ID}}"><img class="inventory_item_img" alt="{{.Name}}" src="{{.Img}}"></a></div>
    <div class="inventory_item_description">
      <div class="inventory_item_label">
        <a id="item_{{.ID}}_title_link" href="./inventory-item.html?id={{.ID}}"><div class="inventory_item_name" data-test="inventory-item-name">{{.Name}}</div></a>
        <div class="inventory_item_desc" data-test="inventory-item-desc">{{.Desc}}</div>
      </div>
      <div class="pricebar">
        <div class="inventory_item_price" data-test="inventory-item-price">${{.PriceStr}}</div>
        {{if .InCart}}<button class="btn btn_secondary btn_small btn_inventory" id="remove-{{.Slug}}" data-test="remove-{{.Slug}}" name="remove-{{.Slug}}">Remove</button>
        {{else}}<button class="btn btn_primary btn_small btn_inventory" id="add-to-cart-{{.Slug}}" data-test="add-to-cart-{{.Slug}}" name="add-to-cart-{{.Slug}}">Add to cart</button>{{end}}
      </div>
    </div>
  </div>
{{end}}
</div>
</body></html>{{end}}

{{define "detail"}}<html><head><title>Swag Labs</title></head><body>
{{template "header" .}}
<button id="back-to-products" data-test="back-to-products" class="btn btn_secondary back btn_large inventory_details_back_button">Back to products</button>
<div class="inventory_details">
  <img class="inventory_details_img" alt="{{.Item.Name}}" src="{{.Item.Img}}">
  <div class="inventory_details_desc_container">
    <div class="inventory_details_name large_size" data-test="inventory-item-name">{{.Item.Name}}</div>
    <div class="inventory_details_desc large_size" data-test="inventory-item-desc">{{.Item.Desc}}</div>
    <div class="inventory_details_price" data-test="inventory-item-price">${{.Item.PriceStr}}</div>
    {{if .Item.InCart}}<button class="btn btn_secondary btn_small btn_inventory" id="remove" data-test="remove">Remove</button>
    {{else}}<button class="btn btn_primary btn_small btn_inventory" id="add-to-cart" data-test="add-to-cart">Add to cart</button>{{end}}
  </div>
</div>
</body></html>{{end}}

{{define "cart"}}<html><head><title>Swag Labs</title></head><body>
{{template "header" .}}
<span class="title" data-test="title">Your Cart</span>
<div class="cart_list" data-test="cart-list">
  <div class="cart_quantity_label">QTY</div>
  <div class="cart_desc_label">Description</div>
{{range .Items}}
  <div class="cart_item" data-test="inventory-item">
    <div class="cart_quantity" data-test="item-quantity">1</div>
    <div class="cart_item_label">
      <a id="item_{{.ID}}_title_link" href="./inventory-item.html?id={{.ID}}"><div class="inventory_item_name" data-test="inventory-item-name">{{.Name}}</div></a>
      <div class="inventory_item_desc" data-test="inventory-item-desc">{{.Desc}}</div>
      <div class="item_pricebar">
        <div class="inventory_item_price" data-test="inventory-item-price">${{.PriceStr}}</div>
        <button class="btn btn_secondary btn_small cart_button" id="remove-{{.Slug}}" data-test="remove-{{.Slug}}" name="remove-{{.Slug}}">Remove</button>
      </div>
    </div>
  </div>
{{end}}
</div>
<div class="cart_footer">
  <button class="btn btn_secondary back btn_medium" id="continue-shopping" data-test="continue-shopping">Continue Shopping</button>
  <button class="btn btn_action btn_medium checkout_button" id="checkout" data-test="checkout">Checkout</button>
</div>
</body></html>{{end}}

{{define "step-one"}}<html><head><title>Swag Labs</title></head><body>
{{template "header" .}}
<span class="title" data-test="title">Checkout: Your Information</span>
<form id="checkout_info_form">
  <input id="first-name" data-test="firstName" name="firstName" type="text" placeholder="First Name" value="">
  <input id="last-name" data-test="lastName" name="lastName" type="text" placeholder="Last Name" value="">
  <input id="postal-code" data-test="postalCode" name="postalCode" type="text" placeholder="Zip/Postal Code" value="">
  {{if .Error}}<div class="error-message-container error"><h3 data-test="error">{{.Error}}</h3></div>{{end}}
  <button class="btn btn_secondary back btn_medium cart_cancel_link" id="cancel" data-test="cancel" type="button">Cancel</button>
  <input type="submit" class="submit-button btn btn_primary cart_button btn_action" id="continue" data-test="continue" name="continue" value="Continue">
</form>
</body></html>{{end}}

{{define "step-two"}}<html><head><title>Swag Labs</title></head><body>
{{template "header" .}}
<span class="title" data-test="title">Checkout: Overview</span>
<div class="cart_list" data-test="cart-list">
{{range .Items}}
  <div class="cart_item" data-test="inventory-item">
    <div class="cart_quantity" data-test="item-quantity">1</div>
    <div class="cart_item_label">
      <div class="inventory_item_name" data-test="inventory-item-name">{{.Name}}</div>
      <div class="inventory_item_price" data-test="inventory-item-price">${{.PriceStr}}</div>
    </div>
  </div>
{{end}}
</div>
<div class="summary_info">
  <div class="summary_subtotal_label" data-test="subtotal-label">Item total: ${{.Subtotal}}</div>
  <div class="summary_tax_label" data-test="tax-label">Tax: ${{.Tax}}</div>
  <div class="summary_total_label" data-test="total-label">Total: ${{.Total}}</div>
  <button class="btn btn_secondary back btn_medium cart_cancel_link" id="cancel" data-test="cancel">Cancel</button>
  <button class="btn btn_action btn_medium cart_button" id="finish" data-test="finish">Finish</button>
</div>
</body></html>{{end}}

{{define "complete"}}<html><head><title>Swag Labs</title></head><body>
{{template "header" .}}
<span class="title" data-test="title">Checkout: Complete!</span>
<div id="checkout_complete_container" class="checkout_complete_container" data-test="checkout-complete-container">
  <h2 class="complete-header" data-test="complete-header">Thank you for your order!</h2>
  <div class="complete-text" data-test="complete-text">Your order has been dispatched, and will arrive just as fast as the pony can get there!</div>
  <button class="btn btn_primary btn_small" id="back-to-products" data-test="back-to-products">Back Home</button>
</div>
</body></html>{{end}}

{{define "notfound"}}<html><head><title>Swag Labs</title></head><body><h1>404</h1></body></html>{{end}}
`))
