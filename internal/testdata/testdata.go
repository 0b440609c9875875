// Package testdata embeds the users, catalogue and checkout details the
// suites and the simulated sites share.
package testdata

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed users.yaml
var usersYAML []byte

//go:embed products.yaml
var productsYAML []byte

// User is a login with the error it is expected to produce, if any.
type User struct {
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	ExpectedError string `yaml:"expected_error"`
}

// Users are the known accounts.
type Users struct {
	Standard          User `yaml:"standard"`
	LockedOut         User `yaml:"locked_out"`
	Problem           User `yaml:"problem"`
	PerformanceGlitch User `yaml:"performance_glitch"`
	Invalid           User `yaml:"invalid"`
	FormAuth          User `yaml:"form_auth"`
}

// Product is one catalogue entry.
type Product struct {
	ID          int     `yaml:"id"`
	Name        string  `yaml:"name"`
	Price       float64 `yaml:"price"`
	Description string  `yaml:"description"`
}

// Slug is the fragment SauceDemo derives button ids from, e.g.
// "add-to-cart-sauce-labs-backpack".
func (p Product) Slug() string {
	return strings.ReplaceAll(strings.ToLower(p.Name), " ", "-")
}

// CheckoutInfo is the customer form of the first checkout step.
type CheckoutInfo struct {
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	PostalCode string `yaml:"postal_code"`
}

// Catalogue is the product list in its default (A to Z) order.
type Catalogue struct {
	TaxRate  float64      `yaml:"tax_rate"`
	Products []Product    `yaml:"products"`
	Checkout CheckoutInfo `yaml:"checkout"`
}

// ByName looks a product up.
func (c *Catalogue) ByName(name string) (Product, bool) {
	i := slices.IndexFunc(c.Products, func(p Product) bool { return p.Name == name })
	if i < 0 {
		return Product{}, false
	}
	return c.Products[i], true
}

// ByID looks a product up by its inventory id.
func (c *Catalogue) ByID(id int) (Product, bool) {
	i := slices.IndexFunc(c.Products, func(p Product) bool { return p.ID == id })
	if i < 0 {
		return Product{}, false
	}
	return c.Products[i], true
}

// Names returns every product name in catalogue order.
func (c *Catalogue) Names() []string {
	out := make([]string, len(c.Products))
	for i, p := range c.Products {
		out[i] = p.Name
	}
	return out
}

var (
	loadOnce  sync.Once
	users     Users
	catalogue Catalogue
	loadErr   error
)

func load() {
	if err := yaml.Unmarshal(usersYAML, &users); err != nil {
		loadErr = fmt.Errorf("parse users.yaml: %w", err)
		return
	}
	if err := yaml.Unmarshal(productsYAML, &catalogue); err != nil {
		loadErr = fmt.Errorf("parse products.yaml: %w", err)
	}
}

// LoadUsers returns the embedded users.
func LoadUsers() (Users, error) {
	loadOnce.Do(load)
	return users, loadErr
}

// LoadCatalogue returns a copy of the embedded catalogue.
func LoadCatalogue() (Catalogue, error) {
	loadOnce.Do(load)
	c := catalogue
	c.Products = slices.Clone(catalogue.Products)
	return c, loadErr
}

// MustUsers is LoadUsers for callers that cannot recover from broken
// embedded data.
func MustUsers() Users {
	u, err := LoadUsers()
	if err != nil {
		panic(err)
	}
	return u
}

// MustCatalogue is LoadCatalogue, panicking on error.
func MustCatalogue() Catalogue {
	c, err := LoadCatalogue()
	if err != nil {
		panic(err)
	}
	return c
}
