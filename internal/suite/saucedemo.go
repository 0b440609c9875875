package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/pages/saucedemo"
	"github.com/v0xg/uiharness/internal/testdata"
)

func signIn(ctx context.Context, env *Env, u testdata.User) (*saucedemo.Inventory, error) {
	login := env.SauceDemo()
	if err := login.Open(ctx); err != nil {
		return nil, err
	}
	return login.LoginAs(ctx, u.Username, u.Password)
}

func standard(ctx context.Context, env *Env) (*saucedemo.Inventory, error) {
	return signIn(ctx, env, testdata.MustUsers().Standard)
}

func loginError(ctx context.Context, env *Env, username, password, want string) error {
	login := env.SauceDemo()
	if err := login.Open(ctx); err != nil {
		return err
	}
	got, err := login.LoginExpectingError(ctx, username, password)
	if err != nil {
		return err
	}
	if err := expectEqual("login error", want, got); err != nil {
		return err
	}
	shown, err := login.IsDisplayed(ctx)
	if err != nil {
		return err
	}
	return expectTrue("login form still displayed", shown)
}

func authSuite() Suite {
	users := testdata.MustUsers()
	return Suite{
		Name:        "auth",
		Description: "SauceDemo login",
		Cases: []Case{
			{ID: "AUTH-001", Name: "valid login with standard user", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				logo, err := inv.Logo(ctx)
				if err != nil {
					return err
				}
				if err := expectEqual("logo", "Swag Labs", logo); err != nil {
					return err
				}
				return env.Snap(ctx, "inventory")
			}},
			{ID: "AUTH-002", Name: "invalid username", Run: func(ctx context.Context, env *Env) error {
				return loginError(ctx, env, users.Invalid.Username, users.Invalid.Password, users.Invalid.ExpectedError)
			}},
			{ID: "AUTH-003", Name: "locked out user", Run: func(ctx context.Context, env *Env) error {
				return loginError(ctx, env, users.LockedOut.Username, users.LockedOut.Password, users.LockedOut.ExpectedError)
			}},
			{ID: "AUTH-004", Name: "empty fields", Run: func(ctx context.Context, env *Env) error {
				if err := loginError(ctx, env, "", "", "Epic sadface: Username is required"); err != nil {
					return err
				}
				return loginError(ctx, env, users.Standard.Username, "", "Epic sadface: Password is required")
			}},
			{ID: "AUTH-005", Name: "password field is masked", Run: func(ctx context.Context, env *Env) error {
				login := env.SauceDemo()
				if err := login.Open(ctx); err != nil {
					return err
				}
				masked, err := login.PasswordMasked(ctx, "testpassword123")
				if err != nil {
					return err
				}
				return expectTrue("password masked", masked)
			}},
			{ID: "AUTH-006", Name: "performance glitch user login", Run: func(ctx context.Context, env *Env) error {
				start := time.Now()
				if _, err := signIn(ctx, env, users.PerformanceGlitch); err != nil {
					return err
				}
				env.Logger.Info("performance user logged in", zap.Duration("took", time.Since(start)))
				return nil
			}},
		},
	}
}

func inventorySuite() Suite {
	cat := testdata.MustCatalogue()
	sortCase := func(id string, m saucedemo.SortMode) Case {
		return Case{ID: id, Name: "sort by " + m.Label(), Run: func(ctx context.Context, env *Env) error {
			inv, err := standard(ctx, env)
			if err != nil {
				return err
			}
			if err := inv.SortBy(ctx, m); err != nil {
				return err
			}
			return inv.VerifySorted(ctx, m)
		}}
	}
	return Suite{
		Name:        "inventory",
		Description: "SauceDemo product listing",
		Cases: []Case{
			{ID: "INV-001", Name: "all products display", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				return inv.VerifyAllProductsDisplayed(ctx, cat.Names())
			}},
			sortCase("INV-002", saucedemo.SortNameAZ),
			sortCase("INV-003", saucedemo.SortNameZA),
			sortCase("INV-004", saucedemo.SortPriceLowHigh),
			sortCase("INV-005", saucedemo.SortPriceHighLow),
			{ID: "INV-006", Name: "add single product", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				if err := inv.AddToCart(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				if err := inv.WaitCartCount(ctx, 1); err != nil {
					return err
				}
				in, err := inv.IsInCart(ctx, "Sauce Labs Backpack")
				if err != nil {
					return err
				}
				return expectTrue("backpack in cart", in)
			}},
			{ID: "INV-007", Name: "add multiple products", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				if err := inv.AddManyToCart(ctx, "Sauce Labs Backpack", "Sauce Labs Bike Light", "Sauce Labs Bolt T-Shirt"); err != nil {
					return err
				}
				return inv.VerifyCartCount(ctx, 3)
			}},
			{ID: "INV-008", Name: "add all products", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				if err := inv.AddAllToCart(ctx); err != nil {
					return err
				}
				return inv.VerifyCartCount(ctx, len(cat.Products))
			}},
			{ID: "INV-009", Name: "remove product", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				if err := inv.AddToCart(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				if err := inv.RemoveFromCart(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				if err := inv.VerifyNotInCart(ctx, "Sauce Labs Backpack", false); err != nil {
					return err
				}
				return inv.VerifyCartCount(ctx, 0)
			}},
			{ID: "INV-010", Name: "product details", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				want, _ := cat.ByName("Sauce Labs Fleece Jacket")
				pp, err := inv.OpenProduct(ctx, want.Name)
				if err != nil {
					return err
				}
				got, err := pp.Info(ctx)
				if err != nil {
					return err
				}
				if err := expectEqual("product name", want.Name, got.Name); err != nil {
					return err
				}
				if err := expectTrue(fmt.Sprintf("price %.2f == %.2f", got.Price, want.Price), saucedemo.PriceEqual(want.Price, got.Price)); err != nil {
					return err
				}
				_, err = pp.BackToProducts(ctx)
				return err
			}},
			{ID: "INV-011", Name: "navigate to cart", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				cart, err := inv.OpenCart(ctx)
				if err != nil {
					return err
				}
				return cart.VerifyEmpty(ctx)
			}},
			{ID: "INV-012", Name: "reset app state", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				if err := inv.AddManyToCart(ctx, "Sauce Labs Backpack", "Sauce Labs Onesie"); err != nil {
					return err
				}
				if err := inv.ResetAppState(ctx); err != nil {
					return err
				}
				if err := inv.VerifyCartCount(ctx, 0); err != nil {
					return err
				}
				// The add buttons only come back once the page renders again.
				return inv.VerifyNotInCart(ctx, "Sauce Labs Backpack", true)
			}},
		},
	}
}

func cartSuite() Suite {
	cat := testdata.MustCatalogue()
	fill := func(ctx context.Context, env *Env, names ...string) (*saucedemo.Cart, error) {
		inv, err := standard(ctx, env)
		if err != nil {
			return nil, err
		}
		if err := inv.AddManyToCart(ctx, names...); err != nil {
			return nil, err
		}
		return inv.OpenCart(ctx)
	}
	return Suite{
		Name:        "cart",
		Description: "SauceDemo shopping cart",
		Cases: []Case{
			{ID: "CART-001", Name: "add single product and view", Run: func(ctx context.Context, env *Env) error {
				cart, err := fill(ctx, env, "Sauce Labs Backpack")
				if err != nil {
					return err
				}
				if err := cart.VerifyContains(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				p, _ := cat.ByName("Sauce Labs Backpack")
				return cart.VerifyTotal(ctx, p.Price)
			}},
			{ID: "CART-002", Name: "add multiple products", Run: func(ctx context.Context, env *Env) error {
				names := []string{"Sauce Labs Backpack", "Sauce Labs Bike Light", "Sauce Labs Fleece Jacket"}
				cart, err := fill(ctx, env, names...)
				if err != nil {
					return err
				}
				if err := cart.VerifyContains(ctx, names...); err != nil {
					return err
				}
				var sum float64
				for _, n := range names {
					p, _ := cat.ByName(n)
					sum += p.Price
				}
				return cart.VerifyTotal(ctx, sum)
			}},
			{ID: "CART-003", Name: "remove single product", Run: func(ctx context.Context, env *Env) error {
				cart, err := fill(ctx, env, "Sauce Labs Backpack", "Sauce Labs Bike Light")
				if err != nil {
					return err
				}
				if err := cart.Remove(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				if err := cart.VerifyNotContains(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				return cart.VerifyCartCount(ctx, 1)
			}},
			{ID: "CART-004", Name: "remove all products", Run: func(ctx context.Context, env *Env) error {
				cart, err := fill(ctx, env, "Sauce Labs Backpack", "Sauce Labs Bike Light", "Sauce Labs Onesie")
				if err != nil {
					return err
				}
				if err := cart.RemoveAll(ctx); err != nil {
					return err
				}
				return cart.VerifyEmpty(ctx)
			}},
			{ID: "CART-005", Name: "continue shopping", Run: func(ctx context.Context, env *Env) error {
				cart, err := fill(ctx, env, "Sauce Labs Backpack")
				if err != nil {
					return err
				}
				inv, err := cart.ContinueShopping(ctx)
				if err != nil {
					return err
				}
				return inv.VerifyCartCount(ctx, 1)
			}},
			{ID: "CART-006", Name: "proceed to checkout", Run: func(ctx context.Context, env *Env) error {
				cart, err := fill(ctx, env, "Sauce Labs Backpack")
				if err != nil {
					return err
				}
				_, err = cart.Checkout(ctx)
				return err
			}},
			{ID: "CART-007", Name: "empty cart navigation", Run: func(ctx context.Context, env *Env) error {
				cart, err := fill(ctx, env)
				if err != nil {
					return err
				}
				if err := cart.VerifyEmpty(ctx); err != nil {
					return err
				}
				_, err = cart.ContinueShopping(ctx)
				return err
			}},
			{ID: "CART-008", Name: "cart persists across navigation", Run: func(ctx context.Context, env *Env) error {
				cart, err := fill(ctx, env, "Sauce Labs Backpack", "Sauce Labs Fleece Jacket")
				if err != nil {
					return err
				}
				inv, err := cart.ContinueShopping(ctx)
				if err != nil {
					return err
				}
				if err := inv.AddToCart(ctx, "Sauce Labs Bike Light"); err != nil {
					return err
				}
				if cart, err = inv.OpenCart(ctx); err != nil {
					return err
				}
				if err := cart.VerifyContains(ctx, "Sauce Labs Backpack", "Sauce Labs Fleece Jacket", "Sauce Labs Bike Light"); err != nil {
					return err
				}
				n, err := cart.ItemCount(ctx)
				if err != nil {
					return err
				}
				return expectEqual("cart items", 3, n)
			}},
		},
	}
}

// Happy path items, 33.97 before tax.
var e2eItems = []string{"Sauce Labs Onesie", "Sauce Labs Bike Light", "Sauce Labs Bolt T-Shirt"}

func e2eSuite() Suite {
	cat := testdata.MustCatalogue()
	users := testdata.MustUsers()
	return Suite{
		Name:        "e2e",
		Description: "SauceDemo shopping journeys",
		Cases: []Case{
			{ID: "E2E-001", Name: "happy path purchase", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				if err := inv.VerifyAllProductsDisplayed(ctx, cat.Names()); err != nil {
					return err
				}
				if err := inv.AddManyToCart(ctx, e2eItems...); err != nil {
					return err
				}
				if err := inv.VerifyCartCount(ctx, len(e2eItems)); err != nil {
					return err
				}
				cart, err := inv.OpenCart(ctx)
				if err != nil {
					return err
				}
				if err := cart.VerifyContains(ctx, e2eItems...); err != nil {
					return err
				}
				if err := cart.VerifyTotal(ctx, 33.97); err != nil {
					return err
				}
				info, err := cart.Checkout(ctx)
				if err != nil {
					return err
				}
				if err := info.Fill(ctx, cat.Checkout); err != nil {
					return err
				}
				review, err := info.Continue(ctx)
				if err != nil {
					return err
				}
				sum, err := review.VerifySummary(ctx)
				if err != nil {
					return err
				}
				if err := expectTrue(fmt.Sprintf("subtotal %.2f == 33.97", sum.Subtotal), saucedemo.PriceEqual(33.97, sum.Subtotal)); err != nil {
					return err
				}
				if err := env.Snap(ctx, "review"); err != nil {
					return err
				}
				done, err := review.Finish(ctx)
				if err != nil {
					return err
				}
				heading, err := done.Heading(ctx)
				if err != nil {
					return err
				}
				if err := expectEqual("confirmation", "Thank you for your order!", heading); err != nil {
					return err
				}
				inv, err = done.BackHome(ctx)
				if err != nil {
					return err
				}
				return inv.WaitCartCount(ctx, 0)
			}},
			{ID: "E2E-002", Name: "problem user journey", Run: func(ctx context.Context, env *Env) error {
				inv, err := signIn(ctx, env, users.Problem)
				if err != nil {
					return err
				}
				srcs, err := inv.ImageSources(ctx)
				if err != nil {
					return err
				}
				broken := len(srcs) > 0
				for _, s := range srcs {
					broken = broken && s == srcs[0]
				}
				env.Logger.Info("problem user images", zap.Bool("all_identical", broken))
				if err := env.Snap(ctx, "problem-user-inventory"); err != nil {
					return err
				}
				// The store misbehaves for this user; record it and carry on.
				if err := inv.AddToCart(ctx, "Sauce Labs Backpack"); err != nil {
					env.Logger.Warn("problem user could not add to cart", zap.Error(err))
				} else if _, err := inv.OpenCart(ctx); err != nil {
					env.Logger.Warn("problem user could not open cart", zap.Error(err))
				}
				_, err = inv.Logout(ctx)
				return err
			}},
			{ID: "E2E-003", Name: "performance glitch user journey", Run: func(ctx context.Context, env *Env) error {
				start := time.Now()
				inv, err := signIn(ctx, env, users.PerformanceGlitch)
				if err != nil {
					return err
				}
				loggedIn := time.Since(start)
				if err := inv.AddToCart(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				cart, err := inv.OpenCart(ctx)
				if err != nil {
					return err
				}
				if err := cart.VerifyContains(ctx, "Sauce Labs Backpack"); err != nil {
					return err
				}
				env.Logger.Info("performance user journey",
					zap.Duration("login", loggedIn),
					zap.Duration("total", time.Since(start)))
				return nil
			}},
			{ID: "E2E-004", Name: "checkout requires customer details", Run: func(ctx context.Context, env *Env) error {
				inv, err := standard(ctx, env)
				if err != nil {
					return err
				}
				if err := inv.AddToCart(ctx, "Sauce Labs Onesie"); err != nil {
					return err
				}
				cart, err := inv.OpenCart(ctx)
				if err != nil {
					return err
				}
				info, err := cart.Checkout(ctx)
				if err != nil {
					return err
				}
				msg, err := info.ContinueExpectingError(ctx)
				if err != nil {
					return err
				}
				if err := expectEqual("checkout error", "Error: First Name is required", msg); err != nil {
					return err
				}
				if _, err := info.Cancel(ctx); err != nil {
					return errors.Join(errors.New("cancel checkout"), err)
				}
				return nil
			}},
		},
	}
}
