// Package suite holds the test suites run against the target applications
// and the runner that executes them in parallel, one fixture per case.
package suite

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/v0xg/uiharness/internal/fixture"
	"github.com/v0xg/uiharness/internal/page"
)

// Env is what a case runs against: its fixture session plus its own
// artifact directory.
type Env struct {
	*fixture.Session
	Dir    string
	Logger *zap.Logger
}

// Snap saves a screenshot of the root surface as <case dir>/<name>.png.
func (e *Env) Snap(ctx context.Context, name string) error {
	return e.Screenshot(ctx, filepath.Join(e.Dir, name+".png"))
}

// Case is one test.
type Case struct {
	ID   string
	Name string
	Run  func(ctx context.Context, env *Env) error
}

// Title is "ID: Name", or Name when there is no ID.
func (c Case) Title() string {
	if c.ID == "" {
		return c.Name
	}
	return c.ID + ": " + c.Name
}

// Suite groups the cases of one module.
type Suite struct {
	Name        string
	Description string
	Cases       []Case
}

// All returns every suite in execution order.
func All() []Suite {
	return []Suite{
		authSuite(),
		inventorySuite(),
		cartSuite(),
		e2eSuite(),
		actionsSuite(),
		assertionsSuite(),
		formAuthSuite(),
	}
}

// Names lists the suite names.
func Names() []string {
	var out []string
	for _, s := range All() {
		out = append(out, s.Name)
	}
	return out
}

// Select returns the named suites, or all of them when names is empty.
func Select(names []string) ([]Suite, error) {
	all := All()
	if len(names) == 0 {
		return all, nil
	}
	var out []Suite
	for _, name := range names {
		i := slices.IndexFunc(all, func(s Suite) bool { return s.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown suite %q (have %s)", name, strings.Join(Names(), ", "))
		}
		out = append(out, all[i])
	}
	return out, nil
}

func expectEqual[T comparable](what string, want, got T) error {
	if want != got {
		return page.Mismatch(what, want, got)
	}
	return nil
}

func expectTrue(what string, got bool) error {
	return expectEqual(what, true, got)
}
