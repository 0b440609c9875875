// Package herokuapp holds page objects for the-internet.herokuapp.com
// examples that exercise frames, popups, dialogs, file transfer and form
// controls.
package herokuapp

import (
	"context"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
)

// app is what every page object here carries.
type app struct {
	*page.Base
	baseURL string
}

func (a app) url(path string) string { return strings.TrimSuffix(a.baseURL, "/") + path }

func (a app) open(ctx context.Context, path string, marker locator.Ref) error {
	if err := a.Goto(ctx, a.url(path)); err != nil {
		return err
	}
	return a.WaitVisible(ctx, marker)
}

// Site hands out the page objects, all bound to one Base.
type Site struct{ app }

// New binds the page objects to b. baseURL is e.g.
// https://the-internet.herokuapp.com.
func New(b *page.Base, baseURL string) *Site {
	return &Site{app{Base: b, baseURL: baseURL}}
}

func (s *Site) FormAuth() *FormAuth                 { return &FormAuth{s.app} }
func (s *Site) JavaScriptAlerts() *JavaScriptAlerts { return &JavaScriptAlerts{s.app} }
func (s *Site) NestedFrames() *NestedFrames         { return &NestedFrames{s.app} }
func (s *Site) Windows() *Windows                   { return &Windows{s.app} }
func (s *Site) FileDownload() *FileDownload         { return &FileDownload{s.app} }
func (s *Site) FileUpload() *FileUpload             { return &FileUpload{s.app} }
func (s *Site) DynamicControls() *DynamicControls   { return &DynamicControls{s.app} }
func (s *Site) DragAndDrop() *DragAndDrop           { return &DragAndDrop{s.app} }
func (s *Site) Checkboxes() *Checkboxes             { return &Checkboxes{s.app} }
func (s *Site) Dropdown() *Dropdown                 { return &Dropdown{s.app} }

var mainHeading = locator.CSS("h1, h2, h3").First()

// OpenExample starts on the index and follows the link titled title.
func (s *Site) OpenExample(ctx context.Context, title string) error {
	if err := s.open(ctx, "/", mainHeading); err != nil {
		return err
	}
	return s.Click(ctx, locator.Role("link", title))
}
