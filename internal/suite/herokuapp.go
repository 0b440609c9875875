package suite

import (
	"context"
	"os"
	"path/filepath"

	"github.com/v0xg/uiharness/internal/pages/herokuapp"
	"github.com/v0xg/uiharness/internal/surface"
	"github.com/v0xg/uiharness/internal/testdata"
)

func alertsPage(ctx context.Context, env *Env) (*herokuapp.JavaScriptAlerts, error) {
	a := env.HerokuApp().JavaScriptAlerts()
	return a, a.Open(ctx)
}

func actionsSuite() Suite {
	return Suite{
		Name:        "actions",
		Description: "frames, popups, dialogs, file transfer and form controls on the-internet",
		Cases: []Case{
			{Name: "alert", Run: func(ctx context.Context, env *Env) error {
				a, err := alertsPage(ctx, env)
				if err != nil {
					return err
				}
				if _, err := a.Alert(ctx); err != nil {
					return err
				}
				return a.WaitResult(ctx, "You successfully clicked an alert")
			}},
			{Name: "confirm accepted", Run: func(ctx context.Context, env *Env) error {
				a, err := alertsPage(ctx, env)
				if err != nil {
					return err
				}
				if _, err := a.Confirm(ctx, true); err != nil {
					return err
				}
				return a.WaitResult(ctx, "You clicked: Ok")
			}},
			{Name: "confirm dismissed", Run: func(ctx context.Context, env *Env) error {
				a, err := alertsPage(ctx, env)
				if err != nil {
					return err
				}
				if _, err := a.Confirm(ctx, false); err != nil {
					return err
				}
				return a.WaitResult(ctx, "You clicked: Cancel")
			}},
			{Name: "prompt", Run: func(ctx context.Context, env *Env) error {
				a, err := alertsPage(ctx, env)
				if err != nil {
					return err
				}
				req, err := a.Prompt(ctx, surface.Accept("mohamed"))
				if err != nil {
					return err
				}
				if err := expectEqual("prompt message", herokuapp.PromptMessage, req.Message()); err != nil {
					return err
				}
				return a.WaitResult(ctx, "You entered: mohamed")
			}},
			{Name: "nested frames", Run: func(ctx context.Context, env *Env) error {
				n := env.HerokuApp().NestedFrames()
				if err := n.Open(ctx); err != nil {
					return err
				}
				bottom, err := n.FrameText(ctx, "frame-bottom")
				if err != nil {
					return err
				}
				if err := expectEqual("bottom frame", "BOTTOM", bottom); err != nil {
					return err
				}
				middle, err := n.MiddleText(ctx)
				if err != nil {
					return err
				}
				return expectEqual("middle frame", "MIDDLE", middle)
			}},
			{Name: "window tabs", Run: func(ctx context.Context, env *Env) error {
				w := env.HerokuApp().Windows()
				if err := w.Open(ctx); err != nil {
					return err
				}
				nw, err := w.OpenNewWindow(ctx)
				if err != nil {
					return err
				}
				h, err := nw.Heading(ctx)
				if err != nil {
					return err
				}
				if err := expectEqual("popup heading", "New Window", h); err != nil {
					return err
				}
				return nw.Close(ctx)
			}},
			{Name: "download", Run: func(ctx context.Context, env *Env) error {
				d := env.HerokuApp().FileDownload()
				if err := d.Open(ctx); err != nil {
					return err
				}
				rec, err := d.Download(ctx, "testfile.txt", filepath.Join(env.Dir, "sampleFile.txt"))
				if err != nil {
					return err
				}
				info, err := os.Stat(rec.SavedPath)
				if err != nil {
					return err
				}
				return expectTrue("downloaded file has content", info.Size() > 0)
			}},
			{Name: "upload", Run: func(ctx context.Context, env *Env) error {
				d := env.HerokuApp().FileDownload()
				if err := d.Open(ctx); err != nil {
					return err
				}
				rec, err := d.Download(ctx, "testfile.txt", filepath.Join(env.Dir, "sampleFile.txt"))
				if err != nil {
					return err
				}
				u := env.HerokuApp().FileUpload()
				if err := u.Open(ctx); err != nil {
					return err
				}
				if _, err := u.Upload(ctx, rec.SavedPath); err != nil {
					return err
				}
				return u.VerifyUploaded(ctx, rec.SavedPath)
			}},
			{Name: "checkboxes", Run: func(ctx context.Context, env *Env) error {
				c := env.HerokuApp().Checkboxes()
				if err := c.Open(ctx); err != nil {
					return err
				}
				if err := c.Set(ctx, 0, true); err != nil {
					return err
				}
				if err := c.Set(ctx, 1, false); err != nil {
					return err
				}
				states, err := c.States(ctx)
				if err != nil {
					return err
				}
				return expectTrue("first checked, second unchecked", len(states) == 2 && states[0] && !states[1])
			}},
			{Name: "dropdown", Run: func(ctx context.Context, env *Env) error {
				d := env.HerokuApp().Dropdown()
				if err := d.Open(ctx); err != nil {
					return err
				}
				if err := d.Choose(ctx, "1"); err != nil {
					return err
				}
				if err := d.VerifySelected(ctx, "Option 1"); err != nil {
					return err
				}
				if err := d.Choose(ctx, "Option 2"); err != nil {
					return err
				}
				return d.VerifySelected(ctx, "Option 2")
			}},
			{Name: "drag and drop", Run: func(ctx context.Context, env *Env) error {
				d := env.HerokuApp().DragAndDrop()
				if err := d.Open(ctx); err != nil {
					return err
				}
				if err := d.DragAToB(ctx); err != nil {
					return err
				}
				headers, err := d.Headers(ctx)
				if err != nil {
					return err
				}
				return expectTrue("column A now reads B", len(headers) == 2 && headers[0] == "B")
			}},
		},
	}
}

func dynamicControls(ctx context.Context, env *Env) (*herokuapp.DynamicControls, error) {
	d := env.HerokuApp().DynamicControls()
	return d, d.Open(ctx)
}

func assertionsSuite() Suite {
	return Suite{
		Name:        "assertions",
		Description: "state assertions on the-internet dynamic controls",
		Cases: []Case{
			{Name: "input enabled after click", Run: func(ctx context.Context, env *Env) error {
				d, err := dynamicControls(ctx, env)
				if err != nil {
					return err
				}
				enabled, err := d.InputEnabled(ctx)
				if err != nil {
					return err
				}
				if err := expectTrue("input starts disabled", !enabled); err != nil {
					return err
				}
				if err := d.EnableInput(ctx); err != nil {
					return err
				}
				if err := d.FillInput(ctx, "typed after enable"); err != nil {
					return err
				}
				v, err := d.InputValue(ctx)
				if err != nil {
					return err
				}
				return expectEqual("input value", "typed after enable", v)
			}},
			{Name: "button text and attribute", Run: func(ctx context.Context, env *Env) error {
				d, err := dynamicControls(ctx, env)
				if err != nil {
					return err
				}
				label, err := d.InputButton(ctx)
				if err != nil {
					return err
				}
				if err := expectEqual("button label", "Enable", label); err != nil {
					return err
				}
				auto, err := d.InputButtonAttribute(ctx, "autocomplete")
				if err != nil {
					return err
				}
				return expectEqual("button autocomplete", "off", auto)
			}},
			{Name: "checkbox removed and added", Run: func(ctx context.Context, env *Env) error {
				d, err := dynamicControls(ctx, env)
				if err != nil {
					return err
				}
				if err := d.RemoveCheckbox(ctx); err != nil {
					return err
				}
				return d.AddCheckbox(ctx)
			}},
		},
	}
}

func formAuthSuite() Suite {
	creds := testdata.MustUsers().FormAuth
	open := func(ctx context.Context, env *Env) (*herokuapp.FormAuth, error) {
		site := env.HerokuApp()
		if err := site.OpenExample(ctx, "Form Authentication"); err != nil {
			return nil, err
		}
		f := site.FormAuth()
		return f, f.WaitURL(ctx, "/login")
	}
	failure := func(username, password, want string) func(context.Context, *Env) error {
		return func(ctx context.Context, env *Env) error {
			f, err := open(ctx, env)
			if err != nil {
				return err
			}
			got, err := f.LoginExpectingFailure(ctx, username, password)
			if err != nil {
				return err
			}
			return expectEqual("flash", want, got)
		}
	}
	return Suite{
		Name:        "formauth",
		Description: "the-internet form authentication",
		Cases: []Case{
			{Name: "login with valid credentials", Run: func(ctx context.Context, env *Env) error {
				f, err := open(ctx, env)
				if err != nil {
					return err
				}
				if err := f.Login(ctx, creds.Username, creds.Password); err != nil {
					return err
				}
				if err := f.VerifyFlashContains(ctx, "You logged into a secure area!"); err != nil {
					return err
				}
				return env.Snap(ctx, "successful-login")
			}},
			{Name: "invalid username", Run: failure("invaliduser", creds.Password, "Your username is invalid!")},
			{Name: "invalid password", Run: failure(creds.Username, "invalidpassword", "Your password is invalid!")},
			{Name: "both credentials invalid", Run: failure("invaliduser", "invalidpassword", "Your username is invalid!")},
			{Name: "logout after login", Run: func(ctx context.Context, env *Env) error {
				f, err := open(ctx, env)
				if err != nil {
					return err
				}
				if err := f.Login(ctx, creds.Username, creds.Password); err != nil {
					return err
				}
				if err := f.Logout(ctx); err != nil {
					return err
				}
				return f.VerifyFlashContains(ctx, "You logged out of a secure area!")
			}},
		},
	}
}
