package herokuapp

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/v0xg/uiharness/internal/locator"
	"github.com/v0xg/uiharness/internal/page"
)

var (
	controlInput       = locator.CSS("#input-example input[type=text]")
	controlInputButton = locator.CSS("#input-example button")
	controlInputMsg    = locator.CSS("#input-example #message")
	controlCheckbox    = locator.CSS("#checkbox-example #checkbox")
	controlBoxButton   = locator.CSS("#checkbox-example button")
	controlBoxMsg      = locator.CSS("#checkbox-example #message")
)

// DynamicControls is the /dynamic_controls example. Its buttons swap a
// control after a spinner, so every action waits for the outcome.
type DynamicControls struct{ app }

// Open navigates to the example.
func (d *DynamicControls) Open(ctx context.Context) error {
	return d.open(ctx, "/dynamic_controls", controlInputButton)
}

// InputEnabled reports whether the text input accepts typing.
func (d *DynamicControls) InputEnabled(ctx context.Context) (bool, error) {
	return d.IsEnabled(ctx, controlInput)
}

// EnableInput clicks Enable and waits for the input to unlock.
func (d *DynamicControls) EnableInput(ctx context.Context) error {
	return d.swapInput(ctx, true, "It's enabled!")
}

// DisableInput clicks Disable and waits for the input to lock.
func (d *DynamicControls) DisableInput(ctx context.Context) error {
	return d.swapInput(ctx, false, "It's disabled!")
}

func (d *DynamicControls) swapInput(ctx context.Context, enabled bool, msg string) error {
	if err := d.Click(ctx, controlInputButton); err != nil {
		return err
	}
	err := d.Await(ctx, d.Until(fmt.Sprintf("input enabled == %t", enabled), func(ctx context.Context) (bool, error) {
		on, err := d.InputEnabled(ctx)
		return on == enabled, err
	}))
	if err != nil {
		return err
	}
	return d.WaitText(ctx, controlInputMsg, msg)
}

// FillInput types into the text input once it is enabled.
func (d *DynamicControls) FillInput(ctx context.Context, text string) error {
	return d.Fill(ctx, controlInput, text)
}

// InputValue returns what the text input holds.
func (d *DynamicControls) InputValue(ctx context.Context) (string, error) {
	v, _, err := d.Attribute(ctx, controlInput, "value")
	return v, err
}

// InputButton returns the label of the enable/disable button.
func (d *DynamicControls) InputButton(ctx context.Context) (string, error) {
	return d.Text(ctx, controlInputButton)
}

// InputButtonAttribute reads an attribute of the enable/disable button.
func (d *DynamicControls) InputButtonAttribute(ctx context.Context, name string) (string, error) {
	v, ok, err := d.Attribute(ctx, controlInputButton, name)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", page.Mismatch("button attribute "+name, "present", "absent")
	}
	return v, nil
}

// RemoveCheckbox clicks Remove and waits for the checkbox to go.
func (d *DynamicControls) RemoveCheckbox(ctx context.Context) error {
	if err := d.Click(ctx, controlBoxButton); err != nil {
		return err
	}
	if err := d.WaitCount(ctx, controlCheckbox, 0); err != nil {
		return err
	}
	return d.WaitText(ctx, controlBoxMsg, "It's gone!")
}

// AddCheckbox clicks Add and waits for the checkbox to return.
func (d *DynamicControls) AddCheckbox(ctx context.Context) error {
	if err := d.Click(ctx, controlBoxButton); err != nil {
		return err
	}
	if err := d.WaitVisible(ctx, controlCheckbox); err != nil {
		return err
	}
	return d.WaitText(ctx, controlBoxMsg, "It's back!")
}

// HasCheckbox reports whether the checkbox is on the page.
func (d *DynamicControls) HasCheckbox(ctx context.Context) (bool, error) {
	return d.IsVisible(ctx, controlCheckbox)
}

var (
	columnA       = locator.ID("column-a")
	columnB       = locator.ID("column-b")
	columnHeaders = locator.CSS("#columns .column header")
)

// DragAndDrop is the /drag_and_drop example.
type DragAndDrop struct{ app }

// Open navigates to the example.
func (d *DragAndDrop) Open(ctx context.Context) error {
	return d.open(ctx, "/drag_and_drop", columnA)
}

// Headers returns the column headers left to right.
func (d *DragAndDrop) Headers(ctx context.Context) ([]string, error) {
	return d.Texts(ctx, columnHeaders)
}

// DragAToB drops the left column on the right one and waits for the
// headers to swap.
func (d *DragAndDrop) DragAToB(ctx context.Context) error {
	before, err := d.Headers(ctx)
	if err != nil {
		return err
	}
	want := slices.Clone(before)
	slices.Reverse(want)
	if err := d.Drag(ctx, columnA, columnB); err != nil {
		return err
	}
	return d.Await(ctx, d.Until("column headers "+strings.Join(want, ","), func(ctx context.Context) (bool, error) {
		got, err := d.Headers(ctx)
		return slices.Equal(got, want), err
	}))
}

var checkboxInputs = locator.CSS("#checkboxes input[type=checkbox]")

// Checkboxes is the /checkboxes example.
type Checkboxes struct{ app }

// Open navigates to the example.
func (c *Checkboxes) Open(ctx context.Context) error {
	return c.open(ctx, "/checkboxes", checkboxInputs.First())
}

// Set checks or unchecks the i-th checkbox.
func (c *Checkboxes) Set(ctx context.Context, i int, on bool) error {
	if on {
		return c.Check(ctx, checkboxInputs.Nth(i))
	}
	return c.Uncheck(ctx, checkboxInputs.Nth(i))
}

// States returns the checked state of every checkbox in order.
func (c *Checkboxes) States(ctx context.Context) ([]bool, error) {
	n, err := c.Count(ctx, checkboxInputs)
	if err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := range out {
		if out[i], err = c.IsChecked(ctx, checkboxInputs.Nth(i)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

var (
	dropdown        = locator.ID("dropdown")
	dropdownOptions = locator.CSS("#dropdown option")
)

// Dropdown is the /dropdown example.
type Dropdown struct{ app }

// Open navigates to the example.
func (d *Dropdown) Open(ctx context.Context) error {
	return d.open(ctx, "/dropdown", dropdown)
}

// Choose selects an option by value or label.
func (d *Dropdown) Choose(ctx context.Context, option string) error {
	return d.Select(ctx, dropdown, option)
}

// Options returns the option labels.
func (d *Dropdown) Options(ctx context.Context) ([]string, error) {
	return d.Texts(ctx, dropdownOptions)
}

// Selected returns the label of the selected option.
func (d *Dropdown) Selected(ctx context.Context) (string, error) {
	labels, err := d.Options(ctx)
	if err != nil {
		return "", err
	}
	for i, label := range labels {
		_, on, err := d.Attribute(ctx, dropdownOptions.Nth(i), "selected")
		if err != nil {
			return "", err
		}
		if on {
			return label, nil
		}
	}
	return "", page.Mismatch("selected option", "one", "none")
}

// VerifySelected checks the selected option reads want.
func (d *Dropdown) VerifySelected(ctx context.Context, want string) error {
	got, err := d.Selected(ctx)
	if err != nil {
		return err
	}
	if got != want {
		return page.Mismatch("selected option", want, got)
	}
	return nil
}
