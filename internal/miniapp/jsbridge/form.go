//go:build js && wasm

package jsbridge

import (
	"fmt"
	"syscall/js"

	"linkbot/internal/miniapp"
)

const categoryPrompt = "Choose a category"

// Form is the DOM binding of a miniapp form. Element ids:
// form, category, name, emoji, url, description, success, error, errorText;
// the submit button carries the class "btn-submit".
type Form struct {
	doc         js.Value
	form        js.Value
	category    js.Value
	name        js.Value
	emoji       js.Value
	url         js.Value
	description js.Value
	submit      js.Value
	success     js.Value
	errBox      js.Value
	errText     js.Value

	onSubmit js.Func
}

func BindForm(formID string) (*Form, error) {
	doc := js.Global().Get("document")
	byID := func(id string) js.Value { return doc.Call("getElementById", id) }

	form := byID(formID)
	if !form.Truthy() {
		return nil, fmt.Errorf("jsbridge: form #%s not found", formID)
	}
	return &Form{
		doc:         doc,
		form:        form,
		category:    byID("category"),
		name:        byID("name"),
		emoji:       byID("emoji"),
		url:         byID("url"),
		description: byID("description"),
		submit:      form.Call("querySelector", ".btn-submit"),
		success:     byID("success"),
		errBox:      byID("error"),
		errText:     byID("errorText"),
	}, nil
}

// Attr reads a data attribute of the form element (data-<name>).
func (f *Form) Attr(name string) string {
	v := f.form.Get("dataset").Get(name)
	if v.Type() != js.TypeString {
		return ""
	}
	return v.String()
}

func (f *Form) Fields() miniapp.Fields {
	return miniapp.Fields{
		Category:    value(f.category),
		Name:        value(f.name),
		Emoji:       value(f.emoji),
		URL:         value(f.url),
		Description: value(f.description),
	}
}

// OnSubmit intercepts the form's submit event.
func (f *Form) OnSubmit(fn func(miniapp.Fields)) {
	f.onSubmit = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 {
			args[0].Call("preventDefault")
		}
		fields := f.Fields()
		go fn(fields)
		return nil
	})
	f.form.Call("addEventListener", "submit", f.onSubmit)
}

func (f *Form) RequestSubmit() { f.form.Call("requestSubmit") }

func (f *Form) SetCategoryOptions(opts []miniapp.Option) {
	if !f.category.Truthy() {
		return
	}
	f.category.Set("innerHTML", "")
	f.appendOption("", categoryPrompt)
	for _, o := range opts {
		f.appendOption(o.Value(), o.Label)
	}
}

func (f *Form) appendOption(value, label string) {
	opt := f.doc.Call("createElement", "option")
	opt.Set("value", value)
	opt.Set("textContent", label)
	f.category.Call("appendChild", opt)
}

func (f *Form) ShowError(msg string) {
	f.errText.Set("textContent", msg)
	setDisplay(f.errBox, "block")
}

func (f *Form) HideError() { setDisplay(f.errBox, "none") }

func (f *Form) SetSubmit(enabled bool, label string) {
	if !f.submit.Truthy() {
		return
	}
	f.submit.Set("disabled", !enabled)
	f.submit.Set("textContent", label)
}

func (f *Form) ShowSuccess() {
	setDisplay(f.form, "none")
	setDisplay(f.success, "block")
}

func (f *Form) Release() {
	if f.onSubmit.Truthy() {
		f.form.Call("removeEventListener", "submit", f.onSubmit)
		f.onSubmit.Release()
	}
}

func value(el js.Value) string {
	if !el.Truthy() {
		return ""
	}
	return el.Get("value").String()
}

func setDisplay(el js.Value, display string) {
	if el.Truthy() {
		el.Get("style").Set("display", display)
	}
}
