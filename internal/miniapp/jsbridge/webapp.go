//go:build js && wasm

// Package jsbridge binds the miniapp controller to the Telegram WebApp object
// and the form DOM when running as WebAssembly inside the Mini App page.
package jsbridge

import (
	"errors"
	"fmt"
	"syscall/js"
)

// WebApp wraps window.Telegram.WebApp.
type WebApp struct {
	v     js.Value
	funcs []js.Func
}

func NewWebApp() (*WebApp, error) {
	tg := js.Global().Get("Telegram")
	if !tg.Truthy() || !tg.Get("WebApp").Truthy() {
		return nil, errors.New("jsbridge: window.Telegram.WebApp is not available")
	}
	return &WebApp{v: tg.Get("WebApp")}, nil
}

func (w *WebApp) ExpandViewport() { w.v.Call("expand") }

func (w *WebApp) RegisterBackAction(fn func()) {
	bb := w.v.Get("BackButton")
	bb.Call("show")
	bb.Call("onClick", w.callback(fn))
}

func (w *WebApp) CloseWindow() { w.v.Call("close") }

// SendData calls WebApp.sendData. A JS exception surfaces as an error.
func (w *WebApp) SendData(data string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sendData: %v", r)
		}
	}()
	w.v.Call("sendData", data)
	return nil
}

func (w *WebApp) CurrentUserID() (int64, bool) {
	unsafe := w.v.Get("initDataUnsafe")
	if !unsafe.Truthy() {
		return 0, false
	}
	user := unsafe.Get("user")
	if !user.Truthy() {
		return 0, false
	}
	id := user.Get("id")
	if id.Type() != js.TypeNumber {
		return 0, false
	}
	return int64(id.Float()), true
}

// InitData returns the signed init data string.
func (w *WebApp) InitData() string {
	v := w.v.Get("initData")
	if v.Type() != js.TypeString {
		return ""
	}
	return v.String()
}

// MainButton shows the client's main button with label and runs fn on tap.
func (w *WebApp) MainButton(label string, fn func()) {
	mb := w.v.Get("MainButton")
	mb.Call("setText", label)
	mb.Call("onClick", w.callback(fn))
	mb.Call("show")
}

// Release frees the JS callbacks held by the bridge.
func (w *WebApp) Release() {
	for _, f := range w.funcs {
		f.Release()
	}
	w.funcs = nil
}

func (w *WebApp) callback(fn func()) js.Func {
	f := js.FuncOf(func(js.Value, []js.Value) any {
		// JS callbacks must not block the event loop.
		go fn()
		return nil
	})
	w.funcs = append(w.funcs, f)
	return f
}
