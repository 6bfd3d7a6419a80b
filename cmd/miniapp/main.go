//go:build js && wasm

// Command miniapp runs the form controller inside the Telegram Mini App page.
//
// Build web/miniapp.wasm and copy wasm_exec.js next to it with:
//
//	go generate ./internal/miniapp
//
// The page declares the form kind and the category API base on the form
// element: <form id="form" data-kind="link" data-api="https://...">.
package main

import (
	"context"
	"errors"
	"time"

	"linkbot/internal/miniapp"
	"linkbot/internal/miniapp/jsbridge"
	logx "linkbot/pkg/logx"
)

func main() {
	log := logx.NewConsole("DEBUG").With(logx.String("comp", "miniapp"))

	host, err := jsbridge.NewWebApp()
	if err != nil {
		log.Error("bridge unavailable", logx.Err(err))
		return
	}
	form, err := jsbridge.BindForm("form")
	if err != nil {
		log.Error("form binding failed", logx.Err(err))
		return
	}
	kind, err := miniapp.ParseKind(form.Attr("kind"))
	if err != nil {
		log.Error("form kind", logx.Err(err))
		return
	}

	var src miniapp.CategorySource
	if base := form.Attr("api"); base != "" {
		src = &miniapp.HTTPCategorySource{BaseURL: base, InitData: host.InitData()}
	}

	ctrl, err := miniapp.New(kind, miniapp.Deps{
		Host:       host,
		View:       form,
		Categories: src,
		Logger:     log,
	}, miniapp.Options{})
	if err != nil {
		log.Error("controller init failed", logx.Err(err))
		return
	}

	form.OnSubmit(func(f miniapp.Fields) {
		err := ctrl.Submit(f)
		if errors.Is(err, miniapp.ErrBusy) || errors.Is(err, miniapp.ErrClosed) {
			log.Debug("submit ignored", logx.Err(err))
		}
	})
	if kind == miniapp.KindSubmitLink {
		host.MainButton(kind.SubmitLabel(), form.RequestSubmit)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	ctrl.Init(ctx)
	cancel()

	// Keep the Go runtime alive for DOM callbacks.
	select {}
}
