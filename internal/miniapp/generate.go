// Package miniapp is the form controller behind the Mini App pages: it loads
// categories, validates input, sends the payload to the bot and drives the
// error and success states. cmd/miniapp runs it in the browser as WebAssembly.
package miniapp

//go:generate env GOOS=js GOARCH=wasm go build -o ../../web/miniapp.wasm ../../cmd/miniapp
//go:generate sh -c "cp \"$(go env GOROOT)/lib/wasm/wasm_exec.js\" ../../web/"
