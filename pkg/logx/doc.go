// Package logx configures linkbot's structured logging.
//
// Logger is a small value type on top of zerolog:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON
//   - An optional Telegram sink forwards warnings to the log group, rate limited
//
// The zero Logger is a no-op, so components can accept one unconditionally.
package logx
