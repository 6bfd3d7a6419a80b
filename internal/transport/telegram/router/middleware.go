package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "linkbot/pkg/logx"
)

type middleware func(next HandlerFunc) HandlerFunc

// slowRequest promotes successful requests to INFO.
const slowRequest = 750 * time.Millisecond

func (r *Router) wrap(h HandlerFunc, timeout time.Duration) HandlerFunc {
	for _, mw := range []middleware{withDeadline(timeout), r.observe} {
		h = mw(h)
	}
	return h
}

func withDeadline(d time.Duration) middleware {
	if d <= 0 {
		d = 30 * time.Second
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// observe turns a handler panic into an error and logs the outcome: failures
// at WARN, slow requests at INFO, the rest at DEBUG.
func (r *Router) observe(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req *Request) (err error) {
		log := req.Logger
		if log.IsZero() {
			log = r.log
		}
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panicked", logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", p)
			}
			took := time.Since(start)
			fields := []logx.Field{logx.String("kind", string(req.Kind)), logx.Duration("took", took)}
			switch {
			case err != nil:
				log.Warn("request failed", append(fields, logx.Err(err))...)
			case took >= slowRequest:
				log.Info("slow request", fields...)
			default:
				log.Debug("request done", fields...)
			}
		}()
		return next(ctx, req)
	}
}
