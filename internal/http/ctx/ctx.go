package ctx

import (
	"context"

	"github.com/valyala/fasthttp"
)

const (
	RequestIDKey = "requestID"
)

func SetRequestID(ctx *fasthttp.RequestCtx, id string) {
	ctx.SetUserValue(RequestIDKey, id)
}

func RequestIDFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(RequestIDKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Detached returns a context carrying the request's values but not its
// cancellation, so database work started by a request runs to completion
// even while the server is shutting down.
func Detached(ctx *fasthttp.RequestCtx) context.Context {
	return context.WithoutCancel(ctx)
}
