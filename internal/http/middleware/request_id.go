package middleware

import (
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	httpctx "apinode/internal/http/ctx"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or mints a new one, and
// echoes it on the response.
func RequestID(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		id := string(ctx.Request.Header.Peek(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		httpctx.SetRequestID(ctx, id)
		ctx.Response.Header.Set(RequestIDHeader, id)
		next(ctx)
	}
}
