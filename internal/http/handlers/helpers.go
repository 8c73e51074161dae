package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	dbpkg "apinode/internal/db"
	httpctx "apinode/internal/http/ctx"
)

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(log logrus.FieldLogger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			requestLog(log, ctx).WithFields(logrus.Fields{
				"method":   string(ctx.Method()),
				"path":     string(ctx.Path()),
				"status":   ctx.Response.StatusCode(),
				"duration": time.Since(start).String(),
				"ip":       ctx.RemoteIP().String(),
			}).Info("request")
		}
	}
}

// requestLog tags log entries with the request id when one is set.
func requestLog(log logrus.FieldLogger, ctx *fasthttp.RequestCtx) logrus.FieldLogger {
	if id, ok := httpctx.RequestIDFromCtx(ctx); ok {
		return log.WithField("request_id", id)
	}
	return log
}

// logQueryError logs a store failure with its operation and SQLSTATE.
func logQueryError(log logrus.FieldLogger, ctx *fasthttp.RequestCtx, msg string, err error) {
	fields := logrus.Fields{"error": err.Error()}
	var qe *dbpkg.QueryError
	if errors.As(err, &qe) {
		fields["op"] = qe.Op
		if qe.Code != "" {
			fields["code"] = qe.Code
		}
	}
	requestLog(log, ctx).WithFields(fields).Error(msg)
}

func jsonResponse(ctx *fasthttp.RequestCtx, code int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		errResponse(ctx, fasthttp.StatusInternalServerError, "failed to encode response")
		return
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func textResponse(ctx *fasthttp.RequestCtx, msg string) {
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetBodyString(msg)
}
