package handlers

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/valyala/fasthttp"

	httpctx "apinode/internal/http/ctx"
)

func TestRequestLogger(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	h := RequestLogger(log)(func(ctx *fasthttp.RequestCtx) {
		httpctx.SetRequestID(ctx, "req-1")
		ctx.SetStatusCode(fasthttp.StatusTeapot)
	})

	doRequest(h, "/api/node/ping")

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected an access log entry")
	}
	if entry.Level != logrus.InfoLevel {
		t.Errorf("expected info level, got %v", entry.Level)
	}
	if entry.Data["path"] != "/api/node/ping" || entry.Data["method"] != "GET" {
		t.Errorf("unexpected fields %v", entry.Data)
	}
	if entry.Data["status"] != fasthttp.StatusTeapot {
		t.Errorf("expected status 418, got %v", entry.Data["status"])
	}
	if entry.Data["request_id"] != "req-1" {
		t.Errorf("expected request id field, got %v", entry.Data["request_id"])
	}
}

func TestErrResponse(t *testing.T) {
	ctx := doRequest(func(ctx *fasthttp.RequestCtx) {
		errResponse(ctx, fasthttp.StatusInternalServerError, "failed to read request count")
	}, "/")

	if ctx.Response.StatusCode() != fasthttp.StatusInternalServerError {
		t.Errorf("expected 500, got %d", ctx.Response.StatusCode())
	}
	if got := string(ctx.Response.Body()); got != `{"error":"failed to read request count"}` {
		t.Errorf("unexpected body %q", got)
	}
}
