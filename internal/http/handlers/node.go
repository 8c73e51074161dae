package handlers

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"

	dbpkg "apinode/internal/db"
	"apinode/internal/downstream"
	httpctx "apinode/internal/http/ctx"
)

// APIName tags this service's rows and responses.
const APIName = "node"

// Recorder appends one tracking row per call.
type Recorder interface {
	Insert(ctx context.Context) error
}

// AggregateReader reads the database clock and this service's row count.
type AggregateReader interface {
	ReadAggregate(ctx context.Context) (dbpkg.Aggregate, error)
}

// Store is what the tracked routes need from the database layer.
type Store interface {
	Recorder
	AggregateReader
}

// Caller performs one call to the sibling service.
type Caller interface {
	Call(ctx context.Context) downstream.Result
}

type nodeResponse struct {
	CurrentTime  time.Time `json:"currentTime"`
	RequestCount int64     `json:"requestCount"`
	API          string    `json:"api"`
}

type callMetadata struct {
	GolangServiceCalled bool   `json:"golangServiceCalled"`
	CallDuration        string `json:"callDuration"`
	Error               string `json:"error,omitempty"`
}

type federatedResponse struct {
	nodeResponse
	GolangServiceResponse datatypes.JSON `json:"golangServiceResponse"`
	Metadata              callMetadata   `json:"metadata"`
}

// trackAndRead records the request and reads the aggregate, in that
// order. An insert failure is logged and does not stop the read; a read
// failure writes a 500 and returns false.
func trackAndRead(ctx *fasthttp.RequestCtx, store Store, log logrus.FieldLogger, m *Metrics) (nodeResponse, bool) {
	dctx := httpctx.Detached(ctx)

	err := store.Insert(dctx)
	m.tracked(err)
	if err != nil {
		logQueryError(log, ctx, "failed to record request", err)
	}

	agg, err := store.ReadAggregate(dctx)
	if err != nil {
		logQueryError(log, ctx, "failed to read request aggregate", err)
		errResponse(ctx, fasthttp.StatusInternalServerError, "failed to read request count")
		return nodeResponse{}, false
	}

	return nodeResponse{
		CurrentTime:  agg.CurrentTime,
		RequestCount: agg.RequestCount,
		API:          APIName,
	}, true
}

// Node serves GET /api/node.
func Node(store Store, log logrus.FieldLogger, m *Metrics) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		resp, ok := trackAndRead(ctx, store, log, m)
		if !ok {
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, resp)
	}
}

// CallGolang serves GET /api/node/call-golang: the node response merged
// with whatever the Golang service returned.
func CallGolang(store Store, caller Caller, log logrus.FieldLogger, m *Metrics) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		base, ok := trackAndRead(ctx, store, log, m)
		if !ok {
			return
		}

		res := caller.Call(httpctx.Detached(ctx))
		entry := requestLog(log, ctx).WithField("duration", res.DurationString())

		resp := federatedResponse{
			nodeResponse: base,
			Metadata: callMetadata{
				GolangServiceCalled: res.Success,
				CallDuration:        res.DurationString(),
			},
		}
		if res.Success {
			resp.GolangServiceResponse = res.Data
			entry.Info("golang service call succeeded")
		} else {
			resp.Metadata.Error = res.Error
			entry.WithField("error", res.Error).Warn("golang service call failed")
		}

		jsonResponse(ctx, fasthttp.StatusOK, resp)
	}
}

// Ping is liveness only; it touches neither the database nor the
// Golang service.
func Ping() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		textResponse(ctx, "pong")
	}
}

func Health() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		textResponse(ctx, "ok")
	}
}
