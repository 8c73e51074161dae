package handlers

import (
	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Routes wires the service's endpoints onto a new router.
func Routes(store Store, caller Caller, log logrus.FieldLogger, m *Metrics, g prometheus.Gatherer) *router.Router {
	r := router.New()
	r.SaveMatchedRoutePath = true

	r.GET("/api/node", Node(store, log, m))
	r.GET("/api/node/call-golang", CallGolang(store, caller, log, m))
	r.GET("/api/node/ping", Ping())
	r.GET("/api/node/health", Health())

	r.GET("/metrics", MetricsHandler(g))

	return r
}
