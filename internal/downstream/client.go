// Package downstream calls the sibling Golang service.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
)

// Path is the sibling service's data endpoint, relative to its base URL.
const Path = "/api/golang/"

// DefaultTimeout bounds a single call end to end.
const DefaultTimeout = 5 * time.Second

// Result is produced fresh for every call. Data is set only when
// Success is true; Error only when it is false.
type Result struct {
	Success  bool
	Data     datatypes.JSON
	Error    string
	Duration time.Duration
}

// DurationString renders Duration in whole milliseconds, e.g. "42ms".
func (r Result) DurationString() string {
	return fmt.Sprintf("%dms", r.Duration.Milliseconds())
}

// Client issues one GET per Call with no retries.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *fasthttp.Client

	calls    *prometheus.CounterVec
	duration prometheus.Histogram
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying fasthttp client (tests dial an
// in-memory listener this way).
func WithHTTPClient(c *fasthttp.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithMetrics registers call counters on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cl *Client) {
		cl.calls = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "apinode",
				Name:      "downstream_calls_total",
				Help:      "Calls made to the Golang service, by result.",
			},
			[]string{"result"},
		)
		cl.duration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "apinode",
			Name:      "downstream_call_duration_seconds",
			Help:      "Latency of calls to the Golang service in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		})
		reg.MustRegister(cl.calls, cl.duration)
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: baseURL,
		timeout: timeout,
		http:    &fasthttp.Client{Name: "api-node"},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL is the full address Call requests.
func (c *Client) URL() string {
	return c.baseURL + Path
}

// Call performs the request. It never returns an error; every failure
// is folded into Result.
func (c *Client) Call(ctx context.Context) Result {
	start := time.Now()
	data, err := c.get(ctx)
	res := Result{Duration: time.Since(start)}
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Data = data
	}
	c.observe(res)
	return res
}

func (c *Client) get(ctx context.Context) (datatypes.JSON, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.URL())
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	req.Header.SetContentType("application/json")

	if err := c.http.DoTimeout(req, resp, c.timeout); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return nil, fmt.Errorf("timeout of %dms exceeded", c.timeout.Milliseconds())
		}
		return nil, err
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("request failed with status code %d", status)
	}
	return decodeBody(resp.Body())
}

// decodeBody passes JSON through untouched and wraps anything else as a
// JSON string. A literal null is wrapped too, so a successful call never
// yields a null payload. The body buffer is copied because fasthttp
// reuses it.
func decodeBody(body []byte) (datatypes.JSON, error) {
	if json.Valid(body) && !bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return datatypes.JSON(append([]byte(nil), body...)), nil
	}
	encoded, err := json.Marshal(string(body))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}

func (c *Client) observe(res Result) {
	if c.calls == nil {
		return
	}
	result := "success"
	if !res.Success {
		result = "failure"
	}
	c.calls.WithLabelValues(result).Inc()
	c.duration.Observe(res.Duration.Seconds())
}
