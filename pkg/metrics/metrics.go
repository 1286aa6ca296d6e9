package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/girderhq/girder/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry     *prometheus.Registry
	namespace    string
	httpReqCnt   *prometheus.CounterVec
	httpDur      *prometheus.HistogramVec
	httpInfl     *prometheus.GaugeVec
	provCallCnt  *prometheus.CounterVec
	provCallDur  *prometheus.HistogramVec
	provCallInfl *prometheus.GaugeVec
	rateDenyCnt  *prometheus.CounterVec
	refreshCnt   *prometheus.CounterVec
	webhookCnt   *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	// Register basic HTTP metrics
	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	provCallCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "provider_calls_total"}, []string{"provider", "environment", "status"})
	provCallDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "provider_call_duration_seconds", Buckets: cfg.Buckets}, []string{"provider", "environment", "status"})
	provCallInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "provider_calls_inflight"}, []string{"provider"})
	r.MustRegister(provCallCnt, provCallDur, provCallInfl)

	rateDenyCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "rate_limit_denied_total"}, []string{"provider"})
	refreshCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "token_refreshes_total"}, []string{"provider", "status"})
	webhookCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "webhooks_total"}, []string{"provider", "status"})
	r.MustRegister(rateDenyCnt, refreshCnt, webhookCnt)

	return &Metrics{
		registry:     r,
		namespace:    ns,
		httpReqCnt:   httpReqCnt,
		httpDur:      httpDur,
		httpInfl:     httpInfl,
		provCallCnt:  provCallCnt,
		provCallDur:  provCallDur,
		provCallInfl: provCallInfl,
		rateDenyCnt:  rateDenyCnt,
		refreshCnt:   refreshCnt,
		webhookCnt:   webhookCnt,
	}
}

func (m *Metrics) ProviderCallStart(provider string) {
	m.provCallInfl.WithLabelValues(provider).Inc()
}

func (m *Metrics) ProviderCallDone(provider, environment, status string, since time.Time) {
	m.provCallCnt.WithLabelValues(provider, environment, status).Inc()
	m.provCallDur.WithLabelValues(provider, environment, status).Observe(time.Since(since).Seconds())
	m.provCallInfl.WithLabelValues(provider).Dec()
}

func (m *Metrics) RateLimitDenied(provider string) {
	m.rateDenyCnt.WithLabelValues(provider).Inc()
}

func (m *Metrics) TokenRefreshDone(provider string, ok bool) {
	m.refreshCnt.WithLabelValues(provider, boolStatus(ok, "refreshed", "failed")).Inc()
}

func (m *Metrics) WebhookDone(provider string, ok bool) {
	m.webhookCnt.WithLabelValues(provider, boolStatus(ok, "verified", "rejected")).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = routeFromURL(c.Request.URL.Path)
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func routeFromURL(path string) string {
	if strings.HasPrefix(path, "/webhooks/") {
		return "/webhooks/:provider"
	}
	if strings.HasPrefix(path, "/api/connections/") {
		return "/api/connections/:provider/:identity"
	}
	return path
}

func httpStatus(code int) string { return strconv.Itoa(code) }

func boolStatus(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
