// Package metrics 汇总注入框架的 Prometheus 指标。
// 所有收集器在 init 中注册到全局 registry，挂载 Handler 即可暴露。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScopeBracketsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ginject",
			Name:      "request_scopes_active",
			Help:      "Number of request scope brackets currently open.",
		})

	ScopeBracketsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ginject",
			Name:      "request_scopes_total",
			Help:      "Cumulative number of request scope brackets prepared.",
		})

	ScopedResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ginject",
			Name:      "scoped_resolutions_total",
			Help:      "Request-scoped lookups, labelled by cache result.",
		}, []string{"result"})

	ScopeMisuseTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ginject",
			Name:      "scope_misuse_total",
			Help:      "Request-scoped lookups attempted outside a request.",
		})

	WrappedCallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ginject",
			Name:      "wrapped_callbacks_total",
			Help:      "Callbacks processed at startup, labelled by classification.",
		}, []string{"kind"})

	InjectionErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ginject",
			Name:      "injection_errors_total",
			Help:      "Requests aborted because a dependency could not be resolved.",
		})

	JobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ginject",
			Name:      "cron_job_runs_total",
			Help:      "Scheduled job executions, labelled by job and status.",
		}, []string{"job", "status"})
)

func init() {
	prometheus.MustRegister(
		ScopeBracketsActive,
		ScopeBracketsTotal,
		ScopedResolutionsTotal,
		ScopeMisuseTotal,
		WrappedCallbacksTotal,
		InjectionErrorsTotal,
		JobRunsTotal,
	)
}

// Handler 返回 /metrics 的 HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
