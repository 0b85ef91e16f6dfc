package metrics

import (
	"net/http"
	"time"

	"github.com/ogurasousui/cmcs-grpc-clean-arch/internal/core/claim"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc/codes"
)

var (
	claimsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "claims",
		Name:      "created_total",
		Help:      "Total number of submitted lecturer claims.",
	})

	claimTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "claims",
		Name:      "transitions_total",
		Help:      "Approve/reject attempts broken down by actor role, action and result.",
	}, []string{"role", "action", "result"})

	rpcHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grpc",
		Subsystem: "server",
		Name:      "handled_total",
		Help:      "Total number of unary RPCs completed on the server.",
	}, []string{"method", "code"})

	rpcLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grpc",
		Subsystem: "server",
		Name:      "handling_seconds",
		Help:      "Latency distribution of unary RPCs.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method"})
)

// ClaimRecorder は claim.Recorder を Prometheus で実装します。
type ClaimRecorder struct{}

// ClaimCreated は請求作成数を加算します。
func (ClaimRecorder) ClaimCreated() {
	claimsCreated.Inc()
}

// TransitionRecorded は遷移の試行結果を加算します。
func (ClaimRecorder) TransitionRecorded(role claim.Role, action claim.Action, result string) {
	claimTransitions.With(prometheus.Labels{
		"role":   string(role),
		"action": string(action),
		"result": result,
	}).Inc()
}

// ObserveRPC は RPC の完了を記録します。
func ObserveRPC(method string, code codes.Code, elapsed time.Duration) {
	rpcHandled.WithLabelValues(method, code.String()).Inc()
	rpcLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// Handler は /metrics 用の HTTP ハンドラを返します。
func Handler() http.Handler {
	return promhttp.Handler()
}
