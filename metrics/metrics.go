// Package metrics holds the Prometheus collectors shared by the fetcher,
// the upgrader and the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	RPCRequests      *prometheus.CounterVec
	MessagesFetched  *prometheus.CounterVec
	WindowsCompleted *prometheus.CounterVec
	AccountsScanned  prometheus.Counter
	AccountsEligible prometheus.Counter
	UpgradeBatches   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frequency_ops",
			Name:      "rpc_requests_total",
			Help:      "Node RPC requests by method and outcome.",
		}, []string{"method", "status"}),
		MessagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frequency_ops",
			Name:      "messages_fetched_total",
			Help:      "Messages written to the output, by schema id.",
		}, []string{"schema"}),
		WindowsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frequency_ops",
			Name:      "windows_completed_total",
			Help:      "Block windows fully drained, by schema id.",
		}, []string{"schema"}),
		AccountsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frequency_ops",
			Name:      "accounts_scanned_total",
			Help:      "System.Account entries inspected.",
		}),
		AccountsEligible: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frequency_ops",
			Name:      "accounts_eligible_total",
			Help:      "Accounts still on the legacy balance storage logic.",
		}),
		UpgradeBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frequency_ops",
			Name:      "upgrade_batches_total",
			Help:      "upgrade_accounts extrinsics by final status.",
		}, []string{"status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.RPCRequests,
			m.MessagesFetched,
			m.WindowsCompleted,
			m.AccountsScanned,
			m.AccountsEligible,
			m.UpgradeBatches,
		)
	}

	return m
}

// RPCStatus maps a call error to the status label.
func RPCStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
