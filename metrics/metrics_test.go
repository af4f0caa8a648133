package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.MessagesFetched.WithLabelValues("5").Add(3)
	m.RPCRequests.WithLabelValues("messages_getBySchemaId", RPCStatus(nil)).Inc()
	m.RPCRequests.WithLabelValues("messages_getBySchemaId", RPCStatus(errors.New("x"))).Inc()

	assert.Equal(t, float64(3), testutil.ToFloat64(m.MessagesFetched.WithLabelValues("5")))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["frequency_ops_messages_fetched_total"])
	assert.True(t, names["frequency_ops_rpc_requests_total"])
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.AccountsScanned.Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AccountsScanned))
}
