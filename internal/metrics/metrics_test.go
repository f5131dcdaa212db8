package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersByTag(t *testing.T) {
	m := New()
	m.ObserveDelivered("orders")
	m.ObserveDelivered("orders")
	m.ObserveCallbackError("orders")
	m.ObservePersistenceError("audit")
	m.ObserveDroppedError("audit")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.delivered.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.callbackErrors.WithLabelValues("orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.persistenceErrors.WithLabelValues("audit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedErrors.WithLabelValues("audit")))
}

func TestStoreHookAndHandler(t *testing.T) {
	m := New()
	m.ObserveWrite(time.Millisecond, 10)
	m.ObserveBatchCommit(time.Millisecond, 2, 32)
	m.ObserveSave("orders", 2*time.Millisecond)
	assert.Equal(t, 10.0, testutil.ToFloat64(m.storeBytes.WithLabelValues("write")))
	assert.Equal(t, 32.0, testutil.ToFloat64(m.storeBytes.WithLabelValues("commit")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "flowatch_bookmark_save_seconds_count"))
	assert.True(t, strings.Contains(string(body), `flowatch_store_bytes_total{op="write"} 10`))
}
