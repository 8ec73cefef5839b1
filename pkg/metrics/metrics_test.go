package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletOperation_CountsOutcomes(t *testing.T) {
	m := New()

	m.WalletOperation("transfer", OutcomeSuccess, decimal.RequireFromString("200.00"))
	m.WalletOperation("transfer", OutcomeSuccess, decimal.RequireFromString("50.50"))
	m.WalletOperation("transfer", OutcomeReplayed, decimal.RequireFromString("200.00"))
	m.WalletOperation("charge", OutcomeRejected, decimal.RequireFromString("20.00"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.walletOps.WithLabelValues("transfer", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.walletOps.WithLabelValues("transfer", OutcomeReplayed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.walletOps.WithLabelValues("charge", OutcomeRejected)))
	assert.InDelta(t, 250.50, testutil.ToFloat64(m.walletVolume.WithLabelValues("transfer")), 0.001)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.walletVolume.WithLabelValues("charge")))
}

func TestRequestTracking(t *testing.T) {
	m := New()

	m.RequestStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpInFlight))

	m.RequestFinished("GET", "/api/wallet/balance", "200", 0.01)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/wallet/balance", "200")))
}

func TestHandler_ServesTextFormat(t *testing.T) {
	m := New()
	m.WalletOperation("topup", OutcomeSuccess, decimal.NewFromInt(500))

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `nsimbi_wallet_operations_total{operation="topup",outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.WalletOperation("topup", OutcomeSuccess, decimal.NewFromInt(1))

	assert.Equal(t, 1.0, testutil.ToFloat64(a.walletOps.WithLabelValues("topup", OutcomeSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.walletOps.WithLabelValues("topup", OutcomeSuccess)))
}
