package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

func TestDomainCounters(t *testing.T) {
	m := NewPrometheus()

	m.FollowRequestTransition(domain.FollowStatusPending)
	m.FollowRequestTransition(domain.FollowStatusAccepted)
	m.FollowRequestTransition(domain.FollowStatusAccepted)
	m.NotificationCreated(domain.NotificationLike)
	m.CompensationTriggered("accept")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.followRequests.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.followRequests.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("like")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.compensations.WithLabelValues("accept")))
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	m := NewPrometheus()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.Handle("GET /metrics", m.Handler())
	h := m.InstrumentHandler(mux)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "GET /api/users/{id}", "418")))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "cleversm_http_requests_total"))
}
