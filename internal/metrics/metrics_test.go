package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollapsePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "UUID segment",
			path: "/api/v1/products/9f1c8d2e-4b6a-4f0e-8a31-2c5d7e9b0a14",
			want: "/api/v1/products/{id}",
		},
		{
			name: "Numeric transaction segment",
			path: "/api/v1/purchases/1756612345678901234",
			want: "/api/v1/purchases/{id}",
		},
		{
			name: "No id segments",
			path: "/api/v1/products",
			want: "/api/v1/products",
		},
		{
			name: "Root",
			path: "/",
			want: "/",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, collapsePath(tc.path))
		})
	}
}

func TestMiddlewareBoundsPathLabels(t *testing.T) {
	// Arrange
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(mux)

	labelCountBefore := testutil.CollectAndCount(httpRequestsTotal)

	// Act
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+uuid.NewString(), nil)
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		require.Equal(t, http.StatusOK, recorder.Code)
	}

	// Assert
	labelCountAfter := testutil.CollectAndCount(httpRequestsTotal)
	assert.Equal(t, 1, labelCountAfter-labelCountBefore, "Distinct ids must share one path label")

	counter, err := httpRequestsTotal.GetMetricWithLabelValues(fmt.Sprint(http.StatusOK), http.MethodGet, "/api/v1/products/{id}")
	require.NoError(t, err)
	assert.InDelta(t, 3, testutil.ToFloat64(counter), 0)
}
