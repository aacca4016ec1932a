package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/freight-booking/internal/metrics"
)

func TestMetrics_Booking(t *testing.T) {
	m := metrics.New()
	m.BookingResult("booked")
	m.BookingResult("booked")
	m.BookingResult("conflict")
	m.PipelineFailure(metrics.StageUpload)
	m.ObserveStage(metrics.StageRender, time.Now())

	count, err := testutil.GatherAndCount(m.Registry(), "booking_service_bookings_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(m.Registry(), "booking_service_pipeline_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.BookingResult("booked")
		m.PipelineFailure(metrics.StageRender)
		m.ObserveStage(metrics.StageUpload, time.Now())
	})
}

func TestMetrics_MiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/shipments/:code", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shipments/F-12345", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `booking_service_http_requests_total{method="GET",route="/shipments/:code",status="204"} 1`)
}
