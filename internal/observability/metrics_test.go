package observability

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/event"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RecordTransition(t *testing.T) {
	m := NewMetrics()

	m.RecordTransition("document", entity.ActionApproved, service.OutcomeSucceeded)
	m.RecordTransition("document", entity.ActionApproved, service.OutcomeSucceeded)
	m.RecordTransition("document", entity.ActionRejected, service.OutcomeUnauthorized)

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.TransitionsTotal.WithLabelValues("document", "approved", service.OutcomeSucceeded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.TransitionsTotal.WithLabelValues("document", "rejected", service.OutcomeUnauthorized)))
}

func TestMetrics_RecordBulkItem(t *testing.T) {
	m := NewMetrics()

	m.RecordBulkItem(entity.ActionApproved, true)
	m.RecordBulkItem(entity.ActionApproved, false)
	m.RecordBulkItem(entity.ActionApproved, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BulkItemsTotal.WithLabelValues("approved", "succeeded")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BulkItemsTotal.WithLabelValues("approved", "failed")))
}

func TestMetrics_ObserveHandler(t *testing.T) {
	m := NewMetrics()

	m.ObserveHandler(event.TypeApproved, "audit-logger", 3*time.Millisecond, nil)
	m.ObserveHandler(event.TypeApproved, "audit-logger", time.Millisecond, errors.New("disk full"))
	m.ObserveHandler(event.TypeApproved, "notifier", time.Millisecond, fmt.Errorf("%w: boom", dispatcher.ErrHandlerPanic))

	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HandlerExecutionsTotal.WithLabelValues("approval.approved", "audit-logger", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HandlerExecutionsTotal.WithLabelValues("approval.approved", "audit-logger", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.HandlerExecutionsTotal.WithLabelValues("approval.approved", "notifier", "panic")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("document", entity.ActionApproved, service.OutcomeSucceeded)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(string(body), "approval_flow_workflow_transitions_total"))
}
