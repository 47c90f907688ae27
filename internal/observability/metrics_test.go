package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observations(t *testing.T) {
	m := NewMetrics()

	m.ObserveCall("add_note", "executed", 120*time.Millisecond)
	m.ObserveCall("send_email", "failed", time.Second)
	m.ObserveDenial("create_task")
	m.ObserveQuotaRejection("llm_tokens")
	m.ObservePending(1)
	m.ObservePending(-1)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `planora_tool_calls_total{status="executed",tool="add_note"} 1`)
	assert.Contains(t, body, `planora_tool_calls_total{status="failed",tool="send_email"} 1`)
	assert.Contains(t, body, `planora_policy_denials_total{tool="create_task"} 1`)
	assert.Contains(t, body, `planora_quota_rejections_total{kind="llm_tokens"} 1`)
	assert.Contains(t, body, "planora_pending_confirmations 0")
}

func TestMetrics_FreshRegistryPerInstance(t *testing.T) {
	// Two instances must not collide on registration
	a := NewMetrics()
	b := NewMetrics()

	a.ObserveDenial("x")
	b.ObserveDenial("x")
}
