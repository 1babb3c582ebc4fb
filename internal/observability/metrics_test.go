package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.TokenScanned()
	m.Execution("buy", true, 0.1)
	m.FeedState(true)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.TokenScanned()
	m.TokenScanned()
	m.Verdict("GOOD", 0.5)
	m.Execution("buy", false, 1.2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "test_pipeline_tokens_scanned_total 2"))
	assert.True(t, strings.Contains(string(body), `test_executor_executions_total{action="buy",outcome="failure"} 1`))
}
