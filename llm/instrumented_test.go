package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BaSui01/agentcrew/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestInstrumented_RecordsSpanAndMetrics(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("test", reg, zap.NewNop())

	calls := 0
	next := CompleterFunc(func(_ context.Context, prompt string) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	inst := NewInstrumented(next, "openai", "gpt-test", collector, zap.NewNop(), WithTracer(tp.Tracer("test")))

	out, err := inst.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = inst.Complete(context.Background(), "hello")
	assert.EqualError(t, err, "boom")

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "llm.Complete", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	expected := `
# HELP test_llm_requests_total Total number of LLM requests
# TYPE test_llm_requests_total counter
test_llm_requests_total{model="gpt-test",provider="openai",status="error"} 1
test_llm_requests_total{model="gpt-test",provider="openai",status="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_llm_requests_total"))
}

func TestInstrumented_NilCollector(t *testing.T) {
	inst := NewInstrumented(EchoCompleter{}, "echo", "echo", nil, nil)

	out, err := inst.Complete(context.Background(), "Description: ping")
	require.NoError(t, err)
	assert.Equal(t, "Echo: ping", out)
}
