package tracing

import (
	"context"
	"testing"
	"time"

	"mealbot/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Contains(t, id1, "req_")
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))

	ctx = WithRequestID(ctx, "req_test")
	assert.Equal(t, "req_test", GetRequestID(ctx))
}

func TestDuration(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, time.Duration(0), Duration(ctx))

	ctx = WithStartTime(ctx, time.Now().Add(-time.Second))
	assert.GreaterOrEqual(t, Duration(ctx), time.Second)
}

func TestManagerDisabled(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(models.TracingConfig{Enabled: false}, logger)

	require.NoError(t, manager.Initialize(context.Background()))
	require.NoError(t, manager.Shutdown(context.Background()))
}

func TestManagerStdoutExporter(t *testing.T) {
	logger := logrus.New()
	manager := NewManager(models.TracingConfig{
		Enabled:     true,
		ServiceName: "mealbot-test",
		SampleRate:  1.0,
		UseStdout:   true,
	}, logger)

	require.NoError(t, manager.Initialize(context.Background()))

	ctx, span := StartSpan(context.Background(), "test-span")
	assert.NotEmpty(t, TraceID(ctx))
	span.End()

	require.NoError(t, manager.Shutdown(context.Background()))
}
