package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lefred/mysql-component-viruscan/internal/logging"
)

func TestInitMetrics_Disabled(t *testing.T) {
	meter, shutdown := InitMetrics(context.Background(), "viruscan", "", time.Second, logging.Discard())
	require.NotNil(t, meter)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitMetrics_LazyDial(t *testing.T) {
	// the gRPC exporter connects lazily, so an unreachable endpoint still
	// yields a working provider
	meter, shutdown := InitMetrics(context.Background(), "viruscan", "127.0.0.1:1", time.Hour, logging.Discard())
	require.NotNil(t, meter)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = shutdown(ctx)
}
