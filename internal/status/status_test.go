package status

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCounters_Variables(t *testing.T) {
	var c Counters
	c.SetEngine(8700000, "1.0.3")
	c.IncVirusFound()
	c.IncVirusFound()

	assert.Equal(t, []Variable{
		{Name: "viruscan.clamav_signatures", Value: "8700000"},
		{Name: "viruscan.clamav_engine_version", Value: "1.0.3"},
		{Name: "viruscan.virus_found", Value: "2"},
	}, c.Variables())
	assert.Equal(t, Names(), []string{VarSignatures, VarEngineVersion, VarVirusFound})
}

func TestCounters_ConcurrentIncrements(t *testing.T) {
	var c Counters
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncVirusFound()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(1000), c.VirusFound())
}

func TestCounters_RegisterMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	var c Counters
	c.SetEngine(42, "1.0.3")
	c.IncVirusFound()
	reg, err := c.RegisterMetrics(mp.Meter("viruscan"))
	require.NoError(t, err)
	defer reg.Unregister()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	got := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch d := m.Data.(type) {
		case metricdata.Gauge[int64]:
			got[m.Name] = d.DataPoints[0].Value
		case metricdata.Sum[int64]:
			got[m.Name] = d.DataPoints[0].Value
		}
	}
	assert.Equal(t, map[string]int64{
		"viruscan_signatures":        42,
		"viruscan_virus_found_total": 1,
		"viruscan_engine_info":       1,
	}, got)
}
