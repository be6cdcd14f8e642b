// Package status holds the process-wide counters exposed as status
// variables and as OpenTelemetry instruments.
package status

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Status variable names.
const (
	VarSignatures    = "viruscan.clamav_signatures"
	VarEngineVersion = "viruscan.clamav_engine_version"
	VarVirusFound    = "viruscan.virus_found"
)

// Variable is one named status value, rendered as text.
type Variable struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Counters are safe for concurrent use.
type Counters struct {
	signatures atomic.Int64
	found      atomic.Uint64

	mu      sync.RWMutex
	version string
}

// SetEngine records the signature count and version of the active engine.
func (c *Counters) SetEngine(signatures int, version string) {
	c.signatures.Store(int64(signatures))
	c.mu.Lock()
	c.version = version
	c.mu.Unlock()
}

// IncVirusFound counts one detection.
func (c *Counters) IncVirusFound() { c.found.Add(1) }

func (c *Counters) Signatures() int64 { return c.signatures.Load() }
func (c *Counters) VirusFound() uint64 { return c.found.Load() }

func (c *Counters) EngineVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Variables returns a snapshot in registration order.
func (c *Counters) Variables() []Variable {
	return []Variable{
		{Name: VarSignatures, Value: strconv.FormatInt(c.Signatures(), 10)},
		{Name: VarEngineVersion, Value: c.EngineVersion()},
		{Name: VarVirusFound, Value: strconv.FormatUint(c.VirusFound(), 10)},
	}
}

// Names lists the status variables in registration order.
func Names() []string { return []string{VarSignatures, VarEngineVersion, VarVirusFound} }

// RegisterMetrics exposes the counters through meter. The returned
// registration must be unregistered on shutdown.
func (c *Counters) RegisterMetrics(meter metric.Meter) (metric.Registration, error) {
	sigs, err := meter.Int64ObservableGauge("viruscan_signatures",
		metric.WithDescription("Signatures loaded in the active scan engine"))
	if err != nil {
		return nil, err
	}
	found, err := meter.Int64ObservableCounter("viruscan_virus_found_total",
		metric.WithDescription("Buffers found infected since start"))
	if err != nil {
		return nil, err
	}
	info, err := meter.Int64ObservableGauge("viruscan_engine_info",
		metric.WithDescription("Active scan engine version"))
	if err != nil {
		return nil, err
	}
	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(sigs, c.Signatures())
		o.ObserveInt64(found, int64(c.VirusFound()))
		if v := c.EngineVersion(); v != "" {
			o.ObserveInt64(info, 1, metric.WithAttributes(attribute.String("version", v)))
		}
		return nil
	}, sigs, found, info)
}
