// Package notify publishes match records to NATS as they are detected.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/lefred/mysql-component-viruscan/internal/types"
)

// DefaultSubject receives one message per match.
const DefaultSubject = "viruscan.matches"

var propagator = propagation.TraceContext{}

// Event is the JSON payload of a match message.
type Event struct {
	Virus         string    `json:"virus"`
	User          string    `json:"user"`
	Host          string    `json:"host"`
	Logged        time.Time `json:"logged"`
	EngineVersion string    `json:"engine_version"`
	Signatures    *int64    `json:"signatures"`
}

// EventFromRecord converts rec into its wire form.
func EventFromRecord(rec types.MatchRecord) Event {
	ev := Event{
		Virus:         rec.SignatureName,
		User:          rec.User,
		Host:          rec.Host,
		Logged:        rec.Timestamp,
		EngineVersion: rec.EngineVersion,
	}
	if rec.Signatures.Valid {
		v := rec.Signatures.Value
		ev.Signatures = &v
	}
	return ev
}

// Publisher sends events on a NATS connection.
type Publisher struct {
	nc      *nats.Conn
	subject string
	owned   bool
}

// Connect dials url and returns a publisher that closes the connection on Close.
func Connect(url, subject string) (*Publisher, error) {
	nc, err := nats.Connect(url, nats.Name("viruscan"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := NewPublisher(nc, subject)
	p.owned = true
	return p, nil
}

// NewPublisher publishes on an existing connection.
func NewPublisher(nc *nats.Conn, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{nc: nc, subject: subject}
}

// PublishMatch injects the trace context of ctx into the message headers and
// publishes rec. It does not wait for the server.
func (p *Publisher) PublishMatch(ctx context.Context, rec types.MatchRecord) error {
	data, err := json.Marshal(EventFromRecord(rec))
	if err != nil {
		return err
	}
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	return p.nc.PublishMsg(&nats.Msg{Subject: p.subject, Data: data, Header: hdr})
}

// Close flushes pending messages and closes a connection opened by Connect.
func (p *Publisher) Close() error {
	if !p.owned {
		return nil
	}
	err := p.nc.Flush()
	p.nc.Close()
	return err
}
