// Package export publishes route events to Kafka for downstream consumers.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/route-beacon/route-pusher/internal/bgp"
	"github.com/route-beacon/route-pusher/internal/config"
)

// exportRecord is the wire shape published to the export topic. Withdrawn
// and attribute fields are omitted when empty so consumers see compact
// payloads.
type exportRecord struct {
	Timestamp       string   `json:"timestamp"`
	Direction       string   `json:"direction"`
	Prefixes        []string `json:"prefixes,omitempty"`
	Withdrawn       []string `json:"withdrawn,omitempty"`
	Origin          string   `json:"origin,omitempty"`
	ASPath          string   `json:"as_path,omitempty"`
	NextHop         string   `json:"next_hop,omitempty"`
	LocalPref       *uint32  `json:"local_pref,omitempty"`
	MED             *uint32  `json:"med,omitempty"`
	Communities     []string `json:"communities,omitempty"`
	AtomicAggregate bool     `json:"atomic_aggregate,omitempty"`
	Aggregator      string   `json:"aggregator,omitempty"`
}

// Producer publishes route events. It implements inject.Sink.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *zap.Logger
}

// NewProducer builds a Kafka client from the export configuration.
func NewProducer(cfg config.ExportConfig, logger *zap.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
	}

	tlsCfg, err := cfg.BuildTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("export tls: %w", err)
	}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	if mech := cfg.BuildSASLMechanism(); mech != nil {
		opts = append(opts, kgo.SASL(mech))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("export client: %w", err)
	}

	return &Producer{client: client, topic: cfg.Topic, logger: logger}, nil
}

func (p *Producer) Name() string { return "export" }

// Record publishes one route event. The key is the first prefix (or
// withdrawn prefix) so per-prefix ordering holds within a partition.
func (p *Producer) Record(ctx context.Context, ev *bgp.RouteEvent) error {
	payload, err := json.Marshal(buildRecord(ev, time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("marshal export record: %w", err)
	}

	rec := &kgo.Record{Key: recordKey(ev), Value: payload}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending records and tears down the client.
func (p *Producer) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush export client: %w", err)
	}
	p.client.Close()
	return nil
}

func buildRecord(ev *bgp.RouteEvent, ts time.Time) *exportRecord {
	rec := &exportRecord{
		Timestamp:       ts.Format(time.RFC3339Nano),
		Direction:       ev.Direction,
		Prefixes:        ev.Prefixes,
		Withdrawn:       ev.Withdrawn,
		ASPath:          ev.Attrs.ASPath,
		NextHop:         ev.Attrs.NextHop,
		LocalPref:       ev.Attrs.LocalPref,
		MED:             ev.Attrs.MED,
		Communities:     ev.Attrs.Communities,
		AtomicAggregate: ev.Attrs.AtomicAggregate,
	}
	// Pure withdrawals carry no path attributes worth naming.
	if len(ev.Prefixes) > 0 {
		rec.Origin = bgp.OriginValues[ev.Attrs.Origin]
	}
	if ev.Attrs.Aggregator != nil {
		rec.Aggregator = ev.Attrs.Aggregator.String()
	}
	return rec
}

func recordKey(ev *bgp.RouteEvent) []byte {
	if len(ev.Prefixes) > 0 {
		return []byte(ev.Prefixes[0])
	}
	if len(ev.Withdrawn) > 0 {
		return []byte(ev.Withdrawn[0])
	}
	return nil
}
