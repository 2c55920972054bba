// Package session drives the lifecycle of the single BGP adjacency: it
// reacts to timer ticks and engine events, reconnects when the session is
// down, and triggers the one-time bulk advertisement once per established
// connection instance.
package session

import (
	"context"
	"time"

	"github.com/route-beacon/route-pusher/internal/bgp"
	"github.com/route-beacon/route-pusher/internal/inject"
	"github.com/route-beacon/route-pusher/internal/metrics"
	"github.com/route-beacon/route-pusher/internal/report"
	"go.uber.org/zap"
)

// EventType enumerates the engine callbacks dispatched to the controller.
type EventType int

const (
	EventTick EventType = iota
	EventOpen
	EventReset
	EventKeepalive
	EventUpdate
	EventNotification
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventTick:
		return "tick"
	case EventOpen:
		return "open"
	case EventReset:
		return "reset"
	case EventKeepalive:
		return "keepalive"
	case EventUpdate:
		return "update"
	case EventNotification:
		return "notification"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one engine callback. Update is set for EventUpdate; Code,
// Subcode and Data for EventNotification and EventError.
type Event struct {
	Type    EventType
	Update  []byte
	Code    uint8
	Subcode uint8
	Data    []byte
}

// Engine is the session engine as seen by the controller: peer
// registration and the update send primitive. The FSM, transport and
// timers live behind it.
type Engine interface {
	RegisterPeer() error
	DeregisterPeer() error
	inject.Sender
}

// Runner runs the import pipeline once against a live sender.
type Runner interface {
	Run(ctx context.Context, sender inject.Sender) (int, error)
}

// Controller owns the only state that persists across events: whether the
// adjacency is established and whether the full update has been sent for
// the current connection instance. All access is single threaded; events
// are dispatched one at a time by Run.
type Controller struct {
	engine   Engine
	pipeline Runner
	reporter *report.Reporter
	sinks    []inject.Sink
	logger   *zap.Logger

	tickInterval time.Duration
	importFile   bool

	established    bool
	fullUpdateSent bool
}

func NewController(engine Engine, pipeline Runner, importFile bool, tickInterval time.Duration, reporter *report.Reporter, sinks []inject.Sink, logger *zap.Logger) *Controller {
	return &Controller{
		engine:       engine,
		pipeline:     pipeline,
		reporter:     reporter,
		sinks:        sinks,
		logger:       logger,
		tickInterval: tickInterval,
		importFile:   importFile,
	}
}

// Established reports the adjacency state as last observed by the
// controller. Used by the readiness endpoint.
func (c *Controller) Established() bool {
	return c.established
}

// Run dispatches engine events and periodic ticks synchronously, one at a
// time, until the context is cancelled or the event channel closes. An
// immediate tick fires first so the initial connection attempt does not
// wait a full interval.
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	c.Handle(ctx, Event{Type: EventTick})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Handle(ctx, Event{Type: EventTick})
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(ctx, ev)
		}
	}
}

// Handle processes a single event. It is the only mutator of the session
// state.
func (c *Controller) Handle(ctx context.Context, ev Event) {
	metrics.SessionEventsTotal.WithLabelValues(ev.Type.String()).Inc()

	switch ev.Type {
	case EventTick:
		c.handleTick(ctx)
	case EventOpen:
		c.established = true
		c.fullUpdateSent = false
		metrics.SessionEstablished.Set(1)
		c.logger.Info("session established")
	case EventReset:
		c.established = false
		metrics.SessionEstablished.Set(0)
		c.logger.Error("session reset by engine")
	case EventKeepalive:
		c.logger.Debug("keepalive")
	case EventUpdate:
		c.handleUpdate(ctx, ev.Update)
	case EventNotification:
		category, _ := bgp.Describe(ev.Code, ev.Subcode)
		metrics.NotificationsTotal.WithLabelValues("received", category).Inc()
		c.reporter.Notification(ev.Code, ev.Subcode, ev.Data)
	case EventError:
		category, _ := bgp.Describe(ev.Code, ev.Subcode)
		metrics.NotificationsTotal.WithLabelValues("local", category).Inc()
		c.reporter.ProtocolError(ev.Code, ev.Subcode, ev.Data)
	}
}

// handleTick reconnects a down session, or performs the one-time full
// update on an established one. The pipeline runs at most once per
// connection instance and reruns after any reconnection.
func (c *Controller) handleTick(ctx context.Context) {
	if !c.established {
		// Deregister-then-reregister forces a fresh connection attempt.
		if err := c.engine.DeregisterPeer(); err != nil {
			c.logger.Debug("deregister peer", zap.Error(err))
		}
		if err := c.engine.RegisterPeer(); err != nil {
			c.logger.Error("register peer failed", zap.Error(err))
		}
		c.fullUpdateSent = false
		return
	}

	if !c.importFile || c.fullUpdateSent {
		return
	}

	// One attempt per connection instance, success or not: a run that
	// failed mid-file has already advertised part of it, and replaying
	// would duplicate those announcements. A reconnection rearms the flag.
	c.fullUpdateSent = true
	n, err := c.pipeline.Run(ctx, c.engine)
	if err != nil {
		c.logger.Error("import pipeline failed", zap.Int("advertised", n), zap.Error(err))
		return
	}
	c.logger.Info("full update sent", zap.Int("advertised", n))
}

func (c *Controller) handleUpdate(ctx context.Context, msg []byte) {
	metrics.UpdatesReceivedTotal.Inc()

	rcv, err := bgp.ParseUpdate(msg)
	if err != nil {
		// Locally detected decode failure: UPDATE Message Error.
		c.Handle(ctx, Event{Type: EventError, Code: 3})
		return
	}
	if rcv == nil {
		return
	}

	c.reporter.Received(rcv)

	routeEv := &bgp.RouteEvent{
		Direction: "received",
		Prefixes:  rcv.Prefixes,
		Withdrawn: rcv.Withdrawn,
		Attrs:     rcv.Attrs,
		Raw:       msg,
	}
	for _, s := range c.sinks {
		start := time.Now()
		if err := s.Record(ctx, routeEv); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(s.Name()).Inc()
			c.logger.Warn("sink write failed", zap.String("sink", s.Name()), zap.Error(err))
			continue
		}
		metrics.SinkWriteDuration.WithLabelValues(s.Name()).Observe(time.Since(start).Seconds())
	}
}
