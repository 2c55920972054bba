package session

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/jwhited/corebgp"
	"go.uber.org/zap"

	"github.com/route-beacon/route-pusher/internal/config"
)

// eventBuffer bounds how many update events can queue up before the
// controller drains them. Updates from a full-table peer can burst, so
// leave headroom. Lifecycle events never use the overflow path.
const eventBuffer = 256

// CoreEngine runs a corebgp server for the single configured adjacency and
// translates plugin callbacks into controller events.
type CoreEngine struct {
	cfg    config.SessionConfig
	logger *zap.Logger

	srv     *corebgp.Server
	localIP net.IP
	peerIP  net.IP

	events chan Event

	mu     sync.Mutex
	writer corebgp.UpdateMessageWriter
}

var _ Engine = (*CoreEngine)(nil)
var _ corebgp.Plugin = (*CoreEngine)(nil)

// NewCoreEngine builds the engine. The corebgp server is created eagerly so
// listener setup errors surface before the controller starts.
func NewCoreEngine(cfg config.SessionConfig, logger *zap.Logger) (*CoreEngine, error) {
	localIP := net.ParseIP(cfg.LocalIP)
	if localIP == nil {
		return nil, fmt.Errorf("parse local ip %q", cfg.LocalIP)
	}
	peerIP := net.ParseIP(cfg.PeerIP)
	if peerIP == nil {
		return nil, fmt.Errorf("parse peer ip %q", cfg.PeerIP)
	}
	srv, err := corebgp.NewServer(localIP)
	if err != nil {
		return nil, fmt.Errorf("new bgp server: %w", err)
	}
	return &CoreEngine{
		cfg:     cfg,
		logger:  logger,
		srv:     srv,
		localIP: localIP,
		peerIP:  peerIP,
		events:  make(chan Event, eventBuffer),
	}, nil
}

// Events returns the channel the controller selects on.
func (e *CoreEngine) Events() <-chan Event { return e.events }

// Run serves BGP connections until ctx is cancelled. It blocks.
func (e *CoreEngine) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			e.srv.Close()
		case <-done:
		}
	}()
	err := e.srv.Serve(nil)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// RegisterPeer adds the configured peer to the server, arming outbound
// connection attempts.
func (e *CoreEngine) RegisterPeer() error {
	err := e.srv.AddPeer(corebgp.PeerConfig{
		LocalAddress:  e.localIP,
		RemoteAddress: e.peerIP,
		LocalAS:       e.cfg.LocalAS,
		RemoteAS:      e.cfg.PeerAS,
	}, e)
	if err != nil {
		return fmt.Errorf("add peer %s: %w", e.peerIP, err)
	}
	return nil
}

// DeregisterPeer removes the peer, dropping any live session.
func (e *CoreEngine) DeregisterPeer() error {
	if err := e.srv.DeletePeer(e.peerIP); err != nil {
		return fmt.Errorf("delete peer %s: %w", e.peerIP, err)
	}
	return nil
}

// SendUpdate writes a full UPDATE message to the established peer.
func (e *CoreEngine) SendUpdate(msg []byte) error {
	e.mu.Lock()
	w := e.writer
	e.mu.Unlock()
	if w == nil {
		return fmt.Errorf("session not established")
	}
	return w.WriteUpdate(msg)
}

// GetCapabilities advertises no optional capabilities; the injector speaks
// plain IPv4 unicast BGP-4.
func (e *CoreEngine) GetCapabilities(peer corebgp.PeerConfig) []corebgp.Capability {
	return nil
}

// OnOpenMessage accepts any OPEN. Unknown capabilities are ignored per
// RFC 5492.
func (e *CoreEngine) OnOpenMessage(peer corebgp.PeerConfig, routerID net.IP, capabilities []corebgp.Capability) *corebgp.Notification {
	return nil
}

// OnEstablished captures the writer and signals the controller.
func (e *CoreEngine) OnEstablished(peer corebgp.PeerConfig, writer corebgp.UpdateMessageWriter) corebgp.UpdateMessageHandler {
	e.mu.Lock()
	e.writer = writer
	e.mu.Unlock()
	e.logger.Info("session established", zap.String("peer", peer.RemoteAddress.String()))
	e.emit(Event{Type: EventOpen})
	return e.handleUpdate
}

// OnClose clears the writer and signals a reset.
func (e *CoreEngine) OnClose(peer corebgp.PeerConfig) {
	e.mu.Lock()
	e.writer = nil
	e.mu.Unlock()
	e.logger.Warn("session closed", zap.String("peer", peer.RemoteAddress.String()))
	e.emit(Event{Type: EventReset})
}

func (e *CoreEngine) handleUpdate(peer corebgp.PeerConfig, msg []byte) *corebgp.Notification {
	// Copy: corebgp may reuse the message buffer after the handler returns.
	raw := make([]byte, len(msg))
	copy(raw, msg)
	e.emit(Event{Type: EventUpdate, Update: raw})
	return nil
}

// emit forwards an event to the controller. Update events are shed when
// the buffer is full; open and reset block until delivered so the
// controller's view of the adjacency never goes stale.
func (e *CoreEngine) emit(ev Event) {
	if ev.Type == EventUpdate {
		select {
		case e.events <- ev:
		default:
			e.logger.Warn("event channel full, dropping update")
		}
		return
	}
	e.events <- ev
}
