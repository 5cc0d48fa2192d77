// Package notify turns chat router events into realtime pushes and mirrors
// them to the configured message broker.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hotpot-chat/internal/events"
	"hotpot-chat/internal/models"
	"hotpot-chat/internal/presence"
	"hotpot-chat/pkg/logger"
	"hotpot-chat/pkg/metrics"
)

const publishTimeout = 5 * time.Second

// Transport delivers frames to live connections. Sends to connections that are
// gone are silent no-ops.
type Transport interface {
	SendToConnection(connID string, ev models.Event) bool
	BroadcastToGroup(group string, ev models.Event) int
	BroadcastToGroupExcept(group, exceptConnID string, ev models.Event) int
}

// Notifier is what the chat router depends on. Notify never blocks.
type Notifier interface {
	Notify(target Target, ev models.Event)
}

type job struct {
	target Target
	event  models.Event
}

// Gateway dispatches queued events on a single worker, so events are pushed
// in the order they were accepted. Broker mirroring runs on a second worker
// with its own queue and never delays pushes.
type Gateway struct {
	transport Transport
	resolver  presence.Resolver
	publisher events.Publisher
	log       zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	queue   chan job
	mirrors chan job
	done    chan struct{}
	wg      sync.WaitGroup
	start   sync.Once
}

func NewGateway(transport Transport, resolver presence.Resolver, publisher events.Publisher, queueSize int) *Gateway {
	if publisher == nil {
		publisher = events.NewNoop()
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Gateway{
		transport: transport,
		resolver:  resolver,
		publisher: publisher,
		log:       logger.WithModule("notify"),
		queue:     make(chan job, queueSize),
		mirrors:   make(chan job, queueSize),
		done:      make(chan struct{}),
	}
}

// Start launches the dispatch and mirror workers. Calling it more than once is harmless.
func (g *Gateway) Start() {
	g.start.Do(func() {
		g.wg.Add(2)
		go g.run()
		go g.runMirror()
	})
}

// Notify enqueues ev for target. A full queue drops the event. The read lock
// keeps Close from finishing between the closed check and the enqueue.
func (g *Gateway) Notify(target Target, ev models.Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.closed {
		return
	}

	select {
	case g.queue <- job{target: target, event: ev}:
	default:
		metrics.PushDispatches.WithLabelValues(ev.Name, "dropped").Inc()
		g.log.Warn().Str("event", ev.Name).Str("target", target.String()).Msg("notification queue full, dropping event")
	}
}

// Close stops accepting events, drains what is queued and waits for both workers.
func (g *Gateway) Close() {
	g.mu.Lock()
	if !g.closed {
		g.closed = true
		close(g.done)
	}
	g.mu.Unlock()

	g.wg.Wait()
}

func (g *Gateway) run() {
	defer g.wg.Done()
	defer close(g.mirrors)

	for {
		select {
		case j := <-g.queue:
			g.dispatch(j)
		case <-g.done:
			for {
				select {
				case j := <-g.queue:
					g.dispatch(j)
				default:
					return
				}
			}
		}
	}
}

func (g *Gateway) dispatch(j job) {
	result := g.push(j)
	metrics.PushDispatches.WithLabelValues(j.event.Name, result).Inc()
	g.log.Debug().Str("event", j.event.Name).Str("target", j.target.String()).Str("result", result).Msg("push dispatched")

	select {
	case g.mirrors <- j:
	default:
		metrics.BrokerPublishes.WithLabelValues("dropped").Inc()
		g.log.Warn().Str("event", j.event.Name).Msg("broker mirror queue full, dropping event")
	}
}

// runMirror publishes dispatched events until the dispatch worker closes the
// mirror queue.
func (g *Gateway) runMirror() {
	defer g.wg.Done()

	for j := range g.mirrors {
		g.mirror(j)
	}
}

func (g *Gateway) push(j job) string {
	switch j.target.Kind {
	case KindUser:
		connID, ok := g.resolver.TryResolve(j.target.UserID)
		if !ok {
			return "offline"
		}
		if !g.transport.SendToConnection(connID, j.event) {
			return "dropped"
		}
		return "delivered"
	case KindGroup:
		return groupResult(g.transport.BroadcastToGroup(j.target.Group, j.event))
	case KindGroupExcept:
		return groupResult(g.transport.BroadcastToGroupExcept(j.target.Group, j.target.ExceptConn, j.event))
	default:
		return "dropped"
	}
}

func groupResult(n int) string {
	if n == 0 {
		return "offline"
	}
	return "delivered"
}

type mirroredEvent struct {
	Target string `json:"target"`
	UserID int    `json:"user_id,omitempty"`
	Group  string `json:"group,omitempty"`
	Args   []any  `json:"args"`
}

func (g *Gateway) mirror(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	env := events.NewEnvelope(j.event.Name, mirroredEvent{
		Target: j.target.String(),
		UserID: j.target.UserID,
		Group:  j.target.Group,
		Args:   j.event.Args,
	})

	if err := g.publisher.Publish(ctx, events.RoutingKey(j.event.Name), env); err != nil {
		metrics.BrokerPublishes.WithLabelValues("error").Inc()
		g.log.Error().Err(err).Str("event", j.event.Name).Msg("failed to mirror event to broker")
		return
	}
	metrics.BrokerPublishes.WithLabelValues("ok").Inc()
}
