package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/navigator-gateway/internal/metrics"
)

const (
	commandTimeout  = 5 * time.Second
	stopTimeout     = 10 * time.Second
	commandCapacity = 256
)

var (
	ErrInvalidFilter = errors.New("invalid filter pattern")
	ErrStopped       = errors.New("broadcast registry stopped")
)

// SubscriberID identifies one registration. It is only good for Deregister.
type SubscriberID uuid.UUID

func (id SubscriberID) String() string {
	return uuid.UUID(id).String()
}

// Sink receives serialized messages. Send must not block; a non-nil error
// removes the subscriber.
type Sink interface {
	Send(data []byte) error
}

type subscriber struct {
	sink   Sink
	filter *regexp.Regexp
}

func (s subscriber) matches(name string, data []byte) bool {
	return s.filter == nil || s.filter.Match(data) || s.filter.MatchString(name)
}

// registryCmd is the command interface for the Registry actor.
type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type registerCmd struct {
	baseRegistryCmd
	id    SubscriberID
	sub   subscriber
	reply chan struct{}
}

type deregisterCmd struct {
	baseRegistryCmd
	id SubscriberID
}

type broadcastCmd struct {
	baseRegistryCmd
	name    string
	message any
}

type countCmd struct {
	baseRegistryCmd
	reply chan int
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry holds the live subscribers and fans messages out to them.
type Registry struct {
	cmdCh       chan registryCmd
	clock       clockwork.Clock
	subscribers map[SubscriberID]subscriber
	count       atomic.Int64
	stopped     atomic.Bool
	done        chan struct{}
	stopTimeout time.Duration
}

func NewRegistry(clock clockwork.Clock) *Registry {
	r := &Registry{
		cmdCh:       make(chan registryCmd, commandCapacity),
		clock:       clock,
		subscribers: make(map[SubscriberID]subscriber),
		done:        make(chan struct{}),
		stopTimeout: stopTimeout,
	}
	go r.run()
	return r
}

// CompileFilter compiles a subscriber filter. The empty pattern matches
// everything and yields a nil regexp.
func CompileFilter(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return re, nil
}

// Register adds sink with the given filter pattern.
func (r *Registry) Register(sink Sink, pattern string) (SubscriberID, error) {
	filter, err := CompileFilter(pattern)
	if err != nil {
		return SubscriberID{}, err
	}

	id := SubscriberID(uuid.New())
	reply := make(chan struct{}, 1)
	if !r.enqueue(registerCmd{id: id, sub: subscriber{sink: sink, filter: filter}, reply: reply}) {
		return SubscriberID{}, ErrStopped
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case <-reply:
		return id, nil
	case <-r.done:
		return SubscriberID{}, ErrStopped
	case <-timer.Chan():
		return SubscriberID{}, fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Deregister removes a subscriber. Unknown or already removed ids are ignored.
func (r *Registry) Deregister(id SubscriberID) {
	r.enqueue(deregisterCmd{id: id})
}

// Broadcast queues message for fan-out. With no subscribers it returns
// immediately without serializing. When the queue is full the message is
// dropped; delivery is best-effort.
func (r *Registry) Broadcast(name string, message any) {
	if r.count.Load() == 0 {
		return
	}

	select {
	case r.cmdCh <- broadcastCmd{name: name, message: message}:
	default:
		metrics.BroadcastDroppedTotal.Inc()
		slog.Warn("Broadcast queue full, dropping message", "name", name, "capacity", cap(r.cmdCh))
	}
}

// Count returns the number of registered subscribers, or -1 if the actor did
// not answer in time.
func (r *Registry) Count() int {
	reply := make(chan int, 1)
	if !r.enqueue(countCmd{reply: reply}) {
		return 0
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n
	case <-r.done:
		return 0
	case <-timer.Chan():
		slog.Warn("Count timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop drops all subscribers and ends the actor. Sinks are not closed; their
// transports own that. Blocks until the actor exits or the timeout passes.
func (r *Registry) Stop() {
	if !r.stopped.CompareAndSwap(false, true) {
		return
	}
	if !r.enqueue(stopCmd{}) {
		return
	}

	timeout := r.clock.NewTimer(r.stopTimeout)
	defer timeout.Stop()

	select {
	case <-r.done:
		slog.Info("Broadcast registry stopped gracefully")
	case <-timeout.Chan():
		slog.Warn("Broadcast registry stop timeout exceeded", "timeout", r.stopTimeout)
		metrics.BroadcastStopTimeoutsTotal.Inc()
	}
}

func (r *Registry) enqueue(cmd registryCmd) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.cmdCh <- cmd:
		return true
	case <-r.done:
		return false
	}
}

func (r *Registry) run() {
	defer close(r.done)
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Broadcast registry panic recovered", "panic", p)
			metrics.BroadcastPanicsTotal.Inc()
			r.dropAll()
		}
	}()

	depthTicker := r.clock.NewTicker(time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			depth := len(r.cmdCh)
			metrics.BroadcastCommandChannelDepth.Set(float64(depth))
			if depth > commandCapacity*4/5 {
				slog.Warn("Command channel near capacity", "depth", depth, "capacity", cap(r.cmdCh))
			}

		case cmd := <-r.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				r.handleRegister(c)
			case deregisterCmd:
				r.handleDeregister(c.id)
			case broadcastCmd:
				r.handleBroadcast(c)
			case countCmd:
				c.reply <- len(r.subscribers)
			case stopCmd:
				slog.Info("Broadcast registry shutting down", "subscribers", len(r.subscribers))
				r.dropAll()
				return
			default:
				slog.Warn("Broadcast registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (r *Registry) handleRegister(c registerCmd) {
	r.subscribers[c.id] = c.sub
	r.count.Store(int64(len(r.subscribers)))
	metrics.BroadcastSubscribers.Set(float64(len(r.subscribers)))

	slog.Debug("Subscriber registered", "subscriber_id", c.id.String(), "filtered", c.sub.filter != nil, "total", len(r.subscribers))
	c.reply <- struct{}{}
}

func (r *Registry) handleDeregister(id SubscriberID) {
	if _, ok := r.subscribers[id]; !ok {
		return
	}
	delete(r.subscribers, id)
	r.count.Store(int64(len(r.subscribers)))
	metrics.BroadcastSubscribers.Set(float64(len(r.subscribers)))

	slog.Debug("Subscriber deregistered", "subscriber_id", id.String(), "remaining", len(r.subscribers))
}

func (r *Registry) handleBroadcast(c broadcastCmd) {
	if len(r.subscribers) == 0 {
		return
	}

	start := r.clock.Now()
	data, err := json.Marshal(c.message)
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "name", c.name, "error", err)
		return
	}
	metrics.BroadcastMessagesTotal.Inc()

	var failed []SubscriberID
	for id, sub := range r.subscribers {
		if !sub.matches(c.name, data) {
			continue
		}
		if err := safeSend(sub.sink, data); err != nil {
			slog.Warn("Removing subscriber after failed send", "subscriber_id", id.String(), "error", err)
			failed = append(failed, id)
			continue
		}
		metrics.BroadcastDeliveriesTotal.Inc()
	}

	for _, id := range failed {
		metrics.BroadcastEvictionsTotal.Inc()
		r.handleDeregister(id)
	}

	metrics.BroadcastFanoutDuration.Observe(r.clock.Since(start).Seconds())
}

func (r *Registry) dropAll() {
	clear(r.subscribers)
	r.count.Store(0)
	metrics.BroadcastSubscribers.Set(0)
}

func safeSend(sink Sink, data []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panicked: %v", p)
		}
	}()
	return sink.Send(data)
}
