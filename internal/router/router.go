// Package router delivers relay events to subscribed handlers and
// announces subscriptions to the relay.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rlmatch/recorder/internal/queue"
	"github.com/rlmatch/recorder/pkg/streaming"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrInvalidKey is returned when a channel or event name is empty.
	ErrInvalidKey = errors.New("channel and event must be non-empty strings")

	// ErrNoSender is returned when publishing to the relay without a transport.
	ErrNoSender = errors.New("no transport to send on")
)

// Key identifies a subscription bucket.
type Key struct {
	Channel string
	Event   string
}

// String returns the relay's compound form "channel:event".
func (k Key) String() string {
	return k.Channel + streaming.Separator + k.Event
}

// ParseKey splits a compound "channel:event" name on the first separator.
// Both halves must be non-empty.
func ParseKey(compound string) (Key, bool) {
	channel, event, found := strings.Cut(compound, streaming.Separator)
	if !found || channel == "" || event == "" {
		return Key{}, false
	}
	return Key{Channel: channel, Event: event}, true
}

// Handler receives the data of a dispatched event.
type Handler func(data json.RawMessage)

// Sender transmits a text frame to the relay.
type Sender interface {
	Send(data []byte) error
}

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a Router.
type Option func(*config)

type config struct {
	debug        bool
	debugFilters map[string]struct{}
}

// WithDebug logs every inbound event except those whose compound name
// appears in filters.
func WithDebug(filters ...string) Option {
	return func(c *config) {
		c.debug = true
		for _, f := range filters {
			c.debugFilters[f] = struct{}{}
		}
	}
}

// Router maps (channel, event) pairs to ordered handler lists.
type Router struct {
	mu          sync.Mutex
	subscribers map[Key][]Handler
	order       []Key // announced pairs, first subscription first
	pending     *queue.Queue[string]
	connected   bool
	opened      bool

	sender Sender
	logger Logger
	cfg    config

	// OTEL metrics
	dispatched metric.Int64Counter
	dropped    metric.Int64Counter
	queued     metric.Int64Counter
}

// New creates a Router that announces subscriptions through sender.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(sender Sender, logger Logger, opts ...Option) (*Router, error) {
	cfg := config{debugFilters: make(map[string]struct{})}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Router{
		subscribers: make(map[Key][]Handler),
		pending:     queue.New[string](),
		sender:      sender,
		logger:      logger,
		cfg:         cfg,
	}

	m := meter()

	var err error

	r.dispatched, err = m.Int64Counter(
		"router.events.dispatched",
		metric.WithDescription("Events delivered to at least one handler"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dispatched counter: %w", err)
	}

	r.dropped, err = m.Int64Counter(
		"router.frames.dropped",
		metric.WithDescription("Inbound frames dropped as malformed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	r.queued, err = m.Int64Counter(
		"router.registrations.queued",
		metric.WithDescription("Registrations buffered while disconnected"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queued counter: %w", err)
	}

	return r, nil
}

// Subscribe registers h for every combination of channels and events.
// The first registration of a pair is announced to the relay, or queued
// until the transport opens.
func (r *Router) Subscribe(channels, events []string, h Handler) {
	for _, channel := range channels {
		for _, event := range events {
			r.subscribe(Key{Channel: channel, Event: event}, h)
		}
	}
}

// On registers h for a single pair.
func (r *Router) On(channel, event string, h Handler) {
	r.subscribe(Key{Channel: channel, Event: event}, h)
}

func (r *Router) subscribe(key Key, h Handler) {
	r.mu.Lock()
	_, known := r.subscribers[key]
	r.subscribers[key] = append(r.subscribers[key], h)
	if !known {
		r.order = append(r.order, key)
	}
	announce := !known && r.connected
	if !known && !r.connected {
		r.pending.Push(key.String())
		r.queued.Add(context.Background(), 1)
	}
	r.mu.Unlock()

	if announce {
		r.register(key.String())
	}
}

func (r *Router) register(compound string) {
	if err := r.Publish(streaming.ChannelWSRelay, streaming.EventRegister, compound); err != nil {
		r.logger.Error("failed to register event with relay", "event", compound, "error", err)
		return
	}
	r.logger.Debug("registered event with relay", "event", compound)
}

// Clear removes every handler bound to the pair. Other events on the
// same channel are untouched.
func (r *Router) Clear(channel, event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := Key{Channel: channel, Event: event}
	delete(r.subscribers, key)
	r.order = slices.DeleteFunc(r.order, func(k Key) bool { return k == key })
}

// Subscribed returns the number of handlers bound to the pair.
func (r *Router) Subscribed(channel, event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers[Key{Channel: channel, Event: event}])
}

// Dispatch invokes the handlers of the pair in registration order.
// Nil handlers are skipped and a panicking handler does not stop the rest.
func (r *Router) Dispatch(channel, event string, data json.RawMessage) {
	key := Key{Channel: channel, Event: event}

	r.mu.Lock()
	handlers := slices.Clone(r.subscribers[key])
	r.mu.Unlock()

	if len(handlers) == 0 {
		return
	}

	for _, h := range handlers {
		if h == nil {
			continue
		}
		r.invoke(key, h, data)
	}

	r.dispatched.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("event", key.String())))
}

func (r *Router) invoke(key Key, h Handler, data json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panicked", "event", key.String(), "panic", rec)
		}
	}()
	h(data)
}

// Publish sends an event. The "local" channel is dispatched in-process
// and never reaches the wire.
func (r *Router) Publish(channel, event string, data any) error {
	if channel == "" || event == "" {
		r.logger.Error("refusing to publish", "channel", channel, "event", event, "error", ErrInvalidKey)
		return ErrInvalidKey
	}

	raw, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("marshal %s:%s data: %w", channel, event, err)
	}

	if channel == streaming.ChannelLocal {
		r.Dispatch(channel, event, raw)
		return nil
	}

	if r.sender == nil {
		return ErrNoSender
	}

	key := Key{Channel: channel, Event: event}
	frame, err := json.Marshal(streaming.RelayEnvelope{Event: key.String(), Data: raw})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", key, err)
	}
	if err := r.sender.Send(frame); err != nil {
		return fmt.Errorf("send %s: %w", key, err)
	}
	return nil
}

func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// OnOpen marks the router connected and flushes queued registrations
// in the order they were made. The relay forgets registrations with the
// connection, so a reopen announces every subscribed pair again.
func (r *Router) OnOpen() {
	r.Dispatch(streaming.ChannelWS, streaming.EventOpen, nil)

	r.mu.Lock()
	if r.opened && !r.connected {
		r.pending.Drain()
		for _, key := range r.order {
			r.pending.Push(key.String())
		}
	}
	r.opened = true
	r.connected = true
	pending := r.pending.Drain()
	r.mu.Unlock()

	for _, compound := range pending {
		r.register(compound)
	}
}

// OnClose marks the router disconnected. New subscriptions queue again.
func (r *Router) OnClose() {
	r.Dispatch(streaming.ChannelWS, streaming.EventClose, nil)
	r.setConnected(false)
}

// OnError marks the router disconnected.
func (r *Router) OnError(err error) {
	r.logger.Debug("transport error", "error", err)
	r.Dispatch(streaming.ChannelWS, streaming.EventError, nil)
	r.setConnected(false)
}

// OnMessage parses an inbound frame and dispatches it. Malformed frames
// are dropped.
func (r *Router) OnMessage(text []byte) {
	var env streaming.RelayEnvelope
	if err := json.Unmarshal(text, &env); err != nil {
		r.drop("unparsable frame")
		return
	}

	key, ok := ParseKey(env.Event)
	if !ok {
		r.drop("malformed event name")
		return
	}

	if r.cfg.debug {
		if _, filtered := r.cfg.debugFilters[env.Event]; !filtered {
			r.logger.Info("relay event", "channel", key.Channel, "event", key.Event, "data", string(env.Data))
		}
	}

	r.Dispatch(key.Channel, key.Event, env.Data)
}

func (r *Router) drop(reason string) {
	r.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Router) setConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = connected
}

// Connected reports whether the transport is open.
func (r *Router) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// Pending returns the number of registrations waiting for the transport.
func (r *Router) Pending() int {
	return r.pending.Len()
}
